package singlezip

import (
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Options tune a Writer. The zero value selects DefaultBackend at
// DefaultLevel and logs to the logrus standard logger.
type Options struct {
	// Level is a flate compression level. Zero selects DefaultLevel.
	Level int
	// Backend names a registered DEFLATE backend.
	Backend string
	Logger  log.FieldLogger
}

func (o *Options) level() int {
	if o == nil || o.Level == 0 {
		return DefaultLevel
	}
	return o.Level
}

func (o *Options) backend() string {
	if o == nil {
		return ""
	}
	return o.Backend
}

func (o *Options) logger() log.FieldLogger {
	if o == nil || o.Logger == nil {
		return log.StandardLogger()
	}
	return o.Logger
}

type writerState int

const (
	stateCreated writerState = iota
	stateWriting
	stateFinished
	stateClosed
)

// slots are absolute offsets of the fields patched by Finish, recorded
// when the local header is written.
type slots struct {
	header  int64 // start of the local file header
	crc     int64 // local header CRC-32
	sizes   int64 // zip64 uncompressed size, compressed size follows
	payload int64 // first byte of compressed data
}

// Writer streams a single DEFLATE compressed entry into a zip64 capable
// archive. The payload size need not be known in advance.
//
// A Writer is not safe for concurrent use.
type Writer struct {
	ws     io.WriteSeeker
	closer io.Closer // set when the Writer owns the file
	path   string    // file created by Create, removed by Abort
	name   string
	comp   Compressor
	crc32  uint32
	slots  slots
	state  writerState
	log    log.FieldLogger
}

// EntryName derives the entry name stored in an archive written to path:
// the base name with its final extension removed. A name made of a single
// leading dot and no other dot, like ".profile", is kept whole.
func EntryName(path string) (string, error) {
	base := filepath.Base(path)
	switch base {
	case ".", "..", string(filepath.Separator):
		return "", errors.Wrapf(ErrInvalidName, "%q has no base name", path)
	}
	name := base
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		name = base[:i]
	}
	if err := checkName(name); err != nil {
		return "", err
	}
	return name, nil
}

func checkName(name string) error {
	if name == "" {
		return errors.Wrap(ErrInvalidName, "empty name")
	}
	if len(name) > uint16max {
		return errors.Wrapf(ErrInvalidName, "name is %d bytes, limit is %d", len(name), uint16max)
	}
	return nil
}

// Create creates the archive at path and writes its local header. The
// entry name is EntryName(path). Closing the Writer closes the file.
func Create(path string, opts *Options) (*Writer, error) {
	name, err := EntryName(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "create archive")
	}
	w, err := NewWriter(f, name, opts)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	w.closer = f
	w.path = path
	return w, nil
}

// NewWriter writes a local header for name at the current position of ws
// and returns a Writer streaming the entry after it. Closing the Writer
// finalizes the archive but does not close ws.
func NewWriter(ws io.WriteSeeker, name string, opts *Options) (*Writer, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	b, err := backend(opts.backend())
	if err != nil {
		return nil, err
	}
	// flate writers emit nothing until written to, so a bad level is
	// reported before any byte reaches ws.
	comp, err := b.NewCompressor(ws, opts.level())
	if err != nil {
		return nil, errors.Wrap(err, "create compressor")
	}
	start, err := ws.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, errors.Wrap(err, "locate local header")
	}

	// Sizes are unknown until the stream ends, so the local header always
	// points at a zip64 field with room for both.
	extra := (&zip64Extra{}).encode(zip64Sizes)
	h := localFileHeader{
		ReaderVersion:    zipVersion45,
		Flags:            flagDeflateNormal,
		Method:           Deflate,
		CompressedSize:   uint32max,
		UncompressedSize: uint32max,
		NameLen:          uint16(len(name)),
		ExtraLen:         uint16(len(extra)),
	}
	hb := h.encode()
	buf := make([]byte, 0, len(hb)+len(name)+len(extra))
	buf = append(buf, hb[:]...)
	buf = append(buf, name...)
	buf = append(buf, extra...)
	if _, err := ws.Write(buf); err != nil {
		return nil, errors.Wrap(err, "write local header")
	}

	w := &Writer{
		ws:   ws,
		name: name,
		comp: comp,
		slots: slots{
			header:  start,
			crc:     start + fileHeaderCRCOffset,
			sizes:   start + fileHeaderLen + int64(len(name)) + localExtraSizesOffset,
			payload: start + int64(len(buf)),
		},
		log: opts.logger().WithField("entry", name),
	}
	w.log.WithField("offset", start).Debug("local header written")
	return w, nil
}

// Name returns the entry name stored in the archive.
func (w *Writer) Name() string {
	return w.name
}

// Write compresses p into the archive.
func (w *Writer) Write(p []byte) (int, error) {
	if w.state >= stateFinished {
		return 0, ErrFinished
	}
	w.state = stateWriting
	n, err := w.comp.Write(p)
	w.crc32 = crc32.Update(w.crc32, crc32.IEEETable, p[:n])
	if err != nil {
		return n, errors.Wrap(err, "compress")
	}
	return n, nil
}

// Finish ends the compressed stream, patches the local header and
// appends the central directory. The underlying writer is left positioned
// at the end of the archive. Any error leaves the archive incomplete.
func (w *Writer) Finish() error {
	if w.state >= stateFinished {
		return ErrFinished
	}
	w.state = stateFinished

	in, out, err := w.comp.Flush()
	if err != nil {
		return errors.Wrap(err, "flush compressor")
	}
	uncompressed := uint64(in)
	compressed := uint64(out + w.comp.TrailerLen())
	if err := w.comp.Close(); err != nil {
		return errors.Wrap(err, "close compressor")
	}

	end, err := w.ws.Seek(0, io.SeekCurrent)
	if err != nil {
		return errors.Wrap(err, "locate end of data")
	}
	if measured := uint64(end - w.slots.payload); measured != compressed {
		w.log.WithFields(log.Fields{
			"declared": compressed,
			"measured": measured,
		}).Warn("compressor trailer does not match its declared length, using measured size")
		compressed = measured
	}

	if err := w.patch(end, uncompressed, compressed); err != nil {
		return err
	}
	zip64, err := w.writeDirectory(end, uncompressed, compressed)
	if err != nil {
		return err
	}
	w.log.WithFields(log.Fields{
		"crc32":        w.crc32,
		"uncompressed": uncompressed,
		"compressed":   compressed,
		"zip64":        zip64,
	}).Debug("archive finished")
	return nil
}

// Close finishes the archive if needed and releases the file when the
// Writer was obtained from Create.
func (w *Writer) Close() error {
	if w.state == stateClosed {
		return nil
	}
	var err error
	if w.state < stateFinished {
		err = w.Finish()
	}
	w.state = stateClosed
	if w.closer != nil {
		if cerr := w.closer.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "close archive")
		}
	}
	return err
}

// Abort discards the archive without finalizing it. An owned file is
// closed and, when it came from Create, removed. Further writes fail with
// ErrFinished.
func (w *Writer) Abort() error {
	if w.state == stateClosed {
		return nil
	}
	w.state = stateClosed
	w.log.Debug("archive aborted")
	if w.closer == nil {
		return nil
	}
	if err := w.closer.Close(); err != nil {
		return errors.Wrap(err, "close archive")
	}
	if w.path != "" {
		if err := os.Remove(w.path); err != nil {
			return errors.Wrap(err, "remove archive")
		}
	}
	return nil
}

// patch overwrites the placeholders in the local header and returns to end.
func (w *Writer) patch(end int64, uncompressed, compressed uint64) error {
	var crc [4]byte
	b := writeBuf(crc[:])
	b.uint32(w.crc32)
	if err := w.writeAt(crc[:], w.slots.crc); err != nil {
		return errors.Wrap(err, "patch crc32")
	}

	var sizes [16]byte
	b = writeBuf(sizes[:])
	b.uint64(uncompressed)
	b.uint64(compressed)
	if err := w.writeAt(sizes[:], w.slots.sizes); err != nil {
		return errors.Wrap(err, "patch sizes")
	}

	if _, err := w.ws.Seek(end, io.SeekStart); err != nil {
		return errors.Wrap(err, "seek to end of data")
	}
	return nil
}

func (w *Writer) writeAt(p []byte, off int64) error {
	if _, err := w.ws.Seek(off, io.SeekStart); err != nil {
		return err
	}
	_, err := w.ws.Write(p)
	return err
}

// writeDirectory appends the central directory and end records starting
// at offset, reporting whether any zip64 structure was used.
func (w *Writer) writeDirectory(offset int64, uncompressed, compressed uint64) (bool, error) {
	headerOffset := uint64(w.slots.header)
	h := directoryHeader{
		CreatorVersion: zipVersion45,
		ReaderVersion:  zipVersion45,
		Flags:          flagDeflateNormal,
		Method:         Deflate,
		CRC32:          w.crc32,
		NameLen:        uint16(len(w.name)),
	}
	var extra []byte
	zip64 := needsZip64Directory(compressed, uncompressed, headerOffset)
	if zip64 {
		e := zip64Extra{
			UncompressedSize: uncompressed,
			CompressedSize:   compressed,
			HeaderOffset:     headerOffset,
		}
		extra = e.encode(zip64Sizes | zip64HeaderOffset)
		h.CompressedSize = uint32max
		h.UncompressedSize = uint32max
		h.HeaderOffset = uint32max
		h.ExtraLen = uint16(len(extra))
	} else {
		h.CompressedSize = uint32(compressed)
		h.UncompressedSize = uint32(uncompressed)
		h.HeaderOffset = uint32(headerOffset)
	}

	buf := make([]byte, 0, directoryHeaderLen+len(w.name)+len(extra)+directory64EndLen+directory64LocLen+directoryEndLen)
	hb := h.encode()
	buf = append(buf, hb[:]...)
	buf = append(buf, w.name...)
	buf = append(buf, extra...)

	dirOffset := uint64(offset)
	dirSize := uint64(len(buf))
	end := directoryEnd{
		DirRecordsThisDisk: 1,
		DirectoryRecords:   1,
		DirectorySize:      uint32(dirSize),
		DirectoryOffset:    uint32(dirOffset),
	}
	if needsZip64End(dirOffset) {
		zip64 = true
		rec := directory64End{
			CreatorVersion:     zipVersion45,
			ReaderVersion:      zipVersion45,
			DirRecordsThisDisk: 1,
			DirectoryRecords:   1,
			DirectorySize:      dirSize,
			DirectoryOffset:    dirOffset,
		}
		loc := directory64Loc{
			EndOffset:  dirOffset + dirSize,
			TotalDisks: 1,
		}
		rb, lb := rec.encode(), loc.encode()
		buf = append(buf, rb[:]...)
		buf = append(buf, lb[:]...)
		end = directoryEnd{
			DiskNbr:            uint16max,
			DirDiskNbr:         uint16max,
			DirRecordsThisDisk: uint16max,
			DirectoryRecords:   uint16max,
			DirectorySize:      uint32max,
			DirectoryOffset:    uint32max,
		}
	}
	eb := end.encode()
	buf = append(buf, eb[:]...)
	if _, err := w.ws.Write(buf); err != nil {
		return zip64, errors.Wrap(err, "write central directory")
	}
	return zip64, nil
}
