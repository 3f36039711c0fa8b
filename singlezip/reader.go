package singlezip

import (
	"encoding/binary"
	"io"
	"io/ioutil"
	"os"

	"github.com/pkg/errors"
)

// Reader inflates the entry of an archive written by Writer.
//
// It relies on the exact local header layout Writer produces and does no
// validation: signatures are not checked and the central directory is
// never read. Archives from other producers give undefined results.
type Reader struct {
	rc     io.ReadCloser
	closer io.Closer // set when the Reader owns the file
	closed bool
}

// Open opens the archive at path with the default backend.
func Open(path string) (*Reader, error) {
	return OpenBackend(path, "")
}

// OpenBackend opens the archive at path, inflating with the named backend.
func OpenBackend(path, backendName string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open archive")
	}
	r, err := newReader(f, backendName)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewReader positions r at the compressed payload of the archive starting
// at r's current position. When r is an io.Seeker the preamble is skipped
// by seeking, otherwise it is read and discarded.
func NewReader(r io.Reader) (*Reader, error) {
	return newReader(r, "")
}

func newReader(r io.Reader, backendName string) (*Reader, error) {
	b, err := backend(backendName)
	if err != nil {
		return nil, err
	}
	if err := skip(r, fileHeaderNameLenOffset); err != nil {
		return nil, errors.Wrap(err, "skip local header")
	}
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, errors.Wrap(err, "read name length")
	}
	nameLen := int64(binary.LittleEndian.Uint16(buf[:]))
	// extra length, name, zip64 field
	if err := skip(r, 2+nameLen+localExtraLen); err != nil {
		return nil, errors.Wrap(err, "skip name and extra field")
	}
	return &Reader{rc: b.NewDecompressor(r)}, nil
}

func skip(r io.Reader, n int64) error {
	if s, ok := r.(io.Seeker); ok {
		_, err := s.Seek(n, io.SeekCurrent)
		return err
	}
	_, err := io.CopyN(ioutil.Discard, r, n)
	return err
}

// Read reads inflated payload bytes. It returns io.EOF at the end of the
// compressed stream.
func (r *Reader) Read(p []byte) (int, error) {
	return r.rc.Read(p)
}

// Close releases the decompressor and, for Open, the file.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.rc.Close()
	if r.closer != nil {
		if cerr := r.closer.Close(); cerr != nil && err == nil {
			err = cerr
		}
		r.closer = nil
	}
	return err
}
