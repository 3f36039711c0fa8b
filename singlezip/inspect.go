package singlezip

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Layout describes where the records of a finished archive live and what
// they hold. Raw legacy fields are reported as stored, sentinels included.
type Layout struct {
	Name string

	HeaderOffset int64 // local file header
	DataOffset   int64 // first byte of compressed data

	// Local header values. The legacy sizes stay at their sentinel, the
	// real ones are in the local zip64 field.
	LocalCRC32            uint32
	LocalCompressedSize   uint64
	LocalUncompressedSize uint64

	// Central directory header values, resolved through its zip64 field
	// when present.
	CRC32            uint32
	CompressedSize   uint64
	UncompressedSize uint64
	DirectoryZip64   bool

	LegacyCompressedSize   uint32
	LegacyUncompressedSize uint32
	LegacyHeaderOffset     uint32

	DirectoryOffset int64
	DirectorySize   int64

	// Zip64EndOffset is the offset of the zip64 end of central directory
	// record, or -1 when the archive has none.
	Zip64EndOffset int64
	LocatorOffset  int64 // zip64 end locator as recorded, -1 when absent

	EndOffset          int64
	EndDiskNbr         uint16
	EndDirDiskNbr      uint16
	EndRecordsThisDisk uint16
	EndRecords         uint16
	EndDirectorySize   uint32
	EndDirectoryOffset uint32
}

// Zip64End reports whether the archive carries a zip64 end record.
func (l *Layout) Zip64End() bool {
	return l.Zip64EndOffset >= 0
}

// Inspect parses the records of an archive written by Writer. Unlike
// Reader it starts from the end of central directory record and checks
// every signature, so it is meant for diagnostics.
func Inspect(r io.ReaderAt, size int64) (*Layout, error) {
	l := &Layout{Zip64EndOffset: -1, LocatorOffset: -1}
	if err := l.readEnd(r, size); err != nil {
		return nil, err
	}
	if err := l.readDirectoryHeader(r); err != nil {
		return nil, err
	}
	if err := l.readFileHeader(r); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Layout) readEnd(r io.ReaderAt, size int64) error {
	// archives from Writer carry no comment, but allow a short one
	blockLen := int64(1024)
	if blockLen > size {
		blockLen = size
	}
	buf := make([]byte, blockLen)
	if _, err := r.ReadAt(buf, size-blockLen); err != nil && err != io.EOF {
		return errors.Wrap(err, "read end of central directory")
	}
	p := findSignatureInBlock(buf)
	if p < 0 {
		return ErrFormat
	}
	l.EndOffset = size - blockLen + int64(p)

	b := readBuf(buf[p+4:]) // skip signature
	l.EndDiskNbr = b.uint16()
	l.EndDirDiskNbr = b.uint16()
	l.EndRecordsThisDisk = b.uint16()
	l.EndRecords = b.uint16()
	l.EndDirectorySize = b.uint32()
	l.EndDirectoryOffset = b.uint32()
	l.DirectorySize = int64(l.EndDirectorySize)
	l.DirectoryOffset = int64(l.EndDirectoryOffset)

	// These values mean that the file can be a zip64 file
	if l.EndRecords == uint16max || l.EndDirectorySize == uint32max || l.EndDirectoryOffset == uint32max {
		p, err := findDirectory64End(r, l.EndOffset)
		if err != nil {
			return err
		}
		if p < 0 {
			return errors.Wrap(ErrFormat, "zip64 locator missing")
		}
		l.LocatorOffset = l.EndOffset - directory64LocLen
		l.Zip64EndOffset = p
		if err := l.readDirectory64End(r, p); err != nil {
			return err
		}
	}
	if l.DirectoryOffset < 0 || l.DirectoryOffset >= size {
		return errors.Wrap(ErrFormat, "central directory offset out of range")
	}
	return nil
}

func findDirectory64End(r io.ReaderAt, directoryEndOffset int64) (int64, error) {
	locOffset := directoryEndOffset - directory64LocLen
	if locOffset < 0 {
		return -1, nil // no need to look for a header outside the file
	}
	buf := make([]byte, directory64LocLen)
	if _, err := r.ReadAt(buf, locOffset); err != nil {
		return -1, errors.Wrap(err, "read zip64 locator")
	}
	b := readBuf(buf)
	if sig := b.uint32(); sig != directory64LocSignature {
		return -1, nil
	}
	if b.uint32() != 0 { // number of the disk with the start of the zip64 end of central directory
		return -1, nil // the file is not a valid zip64-file
	}
	p := b.uint64()      // relative offset of the zip64 end of central directory record
	if b.uint32() != 1 { // total number of disks
		return -1, nil // the file is not a valid zip64-file
	}
	return int64(p), nil
}

func (l *Layout) readDirectory64End(r io.ReaderAt, offset int64) error {
	buf := make([]byte, directory64EndLen)
	if _, err := r.ReadAt(buf, offset); err != nil {
		return errors.Wrap(err, "read zip64 end of central directory")
	}

	b := readBuf(buf)
	if sig := b.uint32(); sig != directory64EndSignature {
		return ErrFormat
	}

	// skip dir size, versions, disk numbers and entries on this disk
	// (uint64 + 2x uint16 + 2x uint32 + uint64)
	b = b[28:]
	if b.uint64() != 1 { // total number of entries
		return errors.Wrap(ErrFormat, "more than one entry")
	}
	l.DirectorySize = int64(b.uint64())
	l.DirectoryOffset = int64(b.uint64())
	return nil
}

func (l *Layout) readDirectoryHeader(r io.ReaderAt) error {
	var buf [directoryHeaderLen]byte
	if _, err := r.ReadAt(buf[:], l.DirectoryOffset); err != nil {
		return errors.Wrap(err, "read central directory header")
	}
	b := readBuf(buf[:])
	if sig := b.uint32(); sig != directoryHeaderSignature {
		return ErrFormat
	}
	b = b[12:] // skip versions, flags, method, time and date (6x uint16)
	l.CRC32 = b.uint32()
	l.LegacyCompressedSize = b.uint32()
	l.LegacyUncompressedSize = b.uint32()
	filenameLen := int(b.uint16())
	extraLen := int(b.uint16())
	commentLen := int(b.uint16())
	b = b[8:] // skip disk number, internal and external attributes (2x uint16 + uint32)
	l.LegacyHeaderOffset = b.uint32()

	d := make([]byte, filenameLen+extraLen+commentLen)
	if _, err := r.ReadAt(d, l.DirectoryOffset+directoryHeaderLen); err != nil {
		return errors.Wrap(err, "read central directory name")
	}
	l.Name = string(d[:filenameLen])
	l.CompressedSize = uint64(l.LegacyCompressedSize)
	l.UncompressedSize = uint64(l.LegacyUncompressedSize)
	l.HeaderOffset = int64(l.LegacyHeaderOffset)

	needUSize := l.LegacyUncompressedSize == uint32max
	needCSize := l.LegacyCompressedSize == uint32max
	needHeaderOffset := l.LegacyHeaderOffset == uint32max

	extra := readBuf(d[filenameLen : filenameLen+extraLen])
	for len(extra) >= 4 { // need at least tag and size
		fieldTag := extra.uint16()
		fieldSize := int(extra.uint16())
		if len(extra) < fieldSize {
			break
		}
		fieldBuf := extra.sub(fieldSize)
		if fieldTag != zip64ExtraID {
			continue
		}
		l.DirectoryZip64 = true
		if needUSize {
			needUSize = false
			if len(fieldBuf) < 8 {
				return ErrFormat
			}
			l.UncompressedSize = fieldBuf.uint64()
		}
		if needCSize {
			needCSize = false
			if len(fieldBuf) < 8 {
				return ErrFormat
			}
			l.CompressedSize = fieldBuf.uint64()
		}
		if needHeaderOffset {
			needHeaderOffset = false
			if len(fieldBuf) < 8 {
				return ErrFormat
			}
			l.HeaderOffset = int64(fieldBuf.uint64())
		}
	}
	if needUSize || needCSize || needHeaderOffset {
		return errors.Wrap(ErrFormat, "sentinel without zip64 field")
	}
	return nil
}

// readFileHeader does the minimum work to verify the local header and
// its zip64 field.
func (l *Layout) readFileHeader(r io.ReaderAt) error {
	var buf [fileHeaderLen]byte
	if _, err := r.ReadAt(buf[:], l.HeaderOffset); err != nil {
		return errors.Wrap(err, "read local header")
	}
	b := readBuf(buf[:])
	if sig := b.uint32(); sig != fileHeaderSignature {
		return ErrFormat
	}
	b = b[10:] // skip version, flags, method, time and date (5x uint16)
	l.LocalCRC32 = b.uint32()
	b = b[8:] // skip legacy sizes, always sentinels
	filenameLen := int64(b.uint16())
	extraLen := int64(b.uint16())
	l.DataOffset = l.HeaderOffset + fileHeaderLen + filenameLen + extraLen

	if extraLen < localExtraLen {
		return errors.Wrap(ErrFormat, "local zip64 field missing")
	}
	extra := make([]byte, localExtraLen)
	if _, err := r.ReadAt(extra, l.HeaderOffset+fileHeaderLen+filenameLen); err != nil {
		return errors.Wrap(err, "read local zip64 field")
	}
	e := readBuf(extra)
	if e.uint16() != zip64ExtraID || e.uint16() != localExtraLen-4 {
		return errors.Wrap(ErrFormat, "local zip64 field malformed")
	}
	l.LocalUncompressedSize = e.uint64()
	l.LocalCompressedSize = e.uint64()
	return nil
}

func findSignatureInBlock(b []byte) int {
	for i := len(b) - directoryEndLen; i >= 0; i-- {
		// defined from directoryEndSignature in struct.go
		if b[i] == 'P' && b[i+1] == 'K' && b[i+2] == 0x05 && b[i+3] == 0x06 {
			// n is length of comment
			n := int(b[i+directoryEndLen-2]) | int(b[i+directoryEndLen-1])<<8
			if n+directoryEndLen+i <= len(b) {
				return i
			}
		}
	}
	return -1
}

type readBuf []byte

func (b *readBuf) uint16() uint16 {
	v := binary.LittleEndian.Uint16(*b)
	*b = (*b)[2:]
	return v
}

func (b *readBuf) uint32() uint32 {
	v := binary.LittleEndian.Uint32(*b)
	*b = (*b)[4:]
	return v
}

func (b *readBuf) uint64() uint64 {
	v := binary.LittleEndian.Uint64(*b)
	*b = (*b)[8:]
	return v
}

func (b *readBuf) sub(n int) readBuf {
	b2 := (*b)[:n]
	*b = (*b)[n:]
	return b2
}
