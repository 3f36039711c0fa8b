package singlezip

import "encoding/binary"

// localFileHeader precedes the compressed payload.
type localFileHeader struct {
	ReaderVersion    uint16
	Flags            uint16
	Method           uint16
	ModifiedTime     uint16
	ModifiedDate     uint16
	CRC32            uint32
	CompressedSize   uint32
	UncompressedSize uint32
	NameLen          uint16
	ExtraLen         uint16
}

func (h *localFileHeader) encode() [fileHeaderLen]byte {
	var buf [fileHeaderLen]byte
	b := writeBuf(buf[:])
	b.uint32(fileHeaderSignature)
	b.uint16(h.ReaderVersion)
	b.uint16(h.Flags)
	b.uint16(h.Method)
	b.uint16(h.ModifiedTime)
	b.uint16(h.ModifiedDate)
	b.uint32(h.CRC32)
	b.uint32(h.CompressedSize)
	b.uint32(h.UncompressedSize)
	b.uint16(h.NameLen)
	b.uint16(h.ExtraLen)
	return buf
}

// directoryHeader is the single central directory record.
type directoryHeader struct {
	CreatorVersion   uint16
	ReaderVersion    uint16
	Flags            uint16
	Method           uint16
	ModifiedTime     uint16
	ModifiedDate     uint16
	CRC32            uint32
	CompressedSize   uint32
	UncompressedSize uint32
	NameLen          uint16
	ExtraLen         uint16
	CommentLen       uint16
	DiskNumberStart  uint16
	InternalAttrs    uint16
	ExternalAttrs    uint32
	HeaderOffset     uint32
}

func (h *directoryHeader) encode() [directoryHeaderLen]byte {
	var buf [directoryHeaderLen]byte
	b := writeBuf(buf[:])
	b.uint32(directoryHeaderSignature)
	b.uint16(h.CreatorVersion)
	b.uint16(h.ReaderVersion)
	b.uint16(h.Flags)
	b.uint16(h.Method)
	b.uint16(h.ModifiedTime)
	b.uint16(h.ModifiedDate)
	b.uint32(h.CRC32)
	b.uint32(h.CompressedSize)
	b.uint32(h.UncompressedSize)
	b.uint16(h.NameLen)
	b.uint16(h.ExtraLen)
	b.uint16(h.CommentLen)
	b.uint16(h.DiskNumberStart)
	b.uint16(h.InternalAttrs)
	b.uint32(h.ExternalAttrs)
	b.uint32(h.HeaderOffset)
	return buf
}

type directory64End struct {
	CreatorVersion     uint16
	ReaderVersion      uint16
	DiskNbr            uint32
	DirDiskNbr         uint32
	DirRecordsThisDisk uint64
	DirectoryRecords   uint64
	DirectorySize      uint64
	DirectoryOffset    uint64
}

func (d *directory64End) encode() [directory64EndLen]byte {
	var buf [directory64EndLen]byte
	b := writeBuf(buf[:])
	b.uint32(directory64EndSignature)
	b.uint64(directory64EndSize)
	b.uint16(d.CreatorVersion)
	b.uint16(d.ReaderVersion)
	b.uint32(d.DiskNbr)
	b.uint32(d.DirDiskNbr)
	b.uint64(d.DirRecordsThisDisk)
	b.uint64(d.DirectoryRecords)
	b.uint64(d.DirectorySize)
	b.uint64(d.DirectoryOffset)
	return buf
}

type directory64Loc struct {
	EndDiskNbr uint32
	EndOffset  uint64 // offset of the zip64 end record
	TotalDisks uint32
}

func (l *directory64Loc) encode() [directory64LocLen]byte {
	var buf [directory64LocLen]byte
	b := writeBuf(buf[:])
	b.uint32(directory64LocSignature)
	b.uint32(l.EndDiskNbr)
	b.uint64(l.EndOffset)
	b.uint32(l.TotalDisks)
	return buf
}

type directoryEnd struct {
	DiskNbr            uint16
	DirDiskNbr         uint16
	DirRecordsThisDisk uint16
	DirectoryRecords   uint16
	DirectorySize      uint32
	DirectoryOffset    uint32
	CommentLen         uint16
}

func (d *directoryEnd) encode() [directoryEndLen]byte {
	var buf [directoryEndLen]byte
	b := writeBuf(buf[:])
	b.uint32(directoryEndSignature)
	b.uint16(d.DiskNbr)
	b.uint16(d.DirDiskNbr)
	b.uint16(d.DirRecordsThisDisk)
	b.uint16(d.DirectoryRecords)
	b.uint32(d.DirectorySize)
	b.uint32(d.DirectoryOffset)
	b.uint16(d.CommentLen)
	return buf
}

type writeBuf []byte

func (b *writeBuf) uint16(v uint16) {
	binary.LittleEndian.PutUint16(*b, v)
	*b = (*b)[2:]
}

func (b *writeBuf) uint32(v uint32) {
	binary.LittleEndian.PutUint32(*b, v)
	*b = (*b)[4:]
}

func (b *writeBuf) uint64(v uint64) {
	binary.LittleEndian.PutUint64(*b, v)
	*b = (*b)[8:]
}
