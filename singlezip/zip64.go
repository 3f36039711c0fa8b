package singlezip

// zip64Field selects which sub-fields a zip64 extra field carries.
type zip64Field uint8

const (
	zip64UncompressedSize zip64Field = 1 << iota
	zip64CompressedSize
	zip64HeaderOffset
	zip64DiskNumber

	zip64Sizes = zip64UncompressedSize | zip64CompressedSize
)

// zip64Extra holds the values a zip64 extended information field can
// carry. Which of them are written is decided by the selection passed to
// encode, the order never changes.
type zip64Extra struct {
	UncompressedSize uint64
	CompressedSize   uint64
	HeaderOffset     uint64
	DiskNumber       uint32
}

// zip64ExtraLen returns the encoded length of a field with the given
// selection, including the 4-byte id and size prefix.
func zip64ExtraLen(sel zip64Field) int {
	return 4 + zip64DataLen(sel)
}

func zip64DataLen(sel zip64Field) int {
	n := 0
	if sel&zip64UncompressedSize != 0 {
		n += 8
	}
	if sel&zip64CompressedSize != 0 {
		n += 8
	}
	if sel&zip64HeaderOffset != 0 {
		n += 8
	}
	if sel&zip64DiskNumber != 0 {
		n += 4
	}
	return n
}

func (e *zip64Extra) encode(sel zip64Field) []byte {
	buf := make([]byte, zip64ExtraLen(sel))
	b := writeBuf(buf)
	b.uint16(zip64ExtraID)
	b.uint16(uint16(zip64DataLen(sel)))
	if sel&zip64UncompressedSize != 0 {
		b.uint64(e.UncompressedSize)
	}
	if sel&zip64CompressedSize != 0 {
		b.uint64(e.CompressedSize)
	}
	if sel&zip64HeaderOffset != 0 {
		b.uint64(e.HeaderOffset)
	}
	if sel&zip64DiskNumber != 0 {
		b.uint32(e.DiskNumber)
	}
	return buf
}

// needsZip64Directory reports whether the central directory header has to
// carry a zip64 extra field.
func needsZip64Directory(compressed, uncompressed, headerOffset uint64) bool {
	return compressed >= uint32max || uncompressed >= uint32max || headerOffset >= uint32max
}

// needsZip64End reports whether the zip64 end of central directory record
// and locator have to be written.
func needsZip64End(directoryOffset uint64) bool {
	return directoryOffset >= uint32max
}
