package singlezip

// Compression methods.
const (
	Store   uint16 = 0 // no compression
	Deflate uint16 = 8 // DEFLATE compressed
)

const (
	fileHeaderSignature      = 0x04034b50
	directoryHeaderSignature = 0x02014b50
	directoryEndSignature    = 0x06054b50
	directory64LocSignature  = 0x07064b50
	directory64EndSignature  = 0x06064b50
	fileHeaderLen            = 30 // + filename + extra
	directoryHeaderLen       = 46 // + filename + extra + comment
	directoryEndLen          = 22 // + comment
	directory64LocLen        = 20 //
	directory64EndLen        = 56 // + extra

	// Size of the zip64 end record counted from after its size field.
	directory64EndSize = directory64EndLen - 12

	// Version needed to extract and version made by. 4.5 reads and
	// writes zip64 archives.
	zipVersion45 = 45

	// General purpose flag for "normal" deflate.
	flagDeflateNormal = 0

	// Limits for non zip64 files.
	uint16max = (1 << 16) - 1
	uint32max = (1 << 32) - 1

	zip64ExtraID = 0x0001 // Zip64 extended information
)

// Byte positions inside the local file header and its zip64 extra field.
const (
	fileHeaderCRCOffset     = 14
	fileHeaderNameLenOffset = 26

	// The local extra field always carries uncompressed and compressed
	// size, nothing else.
	localExtraLen = 4 + 8 + 8

	// Offset of the uncompressed size slot counted from the end of the
	// file name. The compressed size slot follows it.
	localExtraSizesOffset = 4
)
