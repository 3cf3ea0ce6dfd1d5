package snapdb

import "encoding/binary"

// Block type tags, stamped into every block's footer. Readers verify the
// tag matches what they expected to find at that position before trusting
// the payload (§4.1 "Block I/O").
const (
	BlockTypeHeader   uint32 = 1
	BlockTypeIndirect uint32 = 2
	BlockTypeTreeHead uint32 = 3
	BlockTypeLeaf     uint32 = 4
	BlockTypeInterior uint32 = 5
)

// FooterSize is the fixed trailing region of every block: two 8-byte
// checksum words, a 4-byte block type, and a 4-byte sub-file id (§4.1).
const FooterSize = 32

// DefaultBlockSize is used when Config.BlockSize is zero.
const DefaultBlockSize = 4096

// MinBlockSize is the smallest block size the format allows.
const MinBlockSize = 512

// footer is the trailing 32 bytes of every block, decoded/encoded in
// place at the tail of the block's byte slice.
type footer struct {
	checksumLo uint64
	checksumHi uint64
	blockType  uint32
	subFileID  uint32
}

func readFooter(block []byte) footer {
	n := len(block)
	f := footer{}
	b := block[n-FooterSize:]
	f.checksumLo = binary.LittleEndian.Uint64(b[0:8])
	f.checksumHi = binary.LittleEndian.Uint64(b[8:16])
	f.blockType = binary.LittleEndian.Uint32(b[16:20])
	f.subFileID = binary.LittleEndian.Uint32(b[20:24])
	return f
}

func writeFooter(block []byte, f footer) {
	n := len(block)
	b := block[n-FooterSize:]
	binary.LittleEndian.PutUint64(b[0:8], f.checksumLo)
	binary.LittleEndian.PutUint64(b[8:16], f.checksumHi)
	binary.LittleEndian.PutUint32(b[16:20], f.blockType)
	binary.LittleEndian.PutUint32(b[20:24], f.subFileID)
	// bytes 24:32 reserved/padding, left zero.
}

// payloadSize returns the usable bytes in a block of the given size
// (§3 "Block"): BlockSize − FooterSize.
func payloadSize(blockSize int) int { return blockSize - FooterSize }

// stampChecksum computes and writes the checksum word of a block's footer
// over its payload (everything before the footer), given the block's
// physical index, sub-file id and block type. Called right before a dirty
// block is flushed.
func stampChecksum(block []byte, blockIdx uint32, subFileID uint16, blockType uint32) {
	n := len(block)
	payload := block[:n-FooterSize]
	hi, lo := checksum128(payload, blockIdx, subFileID, blockType)
	writeFooter(block, footer{
		checksumLo: lo,
		checksumHi: hi,
		blockType:  blockType,
		subFileID:  uint32(subFileID),
	})
}

// verifyChecksum recomputes and compares a block's checksum, returning
// ErrCorrupt-kind error on mismatch or on a block-type tag mismatch.
func verifyChecksum(block []byte, blockIdx uint32, subFileID uint16, wantType uint32) error {
	f := readFooter(block)
	if f.blockType != wantType {
		return newErr(KindCorrupt, "verifyChecksum", ErrCorrupt)
	}
	n := len(block)
	payload := block[:n-FooterSize]
	hi, lo := checksum128(payload, blockIdx, subFileID, wantType)
	if hi != f.checksumHi || lo != f.checksumLo {
		return newErr(KindCorrupt, "verifyChecksum", ErrCorrupt)
	}
	return nil
}
