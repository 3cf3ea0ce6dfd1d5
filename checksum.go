package snapdb

import (
	"encoding/binary"

	"github.com/spaolacci/murmur3"
)

// checksum128 computes the 128-bit Murmur3 checksum of a block's payload
// salted with its index, sub-file id, and block type (§4.1 "Checksumming").
// The salt is appended after the payload so two otherwise-identical blocks
// written to different positions never collide.
func checksum128(payload []byte, blockIdx uint32, subFileID uint16, blockType uint32) (hi, lo uint64) {
	var salt [10]byte
	binary.LittleEndian.PutUint32(salt[0:4], blockIdx)
	binary.LittleEndian.PutUint16(salt[4:6], subFileID)
	binary.LittleEndian.PutUint32(salt[6:10], blockType)

	h := murmur3.New128()
	h.Write(payload)
	h.Write(salt[:])
	return h.Sum128()
}
