// Leaf and interior node layout (§3 "Sorted tree", §6 "Sorted-tree
// sub-file layout"): record count, valid length, sibling links, and the
// node's key range, followed by the records themselves. A leaf's
// records are (key,value) pairs; an interior node's are (key,
// child-block-index) separators. Both node kinds share this header and
// sibling-link shape; only the record body differs.
package snapdb

import "encoding/binary"

const nodeHeaderFixedPart = 2 + 2 + 4 + 4 // recordCount, validLength, leftSibling, rightSibling

// nodeHeader is the decoded form of a node's leading fields, common to
// leaf and interior nodes.
type nodeHeader struct {
	recordCount  uint16
	validLength  uint16 // bytes of the record region currently in use
	leftSibling  uint32
	rightSibling uint32
	lowerBound   []byte // encoded key, self-contained (no previous-key context)
	upperBound   []byte
}

// recordsOffset returns the byte offset within the node payload where
// the record region begins, i.e. right after the header.
func (h nodeHeader) recordsOffset() int {
	return nodeHeaderFixedPart + 2 + len(h.lowerBound) + 2 + len(h.upperBound)
}

func encodeNodeHeader(block []byte, h nodeHeader) int {
	binary.LittleEndian.PutUint16(block[0:2], h.recordCount)
	binary.LittleEndian.PutUint16(block[2:4], h.validLength)
	binary.LittleEndian.PutUint32(block[4:8], h.leftSibling)
	binary.LittleEndian.PutUint32(block[8:12], h.rightSibling)
	off := nodeHeaderFixedPart
	binary.LittleEndian.PutUint16(block[off:off+2], uint16(len(h.lowerBound)))
	off += 2
	copy(block[off:off+len(h.lowerBound)], h.lowerBound)
	off += len(h.lowerBound)
	binary.LittleEndian.PutUint16(block[off:off+2], uint16(len(h.upperBound)))
	off += 2
	copy(block[off:off+len(h.upperBound)], h.upperBound)
	off += len(h.upperBound)
	return off
}

func decodeNodeHeader(block []byte) (nodeHeader, error) {
	if len(block) < nodeHeaderFixedPart+4 {
		return nodeHeader{}, newErr(KindCorrupt, "decodeNodeHeader", ErrCorrupt)
	}
	var h nodeHeader
	h.recordCount = binary.LittleEndian.Uint16(block[0:2])
	h.validLength = binary.LittleEndian.Uint16(block[2:4])
	h.leftSibling = binary.LittleEndian.Uint32(block[4:8])
	h.rightSibling = binary.LittleEndian.Uint32(block[8:12])
	off := nodeHeaderFixedPart
	lowerLen := int(binary.LittleEndian.Uint16(block[off : off+2]))
	off += 2
	if off+lowerLen > len(block) {
		return nodeHeader{}, newErr(KindCorrupt, "decodeNodeHeader", ErrCorrupt)
	}
	h.lowerBound = append([]byte(nil), block[off:off+lowerLen]...)
	off += lowerLen
	if off+2 > len(block) {
		return nodeHeader{}, newErr(KindCorrupt, "decodeNodeHeader", ErrCorrupt)
	}
	upperLen := int(binary.LittleEndian.Uint16(block[off : off+2]))
	off += 2
	if off+upperLen > len(block) {
		return nodeHeader{}, newErr(KindCorrupt, "decodeNodeHeader", ErrCorrupt)
	}
	h.upperBound = append([]byte(nil), block[off:off+upperLen]...)
	return h, nil
}

// --- Fixed-size pair record access ---
//
// A leaf record is keySize+valueSize bytes: key, then value. An
// interior record is keySize+4 bytes: key, then a 32-bit child block
// index. Both are addressed by direct offset arithmetic, enabling the
// fast binary search path (§4.3.5).

func fixedLeafRecordSize(keySize, valueSize int) int { return keySize + valueSize }
func fixedInteriorRecordSize(keySize int) int         { return keySize + 4 }

func readFixedLeafRecord(block []byte, base int, keySize int, key Key, value Value) error {
	if err := key.Read(block[base : base+keySize]); err != nil {
		return err
	}
	return value.Read(block[base+keySize : base+keySize+value.Size()])
}

func writeFixedLeafRecord(block []byte, base int, keySize int, key Key, value Value) error {
	if err := key.Write(block[base : base+keySize]); err != nil {
		return err
	}
	return value.Write(block[base+keySize : base+keySize+value.Size()])
}

func readFixedInteriorRecord(block []byte, base int, keySize int, key Key) (childBlock uint32, err error) {
	if err := key.Read(block[base : base+keySize]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(block[base+keySize : base+keySize+4]), nil
}

func writeFixedInteriorRecord(block []byte, base int, keySize int, key Key, childBlock uint32) error {
	if err := key.Write(block[base : base+keySize]); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(block[base+keySize:base+keySize+4], childBlock)
	return nil
}

// --- Generic pair record access ---
//
// Records have no fixed stride, so they are always walked sequentially
// from the start of the record region, each decode handed the previous
// record as context when the encoding's codecs ask for it (§4.3.2).

// decodeGenericLeafRecords decodes every record in [0, validLength) of
// the record region, invoking emit(key, value) for each. newKey/newValue
// construct fresh Key/Value instances per record.
func decodeGenericLeafRecords(block []byte, recordsOff int, validLength int, enc genericPairEncoding, newKey func() Key, newValue func() Value, emit func(Key, Value)) error {
	var prevKey Key
	var prevValue Value
	pos := recordsOff
	end := recordsOff + validLength
	for pos < end {
		k := newKey()
		n, err := enc.keyCodec.DecodeKey(block[pos:end], k, prevKey)
		if err != nil {
			return err
		}
		pos += n
		v := newValue()
		n, err = enc.valueCodec.DecodeValue(block[pos:end], v, prevValue)
		if err != nil {
			return err
		}
		pos += n
		emit(k, v)
		if enc.keyCodec.UsesPrevious() {
			prevKey = k
		}
		if enc.valueCodec.UsesPrevious() {
			prevValue = v
		}
	}
	return nil
}

// encodeGenericLeafRecords re-encodes a full ordered slice of (key,
// value) pairs into dst starting at recordsOff, returning the number of
// bytes written (the new validLength). The caller supplies the full
// record set because generic encoding has no fixed stride to patch in
// place — any mutation re-encodes the whole node (§4.3.2 "sequential
// decode is O(record_count)").
func encodeGenericLeafRecords(dst []byte, recordsOff int, enc genericPairEncoding, keys []Key, values []Value) int {
	var prevKey Key
	var prevValue Value
	pos := recordsOff
	for i := range keys {
		pos += enc.keyCodec.EncodeKey(dst[pos:], keys[i], prevKey)
		pos += enc.valueCodec.EncodeValue(dst[pos:], values[i], prevValue)
		if enc.keyCodec.UsesPrevious() {
			prevKey = keys[i]
		}
		if enc.valueCodec.UsesPrevious() {
			prevValue = values[i]
		}
	}
	return pos - recordsOff
}
