// Tree descent: walking from root to leaf, used by both the read path
// (TryGet, scanner seeks) and the write path (TryAdd/TryRemove, which
// additionally records the path of interior nodes visited so a leaf
// split can propagate a new separator upward).
package snapdb

import "encoding/binary"

func (t *SortedTree) nodePayload() int { return payloadSize(int(t.header.blockSize)) }

// findChildIndex returns the index of the greatest separator <= key
// among an interior node's records (§4.3.3 step 1), or 0 if key is less
// than every separator (route into the first child).
func (t *SortedTree) findChildIndex(block []byte, h nodeHeader, recOff int) (int, uint32, Key, error) {
	count := int(h.recordCount)
	if count == 0 {
		return 0, 0, nil, newErr(KindCorrupt, "findChildIndex", ErrCorrupt)
	}
	key := t.searchKey
	if t.fixed {
		stride := t.interiorRecordSize()
		hint := 0 // a fresh hint per node; interior descent never revisits a node
		idx := adaptiveBinarySearch(count, &hint, func(i int) int {
			var k Key = t.newKey()
			base := recOff + i*stride
			_ = k.Read(block[base : base+t.keySize])
			return key.CompareTo(k)
		})
		pos := idx
		if idx < 0 {
			pos = ^idx - 1 // largest separator <= key
		}
		if pos < 0 {
			pos = 0
		}
		base := recOff + pos*stride
		k := t.newKey()
		child, err := readFixedInteriorRecord(block, base, t.keySize, k)
		if err != nil {
			return 0, 0, nil, err
		}
		return pos, child, k, nil
	}

	// Generic: sequential scan, no fixed stride.
	keys, children := t.decodeGenericInterior(block, recOff, int(h.validLength))
	pos := 0
	for i, k := range keys {
		if key.CompareTo(k) >= 0 {
			pos = i
		} else {
			break
		}
	}
	return pos, children[pos], keys[pos], nil
}

func (t *SortedTree) decodeGenericInterior(block []byte, recOff, validLength int) ([]Key, []uint32) {
	var keys []Key
	var children []uint32
	var prevKey Key
	pos := recOff
	end := recOff + validLength
	for pos < end {
		k := t.newKey()
		n, err := t.genericEnc.keyCodec.DecodeKey(block[pos:end], k, prevKey)
		if err != nil {
			break
		}
		pos += n
		child := binary.LittleEndian.Uint32(block[pos : pos+4])
		pos += 4
		keys = append(keys, k)
		children = append(children, child)
		if t.genericEnc.keyCodec.UsesPrevious() {
			prevKey = k
		}
	}
	return keys, children
}
