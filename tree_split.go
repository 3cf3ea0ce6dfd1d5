// Leaf/interior splitting and upward propagation (§4.3.3 step 5). A
// leaf split (or a plain copy-on-write pointer change with no split)
// bubbles up through the recorded descent path one level at a time;
// each level may itself split, and if the split reaches the root a new
// interior root is grown, increasing the tree's level by one.
package snapdb

import "encoding/binary"

// insertIntoLeaf inserts (key, value) at record index pos within the
// leaf at leafIdx (whose bytes are already a mutable, CoW'd copy).
// Returns the new right sibling's block index and its separator key if
// the leaf had to split, or (0, nil) if it fit in place.
func (t *SortedTree) insertIntoLeaf(leafIdx uint32, block []byte, h nodeHeader, recOff int, pos int, key Key, value Value) (uint32, Key, error) {
	count := int(h.recordCount)

	if t.fixed {
		stride := t.recordSize()
		avail := t.nodePayload() - recOff - int(h.validLength)
		if avail >= stride {
			shiftFixedInsert(block, recOff, pos, count, stride, key, value, t.keySize)
			h.recordCount++
			h.validLength += uint16(stride)
			if pos == 0 {
				h.lowerBound = t.encodeKeyBound(key)
			}
			if pos == count {
				h.upperBound = t.encodeKeyBound(key)
			}
			t.restage(leafIdx, block, h, BlockTypeLeaf)
			return 0, nil, nil
		}
		return t.splitFixedLeaf(leafIdx, block, h, recOff, pos, count, stride, key, value)
	}

	keys, values := t.decodeGenericLeafKeys(block, recOff, int(h.validLength))
	keys = insertKeyAt(keys, pos, key)
	values = insertValueAt(values, pos, value)

	maxSize := 0
	for range keys {
		maxSize += t.genericEnc.MaxCompressionSize(t.keySize, t.valueSize)
	}
	if maxSize <= t.nodePayload()-recOff {
		n := encodeGenericLeafRecords(block, recOff, t.genericEnc, keys, values)
		h.recordCount = uint16(len(keys))
		h.validLength = uint16(n)
		h.lowerBound = t.encodeKeyBound(keys[0])
		h.upperBound = t.encodeKeyBound(keys[len(keys)-1])
		t.restage(leafIdx, block, h, BlockTypeLeaf)
		return 0, nil, nil
	}
	return t.splitGenericLeaf(leafIdx, recOff, h, keys, values)
}

func (t *SortedTree) restage(idx uint32, block []byte, h nodeHeader, blockType uint32) {
	encodeNodeHeader(block, h)
	t.stream.edit.dirty.stage(t.stream.id, idx, block)
	t.stream.edit.blockTypes[cacheKey{t.stream.id, idx}] = blockType
}

func shiftFixedInsert(block []byte, recOff, pos, count, stride int, key Key, value Value, keySize int) {
	src := recOff + pos*stride
	n := (count - pos) * stride
	if n > 0 {
		copy(block[src+stride:src+stride+n], block[src:src+n])
	}
	_ = writeFixedLeafRecord(block, src, keySize, key, value)
}

// splitFixedLeaf splits a full fixed-size leaf. The split point favors
// the sequential-append case (inserting past the final record puts the
// new record alone in the new right sibling, so the common append-only
// workload never pays to redistribute existing records).
func (t *SortedTree) splitFixedLeaf(leafIdx uint32, block []byte, h nodeHeader, recOff, pos, count, stride int, key Key, value Value) (uint32, Key, error) {
	total := count + 1
	splitAt := total / 2
	if pos == count {
		splitAt = count
	}

	combined := make([]byte, total*stride)
	copy(combined[:pos*stride], block[recOff:recOff+pos*stride])
	_ = writeFixedLeafRecord(combined, pos*stride, t.keySize, key, value)
	if pos < count {
		copy(combined[(pos+1)*stride:], block[recOff+pos*stride:recOff+count*stride])
	}

	keyAt := func(i int) Key {
		k := t.newKey()
		_ = k.Read(combined[i*stride : i*stride+t.keySize])
		return k
	}

	rightIdx, err := t.allocNode(BlockTypeLeaf)
	if err != nil {
		return 0, nil, err
	}
	rightBlock := t.stream.edit.dirty.get(t.stream.id, rightIdx)
	rightN := total - splitAt
	copy(rightBlock[recOff:recOff+rightN*stride], combined[splitAt*stride:])
	rightH := nodeHeader{
		recordCount:  uint16(rightN),
		validLength:  uint16(rightN * stride),
		leftSibling:  leafIdx,
		rightSibling: h.rightSibling,
		lowerBound:   t.encodeKeyBound(keyAt(splitAt)),
		upperBound:   t.encodeKeyBound(keyAt(total - 1)),
	}
	t.restage(rightIdx, rightBlock, rightH, BlockTypeLeaf)

	leftBlock := make([]byte, t.stream.blockSize)
	copy(leftBlock[recOff:recOff+splitAt*stride], combined[:splitAt*stride])
	leftH := nodeHeader{
		recordCount:  uint16(splitAt),
		validLength:  uint16(splitAt * stride),
		leftSibling:  h.leftSibling,
		rightSibling: rightIdx,
		lowerBound:   t.encodeKeyBound(keyAt(0)),
		upperBound:   t.encodeKeyBound(keyAt(splitAt - 1)),
	}
	t.restage(leafIdx, leftBlock, leftH, BlockTypeLeaf)

	return rightIdx, keyAt(splitAt), nil
}

func (t *SortedTree) splitGenericLeaf(leafIdx uint32, recOff int, h nodeHeader, keys []Key, values []Value) (uint32, Key, error) {
	total := len(keys)
	splitAt := total / 2

	rightIdx, err := t.allocNode(BlockTypeLeaf)
	if err != nil {
		return 0, nil, err
	}
	rightBlock := t.stream.edit.dirty.get(t.stream.id, rightIdx)
	rn := encodeGenericLeafRecords(rightBlock, recOff, t.genericEnc, keys[splitAt:], values[splitAt:])
	rightH := nodeHeader{
		recordCount:  uint16(total - splitAt),
		validLength:  uint16(rn),
		leftSibling:  leafIdx,
		rightSibling: h.rightSibling,
		lowerBound:   t.encodeKeyBound(keys[splitAt]),
		upperBound:   t.encodeKeyBound(keys[total-1]),
	}
	t.restage(rightIdx, rightBlock, rightH, BlockTypeLeaf)

	leftBlock := make([]byte, t.stream.blockSize)
	ln := encodeGenericLeafRecords(leftBlock, recOff, t.genericEnc, keys[:splitAt], values[:splitAt])
	leftH := nodeHeader{
		recordCount:  uint16(splitAt),
		validLength:  uint16(ln),
		leftSibling:  h.leftSibling,
		rightSibling: rightIdx,
		lowerBound:   t.encodeKeyBound(keys[0]),
		upperBound:   t.encodeKeyBound(keys[splitAt-1]),
	}
	t.restage(leafIdx, leftBlock, leftH, BlockTypeLeaf)

	return rightIdx, keys[splitAt], nil
}

func insertKeyAt(keys []Key, pos int, k Key) []Key {
	keys = append(keys, nil)
	copy(keys[pos+1:], keys[pos:])
	keys[pos] = k
	return keys
}

func insertValueAt(values []Value, pos int, v Value) []Value {
	values = append(values, nil)
	copy(values[pos+1:], values[pos:])
	values[pos] = v
	return values
}

// insertIntoInterior inserts separator (sepKey, childBlock) at record
// index pos of the interior node at nodeIdx. Mirrors insertIntoLeaf.
func (t *SortedTree) insertIntoInterior(nodeIdx uint32, block []byte, h nodeHeader, recOff int, pos int, sepKey Key, childBlock uint32) (uint32, Key, error) {
	count := int(h.recordCount)

	if t.fixed {
		stride := t.interiorRecordSize()
		avail := t.nodePayload() - recOff - int(h.validLength)
		if avail >= stride {
			shiftFixedInteriorInsert(block, recOff, pos, count, stride, sepKey, childBlock, t.keySize)
			h.recordCount++
			h.validLength += uint16(stride)
			if pos == 0 {
				h.lowerBound = t.encodeKeyBound(sepKey)
			}
			if pos == count {
				h.upperBound = t.encodeKeyBound(sepKey)
			}
			t.restage(nodeIdx, block, h, BlockTypeInterior)
			return 0, nil, nil
		}
		return t.splitFixedInterior(nodeIdx, block, h, recOff, pos, count, stride, sepKey, childBlock)
	}

	keys, children := t.decodeGenericInterior(block, recOff, int(h.validLength))
	keys = insertKeyAt(keys, pos, sepKey)
	children = append(children, 0)
	copy(children[pos+1:], children[pos:])
	children[pos] = childBlock

	maxSize := 0
	for range keys {
		maxSize += t.genericEnc.keyCodec.MaxSize(t.keySize) + 4
	}
	if maxSize <= t.nodePayload()-recOff {
		n := encodeGenericInterior(block, recOff, t.genericEnc, keys, children)
		h.recordCount = uint16(len(keys))
		h.validLength = uint16(n)
		h.lowerBound = t.encodeKeyBound(keys[0])
		h.upperBound = t.encodeKeyBound(keys[len(keys)-1])
		t.restage(nodeIdx, block, h, BlockTypeInterior)
		return 0, nil, nil
	}
	return t.splitGenericInterior(nodeIdx, recOff, h, keys, children)
}

func shiftFixedInteriorInsert(block []byte, recOff, pos, count, stride int, key Key, child uint32, keySize int) {
	src := recOff + pos*stride
	n := (count - pos) * stride
	if n > 0 {
		copy(block[src+stride:src+stride+n], block[src:src+n])
	}
	_ = writeFixedInteriorRecord(block, src, keySize, key, child)
}

func (t *SortedTree) splitFixedInterior(nodeIdx uint32, block []byte, h nodeHeader, recOff, pos, count, stride int, sepKey Key, childBlock uint32) (uint32, Key, error) {
	total := count + 1
	splitAt := total / 2

	combined := make([]byte, total*stride)
	copy(combined[:pos*stride], block[recOff:recOff+pos*stride])
	_ = writeFixedInteriorRecord(combined, pos*stride, t.keySize, sepKey, childBlock)
	if pos < count {
		copy(combined[(pos+1)*stride:], block[recOff+pos*stride:recOff+count*stride])
	}

	keyAt := func(i int) Key {
		k := t.newKey()
		_ = k.Read(combined[i*stride : i*stride+t.keySize])
		return k
	}

	rightIdx, err := t.allocNode(BlockTypeInterior)
	if err != nil {
		return 0, nil, err
	}
	rightBlock := t.stream.edit.dirty.get(t.stream.id, rightIdx)
	rightN := total - splitAt
	copy(rightBlock[recOff:recOff+rightN*stride], combined[splitAt*stride:])
	rightH := nodeHeader{
		recordCount: uint16(rightN),
		validLength: uint16(rightN * stride),
		lowerBound:  t.encodeKeyBound(keyAt(splitAt)),
		upperBound:  t.encodeKeyBound(keyAt(total - 1)),
	}
	t.restage(rightIdx, rightBlock, rightH, BlockTypeInterior)

	leftBlock := make([]byte, t.stream.blockSize)
	copy(leftBlock[recOff:recOff+splitAt*stride], combined[:splitAt*stride])
	leftH := nodeHeader{
		recordCount: uint16(splitAt),
		validLength: uint16(splitAt * stride),
		lowerBound:  t.encodeKeyBound(keyAt(0)),
		upperBound:  t.encodeKeyBound(keyAt(splitAt - 1)),
	}
	t.restage(nodeIdx, leftBlock, leftH, BlockTypeInterior)

	return rightIdx, keyAt(splitAt), nil
}

func encodeGenericInterior(dst []byte, recOff int, enc genericPairEncoding, keys []Key, children []uint32) int {
	var prevKey Key
	pos := recOff
	for i := range keys {
		pos += enc.keyCodec.EncodeKey(dst[pos:], keys[i], prevKey)
		dst[pos] = byte(children[i])
		dst[pos+1] = byte(children[i] >> 8)
		dst[pos+2] = byte(children[i] >> 16)
		dst[pos+3] = byte(children[i] >> 24)
		pos += 4
		if enc.keyCodec.UsesPrevious() {
			prevKey = keys[i]
		}
	}
	return pos - recOff
}

func (t *SortedTree) splitGenericInterior(nodeIdx uint32, recOff int, h nodeHeader, keys []Key, children []uint32) (uint32, Key, error) {
	total := len(keys)
	splitAt := total / 2

	rightIdx, err := t.allocNode(BlockTypeInterior)
	if err != nil {
		return 0, nil, err
	}
	rightBlock := t.stream.edit.dirty.get(t.stream.id, rightIdx)
	rn := encodeGenericInterior(rightBlock, recOff, t.genericEnc, keys[splitAt:], children[splitAt:])
	rightH := nodeHeader{
		recordCount: uint16(total - splitAt),
		validLength: uint16(rn),
		lowerBound:  t.encodeKeyBound(keys[splitAt]),
		upperBound:  t.encodeKeyBound(keys[total-1]),
	}
	t.restage(rightIdx, rightBlock, rightH, BlockTypeInterior)

	leftBlock := make([]byte, t.stream.blockSize)
	ln := encodeGenericInterior(leftBlock, recOff, t.genericEnc, keys[:splitAt], children[:splitAt])
	leftH := nodeHeader{
		recordCount: uint16(splitAt),
		validLength: uint16(ln),
		lowerBound:  t.encodeKeyBound(keys[0]),
		upperBound:  t.encodeKeyBound(keys[splitAt-1]),
	}
	t.restage(nodeIdx, leftBlock, leftH, BlockTypeInterior)

	return rightIdx, keys[splitAt], nil
}

// growRoot allocates a new interior root over the two halves of a
// split that reached the top of the tree, increasing rootLevel by one.
func (t *SortedTree) growRoot(leftChild, rightChild uint32, sepKey Key) error {
	idx, err := t.allocNode(BlockTypeInterior)
	if err != nil {
		return err
	}

	leftH, err := t.nodeHeaderOf(leftChild, t.header.rootLevel)
	if err != nil {
		return err
	}
	leftLower := t.decodeKeyBound(leftH.lowerBound)
	var rightUpper []byte
	if rightH, err := t.nodeHeaderOf(rightChild, t.header.rootLevel); err == nil {
		rightUpper = rightH.upperBound
	} else {
		return err
	}

	recOff := (nodeHeader{lowerBound: t.encodeKeyBound(leftLower), upperBound: rightUpper}).recordsOffset()
	block := t.stream.edit.dirty.get(t.stream.id, idx)

	var n int
	if t.fixed {
		stride := t.interiorRecordSize()
		_ = writeFixedInteriorRecord(block, recOff, t.keySize, leftLower, leftChild)
		_ = writeFixedInteriorRecord(block, recOff+stride, t.keySize, sepKey, rightChild)
		n = 2 * stride
	} else {
		n = encodeGenericInterior(block, recOff, t.genericEnc, []Key{leftLower, sepKey}, []uint32{leftChild, rightChild})
	}

	h := nodeHeader{
		recordCount: 2,
		validLength: uint16(n),
		lowerBound:  t.encodeKeyBound(leftLower),
		upperBound:  rightUpper,
	}
	t.restage(idx, block, h, BlockTypeInterior)

	t.header.rootBlock = idx
	t.header.rootLevel++
	return t.writeHeader()
}

func (t *SortedTree) nodeHeaderOf(idx uint32, childLevel uint8) (nodeHeader, error) {
	block := t.stream.edit.dirty.get(t.stream.id, idx)
	if block == nil {
		var err error
		block, err = t.stream.readRawBlock(idx, t.blockTypeFor(childLevel))
		if err != nil {
			return nodeHeader{}, err
		}
	}
	return decodeNodeHeader(block)
}

// fixupParentPointer propagates a child's (possibly changed) block
// index, and optionally a new right-sibling split, one level up the
// recorded descent path.
func (t *SortedTree) fixupParentPointer(path []pathEntry, childIdx uint32, newRightIdx uint32, sepKey Key) error {
	if len(path) == 0 {
		if newRightIdx != 0 {
			return t.growRoot(childIdx, newRightIdx, sepKey)
		}
		if t.header.rootBlock != childIdx {
			t.header.rootBlock = childIdx
			return t.writeHeader()
		}
		return nil
	}

	parent := path[len(path)-1]
	block := t.stream.edit.dirty.get(t.stream.id, parent.blockIdx)
	h, err := decodeNodeHeader(block)
	if err != nil {
		return err
	}
	recOff := h.recordsOffset()

	if err := t.setChildPointer(block, &h, recOff, parent.childIdx, childIdx); err != nil {
		return err
	}
	t.restage(parent.blockIdx, block, h, BlockTypeInterior)

	var grandRightIdx uint32
	var grandSepKey Key
	if newRightIdx != 0 {
		block = t.stream.edit.dirty.get(t.stream.id, parent.blockIdx)
		h, _ = decodeNodeHeader(block)
		grandRightIdx, grandSepKey, err = t.insertIntoInterior(parent.blockIdx, block, h, h.recordsOffset(), parent.childIdx+1, sepKey, newRightIdx)
		if err != nil {
			return err
		}
	}

	return t.fixupParentPointer(path[:len(path)-1], parent.blockIdx, grandRightIdx, grandSepKey)
}

func (t *SortedTree) setChildPointer(block []byte, h *nodeHeader, recOff int, idx int, newChild uint32) error {
	if t.fixed {
		stride := t.interiorRecordSize()
		base := recOff + idx*stride
		binary.LittleEndian.PutUint32(block[base+t.keySize:base+t.keySize+4], newChild)
		return nil
	}
	keys, children := t.decodeGenericInterior(block, recOff, int(h.validLength))
	if idx >= len(children) {
		return newErr(KindCorrupt, "setChildPointer", ErrCorrupt)
	}
	children[idx] = newChild
	n := encodeGenericInterior(block, recOff, t.genericEnc, keys, children)
	h.validLength = uint16(n)
	return nil
}
