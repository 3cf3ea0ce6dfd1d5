// Insert, remove and point lookup (§4.3.1, §4.3.3). Descent tracks the
// path of interior nodes visited so a leaf split's new separator (and
// any copy-on-write pointer change) can propagate upward, splitting
// further ancestors as needed and growing a new root if the split
// reaches the top.
package snapdb

type pathEntry struct {
	blockIdx uint32 // CoW'd, mutable copy of this interior node's block
	level    uint8
	childIdx int // which record in this node pointed at the child below
}

func (t *SortedTree) leafFind(block []byte, h nodeHeader, recOff int, key Key) (found bool, pos int, err error) {
	count := int(h.recordCount)
	if t.fixed {
		stride := t.recordSize()
		if bs, ok := key.(BinarySearcher); ok {
			t.hint = 0
			idx := bs.BinarySearch(block, recOff, stride, count, &t.hint)
			if idx >= 0 {
				return true, idx, nil
			}
			return false, ^idx, nil
		}
		hint := 0
		idx := adaptiveBinarySearch(count, &hint, func(i int) int {
			k := t.newKey()
			base := recOff + i*stride
			_ = k.Read(block[base : base+t.keySize])
			return key.CompareTo(k)
		})
		if idx >= 0 {
			return true, idx, nil
		}
		return false, ^idx, nil
	}

	keys, _ := t.decodeGenericLeafKeys(block, recOff, int(h.validLength))
	for i, k := range keys {
		c := key.CompareTo(k)
		if c == 0 {
			return true, i, nil
		}
		if c < 0 {
			return false, i, nil
		}
	}
	return false, len(keys), nil
}

func (t *SortedTree) decodeGenericLeafKeys(block []byte, recOff, validLength int) ([]Key, []Value) {
	var keys []Key
	var values []Value
	_ = decodeGenericLeafRecords(block, recOff, validLength, t.genericEnc, t.newKey, t.newValue, func(k Key, v Value) {
		keys = append(keys, k)
		values = append(values, v)
	})
	return keys, values
}

// TryGet looks up key, copying its value into out if present.
func (t *SortedTree) TryGet(key Key, out Value) (bool, error) {
	if t.header.rootBlock == 0 {
		return false, nil
	}
	t.searchKey = key
	curIdx := t.header.rootBlock
	curLevel := t.header.rootLevel
	for curLevel > 0 {
		block, err := t.stream.readRawBlock(curIdx, BlockTypeInterior)
		if err != nil {
			return false, err
		}
		h, err := decodeNodeHeader(block)
		if err != nil {
			return false, err
		}
		_, child, _, err := t.findChildIndex(block, h, h.recordsOffset())
		if err != nil {
			return false, err
		}
		curIdx = child
		curLevel--
	}
	block, err := t.stream.readRawBlock(curIdx, BlockTypeLeaf)
	if err != nil {
		return false, err
	}
	h, err := decodeNodeHeader(block)
	if err != nil {
		return false, err
	}
	found, pos, err := t.leafFind(block, h, h.recordsOffset(), key)
	if err != nil || !found {
		return false, err
	}
	if t.fixed {
		stride := t.recordSize()
		base := h.recordsOffset() + pos*stride
		tmpKey := t.newKey()
		if err := readFixedLeafRecord(block, base, t.keySize, tmpKey, out); err != nil {
			return false, err
		}
		return true, nil
	}
	_, values := t.decodeGenericLeafKeys(block, h.recordsOffset(), int(h.validLength))
	values[pos].CopyTo(out)
	return true, nil
}

// TryAdd inserts (key, value) if key is not already present (§4.3.3).
func (t *SortedTree) TryAdd(key Key, value Value) (bool, error) {
	if t.stream.readOnly() {
		return false, newErr(KindInvalidArgument, "TryAdd", ErrInvalidArgument)
	}
	if t.header.rootBlock == 0 {
		idx, err := t.createSingletonLeaf(key, value)
		if err != nil {
			return false, err
		}
		t.header.rootBlock = idx
		t.header.rootLevel = 0
		if err := t.writeHeader(); err != nil {
			return false, err
		}
		return true, nil
	}

	t.searchKey = key
	var path []pathEntry
	curIdx := t.header.rootBlock
	curLevel := t.header.rootLevel
	for curLevel > 0 {
		newIdx, _, err := t.stream.edit.cowOrReuse(t.stream.id, curIdx, BlockTypeInterior)
		if err != nil {
			return false, err
		}
		block := t.stream.edit.dirty.get(t.stream.id, newIdx)
		h, err := decodeNodeHeader(block)
		if err != nil {
			return false, err
		}
		childPos, child, _, err := t.findChildIndex(block, h, h.recordsOffset())
		if err != nil {
			return false, err
		}
		path = append(path, pathEntry{blockIdx: newIdx, level: curLevel, childIdx: childPos})
		curIdx = child
		curLevel--
	}

	leafIdx, _, err := t.stream.edit.cowOrReuse(t.stream.id, curIdx, BlockTypeLeaf)
	if err != nil {
		return false, err
	}
	block := t.stream.edit.dirty.get(t.stream.id, leafIdx)
	h, err := decodeNodeHeader(block)
	if err != nil {
		return false, err
	}
	recOff := h.recordsOffset()
	found, pos, err := t.leafFind(block, h, recOff, key)
	if err != nil {
		return false, err
	}
	if found {
		return false, nil
	}

	newRightIdx, sepKey, err := t.insertIntoLeaf(leafIdx, block, h, recOff, pos, key, value)
	if err != nil {
		return false, err
	}

	if err := t.fixupParentPointer(path, leafIdx, newRightIdx, sepKey); err != nil {
		return false, err
	}
	return true, nil
}

// TryAddRange inserts every (key, value) pair a caller's iterator
// yields, skipping duplicates, and returns how many were actually
// inserted (§4.3.1 "TryAddRange").
func (t *SortedTree) TryAddRange(next func() (Key, Value, bool)) (int, error) {
	count := 0
	for {
		k, v, ok := next()
		if !ok {
			return count, nil
		}
		added, err := t.TryAdd(k, v)
		if err != nil {
			return count, err
		}
		if added {
			count++
		}
	}
}

func (t *SortedTree) createSingletonLeaf(key Key, value Value) (uint32, error) {
	idx, err := t.allocNode(BlockTypeLeaf)
	if err != nil {
		return 0, err
	}
	block := t.stream.edit.dirty.get(t.stream.id, idx)
	bound := t.encodeKeyBound(key)
	h := nodeHeader{recordCount: 0, validLength: 0, lowerBound: bound, upperBound: bound}
	recOff := h.recordsOffset()
	var n int
	if t.fixed {
		if err := writeFixedLeafRecord(block, recOff, t.keySize, key, value); err != nil {
			return 0, err
		}
		n = t.recordSize()
	} else {
		n = encodeGenericLeafRecords(block, recOff, t.genericEnc, []Key{key}, []Value{value})
	}
	h.recordCount = 1
	h.validLength = uint16(n)
	encodeNodeHeader(block, h)
	t.stream.edit.dirty.stage(t.stream.id, idx, block)
	t.stream.edit.blockTypes[cacheKey{t.stream.id, idx}] = BlockTypeLeaf
	return idx, nil
}
