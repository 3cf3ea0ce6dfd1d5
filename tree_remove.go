// Key removal (§4.3.1 "TryRemove"). Mirrors TryAdd's descent, but never
// splits — only copy-on-write and a possible parent pointer rewrite
// propagate upward. Underflowing nodes are not merged or rebalanced: a
// node may end up below the "≥ one record" target after a delete. This
// trades temporary under-fill for a far simpler write path; reads treat
// a zero-record leaf as an empty range rather than as corruption.
package snapdb

// TryRemove deletes key if present, reporting whether it was found.
func (t *SortedTree) TryRemove(key Key) (bool, error) {
	if t.stream.readOnly() {
		return false, newErr(KindInvalidArgument, "TryRemove", ErrInvalidArgument)
	}
	if t.header.rootBlock == 0 {
		return false, nil
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
	if !found {
		return false, nil
	}

	if err := t.removeFromLeaf(leafIdx, block, h, recOff, pos); err != nil {
		return false, err
	}
	if err := t.fixupParentPointer(path, leafIdx, 0, nil); err != nil {
		return false, err
	}
	return true, nil
}

func (t *SortedTree) removeFromLeaf(leafIdx uint32, block []byte, h nodeHeader, recOff, pos int) error {
	count := int(h.recordCount)
	if t.fixed {
		stride := t.recordSize()
		base := recOff + pos*stride
		tail := count - pos - 1
		if tail > 0 {
			copy(block[base:base+tail*stride], block[base+stride:base+stride+tail*stride])
		}
		h.recordCount--
		h.validLength -= uint16(stride)
		if h.recordCount > 0 {
			if pos == 0 {
				k := t.newKey()
				_ = k.Read(block[recOff : recOff+t.keySize])
				h.lowerBound = t.encodeKeyBound(k)
			}
			if pos == count-1 {
				k := t.newKey()
				last := recOff + (int(h.recordCount)-1)*stride
				_ = k.Read(block[last : last+t.keySize])
				h.upperBound = t.encodeKeyBound(k)
			}
		}
		t.restage(leafIdx, block, h, BlockTypeLeaf)
		return nil
	}

	keys, values := t.decodeGenericLeafKeys(block, recOff, int(h.validLength))
	keys = append(keys[:pos], keys[pos+1:]...)
	values = append(values[:pos], values[pos+1:]...)
	n := 0
	if len(keys) > 0 {
		n = encodeGenericLeafRecords(block, recOff, t.genericEnc, keys, values)
		h.lowerBound = t.encodeKeyBound(keys[0])
		h.upperBound = t.encodeKeyBound(keys[len(keys)-1])
	}
	h.recordCount = uint16(len(keys))
	h.validLength = uint16(n)
	t.restage(leafIdx, block, h, BlockTypeLeaf)
	return nil
}
