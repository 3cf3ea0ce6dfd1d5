// Tree scanner (§4.3.4): a forward-only cursor over one sorted tree's
// leaves, walking sibling links once positioned so it never has to
// revisit an interior node. Used directly for point range scans and as
// the building block union readers buffer on top of (§4.4).
package snapdb

type scannerState int

const (
	scannerBeforeStart scannerState = iota
	scannerPositioned
	scannerExhausted
)

// Scanner is a cursor over a SortedTree. It is not safe for concurrent
// use; clone by opening a fresh Scanner off a new snapshot instead
// (§5 "Tree scanners and union readers are not safe for concurrent
// use").
type Scanner struct {
	tree  *SortedTree
	state scannerState

	blockIdx uint32
	index    int

	block []byte
	h     nodeHeader
	recOff int

	// genKeys/genValues cache a generic-encoded leaf's fully decoded
	// records, since generic records have no fixed stride to address
	// directly (§4.3.2).
	genKeys   []Key
	genValues []Value
}

// CreateScanner returns a new, unpositioned scanner over t.
func (t *SortedTree) CreateScanner() *Scanner {
	return &Scanner{tree: t, state: scannerBeforeStart}
}

// loadLeaf reads the leaf at blockIdx and resets the scanner's cursor
// to its first record.
func (s *Scanner) loadLeaf(blockIdx uint32) error {
	block, err := s.tree.stream.readRawBlock(blockIdx, BlockTypeLeaf)
	if err != nil {
		return err
	}
	h, err := decodeNodeHeader(block)
	if err != nil {
		return err
	}
	s.blockIdx = blockIdx
	s.block = block
	s.h = h
	s.recOff = h.recordsOffset()
	s.index = 0
	s.genKeys, s.genValues = nil, nil
	if !s.tree.fixed {
		s.genKeys, s.genValues = s.tree.decodeGenericLeafKeys(block, s.recOff, int(h.validLength))
	}
	s.state = scannerPositioned
	return nil
}

func (s *Scanner) firstChild(block []byte, h nodeHeader, recOff int) (uint32, error) {
	if s.tree.fixed {
		k := s.tree.newKey()
		return readFixedInteriorRecord(block, recOff, s.tree.keySize, k)
	}
	_, children := s.tree.decodeGenericInterior(block, recOff, int(h.validLength))
	if len(children) == 0 {
		return 0, newErr(KindCorrupt, "firstChild", ErrCorrupt)
	}
	return children[0], nil
}

// SeekToStart positions the scanner at the tree's first record.
func (s *Scanner) SeekToStart() error {
	t := s.tree
	if t.header.rootBlock == 0 {
		s.state = scannerExhausted
		return nil
	}
	idx := t.header.rootBlock
	level := t.header.rootLevel
	for level > 0 {
		block, err := t.stream.readRawBlock(idx, BlockTypeInterior)
		if err != nil {
			return err
		}
		h, err := decodeNodeHeader(block)
		if err != nil {
			return err
		}
		child, err := s.firstChild(block, h, h.recordsOffset())
		if err != nil {
			return err
		}
		idx = child
		level--
	}
	return s.loadLeaf(idx)
}

// SeekToEnd positions the scanner past the tree's last record, so the
// next read/peek returns false. Forward-only scanning means there is
// nothing useful to decode at the true last leaf: any subsequent call
// would immediately report exhaustion anyway.
func (s *Scanner) SeekToEnd() error {
	s.state = scannerExhausted
	return nil
}

// SeekToKey positions the scanner at the first record with key >= k.
func (s *Scanner) SeekToKey(k Key) error {
	t := s.tree
	if t.header.rootBlock == 0 {
		s.state = scannerExhausted
		return nil
	}
	t.searchKey = k
	idx := t.header.rootBlock
	level := t.header.rootLevel
	for level > 0 {
		block, err := t.stream.readRawBlock(idx, BlockTypeInterior)
		if err != nil {
			return err
		}
		h, err := decodeNodeHeader(block)
		if err != nil {
			return err
		}
		_, child, _, err := t.findChildIndex(block, h, h.recordsOffset())
		if err != nil {
			return err
		}
		idx = child
		level--
	}
	if err := s.loadLeaf(idx); err != nil {
		return err
	}
	_, pos, err := t.leafFind(s.block, s.h, s.recOff, k)
	if err != nil {
		return err
	}
	s.index = pos
	return nil
}

// recordAt decodes the record at the current leaf's index i without
// moving the cursor.
func (s *Scanner) recordAt(i int) (Key, Value, error) {
	t := s.tree
	if t.fixed {
		stride := t.recordSize()
		base := s.recOff + i*stride
		k := t.newKey()
		v := t.newValue()
		if err := readFixedLeafRecord(s.block, base, t.keySize, k, v); err != nil {
			return nil, nil, err
		}
		return k, v, nil
	}
	return s.genKeys[i], s.genValues[i], nil
}

// ensurePositioned seeks to the start on first use and hops across any
// empty leaves (possible after TryRemove, which does not merge
// underflowed nodes) until a non-empty leaf is found or the tree is
// exhausted.
func (s *Scanner) ensurePositioned() error {
	if s.state == scannerBeforeStart {
		if err := s.SeekToStart(); err != nil {
			return err
		}
	}
	for s.state == scannerPositioned && s.index >= int(s.h.recordCount) {
		if s.h.rightSibling == 0 {
			s.state = scannerExhausted
			return nil
		}
		if err := s.loadLeaf(s.h.rightSibling); err != nil {
			return err
		}
	}
	return nil
}

// Peek reports the next record without advancing the cursor.
func (s *Scanner) Peek(outKey Key, outValue Value) (bool, error) {
	if err := s.ensurePositioned(); err != nil {
		return false, err
	}
	if s.state != scannerPositioned {
		return false, nil
	}
	k, v, err := s.recordAt(s.index)
	if err != nil {
		return false, err
	}
	k.CopyTo(outKey)
	v.CopyTo(outValue)
	return true, nil
}

// Read decodes the next record into outKey/outValue and advances.
func (s *Scanner) Read(outKey Key, outValue Value) (bool, error) {
	ok, err := s.Peek(outKey, outValue)
	if !ok || err != nil {
		return false, err
	}
	s.index++
	return true, nil
}

// ReadWhile emits the next record if its key is strictly less than
// upperBound, advancing past it; otherwise it leaves the cursor
// untouched and returns false. A false return does not by itself mean
// the stream ended — it can also mean the current leaf ran out of
// records (a node boundary) or upperBound was reached; callers
// distinguish via peek + state (§4.3.4, §4.4.3).
func (s *Scanner) ReadWhile(outKey Key, outValue Value, upperBound Key) (bool, error) {
	return s.ReadWhileFiltered(outKey, outValue, upperBound, nil)
}

// ReadWhileFiltered is ReadWhile plus a matchFilter: records for which
// matchFilter.contains returns false are consumed but not emitted, and
// the scan continues within the same leaf looking for the next
// candidate.
func (s *Scanner) ReadWhileFiltered(outKey Key, outValue Value, upperBound Key, filter MatchFilter) (bool, error) {
	if s.state == scannerBeforeStart {
		if err := s.ensurePositioned(); err != nil {
			return false, err
		}
	}
	for {
		if s.state != scannerPositioned {
			return false, nil
		}
		if s.index >= int(s.h.recordCount) {
			// Node boundary: do not silently cross to the next leaf here.
			return false, nil
		}
		k, v, err := s.recordAt(s.index)
		if err != nil {
			return false, err
		}
		if k.CompareTo(upperBound) >= 0 {
			return false, nil
		}
		s.index++
		if filter != nil && !filter.contains(k, v) {
			continue
		}
		k.CopyTo(outKey)
		v.CopyTo(outValue)
		return true, nil
	}
}
