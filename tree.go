// Sorted tree (B+-tree), §4.3. One tree lives inside one sub-file: its
// header occupies the sub-file's page 0 (reached through the normal
// page-indirection machinery), while leaf and interior nodes are raw
// blocks the tree allocates and links directly by block index — once
// positioned, a scanner walks sibling links without ever touching the
// sub-file's own addressing again (§3 "sibling links are maintained so
// a scanner can walk leaves sequentially without touching interior
// nodes once positioned").
package snapdb

import "encoding/binary"

// treeHeaderData is the decoded form of the fixed header stored at a
// tree's sub-file page 0 (§6 "tree header").
type treeHeaderData struct {
	def           EncodingDefinition
	blockSize     uint32
	rootLevel     uint8 // 0 = root is a leaf
	rootBlock     uint32
	lastAllocated uint32
	dirty         bool
}

func encodeTreeHeader(b []byte, h treeHeaderData) int {
	n := h.def.encode(b)
	binary.LittleEndian.PutUint32(b[n:n+4], h.blockSize)
	n += 4
	b[n] = h.rootLevel
	n++
	binary.LittleEndian.PutUint32(b[n:n+4], h.rootBlock)
	n += 4
	binary.LittleEndian.PutUint32(b[n:n+4], h.lastAllocated)
	n += 4
	if h.dirty {
		b[n] = 1
	} else {
		b[n] = 0
	}
	n++
	return n
}

func decodeTreeHeader(b []byte) (treeHeaderData, error) {
	def, n, err := decodeEncodingDefinition(b)
	if err != nil {
		return treeHeaderData{}, err
	}
	if len(b) < n+13 {
		return treeHeaderData{}, newErr(KindCorrupt, "decodeTreeHeader", ErrCorrupt)
	}
	h := treeHeaderData{def: def}
	h.blockSize = binary.LittleEndian.Uint32(b[n : n+4])
	n += 4
	h.rootLevel = b[n]
	n++
	h.rootBlock = binary.LittleEndian.Uint32(b[n : n+4])
	n += 4
	h.lastAllocated = binary.LittleEndian.Uint32(b[n : n+4])
	n += 4
	h.dirty = b[n] != 0
	return h, nil
}

// SortedTree is a B+-tree over one sub-file (§4.3).
type SortedTree struct {
	stream *SubFileStream

	newKey   func() Key
	newValue func() Value
	keySize  int
	valueSize int

	fixed      bool
	genericEnc genericPairEncoding

	header treeHeaderData

	// searchKey/hint are scratch state for one descent; reset at the
	// start of every public operation so the adaptive binary search
	// hint never leaks stale state across unrelated calls.
	searchKey Key
	hint      int
}

// CreateTree initializes a brand-new, empty tree over stream, which
// must be bound to an in-progress Edit.
func CreateTree(stream *SubFileStream, blockSize int, def EncodingDefinition, newKey func() Key, newValue func() Value) (*SortedTree, error) {
	if stream.readOnly() {
		return nil, newErr(KindInvalidArgument, "createTree", ErrInvalidArgument)
	}
	t := &SortedTree{
		stream:   stream,
		newKey:   newKey,
		newValue: newValue,
		keySize:  newKey().Size(),
		valueSize: newValue().Size(),
		header: treeHeaderData{
			def:       def,
			blockSize: uint32(blockSize),
		},
	}
	if err := t.resolveEncoding(); err != nil {
		return nil, err
	}
	if err := t.writeHeader(); err != nil {
		return nil, err
	}
	return t, nil
}

// OpenTree opens an existing tree from stream's page 0.
func OpenTree(stream *SubFileStream, newKey func() Key, newValue func() Value) (*SortedTree, error) {
	idx, ok, err := stream.ResolveRead(0)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, newErr(KindNotFound, "openTree", ErrNotFound)
	}
	block, err := stream.readRawBlock(idx, BlockTypeTreeHead)
	if err != nil {
		return nil, err
	}
	hdr, err := decodeTreeHeader(block)
	if err != nil {
		return nil, err
	}
	t := &SortedTree{
		stream:    stream,
		newKey:    newKey,
		newValue:  newValue,
		keySize:   newKey().Size(),
		valueSize: newValue().Size(),
		header:    hdr,
	}
	if err := t.resolveEncoding(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *SortedTree) resolveEncoding() error {
	if t.header.def.IsFixedSize() {
		t.fixed = true
		if t.keySize < 0 || t.valueSize < 0 {
			return newErr(KindInvalidArgument, "resolveEncoding", ErrInvalidArgument)
		}
		return nil
	}
	t.fixed = false
	t.genericEnc = genericPairEncoding{keyCodec: deltaVarintKeyCodec{}, valueCodec: rawValueCodec{size: t.valueSize}}
	return nil
}

func (t *SortedTree) writeHeader() error {
	idx, err := t.stream.ResolveWrite(0, BlockTypeTreeHead)
	if err != nil {
		return err
	}
	block := t.stream.edit.dirty.get(t.stream.id, idx)
	if block == nil {
		block = make([]byte, t.stream.blockSize)
	}
	encodeTreeHeader(block, t.header)
	t.stream.edit.dirty.stage(t.stream.id, idx, block)
	t.stream.edit.blockTypes[cacheKey{t.stream.id, idx}] = BlockTypeTreeHead
	return nil
}

// SetDirty marks the tree header dirty (flushed on the next Commit
// regardless of whether any node actually changed since open).
func (t *SortedTree) SetDirty() error {
	t.header.dirty = true
	return t.writeHeader()
}

// Flush persists the tree header. Node blocks are already staged as
// they're written; Flush only needs to record the latest root/alloc
// bookkeeping.
func (t *SortedTree) Flush() error {
	t.header.dirty = false
	return t.writeHeader()
}

func (t *SortedTree) allocNode(blockType uint32) (uint32, error) {
	idx, err := t.stream.edit.allocateZeroBlock(t.stream.id, blockType)
	if err != nil {
		return 0, err
	}
	t.header.lastAllocated = idx
	return idx, nil
}

func (t *SortedTree) blockTypeFor(level uint8) uint32 {
	if level == 0 {
		return BlockTypeLeaf
	}
	return BlockTypeInterior
}

func (t *SortedTree) recordSize() int {
	if t.fixed {
		return fixedLeafRecordSize(t.keySize, t.valueSize)
	}
	return -1
}

func (t *SortedTree) interiorRecordSize() int {
	if t.fixed {
		return fixedInteriorRecordSize(t.keySize)
	}
	return -1
}

func (t *SortedTree) encodeKeyBound(k Key) []byte {
	if t.fixed {
		b := make([]byte, t.keySize)
		_ = k.Write(b)
		return b
	}
	b := make([]byte, t.genericEnc.keyCodec.MaxSize(t.keySize))
	n := t.genericEnc.keyCodec.EncodeKey(b, k, nil)
	return b[:n]
}

func (t *SortedTree) decodeKeyBound(b []byte) Key {
	k := t.newKey()
	if t.fixed {
		_ = k.Read(b)
		return k
	}
	_, _ = t.genericEnc.keyCodec.DecodeKey(b, k, nil)
	return k
}

// GetKeyRange reports the tree's overall lower and upper bound keys,
// taken from the root node's header (§4.3.1). ok is false for an empty
// tree.
func (t *SortedTree) GetKeyRange() (lower, upper Key, ok bool, err error) {
	if t.header.rootBlock == 0 {
		return nil, nil, false, nil
	}
	block, err := t.stream.readRawBlock(t.header.rootBlock, t.blockTypeFor(t.header.rootLevel))
	if err != nil {
		return nil, nil, false, err
	}
	h, err := decodeNodeHeader(block)
	if err != nil {
		return nil, nil, false, err
	}
	return t.decodeKeyBound(h.lowerBound), t.decodeKeyBound(h.upperBound), true, nil
}
