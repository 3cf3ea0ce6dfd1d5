// Sub-file addressing: translating a logical page number into a physical
// block through the up-to-four-level indirect index described in §3 and
// §4.2. A SubFileStream is the handle callers (principally the sorted
// tree) use to resolve pages to blocks; it never interprets the bytes of
// a data block itself — that's left to whoever asked for the page (a
// generic byte-stream view, or the tree's own node codec).
package snapdb

import "encoding/binary"

// BlockTypeSubFileData tags a data block written through the generic
// BinaryStream view rather than through the tree's own node codec.
const BlockTypeSubFileData uint32 = 6

// SubFileName is the semantic triple naming a sub-file (§3 "Sub-file
// entry"): archive-purpose, key-type, value-type.
type SubFileName struct {
	Purpose   GUID
	KeyType   GUID
	ValueType GUID
}

// SubFileStream addresses one sub-file's logical byte stream. It is
// bound either to a ReadSnapshot (read-only) or to an Edit (read/write,
// copy-on-write on mutation).
type SubFileStream struct {
	id        uint16
	blockSize int
	payload   int
	F         uint64

	snap *ReadSnapshot
	edit *Edit

	pos int64
}

func (s *SubFileStream) readOnly() bool { return s.edit == nil }

// readRawBlock reads one physical block by absolute index, regardless of
// whether this stream is bound to a read snapshot or an in-progress
// edit (in which case a not-yet-flushed staged copy wins). Used by the
// sorted tree, which addresses its own nodes by raw block index rather
// than through the sub-file's page indirection.
func (s *SubFileStream) readRawBlock(blockIdx uint32, wantType uint32) ([]byte, error) {
	if s.edit != nil {
		return s.edit.readBlock(s.id, blockIdx, wantType)
	}
	return s.snap.pager.readBlock(s.id, blockIdx, wantType)
}

// ID returns the sub-file's stable identifier.
func (s *SubFileStream) ID() uint16 { return s.id }

func (s *SubFileStream) entry() subFileEntry {
	if s.edit != nil {
		e, _ := s.edit.newHeader.findSubFile(s.id)
		return e
	}
	e, _ := s.snap.header.findSubFile(s.id)
	return e
}

func (s *SubFileStream) setEntry(e subFileEntry) {
	for i := range s.edit.newHeader.subFiles {
		if s.edit.newHeader.subFiles[i].id == s.id {
			s.edit.newHeader.subFiles[i] = e
			return
		}
	}
}

func rootForLevel(e subFileEntry, level int) uint32 {
	switch level {
	case 1:
		return e.single
	case 2:
		return e.double
	case 3:
		return e.triple
	case 4:
		return e.quad
	}
	return 0
}

func setRootForLevel(e *subFileEntry, level int, v uint32) {
	switch level {
	case 1:
		e.single = v
	case 2:
		e.double = v
	case 3:
		e.triple = v
	case 4:
		e.quad = v
	}
}

func readChildPtr(block []byte, idx uint64) uint32 {
	off := int(idx) * 4
	return binary.LittleEndian.Uint32(block[off : off+4])
}

func writeChildPtr(block []byte, idx uint64, v uint32) {
	off := int(idx) * 4
	binary.LittleEndian.PutUint32(block[off:off+4], v)
}

// ResolveRead returns the physical block index holding virtual page
// `page` of this sub-file, or ok=false if that page was never written.
// Read-only; never allocates.
func (s *SubFileStream) ResolveRead(page uint64) (blockIdx uint32, ok bool, err error) {
	addr, within := classifyPage(page, s.F)
	if !within {
		return 0, false, newErr(KindFileTooLarge, "resolveRead", ErrFileTooLarge)
	}
	e := s.entry()
	if addr.level == 0 {
		if e.direct == 0 {
			return 0, false, nil
		}
		return e.direct, true, nil
	}

	ptr := rootForLevel(e, addr.level)
	if ptr == 0 {
		return 0, false, nil
	}
	for hop := 0; hop < addr.level; hop++ {
		block, err := s.readRawBlock(ptr, BlockTypeIndirect)
		if err != nil {
			return 0, false, err
		}
		child := readChildPtr(block, addr.idx[hop])
		if child == 0 {
			return 0, false, nil
		}
		if hop == addr.level-1 {
			return child, true, nil
		}
		ptr = child
	}
	return 0, false, nil
}

// ResolveWrite returns the physical block index holding virtual page
// `page`, allocating (and copy-on-writing any pre-existing block along
// the chain) as needed. dataBlockType is the block-type tag the final
// data block is/will be stamped with — callers that manage their own
// node codec (the sorted tree) pass BlockTypeLeaf/Interior/TreeHead;
// generic byte-stream writers pass BlockTypeSubFileData.
func (s *SubFileStream) ResolveWrite(page uint64, dataBlockType uint32) (uint32, error) {
	addr, within := classifyPage(page, s.F)
	if !within {
		return 0, newErr(KindFileTooLarge, "resolveWrite", ErrFileTooLarge)
	}
	e := s.entry()

	if addr.level == 0 {
		if e.direct == 0 {
			nb, err := s.edit.allocateZeroBlock(s.id, dataBlockType)
			if err != nil {
				return 0, err
			}
			e.direct = nb
			s.setEntry(e)
			return nb, nil
		}
		nb, changed, err := s.edit.cowOrReuse(s.id, e.direct, dataBlockType)
		if err != nil {
			return 0, err
		}
		if changed {
			e.direct = nb
			s.setEntry(e)
		}
		return nb, nil
	}

	ptr := rootForLevel(e, addr.level)
	if ptr == 0 {
		nb, err := s.edit.allocateZeroBlock(s.id, BlockTypeIndirect)
		if err != nil {
			return 0, err
		}
		ptr = nb
		setRootForLevel(&e, addr.level, ptr)
		s.setEntry(e)
	} else {
		nb, changed, err := s.edit.cowOrReuse(s.id, ptr, BlockTypeIndirect)
		if err != nil {
			return 0, err
		}
		if changed {
			ptr = nb
			setRootForLevel(&e, addr.level, ptr)
			s.setEntry(e)
		}
	}

	for hop := 0; hop < addr.level; hop++ {
		block := s.edit.dirty.get(s.id, ptr)
		if block == nil {
			var err error
			block, err = s.edit.pager.readBlock(s.id, ptr, BlockTypeIndirect)
			if err != nil {
				return 0, err
			}
			cp := make([]byte, len(block))
			copy(cp, block)
			block = cp
		}

		last := hop == addr.level-1
		wantType := BlockTypeIndirect
		if last {
			wantType = dataBlockType
		}

		child := readChildPtr(block, addr.idx[hop])
		if child == 0 {
			var nb uint32
			var err error
			nb, err = s.edit.allocateZeroBlock(s.id, wantType)
			if err != nil {
				return 0, err
			}
			writeChildPtr(block, addr.idx[hop], nb)
			s.edit.dirty.stage(s.id, ptr, block)
			s.edit.blockTypes[cacheKey{s.id, ptr}] = BlockTypeIndirect
			child = nb
		} else {
			nb, changed, err := s.edit.cowOrReuse(s.id, child, wantType)
			if err != nil {
				return 0, err
			}
			if changed {
				writeChildPtr(block, addr.idx[hop], nb)
				s.edit.dirty.stage(s.id, ptr, block)
				s.edit.blockTypes[cacheKey{s.id, ptr}] = BlockTypeIndirect
				child = nb
			}
		}

		if last {
			return child, nil
		}
		ptr = child
	}
	return 0, newErr(KindCorrupt, "resolveWrite", ErrCorrupt)
}

// --- Generic byte-stream view (BinaryStream) ---
//
// Reads/writes are sequential by position; growing past the end on
// write implicitly extends the sub-file (§4.2 "Contract").

// Seek moves the stream's position. Negative positions are rejected.
func (s *SubFileStream) Seek(pos int64) error {
	if pos < 0 {
		return newErr(KindInvalidArgument, "seek", ErrInvalidArgument)
	}
	s.pos = pos
	return nil
}

// Position returns the current byte position.
func (s *SubFileStream) Position() int64 { return s.pos }

func (s *SubFileStream) pageAndOffset(pos int64) (page uint64, offset int) {
	return uint64(pos) / uint64(s.payload), int(uint64(pos) % uint64(s.payload))
}

// ReadBytes reads len(p) bytes starting at the current position,
// transparently crossing block boundaries.
func (s *SubFileStream) ReadBytes(p []byte) error {
	remaining := p
	pos := s.pos
	for len(remaining) > 0 {
		page, off := s.pageAndOffset(pos)
		blockIdx, ok, err := s.ResolveRead(page)
		if err != nil {
			return err
		}
		n := s.payload - off
		if n > len(remaining) {
			n = len(remaining)
		}
		if !ok {
			clear(remaining[:n])
		} else {
			block, err := s.readRawBlock(blockIdx, BlockTypeSubFileData)
			if err != nil {
				return err
			}
			copy(remaining[:n], block[off:off+n])
		}
		remaining = remaining[n:]
		pos += int64(n)
	}
	s.pos = pos
	return nil
}

// WriteBytes writes p at the current position, growing the sub-file as
// needed. Fails with FileTooLarge if growth would exceed the
// quadruple-indirect addressing limit.
func (s *SubFileStream) WriteBytes(p []byte) error {
	remaining := p
	pos := s.pos
	for len(remaining) > 0 {
		page, off := s.pageAndOffset(pos)
		blockIdx, err := s.ResolveWrite(page, BlockTypeSubFileData)
		if err != nil {
			return err
		}
		n := s.payload - off
		if n > len(remaining) {
			n = len(remaining)
		}
		block := s.edit.dirty.get(s.id, blockIdx)
		if block == nil {
			block = make([]byte, s.blockSize)
		}
		copy(block[off:off+n], remaining[:n])
		s.edit.dirty.stage(s.id, blockIdx, block)
		s.edit.blockTypes[cacheKey{s.id, blockIdx}] = BlockTypeSubFileData
		remaining = remaining[n:]
		pos += int64(n)
	}
	s.pos = pos
	return nil
}

func (s *SubFileStream) ReadUint8() (uint8, error) {
	var b [1]byte
	if err := s.ReadBytes(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (s *SubFileStream) ReadUint16() (uint16, error) {
	var b [2]byte
	if err := s.ReadBytes(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func (s *SubFileStream) ReadUint32() (uint32, error) {
	var b [4]byte
	if err := s.ReadBytes(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func (s *SubFileStream) ReadUint64() (uint64, error) {
	var b [8]byte
	if err := s.ReadBytes(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func (s *SubFileStream) WriteUint8(v uint8) error { return s.WriteBytes([]byte{v}) }

func (s *SubFileStream) WriteUint16(v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return s.WriteBytes(b[:])
}

func (s *SubFileStream) WriteUint32(v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return s.WriteBytes(b[:])
}

func (s *SubFileStream) WriteUint64(v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return s.WriteBytes(b[:])
}
