// Edit: the single mutable view of an archive (§4.1 "Edit", §5 "Single
// writer"). Only one Edit may be open at a time per archive, enforced by
// an OS advisory lock so a second process trying to write fails fast
// instead of blocking (§5 "EditInProgress").
package snapdb

// Edit is a transaction: a set of sub-file mutations that become visible
// to new snapshots atomically at Commit, or vanish entirely at Rollback.
type Edit struct {
	file *File

	baseHeader *fileHeader // header this edit was opened against
	newHeader  *fileHeader // working copy, mutated in place, written at commit

	pager *pager
	dirty *dirtyWriter

	nextBlock         uint32
	allocatedThisEdit map[uint32]bool
	blockTypes        map[cacheKey]uint32

	freeList      []uint32 // reclaimed blocks available for reuse before nextBlock grows
	takenFromFile []uint32 // the full set taken from the file at BeginEdit, for Rollback

	freed []freedBlock

	done bool
}

type freedBlock struct {
	key cacheKey
}

// BeginEdit opens the archive's single writable transaction. It fails
// immediately with KindEditInProgress if another Edit (in this process
// or another) already holds the write lock (§5 "non-blocking: a second
// writer must fail immediately rather than wait").
func (f *File) BeginEdit() (*Edit, error) {
	if f.closed.Load() {
		return nil, newErr(KindInvalidArgument, "beginEdit", ErrClosed)
	}
	if !f.lock.TryLock() {
		return nil, newErr(KindEditInProgress, "beginEdit", ErrEditInProgress)
	}

	f.mu.Lock()
	f.reclaimPending()
	base := f.header
	newHdr := base.clone()
	taken := f.takeFreeList()
	f.mu.Unlock()

	e := &Edit{
		file:              f,
		baseHeader:        base,
		newHeader:         newHdr,
		pager:             newPager(f.storage, f.blockSize, f.cache),
		nextBlock:         base.lastAllocated + 1,
		allocatedThisEdit: make(map[uint32]bool),
		blockTypes:        make(map[cacheKey]uint32),
		freeList:          append([]uint32(nil), taken...),
		takenFromFile:     taken,
	}
	e.dirty = newDirtyWriter(e.pager)
	return e, nil
}

// allocate returns a block index this edit may freely write to: a
// reclaimed index off the free list if one is available (§3
// "reclaimable"), otherwise a fresh index off the end of the file.
func (e *Edit) allocate() uint32 {
	if n := len(e.freeList); n > 0 {
		idx := e.freeList[n-1]
		e.freeList = e.freeList[:n-1]
		return idx
	}
	idx := e.nextBlock
	e.nextBlock++
	return idx
}

// allocateZeroBlock reserves a block index (reused or fresh, see
// allocate) and stages it as a zero-filled block tagged with
// subFileID/blockType, both needed up front so the checksum stamped at
// flush time matches what a later readBlock(subFileID, idx, blockType)
// will verify against.
func (e *Edit) allocateZeroBlock(subFileID uint16, blockType uint32) (uint32, error) {
	idx := e.allocate()
	e.allocatedThisEdit[idx] = true
	e.blockTypes[cacheKey{subFileID: subFileID, blockIdx: idx}] = blockType
	e.dirty.stage(subFileID, idx, make([]byte, e.pager.blockSize))
	return idx, nil
}

// cowOrReuse implements copy-on-write (§3 "copy-on-write"): a block
// allocated by this same edit can be mutated in place; a block that
// predates the edit (and so might still be visible through a live
// snapshot or the still-committed header) must be copied to a fresh
// block first. Returns the block index to use going forward and whether
// it changed from blockIdx.
func (e *Edit) cowOrReuse(subFileID uint16, blockIdx uint32, blockType uint32) (uint32, bool, error) {
	if e.allocatedThisEdit[blockIdx] {
		e.blockTypes[cacheKey{subFileID: subFileID, blockIdx: blockIdx}] = blockType
		return blockIdx, false, nil
	}

	old, err := e.pager.readBlock(subFileID, blockIdx, blockType)
	if err != nil {
		return 0, false, err
	}
	cp := make([]byte, len(old))
	copy(cp, old)

	newIdx := e.allocate()
	e.allocatedThisEdit[newIdx] = true
	e.blockTypes[cacheKey{subFileID: subFileID, blockIdx: newIdx}] = blockType
	e.dirty.stage(subFileID, newIdx, cp)

	e.freed = append(e.freed, freedBlock{key: cacheKey{subFileID: subFileID, blockIdx: blockIdx}})
	return newIdx, true, nil
}

// readBlock returns a block's bytes, preferring this edit's own
// not-yet-flushed staged copy over the committed one on disk — so a
// node written earlier in the same edit is visible to a later read
// within it.
func (e *Edit) readBlock(subFileID uint16, blockIdx uint32, wantType uint32) ([]byte, error) {
	if b := e.dirty.get(subFileID, blockIdx); b != nil {
		return b, nil
	}
	return e.pager.readBlock(subFileID, blockIdx, wantType)
}

// mutableBlock is like readBlock but always returns a slice the caller
// may freely mutate and re-stage: a staged block is returned as-is
// (already private to this edit), a committed block is copied first.
func (e *Edit) mutableBlock(subFileID uint16, blockIdx uint32, wantType uint32) ([]byte, error) {
	if b := e.dirty.get(subFileID, blockIdx); b != nil {
		return b, nil
	}
	b, err := e.pager.readBlock(subFileID, blockIdx, wantType)
	if err != nil {
		return nil, err
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp, nil
}

// OpenSubFile opens a sub-file for read/write by name, failing with
// KindNotFound if it does not exist.
func (e *Edit) OpenSubFile(name SubFileName) (*SubFileStream, error) {
	entry, ok := e.newHeader.findSubFileByName(name.Purpose, name.KeyType, name.ValueType)
	if !ok {
		return nil, newErr(KindNotFound, "openSubFile", ErrNotFound)
	}
	return e.streamFor(entry), nil
}

// OpenSubFileByID opens a sub-file for read/write by its stable id.
func (e *Edit) OpenSubFileByID(id uint16) (*SubFileStream, error) {
	entry, ok := e.newHeader.findSubFile(id)
	if !ok {
		return nil, newErr(KindNotFound, "openSubFileByID", ErrNotFound)
	}
	return e.streamFor(entry), nil
}

// CreateSubFile adds a new, empty sub-file with the given semantic name
// and returns a write stream over it. Fails with KindDuplicateKey if a
// sub-file with the same name already exists (§3 "Sub-file entry").
func (e *Edit) CreateSubFile(name SubFileName) (*SubFileStream, error) {
	if _, ok := e.newHeader.findSubFileByName(name.Purpose, name.KeyType, name.ValueType); ok {
		return nil, newErr(KindDuplicateKey, "createSubFile", ErrDuplicateKey)
	}
	id := e.nextSubFileID()
	entry := subFileEntry{
		id:        id,
		purpose:   name.Purpose,
		keyType:   name.KeyType,
		valueType: name.ValueType,
	}
	e.newHeader.subFiles = append(e.newHeader.subFiles, entry)
	return e.streamFor(entry), nil
}

func (e *Edit) nextSubFileID() uint16 {
	var max uint16
	found := false
	for _, sf := range e.newHeader.subFiles {
		if !found || sf.id > max {
			max = sf.id
			found = true
		}
	}
	if !found {
		return 1
	}
	return max + 1
}

func (e *Edit) streamFor(entry subFileEntry) *SubFileStream {
	blockSize := e.file.blockSize
	payload := payloadSize(blockSize)
	return &SubFileStream{
		id:        entry.id,
		blockSize: blockSize,
		payload:   payload,
		F:         addrsPerBlock(payload),
		edit:      e,
	}
}

// Commit flushes every dirty block, writes the new header to whichever
// slot is currently inactive, fsyncs, then flips the active slot so the
// new header becomes the one future Opens and Snapshots observe (§5
// "Header swap ordering: write data blocks, fsync, write inactive header
// slot, fsync, flip active slot"). Blocks orphaned by copy-on-write
// during this edit are recorded as pending-free at the edit's new
// sequence number, not reclaimable until no live snapshot can still see
// them. Config.NoSyncOnCommit skips both fsyncs.
func (e *Edit) Commit() error {
	if e.done {
		return newErr(KindInvalidArgument, "commit", ErrInvalidArgument)
	}
	e.done = true
	defer e.file.lock.Unlock()

	if err := e.dirty.flush(func(k cacheKey) uint32 {
		if bt, ok := e.blockTypes[k]; ok {
			return bt
		}
		return BlockTypeSubFileData
	}); err != nil {
		return err
	}
	if !e.file.config.NoSyncOnCommit {
		if err := e.file.storage.Sync(); err != nil {
			return newErr(KindIO, "commit", err)
		}
	}

	e.newHeader.sequence = e.baseHeader.sequence + 1
	e.newHeader.lastAllocated = e.nextBlock - 1

	inactiveSlot := 1 - e.file.activeSlot
	buf := make([]byte, e.file.blockSize)
	if err := e.newHeader.encode(buf); err != nil {
		return err
	}
	stampChecksum(buf, uint32(inactiveSlot), 0, BlockTypeHeader)
	if err := writeAtRaw(e.file.storage, buf, int64(inactiveSlot)*int64(e.file.blockSize)); err != nil {
		return err
	}
	if !e.file.config.NoSyncOnCommit {
		if err := e.file.storage.Sync(); err != nil {
			return newErr(KindIO, "commit", err)
		}
	}

	e.file.mu.Lock()
	e.file.header = e.newHeader
	e.file.activeSlot = inactiveSlot
	for _, fb := range e.freed {
		e.file.pendingFree[fb.key] = e.newHeader.sequence
	}
	e.file.freeList = append(e.file.freeList, e.freeList...)
	e.file.mu.Unlock()
	return nil
}

// Rollback discards every staged mutation and releases the write lock.
// No disk cleanup is required: blocks this edit allocated are never
// referenced by the still-current header, so the next Edit simply
// reuses those indices (§5 "a rolled-back edit leaves the committed
// header, and hence every snapshot, untouched"). Any reclaimed indices
// this edit took off the free list are returned whole, since nothing it
// staged was ever persisted.
func (e *Edit) Rollback() error {
	if e.done {
		return nil
	}
	e.done = true
	e.file.returnFreeList(e.takenFromFile)
	e.file.lock.Unlock()
	return nil
}
