// File lifecycle: create, open, close, and the single-writer/many-reader
// coordination described in §4.1 and §5. File owns the shared block
// cache and the committed header; ReadSnapshot and Edit are both views
// taken against it.
package snapdb

import (
	"bytes"
	"encoding/binary"
	"sync"
	"sync/atomic"
)

// File is one open archive: a paged container holding a double-buffered
// header and zero or more sub-files (§3 "File header block").
type File struct {
	path     string
	inMemory bool
	storage  storage
	blockSize int

	cache *blockCache
	lock  editLock

	mu         sync.Mutex // guards header, activeSlot, free-list bookkeeping
	header     *fileHeader
	activeSlot int // which of block 0 / block 1 holds the current header

	liveSnapshots map[uint64]int    // sequence -> refcount, for retention
	pendingFree   map[cacheKey]uint64 // block -> sequence at which it was orphaned
	freeList      []uint32            // block indices reclaimPending has cleared for reuse

	config Config
	closed atomic.Bool
}

// Create makes a brand-new archive at path with the given block size
// (0 means DefaultBlockSize) and optional header flags (§3 "flags").
func Create(path string, blockSize int, cfg Config, flags ...GUID) (*File, error) {
	cfg = cfg.normalize()
	if blockSize == 0 {
		blockSize = cfg.BlockSize
	}
	if blockSize < MinBlockSize || blockSize&(blockSize-1) != 0 {
		return nil, newErr(KindInvalidArgument, "create", ErrInvalidArgument)
	}

	st, err := createFileStorage(path)
	if err != nil {
		return nil, err
	}
	f := newFile(path, false, st, blockSize, cfg)
	if err := f.initFresh(flags); err != nil {
		st.Close()
		return nil, err
	}
	return f, nil
}

// CreateInMemory makes an ephemeral archive backed by an anonymous
// growable memory region (§4.1 "createInMemory").
func CreateInMemory(blockSize int, cfg Config, flags ...GUID) (*File, error) {
	cfg = cfg.normalize()
	if blockSize == 0 {
		blockSize = cfg.BlockSize
	}
	if blockSize < MinBlockSize || blockSize&(blockSize-1) != 0 {
		return nil, newErr(KindInvalidArgument, "createInMemory", ErrInvalidArgument)
	}
	st := newMemStorage()
	f := newFile("", true, st, blockSize, cfg)
	if err := f.initFresh(flags); err != nil {
		return nil, err
	}
	return f, nil
}

// Open opens an existing archive, choosing whichever header slot has the
// higher sequence number and a valid checksum (§5 "On open..."). If both
// slots fail verification the file is Corrupt.
func Open(path string, readOnly bool, cfg Config) (*File, error) {
	cfg = cfg.normalize()
	st, err := openFileStorage(path, readOnly)
	if err != nil {
		return nil, err
	}

	// Block size is unknown until a header is read: take it from slot 0's
	// raw blockSize field when that slot carries the file magic, otherwise
	// probe with the configured default. header.blockSize is
	// authoritative once decoded.
	probeSize := cfg.BlockSize
	raw := make([]byte, 52)
	if n, _ := st.ReadAt(raw, 0); n == len(raw) && bytes.Equal(raw[:16], fileMagic[:]) {
		if bs := int(binary.LittleEndian.Uint32(raw[48:52])); bs >= MinBlockSize && bs&(bs-1) == 0 {
			probeSize = bs
		}
	}
	f := newFile(path, false, st, probeSize, cfg)
	if !readOnly {
		f.lock = newFlockEditLock(st.fd())
	}

	hdr, slot, err := f.recoverHeader()
	if err != nil {
		st.Close()
		return nil, err
	}
	if int(hdr.blockSize) != probeSize {
		f.blockSize = int(hdr.blockSize)
		f.cache = newBlockCache(cfg.CacheBlocks)
	}
	f.header = hdr
	f.activeSlot = slot
	return f, nil
}

func newFile(path string, inMemory bool, st storage, blockSize int, cfg Config) *File {
	return &File{
		path:          path,
		inMemory:      inMemory,
		storage:       st,
		blockSize:     blockSize,
		cache:         newBlockCache(cfg.CacheBlocks),
		liveSnapshots: make(map[uint64]int),
		pendingFree:   make(map[cacheKey]uint64),
		config:        cfg,
	}
}

func (f *File) initFresh(flags []GUID) error {
	if f.inMemory {
		f.lock = &memEditLock{}
	}
	hdr := newFileHeader(NewGUID(), uint32(f.blockSize))
	hdr.flags = flags

	buf0 := make([]byte, f.blockSize)
	if err := hdr.encode(buf0); err != nil {
		return err
	}
	stampChecksum(buf0, 0, 0, BlockTypeHeader)
	if err := writeAtRaw(f.storage, buf0, 0); err != nil {
		return err
	}

	buf1 := make([]byte, f.blockSize)
	if err := hdr.encode(buf1); err != nil {
		return err
	}
	stampChecksum(buf1, 1, 0, BlockTypeHeader)
	if err := writeAtRaw(f.storage, buf1, int64(f.blockSize)); err != nil {
		return err
	}
	if !f.inMemory {
		if err := f.storage.Sync(); err != nil {
			return err
		}
	}

	f.header = hdr
	f.activeSlot = 0

	if !f.inMemory {
		st, ok := f.storage.(*fileStorage)
		if ok {
			f.lock = newFlockEditLock(st.fd())
		}
	}
	return nil
}

// recoverHeader reads both header slots and picks the valid one with the
// higher sequence number.
func (f *File) recoverHeader() (*fileHeader, int, error) {
	p := newPager(f.storage, f.blockSize, f.cache)

	var headers [2]*fileHeader
	var errs [2]error
	for slot := 0; slot < 2; slot++ {
		block, err := p.readBlockSkipVerify(uint32(slot))
		if err != nil {
			errs[slot] = err
			continue
		}
		if err := verifyChecksum(block, uint32(slot), 0, BlockTypeHeader); err != nil {
			errs[slot] = err
			continue
		}
		h, err := decodeHeader(block)
		if err != nil {
			errs[slot] = err
			continue
		}
		headers[slot] = h
	}

	switch {
	case headers[0] != nil && headers[1] != nil:
		if headers[1].sequence > headers[0].sequence {
			return headers[1], 1, nil
		}
		return headers[0], 0, nil
	case headers[0] != nil:
		return headers[0], 0, nil
	case headers[1] != nil:
		return headers[1], 1, nil
	default:
		return nil, 0, newErr(KindCorrupt, "open", ErrCorrupt)
	}
}

// Close releases the File's resources. Any in-progress Edit retains the
// OS lock until it commits or rolls back; Close does not forcibly break
// that out.
func (f *File) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return nil
	}
	return f.storage.Close()
}

// ChangeExtension renames the underlying file to newPath. The archive
// continues to be addressed by this *File, whose Path() now reports
// newPath; callers that keep the old path around should discard it
// (§4.1 "changeExtension").
func (f *File) ChangeExtension(newPath string) error {
	if f.inMemory {
		return newErr(KindInvalidArgument, "changeExtension", ErrInvalidArgument)
	}
	fs, ok := f.storage.(*fileStorage)
	if !ok {
		return newErr(KindInvalidArgument, "changeExtension", ErrInvalidArgument)
	}
	if err := fs.f.Close(); err != nil {
		return newErr(KindIO, "changeExtension", err)
	}
	if err := renameFile(f.path, newPath); err != nil {
		return newErr(KindIO, "changeExtension", err)
	}
	nf, err := openFileStorage(newPath, false)
	if err != nil {
		return err
	}
	f.storage = nf
	f.path = newPath
	if l, ok := f.lock.(*flockEditLock); ok {
		l.mu.Lock()
		l.f = nf.fd()
		l.mu.Unlock()
	}
	return nil
}

// ChangeShareMode closes and reopens the backing OS handle with a new
// read/write mode (§4.1 "changeShareMode").
func (f *File) ChangeShareMode(readOnly bool) error {
	if f.inMemory {
		return nil
	}
	fs, ok := f.storage.(*fileStorage)
	if !ok {
		return newErr(KindInvalidArgument, "changeShareMode", ErrInvalidArgument)
	}
	if err := fs.f.Close(); err != nil {
		return newErr(KindIO, "changeShareMode", err)
	}
	nf, err := openFileStorage(f.path, readOnly)
	if err != nil {
		return err
	}
	f.storage = nf
	if l, ok := f.lock.(*flockEditLock); ok {
		l.mu.Lock()
		l.f = nf.fd()
		l.mu.Unlock()
	}
	return nil
}

// Path returns the backing file path, or "" for an in-memory archive.
func (f *File) Path() string { return f.path }

// BlockSize returns the archive's fixed block size.
func (f *File) BlockSize() int { return f.blockSize }

// ArchiveID returns the archive's stable identifier.
func (f *File) ArchiveID() GUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.header.archiveID
}

func (f *File) committedHeader() *fileHeader {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.header
}

// minLiveSequence returns the lowest sequence number pinned by a live
// snapshot, or the current header sequence if none are live (nothing
// older needs retaining). Caller holds f.mu.
func (f *File) minLiveSequence() uint64 {
	min := f.header.sequence
	for seq := range f.liveSnapshots {
		if seq < min {
			min = seq
		}
	}
	return min
}
