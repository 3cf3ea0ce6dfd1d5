// ReadSnapshot: a pinned view of a committed header (§4.1, §5
// "Snapshots"). Many snapshots may coexist; none of them ever mutate
// state, so they never block or are blocked by a concurrent Edit.
package snapdb

import "sync/atomic"

// ReadSnapshot is a consistent, point-in-time view of an archive. It
// never observes writes made by a later Edit, even one committed while
// the snapshot is still open.
type ReadSnapshot struct {
	file     *File
	header   *fileHeader
	pager    *pager
	released atomic.Bool
}

// Snapshot pins the archive's current committed header and returns a
// view over it. Release the snapshot when done so its pinned blocks can
// eventually be reclaimed.
func (f *File) Snapshot() *ReadSnapshot {
	f.mu.Lock()
	hdr := f.header
	f.liveSnapshots[hdr.sequence]++
	f.mu.Unlock()

	return &ReadSnapshot{
		file:   f,
		header: hdr,
		pager:  newPager(f.storage, f.blockSize, f.cache),
	}
}

// Release decrements the snapshot's hold on its pinned sequence. After
// Release, the ReadSnapshot and any SubFileStream/Scanner obtained from
// it must not be used.
func (s *ReadSnapshot) Release() {
	if !s.released.CompareAndSwap(false, true) {
		return
	}
	f := s.file
	f.mu.Lock()
	f.liveSnapshots[s.header.sequence]--
	if f.liveSnapshots[s.header.sequence] <= 0 {
		delete(f.liveSnapshots, s.header.sequence)
	}
	f.reclaimPending()
	f.mu.Unlock()
}

// ArchiveID returns the pinned header's archive id.
func (s *ReadSnapshot) ArchiveID() GUID { return s.header.archiveID }

// OpenSubFile opens a read-only stream over the named sub-file, or
// ErrNotFound if no such sub-file exists in this snapshot.
func (s *ReadSnapshot) OpenSubFile(name SubFileName) (*SubFileStream, error) {
	e, ok := s.header.findSubFileByName(name.Purpose, name.KeyType, name.ValueType)
	if !ok {
		return nil, newErr(KindNotFound, "openSubFile", ErrNotFound)
	}
	return s.openSubFileEntry(e), nil
}

// OpenSubFileByID opens a read-only stream over the sub-file with the
// given stable id.
func (s *ReadSnapshot) OpenSubFileByID(id uint16) (*SubFileStream, error) {
	e, ok := s.header.findSubFile(id)
	if !ok {
		return nil, newErr(KindNotFound, "openSubFileByID", ErrNotFound)
	}
	return s.openSubFileEntry(e), nil
}

func (s *ReadSnapshot) openSubFileEntry(e subFileEntry) *SubFileStream {
	blockSize := s.file.blockSize
	payload := payloadSize(blockSize)
	return &SubFileStream{
		id:        e.id,
		blockSize: blockSize,
		payload:   payload,
		F:         addrsPerBlock(payload),
		snap:      s,
	}
}

// SubFiles lists the names of every sub-file visible in this snapshot.
func (s *ReadSnapshot) SubFiles() []SubFileName {
	out := make([]SubFileName, 0, len(s.header.subFiles))
	for _, e := range s.header.subFiles {
		out = append(out, SubFileName{Purpose: e.purpose, KeyType: e.keyType, ValueType: e.valueType})
	}
	return out
}
