// Block reclamation (§3 "Any block allocated but not referenced by the
// committed header is reclaimable before next commit (it is not
// reclaimable after)"; §5 "an edit may not reclaim any block referenced
// by any living snapshot sequence >= block's deletion sequence").
package snapdb

// reclaimPending moves every pending-free block whose deletion sequence
// predates every live snapshot into the free list a future Edit can
// reuse. Caller holds f.mu.
func (f *File) reclaimPending() {
	min := f.minLiveSequence()
	for key, deletedAt := range f.pendingFree {
		if deletedAt < min {
			delete(f.pendingFree, key)
			f.cache.invalidate(key)
			f.freeList = append(f.freeList, key.blockIdx)
		}
	}
}

// takeFreeList hands the entire current free list to a new Edit and
// empties it; only one Edit exists at a time, so nothing else can
// consume these indices while it runs. Caller holds f.mu.
func (f *File) takeFreeList() []uint32 {
	list := f.freeList
	f.freeList = nil
	return list
}

// returnFreeList gives back block indices an Edit took but did not end
// up consuming. Rollback returns its whole list through it, since
// nothing the edit did is visible; Commit appends its leftover
// remainder to f.freeList directly while holding f.mu.
func (f *File) returnFreeList(list []uint32) {
	if len(list) == 0 {
		return
	}
	f.mu.Lock()
	f.freeList = append(f.freeList, list...)
	f.mu.Unlock()
}
