// Write path for an in-progress Edit: dirty-block tracking and the
// commit-time flush (block allocation lives in edit.go). No block is ever flushed in place — a dirty block lives
// only in memory until commit writes it out and swaps the header
// (§4.1 "Edit", §3 "copy-on-write").
package snapdb

// dirtyWriter accumulates blocks an Edit has allocated or modified. Commit
// flushes every entry, then writes the new header slot (§5 "Header swap
// ordering").
type dirtyWriter struct {
	pager   *pager
	blocks  map[cacheKey][]byte
	order   []cacheKey // preserves allocation order for deterministic flush
}

func newDirtyWriter(p *pager) *dirtyWriter {
	return &dirtyWriter{pager: p, blocks: make(map[cacheKey][]byte)}
}

// stage records a block as dirty, overriding any previous staged bytes
// for the same key.
func (w *dirtyWriter) stage(subFileID uint16, blockIdx uint32, data []byte) {
	key := cacheKey{subFileID: subFileID, blockIdx: blockIdx}
	if _, existed := w.blocks[key]; !existed {
		w.order = append(w.order, key)
	}
	w.blocks[key] = data
}

// get returns a previously staged block, or nil.
func (w *dirtyWriter) get(subFileID uint16, blockIdx uint32) []byte {
	return w.blocks[cacheKey{subFileID: subFileID, blockIdx: blockIdx}]
}

// flush stamps a checksum on every staged block and writes it to storage,
// then puts the now-committed bytes into the cache, replacing any entry
// already held for that block.
func (w *dirtyWriter) flush(blockType func(cacheKey) uint32) error {
	for _, key := range w.order {
		data := w.blocks[key]
		bt := blockType(key)
		stampChecksum(data, key.blockIdx, key.subFileID, bt)
		off := int64(key.blockIdx) * int64(w.pager.blockSize)
		if _, err := w.pager.storage.WriteAt(data, off); err != nil {
			return newErr(KindIO, "flush", err)
		}
		w.pager.cache.put(key, data)
	}
	return nil
}

// writeAtRaw overwrites a raw byte range directly in storage, bypassing the
// dirty-block staging; used only for the header slots, which are written
// and fsynced explicitly as the last two steps of commit.
func writeAtRaw(s storage, data []byte, offset int64) error {
	if _, err := s.WriteAt(data, offset); err != nil {
		return newErr(KindIO, "writeAt", err)
	}
	return nil
}
