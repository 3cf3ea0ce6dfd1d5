// Block-level read path: on-demand paging into the shared cache, with
// checksum and block-type verification on every miss (§4.1 "Block I/O").
package snapdb

// pager maps block indices to bytes for one open File, fronted by the
// shared blockCache. Both ReadSnapshot and Edit read through the same
// pager; Edit additionally tracks dirty blocks (see write.go).
type pager struct {
	storage   storage
	blockSize int
	cache     *blockCache
}

func newPager(s storage, blockSize int, cache *blockCache) *pager {
	return &pager{storage: s, blockSize: blockSize, cache: cache}
}

// readBlock returns the bytes of block blockIdx belonging to sub-file
// subFileID, verifying its checksum and block-type tag. A zero subFileID
// is used for header slots and raw top-level blocks.
func (p *pager) readBlock(subFileID uint16, blockIdx uint32, wantType uint32) ([]byte, error) {
	key := cacheKey{subFileID: subFileID, blockIdx: blockIdx}
	if cached := p.cache.get(key); cached != nil {
		if err := verifyChecksum(cached, blockIdx, subFileID, wantType); err != nil {
			return nil, err
		}
		return cached, nil
	}

	buf := make([]byte, p.blockSize)
	off := int64(blockIdx) * int64(p.blockSize)
	n, err := p.storage.ReadAt(buf, off)
	if err != nil {
		return nil, newErr(KindIO, "readBlock", err)
	}
	if n < p.blockSize {
		return nil, newErr(KindCorrupt, "readBlock", ErrCorrupt)
	}
	if err := verifyChecksum(buf, blockIdx, subFileID, wantType); err != nil {
		return nil, err
	}
	p.cache.put(key, buf)
	return buf, nil
}

// readBlockSkipVerify reads a block without checking its checksum, used
// only while probing which of the two header slots is valid at Open time
// (§5 "On open, both header slots are read and verified").
func (p *pager) readBlockSkipVerify(blockIdx uint32) ([]byte, error) {
	buf := make([]byte, p.blockSize)
	off := int64(blockIdx) * int64(p.blockSize)
	n, err := p.storage.ReadAt(buf, off)
	if err != nil {
		return nil, newErr(KindIO, "readBlock", err)
	}
	if n < p.blockSize {
		return nil, newErr(KindCorrupt, "readBlock", ErrCorrupt)
	}
	return buf, nil
}
