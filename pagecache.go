package snapdb

import "sync"

// cacheKey identifies one block across all sub-files of one open File.
type cacheKey struct {
	subFileID uint16
	blockIdx  uint32
}

type cacheEntry struct {
	key     cacheKey
	data    []byte
	dirty   bool
	chance  bool // second-chance eviction bit
	element *cacheEntry
}

// shard holds one stripe of the block cache: its own mutex and a bounded
// map plus a ring of keys for clock/second-chance eviction. Splitting the
// cache into shards lets concurrent readers on unrelated blocks proceed
// without contending on the same lock (§5 "fine-grained locking per cache
// slot").
type shard struct {
	mu       sync.Mutex
	entries  map[cacheKey]*cacheEntry
	order    []cacheKey // clock hand ring
	hand     int
	capacity int
}

// blockCache is shared across every ReadSnapshot and Edit opened against
// one File (§5 "Block cache. Shared across sessions").
type blockCache struct {
	shards [cacheShardCount]*shard
}

func newBlockCache(totalCapacity int) *blockCache {
	c := &blockCache{}
	perShard := totalCapacity / cacheShardCount
	if perShard < 4 {
		perShard = 4
	}
	for i := range c.shards {
		c.shards[i] = &shard{
			entries:  make(map[cacheKey]*cacheEntry),
			capacity: perShard,
		}
	}
	return c
}

func (c *blockCache) shardFor(key cacheKey) *shard {
	return c.shards[cacheShard(key.subFileID, key.blockIdx)]
}

// get returns a copy of the cached block, or nil if absent.
func (c *blockCache) get(key cacheKey) []byte {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil
	}
	e.chance = true
	out := make([]byte, len(e.data))
	copy(out, e.data)
	return out
}

// put inserts or replaces a block, evicting via second-chance if the
// shard is at capacity.
func (c *blockCache) put(key cacheKey, data []byte) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)

	if e, ok := s.entries[key]; ok {
		e.data = stored
		e.chance = true
		return
	}

	for len(s.entries) >= s.capacity && len(s.order) > 0 {
		s.evictOne()
	}

	s.entries[key] = &cacheEntry{key: key, data: stored, chance: true}
	s.order = append(s.order, key)
}

// evictOne runs one step of clock/second-chance eviction. Caller holds
// s.mu.
func (s *shard) evictOne() {
	for range s.order {
		if s.hand >= len(s.order) {
			s.hand = 0
		}
		k := s.order[s.hand]
		e, ok := s.entries[k]
		if !ok {
			s.order = append(s.order[:s.hand], s.order[s.hand+1:]...)
			continue
		}
		if e.chance {
			e.chance = false
			s.hand++
			continue
		}
		delete(s.entries, k)
		s.order = append(s.order[:s.hand], s.order[s.hand+1:]...)
		return
	}
}

// invalidate drops a key (used when a block is reclaimed or overwritten
// by copy-on-write so stale cached payloads never outlive the blocks they
// describe).
func (c *blockCache) invalidate(key cacheKey) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}
