// Block-cache shard selection.
//
// The shared block cache (§5 "Block cache") is internally synchronized
// with fine-grained locking per cache slot rather than one global mutex.
// We stripe slots across a fixed number of shards, each with its own
// mutex and eviction list, and pick the shard with a fast non-cryptographic
// hash of (sub-file id, block index).
package snapdb

import "github.com/zeebo/xxh3"

const cacheShardCount = 32

func cacheShard(subFileID uint16, blockIdx uint32) int {
	var key [6]byte
	key[0] = byte(subFileID)
	key[1] = byte(subFileID >> 8)
	key[2] = byte(blockIdx)
	key[3] = byte(blockIdx >> 8)
	key[4] = byte(blockIdx >> 16)
	key[5] = byte(blockIdx >> 24)
	h := xxh3.Hash(key[:])
	return int(h % uint64(cacheShardCount))
}
