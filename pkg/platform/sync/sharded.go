package sync

import (
	"hash/fnv"
	"sync"
)

const shardCount = 32

// ShardedMutex provides per-key mutual exclusion without a global lock.
// Keys are spread across a fixed set of mutexes by hash, so two different keys
// may share a shard but the same key always maps to the same one.
type ShardedMutex struct {
	shards [shardCount]sync.Mutex
}

// NewShardedMutex creates a new ShardedMutex.
func NewShardedMutex() *ShardedMutex {
	return &ShardedMutex{}
}

// Lock acquires the lock for the given key's shard.
// Empty keys default to shard 0.
func (m *ShardedMutex) Lock(key string) {
	m.shards[m.shardFor(key)].Lock()
}

// Unlock releases the lock for the given key's shard.
func (m *ShardedMutex) Unlock(key string) {
	m.shards[m.shardFor(key)].Unlock()
}

// Do runs fn while holding the key's shard lock.
func (m *ShardedMutex) Do(key string, fn func() error) error {
	m.Lock(key)
	defer m.Unlock(key)
	return fn()
}

func (m *ShardedMutex) shardFor(key string) int {
	if key == "" {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key)) //nolint:errcheck // hash.Hash never returns an error
	return int(h.Sum32() % shardCount)
}
