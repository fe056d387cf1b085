package sync

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShardedMutex_LockUnlock(t *testing.T) {
	m := NewShardedMutex()

	m.Lock("bat_1")
	m.Unlock("bat_1")

	// Empty key maps to shard 0
	m.Lock("")
	m.Unlock("")
}

func TestShardedMutex_SameKeySerializes(t *testing.T) {
	m := NewShardedMutex()
	counter := 0
	var wg sync.WaitGroup

	for range 200 {
		wg.Go(func() {
			m.Lock("prf_same")
			defer m.Unlock("prf_same")
			counter++
		})
	}
	wg.Wait()

	assert.Equal(t, 200, counter)
}

func TestShardedMutex_DoPropagatesError(t *testing.T) {
	m := NewShardedMutex()
	boom := errors.New("boom")

	err := m.Do("bat_x", func() error { return boom })
	assert.ErrorIs(t, err, boom)

	// lock must have been released
	assert.NoError(t, m.Do("bat_x", func() error { return nil }))
}

func TestShardedMutex_ShardDistribution(t *testing.T) {
	m := NewShardedMutex()
	shards := make(map[int]bool)
	keys := []string{"bat_1", "bat_2", "prf_a", "prf_b", "alice", "bob", "carol", "dave"}

	for _, key := range keys {
		shards[m.shardFor(key)] = true
	}

	assert.GreaterOrEqual(t, len(shards), 3, "expected keys to distribute across multiple shards")
	assert.Equal(t, m.shardFor("alice"), m.shardFor("alice"))
	assert.Equal(t, 0, m.shardFor(""))
}
