package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestInMemoryStore_SlidingWindow(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)}
	store := NewInMemoryStoreWithClock(clock.now)
	ctx := context.Background()

	for i := range 3 {
		res, err := store.Allow(ctx, "k", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2-i, res.Remaining)
		clock.advance(10 * time.Second)
	}

	res, err := store.Allow(ctx, "k", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	// oldest request was 30s ago
	assert.Equal(t, 30, res.RetryAfter)

	clock.advance(31 * time.Second)
	res, err = store.Allow(ctx, "k", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "first request should have left the window")

	res, err = store.Allow(ctx, "other", 3, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Remaining)
}

func TestInMemoryStore_Sweep(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)}
	store := NewInMemoryStoreWithClock(clock.now)
	ctx := context.Background()

	_, err := store.Allow(ctx, "idle", 5, time.Minute)
	require.NoError(t, err)
	clock.advance(45 * time.Second)
	_, err = store.Allow(ctx, "busy", 5, time.Minute)
	require.NoError(t, err)

	clock.advance(30 * time.Second)
	assert.Equal(t, 1, store.Sweep(time.Minute))
	assert.Equal(t, 0, store.Sweep(2*time.Minute))
}

func TestLimiter_Check(t *testing.T) {
	limiter := NewLimiter(NewInMemoryStore(), map[Class]Policy{
		ClassWrite: {Limit: 1, Window: time.Minute},
	})
	ctx := context.Background()

	res, err := limiter.Check(ctx, "198.51.100.7", ClassWrite)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = limiter.Check(ctx, "198.51.100.7", ClassWrite)
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	res, err = limiter.Check(ctx, "198.51.100.8", ClassWrite)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	t.Run("class without policy is unlimited", func(t *testing.T) {
		for range 5 {
			res, err := limiter.Check(ctx, "198.51.100.7", ClassRead)
			require.NoError(t, err)
			assert.True(t, res.Allowed)
		}
	})
}

func TestClassOf(t *testing.T) {
	assert.Equal(t, ClassRead, ClassOf("GET"))
	assert.Equal(t, ClassRead, ClassOf("HEAD"))
	assert.Equal(t, ClassWrite, ClassOf("POST"))
	assert.Equal(t, ClassWrite, ClassOf("DELETE"))
}
