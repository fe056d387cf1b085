package ratelimit

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore keeps a sliding window of request timestamps per key.
type InMemoryStore struct {
	mu      sync.Mutex
	windows map[string]*slidingWindow
	now     func() time.Time
}

type slidingWindow struct {
	timestamps []time.Time
}

// NewInMemoryStore returns an empty store using the wall clock.
func NewInMemoryStore() *InMemoryStore {
	return NewInMemoryStoreWithClock(time.Now)
}

// NewInMemoryStoreWithClock returns an empty store reading time from now.
func NewInMemoryStoreWithClock(now func() time.Time) *InMemoryStore {
	return &InMemoryStore{windows: make(map[string]*slidingWindow), now: now}
}

func (s *InMemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sw, ok := s.windows[key]
	if !ok {
		sw = &slidingWindow{}
		s.windows[key] = sw
	}
	sw.evict(now.Add(-window))

	if len(sw.timestamps) >= limit {
		resetAt := sw.timestamps[0].Add(window)
		return &Result{
			Allowed:    false,
			Limit:      limit,
			ResetAt:    resetAt,
			RetryAfter: retryAfterSeconds(now, resetAt),
		}, nil
	}
	sw.timestamps = append(sw.timestamps, now)
	return &Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(sw.timestamps),
		ResetAt:   sw.timestamps[0].Add(window),
	}, nil
}

// Sweep drops keys with no requests inside window and returns how many were removed.
func (s *InMemoryStore) Sweep(window time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-window)
	removed := 0
	for k, sw := range s.windows {
		sw.evict(cutoff)
		if len(sw.timestamps) == 0 {
			delete(s.windows, k)
			removed++
		}
	}
	return removed
}

func (sw *slidingWindow) evict(cutoff time.Time) {
	i := 0
	for i < len(sw.timestamps) && !sw.timestamps[i].After(cutoff) {
		i++
	}
	sw.timestamps = sw.timestamps[i:]
}
