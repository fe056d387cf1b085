package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"nexuscred/pkg/platform/audit/outbox"
	"nexuscred/pkg/platform/sentinel"
)

// Store is an in-process outbox. Used in tests and when no database is configured.
type Store struct {
	mu      sync.Mutex
	entries []*outbox.Entry
}

func New() *Store {
	return &Store{}
}

func (s *Store) Append(_ context.Context, entry *outbox.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *entry
	s.entries = append(s.entries, &cp)
	return nil
}

func (s *Store) FetchUnprocessed(_ context.Context, limit int) ([]*outbox.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		return nil, nil
	}
	pending := make([]*outbox.Entry, 0, limit)
	for _, e := range s.entries {
		if e.IsPending() {
			cp := *e
			pending = append(pending, &cp)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (s *Store) MarkProcessed(_ context.Context, id uuid.UUID, processedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.ID == id && e.IsPending() {
			t := processedAt
			e.ProcessedAt = &t
			return nil
		}
	}
	return fmt.Errorf("outbox entry %s: %w", id, sentinel.ErrNotFound)
}

func (s *Store) CountPending(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, e := range s.entries {
		if e.IsPending() {
			n++
		}
	}
	return n, nil
}

func (s *Store) ListByAggregate(_ context.Context, aggregateID string) ([]*outbox.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*outbox.Entry, 0)
	for _, e := range s.entries {
		if e.AggregateID == aggregateID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	var removed int64
	for _, e := range s.entries {
		if e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return removed, nil
}

var _ outbox.Store = (*Store)(nil)
