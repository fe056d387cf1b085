package memory

import (
	"context"
	"sync"

	audit "nexuscred/pkg/platform/audit"
)

// Store keeps events in process memory, in emission order.
type Store struct {
	mu     sync.RWMutex
	events []audit.Event
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *Store) ListByAggregate(_ context.Context, aggregateID string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Event, 0)
	for _, e := range s.events {
		if e.AggregateID == aggregateID {
			out = append(out, e)
		}
	}
	return out, nil
}

// All returns every stored event.
func (s *Store) All() []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Event, len(s.events))
	copy(out, s.events)
	return out
}
