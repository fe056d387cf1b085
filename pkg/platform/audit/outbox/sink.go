package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	audit "nexuscred/pkg/platform/audit"
)

// AuditStore adapts an outbox Store to audit.Store so lifecycle events are
// relayed through the outbox.
type AuditStore struct {
	store Store
}

func NewAuditStore(store Store) *AuditStore {
	return &AuditStore{store: store}
}

func (a *AuditStore) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	entry := NewEntry(event.Type.Aggregate(), event.AggregateID, string(event.Type), payload, event.Timestamp)
	return a.store.Append(ctx, entry)
}

func (a *AuditStore) ListByAggregate(ctx context.Context, aggregateID string) ([]audit.Event, error) {
	entries, err := a.store.ListByAggregate(ctx, aggregateID)
	if err != nil {
		return nil, err
	}
	events := make([]audit.Event, 0, len(entries))
	for _, e := range entries {
		var ev audit.Event
		if err := json.Unmarshal(e.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decode outbox entry %s: %w", e.ID, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

var _ audit.Store = (*AuditStore)(nil)
