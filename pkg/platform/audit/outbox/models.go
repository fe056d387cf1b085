// Package outbox implements the transactional outbox: lifecycle events are
// written next to the state change that produced them and a worker relays
// them to Kafka.
package outbox

import (
	"time"

	"github.com/google/uuid"
)

// Entry is one pending or relayed event.
type Entry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
	ProcessedAt   *time.Time
}

// IsPending reports whether the entry still waits for relay.
func (e *Entry) IsPending() bool {
	return e.ProcessedAt == nil
}

func NewEntry(aggregateType, aggregateID, eventType string, payload []byte, createdAt time.Time) *Entry {
	return &Entry{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     createdAt,
	}
}
