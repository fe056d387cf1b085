// Package audit carries lifecycle events out of the services. Services emit
// through an Emitter; the backing Store decides whether events stay in memory
// or land in the transactional outbox for Kafka delivery.
package audit

import (
	"context"
	"time"
)

// EventType names a lifecycle transition.
type EventType string

const (
	EventIssuerRegistered     EventType = "issuer_registered"
	EventBatchCommitted       EventType = "batch_committed"
	EventBatchAnchored        EventType = "batch_anchored"
	EventRequirementCommitted EventType = "requirement_committed"
	EventProofSubmitted       EventType = "proof_submitted"
	EventProofVerified        EventType = "proof_verified"
	EventProofRejected        EventType = "proof_rejected"
)

// Aggregate returns the aggregate kind an event type belongs to.
func (t EventType) Aggregate() string {
	switch t {
	case EventIssuerRegistered:
		return "issuer"
	case EventBatchCommitted, EventBatchAnchored:
		return "batch"
	case EventRequirementCommitted:
		return "requirement"
	case EventProofSubmitted, EventProofVerified, EventProofRejected:
		return "proof"
	default:
		return "unknown"
	}
}

// Event is a transport-agnostic lifecycle record. Attributes never carry
// raw credential values or private policy fields.
type Event struct {
	Type        EventType         `json:"type"`
	AggregateID string            `json:"aggregate_id"`
	Actor       string            `json:"actor,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	RequestID   string            `json:"request_id,omitempty"`
	ClientNet   string            `json:"client_net,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// Emitter is satisfied by publisher.Publisher.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// Store persists events. Implementations must be safe for concurrent use.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByAggregate(ctx context.Context, aggregateID string) ([]Event, error)
}
