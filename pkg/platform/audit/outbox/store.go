package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists outbox entries. Implementations must be safe for concurrent use.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	// FetchUnprocessed returns up to limit pending entries, oldest first.
	FetchUnprocessed(ctx context.Context, limit int) ([]*Entry, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error
	CountPending(ctx context.Context) (int64, error)
	ListByAggregate(ctx context.Context, aggregateID string) ([]*Entry, error)
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}
