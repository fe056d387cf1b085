package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"nexuscred/pkg/platform/audit/outbox"
	"nexuscred/pkg/platform/sentinel"
)

const maxFetchBatch = 1000

// Store implements outbox.Store on the outbox table.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, entry *outbox.Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.ID, entry.AggregateType, entry.AggregateID, entry.EventType, string(entry.Payload), entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// FetchUnprocessed uses SKIP LOCKED so concurrent workers never block on each other.
func (s *Store) FetchUnprocessed(ctx context.Context, limit int) ([]*outbox.Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	if limit > maxFetchBatch {
		limit = maxFetchBatch
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at, processed_at
		FROM outbox
		WHERE processed_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch unprocessed entries: %w", err)
	}
	return scanEntries(rows)
}

func (s *Store) MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE outbox SET processed_at = $2 WHERE id = $1 AND processed_at IS NULL
	`, id, processedAt)
	if err != nil {
		return fmt.Errorf("mark outbox entry processed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("outbox entry %s: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

func (s *Store) CountPending(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox WHERE processed_at IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending entries: %w", err)
	}
	return n, nil
}

func (s *Store) ListByAggregate(ctx context.Context, aggregateID string) ([]*outbox.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at, processed_at
		FROM outbox
		WHERE aggregate_id = $1
		ORDER BY created_at ASC
	`, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("list outbox entries: %w", err)
	}
	return scanEntries(rows)
}

func (s *Store) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM outbox WHERE processed_at IS NOT NULL AND processed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("delete processed entries: %w", err)
	}
	return res.RowsAffected()
}

func scanEntries(rows *sql.Rows) ([]*outbox.Entry, error) {
	defer rows.Close()
	var entries []*outbox.Entry
	for rows.Next() {
		var (
			e           outbox.Entry
			processedAt sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt, &processedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		if processedAt.Valid {
			t := processedAt.Time
			e.ProcessedAt = &t
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox entries: %w", err)
	}
	return entries, nil
}

var _ outbox.Store = (*Store)(nil)
