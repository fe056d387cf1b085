package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"nexuscred/internal/vc/models"
	id "nexuscred/pkg/domain"
)

// PostgresStore persists credentials in the verifiable_credentials table.
// Insertion order is the seq column.
type PostgresStore struct {
	db *sql.DB
	tx *sql.Tx
}

// NewPostgres constructs a PostgreSQL-backed credential store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx constructs a credential store bound to a transaction.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{tx: tx}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer() dbExecutor {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, vc *models.VerifiableCredential) error {
	return s.AppendAll(ctx, []*models.VerifiableCredential{vc})
}

// AppendAll inserts credentials in order. Bind the store to a transaction
// for all-or-nothing semantics.
func (s *PostgresStore) AppendAll(ctx context.Context, vcs []*models.VerifiableCredential) error {
	for _, vc := range vcs {
		if vc == nil || vc.StudentID.IsNil() {
			return ErrInvalidCredential
		}
		doc, err := json.Marshal(vc)
		if err != nil {
			return fmt.Errorf("marshal credential: %w", err)
		}
		_, err = s.execer().ExecContext(ctx, `
			INSERT INTO verifiable_credentials (student_id, batch_id, leaf_index, document)
			VALUES ($1, $2, $3, $4)
		`, string(vc.StudentID), string(vc.BatchID), vc.LeafIndex, string(doc))
		if err != nil {
			return fmt.Errorf("insert credential: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) ListByStudent(ctx context.Context, studentID id.StudentID) ([]*models.VerifiableCredential, error) {
	rows, err := s.execer().QueryContext(ctx, `
		SELECT document FROM verifiable_credentials
		WHERE student_id = $1
		ORDER BY seq ASC
	`, string(studentID))
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	out := []*models.VerifiableCredential{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		var vc models.VerifiableCredential
		if err := json.Unmarshal(doc, &vc); err != nil {
			return nil, fmt.Errorf("decode credential: %w", err)
		}
		out = append(out, &vc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CountByStudent(ctx context.Context, studentID id.StudentID) (int, error) {
	var n int
	err := s.execer().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM verifiable_credentials WHERE student_id = $1`, string(studentID),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count credentials: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) CountByBatch(ctx context.Context, batchID id.BatchID) (int, error) {
	var n int
	err := s.execer().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM verifiable_credentials WHERE batch_id = $1`, string(batchID),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count batch credentials: %w", err)
	}
	return n, nil
}
