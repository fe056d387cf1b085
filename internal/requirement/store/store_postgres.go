package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"nexuscred/internal/requirement/models"
	"nexuscred/pkg/commitment"
	id "nexuscred/pkg/domain"
	"nexuscred/pkg/platform/sentinel"
)

// PostgresStore persists requirement commitments in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed requirement store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, rc *models.RequirementCommitment) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO requirement_commitments (employer_id, commitment_hash, title, description, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (employer_id, commitment_hash) DO NOTHING
	`, rc.EmployerID.String(), rc.CommitmentHash.Hex(), rc.Title, rc.Description, rc.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert requirement commitment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert requirement commitment rows: %w", err)
	}
	return n == 1, nil
}

func (s *PostgresStore) Find(ctx context.Context, employerID id.EmployerID, hash commitment.Digest) (*models.RequirementCommitment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT employer_id, commitment_hash, title, description, created_at
		FROM requirement_commitments
		WHERE employer_id = $1 AND commitment_hash = $2
	`, employerID.String(), hash.Hex())
	rc, err := scanRequirement(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find requirement commitment: %w", err)
	}
	return rc, nil
}

func (s *PostgresStore) ListByEmployer(ctx context.Context, employerID id.EmployerID) ([]*models.RequirementCommitment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT employer_id, commitment_hash, title, description, created_at
		FROM requirement_commitments
		WHERE employer_id = $1
		ORDER BY created_at, commitment_hash
	`, employerID.String())
	if err != nil {
		return nil, fmt.Errorf("list requirement commitments: %w", err)
	}
	defer rows.Close()

	out := make([]*models.RequirementCommitment, 0)
	for rows.Next() {
		rc, err := scanRequirement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan requirement commitment: %w", err)
		}
		out = append(out, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requirement commitments: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) IsPublished(ctx context.Context, hash commitment.Digest) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM requirement_commitments WHERE commitment_hash = $1)
	`, hash.Hex()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check requirement published: %w", err)
	}
	return exists, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequirement(row rowScanner) (*models.RequirementCommitment, error) {
	var (
		rc       models.RequirementCommitment
		employer string
		hash     string
	)
	if err := row.Scan(&employer, &hash, &rc.Title, &rc.Description, &rc.CreatedAt); err != nil {
		return nil, err
	}
	digest, err := commitment.ParseDigest(hash)
	if err != nil {
		return nil, fmt.Errorf("decode commitment hash: %w", err)
	}
	rc.EmployerID = id.EmployerID(employer)
	rc.CommitmentHash = digest
	rc.CreatedAt = rc.CreatedAt.UTC()
	return &rc, nil
}
