package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"nexuscred/internal/platform/database"
	"nexuscred/internal/proof/models"
	"nexuscred/pkg/commitment"
	id "nexuscred/pkg/domain"
	"nexuscred/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

const selectProof = `
	SELECT proof_id, student_id, requirement_hash, proof_payload, public_signals, status,
		rejection_kind, rejection_reason, rejected_at, created_at, verified_at, token_ref
	FROM proof_submissions`

// PostgresStore persists submissions in PostgreSQL. Execute locks the row
// with SELECT ... FOR UPDATE for the duration of fn.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed proof store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, p *models.ProofSubmission) error {
	payload, err := json.Marshal(p.ProofPayload)
	if err != nil {
		return fmt.Errorf("marshal proof payload: %w", err)
	}
	signals, err := json.Marshal(p.PublicSignals)
	if err != nil {
		return fmt.Errorf("marshal public signals: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO proof_submissions (proof_id, student_id, requirement_hash, proof_payload, public_signals, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ProofID.String(), p.StudentID.String(), p.RequirementHash.Hex(), string(payload), string(signals),
		string(p.Status), p.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert proof submission: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, proofID id.ProofID) (*models.ProofSubmission, error) {
	p, err := scanProof(s.db.QueryRowContext(ctx, selectProof+` WHERE proof_id = $1`, proofID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) ListByStudent(ctx context.Context, studentID id.StudentID) ([]*models.ProofSubmission, error) {
	rows, err := s.db.QueryContext(ctx, selectProof+` WHERE student_id = $1 ORDER BY created_at, proof_id`, studentID.String())
	if err != nil {
		return nil, fmt.Errorf("list proof submissions: %w", err)
	}
	defer rows.Close()

	out := make([]*models.ProofSubmission, 0)
	for rows.Next() {
		p, err := scanProof(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate proof submissions: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Execute(ctx context.Context, proofID id.ProofID, fn MutateFunc) (*models.ProofSubmission, error) {
	var result *models.ProofSubmission
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		p, err := scanProof(tx.QueryRowContext(ctx, selectProof+` WHERE proof_id = $1 FOR UPDATE`, proofID.String()))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return sentinel.ErrNotFound
			}
			return err
		}
		dirty, err := fn(p)
		if err != nil {
			return err
		}
		result = p
		if !dirty {
			return nil
		}
		return update(ctx, tx, p)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func update(ctx context.Context, tx *sql.Tx, p *models.ProofSubmission) error {
	var (
		kind, reason sql.NullString
		rejectedAt   sql.NullTime
	)
	if p.Rejection != nil {
		kind = sql.NullString{String: string(p.Rejection.Kind), Valid: true}
		reason = sql.NullString{String: p.Rejection.Reason, Valid: true}
		rejectedAt = sql.NullTime{Time: p.Rejection.RejectedAt, Valid: true}
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE proof_submissions
		SET status = $2, rejection_kind = $3, rejection_reason = $4, rejected_at = $5,
			verified_at = $6, token_ref = $7
		WHERE proof_id = $1
	`, p.ProofID.String(), string(p.Status), kind, reason, rejectedAt, p.VerifiedAt,
		sql.NullString{String: p.TokenRef, Valid: p.TokenRef != ""})
	if err != nil {
		return fmt.Errorf("update proof submission: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProof(row rowScanner) (*models.ProofSubmission, error) {
	var (
		p                 models.ProofSubmission
		proofID, student  string
		hash, status      string
		payload, signals  []byte
		kind, reason, tok sql.NullString
		rejectedAt        sql.NullTime
		verifiedAt        sql.NullTime
	)
	err := row.Scan(&proofID, &student, &hash, &payload, &signals, &status,
		&kind, &reason, &rejectedAt, &p.CreatedAt, &verifiedAt, &tok)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan proof submission: %w", err)
	}
	p.ProofID = id.ProofID(proofID)
	p.StudentID = id.StudentID(student)
	p.Status = models.Status(status)
	p.CreatedAt = p.CreatedAt.UTC()
	if p.RequirementHash, err = commitment.ParseDigest(hash); err != nil {
		return nil, fmt.Errorf("parse requirement hash: %w", err)
	}
	if err := json.Unmarshal(payload, &p.ProofPayload); err != nil {
		return nil, fmt.Errorf("decode proof payload: %w", err)
	}
	if err := json.Unmarshal(signals, &p.PublicSignals); err != nil {
		return nil, fmt.Errorf("decode public signals: %w", err)
	}
	if kind.Valid {
		p.Rejection = &models.Rejection{Kind: models.RejectionKind(kind.String), Reason: reason.String}
		if rejectedAt.Valid {
			p.Rejection.RejectedAt = rejectedAt.Time.UTC()
		}
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time.UTC()
		p.VerifiedAt = &t
	}
	p.TokenRef = tok.String
	return &p, nil
}
