package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"nexuscred/internal/issuance/models"
	"nexuscred/pkg/commitment"
	id "nexuscred/pkg/domain"
	"nexuscred/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// PostgresStore persists issuers and batch commitments in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
	tx *sql.Tx
}

// NewPostgres constructs a PostgreSQL-backed issuance store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx constructs an issuance store bound to a transaction.
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

func (s *PostgresStore) CreateIssuer(ctx context.Context, issuer *models.Issuer) error {
	_, err := s.execer().ExecContext(ctx, `
		INSERT INTO issuers (issuer_id, name, status, batches_issued, registered_at)
		VALUES ($1, $2, $3, $4, $5)
	`, string(issuer.IssuerID), issuer.Name, string(issuer.Status), issuer.BatchesIssued, issuer.RegisteredAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert issuer: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindIssuer(ctx context.Context, issuerID id.IssuerID) (*models.Issuer, error) {
	var (
		issuer models.Issuer
		rawID  string
		status string
	)
	err := s.execer().QueryRowContext(ctx, `
		SELECT issuer_id, name, status, batches_issued, registered_at
		FROM issuers WHERE issuer_id = $1
	`, string(issuerID)).Scan(&rawID, &issuer.Name, &status, &issuer.BatchesIssued, &issuer.RegisteredAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find issuer: %w", err)
	}
	issuer.IssuerID = id.IssuerID(rawID)
	issuer.Status = models.IssuerStatus(status)
	return &issuer, nil
}

func (s *PostgresStore) IncrementBatchesIssued(ctx context.Context, issuerID id.IssuerID) error {
	res, err := s.execer().ExecContext(ctx,
		`UPDATE issuers SET batches_issued = batches_issued + 1 WHERE issuer_id = $1`, string(issuerID))
	if err != nil {
		return fmt.Errorf("increment batches issued: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) CreateBatch(ctx context.Context, batch *models.BatchCommitment) error {
	creds, err := json.Marshal(batch.Credentials)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	_, err = s.execer().ExecContext(ctx, `
		INSERT INTO batch_commitments (batch_id, issuer_id, merkle_root, credential_count, fraud_score,
			status, credentials, created_at, anchored_at, ledger_tx_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, string(batch.BatchID), string(batch.IssuerID), batch.MerkleRoot.Hex(), batch.CredentialCount,
		batch.FraudScore, string(batch.Status), string(creds), batch.CreatedAt, batch.AnchoredAt,
		nullString(batch.LedgerTxRef))
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

const selectBatch = `
	SELECT batch_id, issuer_id, merkle_root, credential_count, fraud_score, status,
		credentials, created_at, anchored_at, ledger_tx_ref
	FROM batch_commitments`

func (s *PostgresStore) FindBatch(ctx context.Context, batchID id.BatchID) (*models.BatchCommitment, error) {
	return s.findOne(ctx, selectBatch+` WHERE batch_id = $1`, string(batchID))
}

// FindBatchForUpdate locks the row until the surrounding transaction ends.
func (s *PostgresStore) FindBatchForUpdate(ctx context.Context, batchID id.BatchID) (*models.BatchCommitment, error) {
	return s.findOne(ctx, selectBatch+` WHERE batch_id = $1 FOR UPDATE`, string(batchID))
}

func (s *PostgresStore) FindAnchoredByRoot(ctx context.Context, root commitment.Digest) (*models.BatchCommitment, error) {
	return s.findOne(ctx, selectBatch+` WHERE merkle_root = $1 AND status = $2 ORDER BY anchored_at ASC LIMIT 1`,
		root.Hex(), string(models.BatchAnchored))
}

func (s *PostgresStore) ListBatchesByIssuer(ctx context.Context, issuerID id.IssuerID) ([]*models.BatchCommitment, error) {
	rows, err := s.execer().QueryContext(ctx, selectBatch+` WHERE issuer_id = $1 ORDER BY created_at ASC`, string(issuerID))
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	out := []*models.BatchCommitment{}
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batches: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) SaveAnchoring(ctx context.Context, batch *models.BatchCommitment) error {
	res, err := s.execer().ExecContext(ctx, `
		UPDATE batch_commitments
		SET status = $2, anchored_at = $3, ledger_tx_ref = $4
		WHERE batch_id = $1 AND status = $5
	`, string(batch.BatchID), string(batch.Status), batch.AnchoredAt, nullString(batch.LedgerTxRef),
		string(models.BatchCreated))
	if err != nil {
		return fmt.Errorf("save anchoring: %w", err)
	}
	if err := requireRow(res); err != nil {
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *PostgresStore) findOne(ctx context.Context, query string, args ...any) (*models.BatchCommitment, error) {
	b, err := scanBatch(s.execer().QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (*models.BatchCommitment, error) {
	var (
		b          models.BatchCommitment
		batchID    string
		issuerID   string
		root       string
		status     string
		creds      []byte
		anchoredAt sql.NullTime
		txRef      sql.NullString
	)
	err := row.Scan(&batchID, &issuerID, &root, &b.CredentialCount, &b.FraudScore, &status,
		&creds, &b.CreatedAt, &anchoredAt, &txRef)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan batch: %w", err)
	}
	b.BatchID = id.BatchID(batchID)
	b.IssuerID = id.IssuerID(issuerID)
	b.Status = models.BatchStatus(status)
	if b.MerkleRoot, err = commitment.ParseDigest(root); err != nil {
		return nil, fmt.Errorf("parse merkle root: %w", err)
	}
	if err := json.Unmarshal(creds, &b.Credentials); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	if anchoredAt.Valid {
		t := anchoredAt.Time.UTC()
		b.AnchoredAt = &t
	}
	b.LedgerTxRef = txRef.String
	return &b, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
