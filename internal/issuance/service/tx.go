package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"nexuscred/internal/issuance/store"
	"nexuscred/internal/platform/database"
	vcstore "nexuscred/internal/vc/store"
	id "nexuscred/pkg/domain"
	dErrors "nexuscred/pkg/domain-errors"
	platformsync "nexuscred/pkg/platform/sync"
)

var (
	anchorLockWaitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nexuscred_anchor_lock_wait_seconds",
		Help:    "Time spent waiting to acquire the per-batch anchor lock",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})
	anchorLockAcquisitions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nexuscred_anchor_lock_acquisitions_total",
		Help: "Total number of anchor lock acquisitions",
	})
)

// AnchorTx is the transactional boundary for anchoring one batch. Calls for
// the same batch are serialized; the batch update and the emitted
// credentials commit together or not at all.
type AnchorTx interface {
	RunInTx(ctx context.Context, batchID id.BatchID, fn func(batches BatchStore, creds CredentialAppender) error) error
}

// defaultAnchorTxTimeout bounds an anchor transaction, ledger call included.
const defaultAnchorTxTimeout = 30 * time.Second

type shardedAnchorTx struct {
	mu      *platformsync.ShardedMutex
	batches BatchStore
	creds   CredentialAppender
	timeout time.Duration
}

// NewShardedAnchorTx serializes anchoring per batch over in-memory stores.
func NewShardedAnchorTx(batches BatchStore, creds CredentialAppender) AnchorTx {
	return &shardedAnchorTx{
		mu:      platformsync.NewShardedMutex(),
		batches: batches,
		creds:   creds,
		timeout: defaultAnchorTxTimeout,
	}
}

func (t *shardedAnchorTx) RunInTx(ctx context.Context, batchID id.BatchID, fn func(BatchStore, CredentialAppender) error) error {
	ctx, cancel, err := boundTx(ctx, t.timeout)
	if err != nil {
		return err
	}
	defer cancel()

	key := batchID.String()
	lockStart := time.Now()
	t.mu.Lock(key)
	anchorLockWaitDuration.Observe(time.Since(lockStart).Seconds())
	anchorLockAcquisitions.Inc()
	defer t.mu.Unlock(key)

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(t.batches, t.creds)
}

type postgresAnchorTx struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgresAnchorTx runs each anchor in a database transaction. The batch
// row lock taken by FindBatchForUpdate serializes concurrent anchors.
func NewPostgresAnchorTx(db *sql.DB) AnchorTx {
	return &postgresAnchorTx{db: db, timeout: defaultAnchorTxTimeout}
}

func (t *postgresAnchorTx) RunInTx(ctx context.Context, _ id.BatchID, fn func(BatchStore, CredentialAppender) error) error {
	ctx, cancel, err := boundTx(ctx, t.timeout)
	if err != nil {
		return err
	}
	defer cancel()

	return database.WithTx(ctx, t.db, func(tx *sql.Tx) error {
		return fn(store.NewPostgresTx(tx), vcstore.NewPostgresTx(tx))
	})
}

func boundTx(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc, error) {
	if err := ctx.Err(); err != nil {
		return ctx, func() {}, dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, cancel, nil
}
