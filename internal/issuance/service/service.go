// Package service implements issuer registration and the batch lifecycle:
// commit (hash, score, persist) and anchor (ledger confirmation, then
// credential emission).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"nexuscred/internal/issuance/committer"
	"nexuscred/internal/issuance/fraud"
	"nexuscred/internal/issuance/metrics"
	"nexuscred/internal/issuance/models"
	"nexuscred/internal/issuance/ports"
	"nexuscred/internal/ledger"
	"nexuscred/internal/platform/tracer"
	vcmodels "nexuscred/internal/vc/models"
	"nexuscred/pkg/commitment"
	id "nexuscred/pkg/domain"
	dErrors "nexuscred/pkg/domain-errors"
	"nexuscred/pkg/platform/audit"
	"nexuscred/pkg/platform/sentinel"
)

// IssuerStore persists registered issuers.
type IssuerStore interface {
	CreateIssuer(ctx context.Context, issuer *models.Issuer) error
	FindIssuer(ctx context.Context, issuerID id.IssuerID) (*models.Issuer, error)
	IncrementBatchesIssued(ctx context.Context, issuerID id.IssuerID) error
}

// BatchStore persists batch commitments.
type BatchStore interface {
	CreateBatch(ctx context.Context, batch *models.BatchCommitment) error
	FindBatch(ctx context.Context, batchID id.BatchID) (*models.BatchCommitment, error)
	FindBatchForUpdate(ctx context.Context, batchID id.BatchID) (*models.BatchCommitment, error)
	FindAnchoredByRoot(ctx context.Context, root commitment.Digest) (*models.BatchCommitment, error)
	ListBatchesByIssuer(ctx context.Context, issuerID id.IssuerID) ([]*models.BatchCommitment, error)
	SaveAnchoring(ctx context.Context, batch *models.BatchCommitment) error
}

// Store is the combined issuance store.
type Store interface {
	IssuerStore
	BatchStore
}

// CredentialAppender receives the credentials emitted by an anchored batch.
type CredentialAppender interface {
	AppendAll(ctx context.Context, vcs []*vcmodels.VerifiableCredential) error
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

func WithAuditor(a *audit.Logger) Option {
	return func(s *Service) {
		s.auditor = a
	}
}

// WithScorer replaces the default fraud scorer.
func WithScorer(scorer *fraud.Scorer) Option {
	return func(s *Service) {
		if scorer != nil {
			s.scorer = scorer
		}
	}
}

// WithReviewThreshold sets the score at or above which a batch is logged for review.
func WithReviewThreshold(threshold float64) Option {
	return func(s *Service) {
		s.reviewThreshold = threshold
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

const defaultReviewThreshold = 0.3

// Service owns issuers and the batch commitment lifecycle.
type Service struct {
	store           Store
	tx              AnchorTx
	ledger          ports.Ledger
	scorer          *fraud.Scorer
	reviewThreshold float64
	logger          *slog.Logger
	metrics         *metrics.Metrics
	tracer          tracer.Tracer
	auditor         *audit.Logger
	now             func() time.Time
}

func New(store Store, tx AnchorTx, ledger ports.Ledger, opts ...Option) *Service {
	s := &Service{
		store:           store,
		tx:              tx,
		ledger:          ledger,
		scorer:          fraud.New(fraud.DefaultConfig()),
		reviewThreshold: defaultReviewThreshold,
		logger:          slog.Default(),
		tracer:          tracer.NewNoop(),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterIssuer registers issuerID. A second registration fails with
// CodeDoubleRegistration and changes nothing.
func (s *Service) RegisterIssuer(ctx context.Context, issuerID id.IssuerID, name string) (*models.Issuer, error) {
	issuer := &models.Issuer{
		IssuerID:     issuerID,
		Name:         name,
		Status:       models.IssuerActive,
		RegisteredAt: s.now().UTC(),
	}
	if err := s.store.CreateIssuer(ctx, issuer); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeDoubleRegistration, fmt.Sprintf("issuer %s is already registered", issuerID))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register issuer")
	}

	s.auditor.Log(ctx, audit.EventIssuerRegistered, issuerID.String(), issuerID.String(), map[string]string{"name": name})
	return issuer, nil
}

func (s *Service) GetIssuer(ctx context.Context, issuerID id.IssuerID) (*models.Issuer, error) {
	issuer, err := s.store.FindIssuer(ctx, issuerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnknownIssuer, fmt.Sprintf("issuer %s is not registered", issuerID))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load issuer")
	}
	return issuer, nil
}

// CommitBatch builds the Merkle commitment over batch, scores it and persists
// it in the Created state. Empty batches fail with CodeEmptyBatch before
// anything is stored. The fraud score never blocks the commit.
func (s *Service) CommitBatch(ctx context.Context, batch models.CredentialBatch) (result *models.BatchCommitment, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanBatchCommit,
		tracer.String(tracer.AttrIssuerID, batch.IssuerID.String()),
		tracer.Int(tracer.AttrCredentialCount, len(batch.Credentials)),
	)
	defer func() { span.End(err) }()

	prepared, err := s.prepare(batch)
	if err != nil {
		return nil, err
	}
	c, err := committer.Build(prepared)
	if err != nil {
		return nil, err
	}
	assessment := s.scorer.Assess(prepared)

	commit := &models.BatchCommitment{
		BatchID:         id.NewBatchID(),
		IssuerID:        prepared.IssuerID,
		MerkleRoot:      c.Root(),
		CredentialCount: len(prepared.Credentials),
		FraudScore:      assessment.Score,
		Status:          models.BatchCreated,
		CreatedAt:       s.now().UTC(),
		Credentials:     prepared.Credentials,
	}
	if err := s.store.CreateBatch(ctx, commit); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store batch commitment")
	}
	span.SetAttributes(
		tracer.String(tracer.AttrBatchID, commit.BatchID.String()),
		tracer.Float64(tracer.AttrFraudScore, commit.FraudScore),
	)

	if err := s.store.IncrementBatchesIssued(ctx, commit.IssuerID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.WarnContext(ctx, "failed to update issuer batch count",
			"issuer_id", commit.IssuerID,
			"batch_id", commit.BatchID,
			"error", err,
		)
	}

	if commit.FraudScore >= s.reviewThreshold && len(assessment.Triggered) > 0 {
		s.logger.WarnContext(ctx, "batch flagged for fraud review",
			"batch_id", commit.BatchID,
			"issuer_id", commit.IssuerID,
			"fraud_score", commit.FraudScore,
			"heuristics", assessment.Triggered,
		)
	}
	s.metrics.ObserveCommit(commit.CredentialCount, commit.FraudScore)
	s.auditor.Log(ctx, audit.EventBatchCommitted, commit.BatchID.String(), commit.IssuerID.String(), map[string]string{
		"merkle_root":      commit.MerkleRoot.Hex(),
		"credential_count": strconv.Itoa(commit.CredentialCount),
		"fraud_score":      strconv.FormatFloat(commit.FraudScore, 'f', -1, 64),
	})
	return commit, nil
}

// prepare copies the batch, stamping each credential with the batch issuer and
// an issue time when absent.
func (s *Service) prepare(batch models.CredentialBatch) (models.CredentialBatch, error) {
	now := s.now().UTC()
	out := models.CredentialBatch{IssuerID: batch.IssuerID, Credentials: make([]models.RawCredential, len(batch.Credentials))}
	for i, cred := range batch.Credentials {
		if cred.StudentID.IsNil() {
			return out, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("credential %d has no student_id", i))
		}
		switch {
		case cred.IssuerID.IsNil():
			cred.IssuerID = batch.IssuerID
		case cred.IssuerID != batch.IssuerID:
			return out, dErrors.New(dErrors.CodeInvalidInput,
				fmt.Sprintf("credential %d issuer %s does not match batch issuer %s", i, cred.IssuerID, batch.IssuerID))
		}
		if cred.IssuedAt.IsZero() {
			cred.IssuedAt = now
		}
		cred.Fields = append([]models.CredentialField(nil), cred.Fields...)
		out.Credentials[i] = cred
	}
	return out, nil
}

func (s *Service) GetBatch(ctx context.Context, batchID id.BatchID) (*models.BatchCommitment, error) {
	batch, err := s.store.FindBatch(ctx, batchID)
	if err != nil {
		return nil, translateBatchErr(err, batchID)
	}
	return batch, nil
}

// ListBatches returns the issuer's batches in creation order.
func (s *Service) ListBatches(ctx context.Context, issuerID id.IssuerID) ([]*models.BatchCommitment, error) {
	batches, err := s.store.ListBatchesByIssuer(ctx, issuerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list batches")
	}
	return batches, nil
}

// PathFor returns the inclusion path of credential index within a stored batch.
func (s *Service) PathFor(ctx context.Context, batchID id.BatchID, index int) ([]commitment.Step, error) {
	batch, err := s.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	return committer.PathFor(index, batch.Batch())
}

// AnchoredBatchByRoot resolves root to the anchored batch that committed it.
func (s *Service) AnchoredBatchByRoot(ctx context.Context, root commitment.Digest) (id.BatchID, bool, error) {
	batch, err := s.store.FindAnchoredByRoot(ctx, root)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return batch.BatchID, true, nil
}

// Anchor hands the batch root to the ledger and, on confirmation, emits one
// verifiable credential per input credential and marks the batch Anchored.
// Anchoring an Anchored batch is a no-op reporting AlreadyAnchored. A ledger
// failure leaves the batch Created with nothing emitted.
func (s *Service) Anchor(ctx context.Context, batchID id.BatchID) (result *models.AnchorResult, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, tracer.SpanBatchAnchor, tracer.String(tracer.AttrBatchID, batchID.String()))
	defer func() {
		if err != nil {
			s.metrics.IncAnchorFailure(string(dErrors.CodeOf(err)))
		}
		span.End(err)
	}()

	err = s.tx.RunInTx(ctx, batchID, func(batches BatchStore, creds CredentialAppender) error {
		batch, err := batches.FindBatchForUpdate(ctx, batchID)
		if err != nil {
			return translateBatchErr(err, batchID)
		}
		if batch.IsAnchored() {
			result = &models.AnchorResult{Batch: batch, AlreadyAnchored: true}
			return nil
		}

		c, err := committer.Build(batch.Batch())
		if err != nil {
			return err
		}
		if c.Root() != batch.MerkleRoot {
			return dErrors.New(dErrors.CodeInvariantViolation, "stored credentials no longer reproduce merkle_root")
		}

		receipt, err := s.ledger.Anchor(ctx, ports.AnchorRequest{
			BatchID:    batch.BatchID,
			IssuerID:   batch.IssuerID,
			MerkleRoot: batch.MerkleRoot,
		})
		if err != nil {
			s.logger.WarnContext(ctx, "ledger anchoring failed; batch stays created",
				"batch_id", batchID,
				"retryable", ledger.IsRetryable(err),
				"error", err,
			)
			return ledger.ToDomainError(err, "ledger anchoring failed")
		}

		vcs, err := emit(batch, c)
		if err != nil {
			return err
		}
		if err := batch.MarkAnchored(receipt.TxRef, receipt.ConfirmedAt.UTC()); err != nil {
			return dErrors.Wrap(err, dErrors.CodeConflict, "batch already anchored")
		}
		if err := creds.AppendAll(ctx, vcs); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store credentials")
		}
		if err := batches.SaveAnchoring(ctx, batch); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record anchoring")
		}
		result = &models.AnchorResult{Batch: batch, CredentialsEmitted: len(vcs)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(tracer.Bool(tracer.AttrAlreadyTerminal, result.AlreadyAnchored))
	if result.AlreadyAnchored {
		return result, nil
	}

	span.AddEvent(tracer.EventCredentialsEmitted, tracer.Int(tracer.AttrCredentialCount, result.CredentialsEmitted))
	s.metrics.ObserveAnchored(result.CredentialsEmitted, time.Since(start).Seconds())
	s.logger.InfoContext(ctx, "batch anchored",
		"batch_id", batchID,
		"ledger_tx_ref", result.Batch.LedgerTxRef,
		"credentials_emitted", result.CredentialsEmitted,
	)
	s.auditor.Log(ctx, audit.EventBatchAnchored, batchID.String(), result.Batch.IssuerID.String(), map[string]string{
		"ledger_tx_ref":       result.Batch.LedgerTxRef,
		"credentials_emitted": strconv.Itoa(result.CredentialsEmitted),
	})
	return result, nil
}

func emit(batch *models.BatchCommitment, c *committer.Commitment) ([]*vcmodels.VerifiableCredential, error) {
	vcs := make([]*vcmodels.VerifiableCredential, 0, len(batch.Credentials))
	for i, cred := range batch.Credentials {
		path, err := c.PathFor(i)
		if err != nil {
			return nil, err
		}
		vcs = append(vcs, &vcmodels.VerifiableCredential{
			StudentID:      cred.StudentID,
			CredentialType: vcmodels.DeriveType(cred.Fields),
			CredentialData: vcmodels.CredentialData{
				StudentName: cred.StudentName,
				Fields:      append([]commitment.Field(nil), cred.Fields...),
			},
			MerklePath: path,
			MerkleRoot: batch.MerkleRoot,
			IssuerID:   cred.IssuerID,
			IssuedAt:   cred.IssuedAt,
			BatchID:    batch.BatchID,
			LeafIndex:  i,
		})
	}
	return vcs, nil
}

func translateBatchErr(err error, batchID id.BatchID) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeUnknownBatch, fmt.Sprintf("batch %s not found", batchID))
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load batch")
}
