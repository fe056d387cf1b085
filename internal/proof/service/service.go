// Package service implements the proof gateway: submissions enter Pending,
// are checked by the external verifier and end Verified (with exactly one
// minted token) or Rejected.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"nexuscred/internal/ledger"
	"nexuscred/internal/platform/tracer"
	"nexuscred/internal/proof/metrics"
	"nexuscred/internal/proof/models"
	"nexuscred/internal/proof/ports"
	"nexuscred/internal/proof/store"
	"nexuscred/pkg/commitment"
	id "nexuscred/pkg/domain"
	dErrors "nexuscred/pkg/domain-errors"
	"nexuscred/pkg/platform/audit"
	"nexuscred/pkg/platform/sentinel"
)

// Store persists proof submissions with per-proof atomic updates.
type Store interface {
	Create(ctx context.Context, p *models.ProofSubmission) error
	Find(ctx context.Context, proofID id.ProofID) (*models.ProofSubmission, error)
	ListByStudent(ctx context.Context, studentID id.StudentID) ([]*models.ProofSubmission, error)
	Execute(ctx context.Context, proofID id.ProofID, fn store.MutateFunc) (*models.ProofSubmission, error)
}

// CredentialCounter reports how many verifiable credentials a student holds.
type CredentialCounter interface {
	Count(ctx context.Context, studentID id.StudentID) (int, error)
}

// RequirementRegistry reports whether a requirement hash was published.
type RequirementRegistry interface {
	IsPublished(ctx context.Context, hash commitment.Digest) (bool, error)
}

// Attester signs eligibility attestations for verified submissions.
type Attester interface {
	Attest(p *models.ProofSubmission) (*models.Attestation, error)
}

type Option func(*Gateway)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(g *Gateway) {
		if t != nil {
			g.tracer = t
		}
	}
}

func WithAuditor(a *audit.Logger) Option {
	return func(g *Gateway) {
		g.auditor = a
	}
}

func WithAttester(a Attester) Option {
	return func(g *Gateway) {
		g.attester = a
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

// Gateway owns the proof submission state machine.
type Gateway struct {
	store        Store
	credentials  CredentialCounter
	requirements RequirementRegistry
	verifier     ports.Verifier
	minter       ports.TokenMinter
	attester     Attester
	logger       *slog.Logger
	metrics      *metrics.Metrics
	tracer       tracer.Tracer
	auditor      *audit.Logger
	now          func() time.Time
}

func New(store Store, credentials CredentialCounter, requirements RequirementRegistry,
	verifier ports.Verifier, minter ports.TokenMinter, opts ...Option) *Gateway {
	g := &Gateway{
		store:        store,
		credentials:  credentials,
		requirements: requirements,
		verifier:     verifier,
		minter:       minter,
		logger:       slog.Default(),
		tracer:       tracer.NewNoop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CreateCommand carries a new submission. ProofID is optional; an empty one
// is generated.
type CreateCommand struct {
	ProofID         id.ProofID
	StudentID       id.StudentID
	RequirementHash commitment.Digest
	Payload         models.Groth16Proof
	PublicSignals   []string
}

// Create records a Pending submission. A student without credentials fails
// with CodeNoCredentials and an unpublished hash with
// CodeUnknownRequirement; in both cases nothing is stored. Re-creating an
// existing proof_id for the same student and requirement returns the stored
// submission.
func (g *Gateway) Create(ctx context.Context, cmd CreateCommand) (result *models.ProofSubmission, err error) {
	ctx, span := g.tracer.Start(ctx, tracer.SpanProofCreate,
		tracer.String(tracer.AttrRequirementHash, cmd.RequirementHash.Hex()),
	)
	defer func() { span.End(err) }()

	if err := g.checkPreconditions(ctx, cmd.StudentID, cmd.RequirementHash); err != nil {
		g.metrics.IncPreconditionFailure(string(dErrors.CodeOf(err)))
		return nil, err
	}

	proofID := cmd.ProofID
	if proofID.IsNil() {
		proofID = id.NewProofID()
	}
	span.SetAttributes(tracer.String(tracer.AttrProofID, proofID.String()))

	p := models.NewSubmission(proofID, cmd.StudentID, cmd.RequirementHash, cmd.Payload, cmd.PublicSignals, g.now().UTC())
	if err := g.store.Create(ctx, p); err != nil {
		if !errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store proof submission")
		}
		existing, findErr := g.store.Find(ctx, proofID)
		if findErr != nil {
			return nil, dErrors.Wrap(findErr, dErrors.CodeInternal, "failed to load proof submission")
		}
		if !existing.SameRequest(p) {
			return nil, dErrors.New(dErrors.CodeConflict, fmt.Sprintf("proof %s already exists for another request", proofID))
		}
		return existing, nil
	}

	g.metrics.IncCreated()
	g.auditor.Log(ctx, audit.EventProofSubmitted, proofID.String(), cmd.StudentID.String(), map[string]string{
		"requirement_hash": cmd.RequirementHash.Hex(),
	})
	return p, nil
}

// checkPreconditions runs both lookups concurrently; NoCredentials takes
// precedence over UnknownRequirement.
func (g *Gateway) checkPreconditions(ctx context.Context, studentID id.StudentID, hash commitment.Digest) error {
	var (
		count     int
		published bool
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		n, err := g.credentials.Count(egCtx, studentID)
		count = n
		return err
	})
	eg.Go(func() error {
		ok, err := g.requirements.IsPublished(egCtx, hash)
		published = ok
		return err
	})
	if err := eg.Wait(); err != nil {
		var de *dErrors.Error
		if errors.As(err, &de) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check proof preconditions")
	}

	if count == 0 {
		return dErrors.New(dErrors.CodeNoCredentials, fmt.Sprintf("student %s holds no verifiable credentials", studentID))
	}
	if !published {
		return dErrors.New(dErrors.CodeUnknownRequirement, fmt.Sprintf("requirement %s is not published", hash.Hex()))
	}
	return nil
}

// Verify decides a Pending submission. Calls for the same proof are
// serialized, so at most one token is ever minted per proof. Verifying a
// terminal submission changes nothing and reports AlreadyTerminal. A
// rejection is a result, not an error; errors mean the submission is
// unchanged.
func (g *Gateway) Verify(ctx context.Context, proofID id.ProofID) (outcome *models.VerifyOutcome, err error) {
	start := time.Now()
	ctx, span := g.tracer.Start(ctx, tracer.SpanProofVerify, tracer.String(tracer.AttrProofID, proofID.String()))
	defer func() { span.End(err) }()

	alreadyTerminal := false
	p, err := g.store.Execute(ctx, proofID, func(p *models.ProofSubmission) (bool, error) {
		if p.IsTerminal() {
			alreadyTerminal = true
			return false, nil
		}
		if err := g.decide(ctx, p); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnknownProof, fmt.Sprintf("proof %s not found", proofID))
		}
		var de *dErrors.Error
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify proof")
	}

	span.SetAttributes(
		tracer.Bool(tracer.AttrAlreadyTerminal, alreadyTerminal),
		tracer.String(tracer.AttrOutcome, string(p.Status)),
	)
	if !alreadyTerminal {
		g.recordOutcome(ctx, p, time.Since(start))
		if p.Status == models.StatusVerified {
			span.AddEvent(tracer.EventTokenMinted)
		}
	}
	return &models.VerifyOutcome{Submission: p, AlreadyTerminal: alreadyTerminal}, nil
}

// decide moves a Pending submission to a terminal state. It returns an error
// only when the caller's context ended, leaving the submission Pending.
func (g *Gateway) decide(ctx context.Context, p *models.ProofSubmission) error {
	now := func() time.Time { return g.now().UTC() }

	if err := p.ProofPayload.Validate(); err != nil {
		return p.MarkRejected(models.RejectMalformedPayload, err.Error(), now())
	}
	if !p.BindsRequirement(p.RequirementHash) {
		return p.MarkRejected(models.RejectMalformedPayload, "public signals do not reference the requirement hash", now())
	}

	res, err := g.verifier.Verify(ctx, ports.VerifyRequest{
		ProofID:         p.ProofID,
		Payload:         p.ProofPayload,
		PublicSignals:   p.PublicSignals,
		RequirementHash: p.RequirementHash,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return dErrors.Wrap(ctxErr, dErrors.CodeTimeout, "verification aborted")
		}
		return p.MarkRejected(rejectionKind(err), "proof verification failed: "+err.Error(), now())
	}
	if !res.Valid {
		reason := res.Diagnostic
		if reason == "" {
			reason = "proof rejected by verifier"
		}
		return p.MarkRejected(models.RejectCollaboratorRejected, reason, now())
	}

	tokenRef, err := g.minter.Mint(ctx, ports.MintRequest{
		ProofID:         p.ProofID,
		StudentID:       p.StudentID,
		RequirementHash: p.RequirementHash,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return dErrors.Wrap(ctxErr, dErrors.CodeTimeout, "token minting aborted")
		}
		return p.MarkRejected(rejectionKind(err), "token minting failed: "+err.Error(), now())
	}
	return p.MarkVerified(tokenRef, now())
}

func rejectionKind(err error) models.RejectionKind {
	if dErrors.HasCode(ledger.ToDomainError(err, ""), dErrors.CodeCollaboratorRejected) {
		return models.RejectCollaboratorRejected
	}
	return models.RejectCollaboratorUnavailable
}

func (g *Gateway) recordOutcome(ctx context.Context, p *models.ProofSubmission, elapsed time.Duration) {
	switch p.Status {
	case models.StatusVerified:
		g.metrics.ObserveOutcome(string(p.Status), "", elapsed.Seconds())
		g.logger.InfoContext(ctx, "proof verified",
			"proof_id", p.ProofID,
			"student_id", p.StudentID,
			"token_ref", p.TokenRef,
		)
		g.auditor.Log(ctx, audit.EventProofVerified, p.ProofID.String(), p.StudentID.String(), map[string]string{
			"requirement_hash": p.RequirementHash.Hex(),
			"token_ref":        p.TokenRef,
		})
	case models.StatusRejected:
		g.metrics.ObserveOutcome(string(p.Status), string(p.Rejection.Kind), elapsed.Seconds())
		g.logger.WarnContext(ctx, "proof rejected",
			"proof_id", p.ProofID,
			"student_id", p.StudentID,
			"kind", p.Rejection.Kind,
			"reason", p.Rejection.Reason,
		)
		g.auditor.Log(ctx, audit.EventProofRejected, p.ProofID.String(), p.StudentID.String(), map[string]string{
			"requirement_hash": p.RequirementHash.Hex(),
			"kind":             string(p.Rejection.Kind),
		})
	}
}

// Submit creates the submission and verifies it in one call.
func (g *Gateway) Submit(ctx context.Context, cmd CreateCommand) (*models.VerifyOutcome, error) {
	p, err := g.Create(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return g.Verify(ctx, p.ProofID)
}

func (g *Gateway) Get(ctx context.Context, proofID id.ProofID) (*models.ProofSubmission, error) {
	p, err := g.store.Find(ctx, proofID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnknownProof, fmt.Sprintf("proof %s not found", proofID))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load proof")
	}
	return p, nil
}

// ListByStudent returns the student's submissions in creation order.
func (g *Gateway) ListByStudent(ctx context.Context, studentID id.StudentID) ([]*models.ProofSubmission, error) {
	list, err := g.store.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list proofs")
	}
	return list, nil
}

// Attestation signs an eligibility attestation for a Verified submission.
// Any other state fails with CodeConflict.
func (g *Gateway) Attestation(ctx context.Context, proofID id.ProofID) (*models.Attestation, error) {
	if g.attester == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "attestations are not configured")
	}
	p, err := g.Get(ctx, proofID)
	if err != nil {
		return nil, err
	}
	if p.Status != models.StatusVerified {
		return nil, dErrors.New(dErrors.CodeConflict, fmt.Sprintf("proof %s is %s, not verified", proofID, p.Status))
	}
	att, err := g.attester.Attest(p)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign attestation")
	}
	return att, nil
}
