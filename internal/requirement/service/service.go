// Package service publishes blind requirement commitments. Only the hash of
// a policy and its descriptive metadata are retained.
package service

import (
	"context"
	"log/slog"
	"time"

	"nexuscred/internal/platform/tracer"
	"nexuscred/internal/requirement/metrics"
	"nexuscred/internal/requirement/models"
	"nexuscred/pkg/commitment"
	id "nexuscred/pkg/domain"
	dErrors "nexuscred/pkg/domain-errors"
	"nexuscred/pkg/platform/audit"
)

// Store persists requirement commitments.
type Store interface {
	Save(ctx context.Context, rc *models.RequirementCommitment) (bool, error)
	ListByEmployer(ctx context.Context, employerID id.EmployerID) ([]*models.RequirementCommitment, error)
	IsPublished(ctx context.Context, hash commitment.Digest) (bool, error)
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

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

type Service struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  tracer.Tracer
	auditor *audit.Logger
	now     func() time.Time
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
		tracer: tracer.NewNoop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Commit hashes the request policy and publishes the commitment for the
// employer. Committing the same policy twice returns the original record.
func (s *Service) Commit(ctx context.Context, req *models.CommitRequest) (result *models.CommitResult, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanRequirementHash)
	defer func() { span.End(err) }()

	employerID, err := id.ParseEmployerID(req.EmployerID)
	if err != nil {
		return nil, err
	}
	policy := req.Policy
	if len(policy) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "policy must contain at least one threshold")
	}
	if err := policy.Validate(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, err.Error())
	}
	if req.ApplyJobDefaults {
		policy = policy.WithJobDefaults()
	}

	hash := policy.CommitmentHash()
	span.SetAttributes(tracer.String(tracer.AttrRequirementHash, hash.Hex()))

	rc := &models.RequirementCommitment{
		EmployerID:     employerID,
		CommitmentHash: hash,
		Title:          req.Title,
		Description:    req.Description,
		CreatedAt:      s.now().UTC(),
	}
	created, err := s.store.Save(ctx, rc)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to publish requirement")
	}
	if !created {
		existing, err := s.find(ctx, employerID, hash)
		if err != nil {
			return nil, err
		}
		return &models.CommitResult{CommitmentHash: hash, Requirement: existing}, nil
	}

	s.metrics.IncCommitted()
	s.auditor.Log(ctx, audit.EventRequirementCommitted, hash.Hex(), employerID.String(), map[string]string{
		"title": rc.Title,
	})
	return &models.CommitResult{CommitmentHash: hash, Requirement: rc, Created: true}, nil
}

func (s *Service) find(ctx context.Context, employerID id.EmployerID, hash commitment.Digest) (*models.RequirementCommitment, error) {
	list, err := s.store.ListByEmployer(ctx, employerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load requirement")
	}
	for _, rc := range list {
		if rc.CommitmentHash == hash {
			return rc, nil
		}
	}
	return nil, dErrors.New(dErrors.CodeInternal, "requirement vanished after publication")
}

// ListRequirements returns the employer's published commitments. Policy
// values are never part of the result.
func (s *Service) ListRequirements(ctx context.Context, employerID id.EmployerID) ([]*models.RequirementCommitment, error) {
	list, err := s.store.ListByEmployer(ctx, employerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list requirements")
	}
	return list, nil
}

// IsPublished reports whether any employer has published hash.
func (s *Service) IsPublished(ctx context.Context, hash commitment.Digest) (bool, error) {
	ok, err := s.store.IsPublished(ctx, hash)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to check requirement publication", "requirement_hash", hash.Hex(), "error", err)
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check requirement")
	}
	return ok, nil
}
