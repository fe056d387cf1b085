// Package service is the read side of the credential store: holder listings,
// summaries, and inclusion checks for presented credentials.
package service

import (
	"context"
	"log/slog"

	"nexuscred/internal/vc/models"
	"nexuscred/pkg/commitment"
	id "nexuscred/pkg/domain"
	dErrors "nexuscred/pkg/domain-errors"
)

// Store is the read contract of the credential store.
type Store interface {
	ListByStudent(ctx context.Context, studentID id.StudentID) ([]*models.VerifiableCredential, error)
	CountByStudent(ctx context.Context, studentID id.StudentID) (int, error)
}

// AnchorLookup resolves a Merkle root to the anchored batch that committed it.
// ok is false when no anchored batch carries root.
type AnchorLookup interface {
	AnchoredBatchByRoot(ctx context.Context, root commitment.Digest) (batchID id.BatchID, ok bool, err error)
}

const (
	reasonPathMismatch = "merkle path does not reproduce merkle_root"
	reasonNotAnchored  = "merkle_root is not an anchored batch commitment"
)

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// Service answers holder-facing credential queries.
type Service struct {
	store   Store
	anchors AnchorLookup
	logger  *slog.Logger
}

func New(store Store, anchors AnchorLookup, opts ...Option) *Service {
	s := &Service{store: store, anchors: anchors, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the student's credentials in issuance order. A student that
// was never issued anything gets an empty slice.
func (s *Service) List(ctx context.Context, studentID id.StudentID) ([]*models.VerifiableCredential, error) {
	vcs, err := s.store.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list credentials")
	}
	if vcs == nil {
		vcs = []*models.VerifiableCredential{}
	}
	return vcs, nil
}

// Count returns how many credentials the student holds.
func (s *Service) Count(ctx context.Context, studentID id.StudentID) (int, error) {
	n, err := s.store.CountByStudent(ctx, studentID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count credentials")
	}
	return n, nil
}

// HolderSummary fails with CodeUnknownStudent when the student holds nothing.
func (s *Service) HolderSummary(ctx context.Context, studentID id.StudentID) (*models.HolderSummary, error) {
	vcs, err := s.List(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if len(vcs) == 0 {
		return nil, dErrors.New(dErrors.CodeUnknownStudent, "no credentials issued to student")
	}

	seen := make(map[id.IssuerID]struct{})
	summary := &models.HolderSummary{StudentID: studentID, CredentialCount: len(vcs), Issuers: []id.IssuerID{}}
	for _, vc := range vcs {
		if _, ok := seen[vc.IssuerID]; ok {
			continue
		}
		seen[vc.IssuerID] = struct{}{}
		summary.Issuers = append(summary.Issuers, vc.IssuerID)
	}
	return summary, nil
}

// VerifyCredential recomputes the root from the credential's data and path and
// checks that the root was anchored.
func (s *Service) VerifyCredential(ctx context.Context, vc *models.VerifiableCredential) (*models.Verification, error) {
	if vc == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "credential is required")
	}
	if !vc.VerifyInclusion() {
		return &models.Verification{Valid: false, Reason: reasonPathMismatch}, nil
	}

	batchID, ok, err := s.anchors.AnchoredBatchByRoot(ctx, vc.MerkleRoot)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve merkle root")
	}
	if !ok {
		return &models.Verification{Valid: false, Reason: reasonNotAnchored}, nil
	}

	s.logger.DebugContext(ctx, "credential inclusion verified",
		"student_id", vc.StudentID,
		"batch_id", batchID,
	)
	return &models.Verification{Valid: true, BatchID: batchID}, nil
}
