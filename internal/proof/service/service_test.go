package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"nexuscred/internal/ledger"
	"nexuscred/internal/proof/models"
	"nexuscred/internal/proof/ports"
	"nexuscred/internal/proof/ports/mocks"
	"nexuscred/internal/proof/store"
	"nexuscred/pkg/commitment"
	id "nexuscred/pkg/domain"
	dErrors "nexuscred/pkg/domain-errors"
	"nexuscred/pkg/testutil"
)

var fixedNow = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

type credentialCounts map[id.StudentID]int

func (c credentialCounts) Count(_ context.Context, studentID id.StudentID) (int, error) {
	return c[studentID], nil
}

type registry map[commitment.Digest]bool

func (r registry) IsPublished(_ context.Context, hash commitment.Digest) (bool, error) {
	return r[hash], nil
}

type stubAttester struct{}

func (stubAttester) Attest(p *models.ProofSubmission) (*models.Attestation, error) {
	return &models.Attestation{ProofID: p.ProofID, Token: "signed." + p.TokenRef, ExpiresAt: fixedNow.Add(time.Hour)}, nil
}

type GatewaySuite struct {
	suite.Suite
	ctx      context.Context
	ctrl     *gomock.Controller
	verifier *mocks.MockVerifier
	minter   *mocks.MockTokenMinter
	store    *store.InMemoryStore
	gateway  *Gateway

	requirement commitment.Digest
}

func TestGatewaySuite(t *testing.T) {
	suite.Run(t, new(GatewaySuite))
}

func (s *GatewaySuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.verifier = mocks.NewMockVerifier(s.ctrl)
	s.minter = mocks.NewMockTokenMinter(s.ctrl)
	s.store = store.New()
	s.requirement = commitment.HashField(`{"cloud_certified": true, "gpa_min": 3.0}`)

	s.gateway = New(s.store,
		credentialCounts{"alice": 1},
		registry{s.requirement: true},
		s.verifier, s.minter,
		WithClock(func() time.Time { return fixedNow }),
		WithAttester(stubAttester{}),
	)
}

func (s *GatewaySuite) TearDownTest() {
	s.ctrl.Finish()
}

func validPayload() models.Groth16Proof {
	return models.Groth16Proof{
		Scheme: models.SchemeGroth16,
		PiA:    []string{"1", "2", "1"},
		PiB:    [][]string{{"1", "0"}, {"0", "1"}, {"1", "0"}},
		PiC:    []string{"3", "4", "1"},
	}
}

func (s *GatewaySuite) command(proofID id.ProofID) CreateCommand {
	return CreateCommand{
		ProofID:         proofID,
		StudentID:       "alice",
		RequirementHash: s.requirement,
		Payload:         validPayload(),
		PublicSignals:   []string{s.requirement.Hex()},
	}
}

func (s *GatewaySuite) create(proofID id.ProofID) *models.ProofSubmission {
	p, err := s.gateway.Create(s.ctx, s.command(proofID))
	s.Require().NoError(err)
	return p
}

func (s *GatewaySuite) expectValid() {
	s.verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).Return(&ports.VerifyResult{Valid: true}, nil)
}

func (s *GatewaySuite) TestCreate() {
	p := s.create("")
	s.Equal(models.StatusPending, p.Status)
	s.NotEmpty(p.ProofID)
	s.Equal(fixedNow, p.CreatedAt)
	s.Empty(p.TokenRef)
}

func (s *GatewaySuite) TestCreate_Preconditions() {
	s.Run("student without credentials", func() {
		cmd := s.command("prf_bob")
		cmd.StudentID = "bob"
		_, err := s.gateway.Create(s.ctx, cmd)
		s.True(dErrors.HasCode(err, dErrors.CodeNoCredentials))

		list, err := s.gateway.ListByStudent(s.ctx, "bob")
		s.Require().NoError(err)
		s.Empty(list)
	})

	s.Run("no credentials wins over unknown requirement", func() {
		cmd := s.command("prf_bob")
		cmd.StudentID = "bob"
		cmd.RequirementHash = commitment.HashField("unpublished")
		_, err := s.gateway.Create(s.ctx, cmd)
		s.True(dErrors.HasCode(err, dErrors.CodeNoCredentials))
	})

	s.Run("unpublished requirement", func() {
		cmd := s.command("prf_x")
		cmd.RequirementHash = commitment.HashField("unpublished")
		_, err := s.gateway.Create(s.ctx, cmd)
		s.True(dErrors.HasCode(err, dErrors.CodeUnknownRequirement))

		_, err = s.gateway.Get(s.ctx, "prf_x")
		s.True(dErrors.HasCode(err, dErrors.CodeUnknownProof))
	})
}

func (s *GatewaySuite) TestCreate_ClientProofID() {
	first := s.create("prf_client")

	again, err := s.gateway.Create(s.ctx, s.command("prf_client"))
	s.Require().NoError(err)
	s.Equal(first.CreatedAt, again.CreatedAt)

	other := s.command("prf_client")
	other.RequirementHash = commitment.HashField("other")
	gw := New(s.store, credentialCounts{"alice": 1}, registry{other.RequirementHash: true}, s.verifier, s.minter)
	_, err = gw.Create(s.ctx, other)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *GatewaySuite) TestVerify_Success() {
	p := s.create("prf_1")
	s.verifier.EXPECT().Verify(gomock.Any(), ports.VerifyRequest{
		ProofID:         "prf_1",
		Payload:         validPayload(),
		PublicSignals:   []string{s.requirement.Hex()},
		RequirementHash: s.requirement,
	}).Return(&ports.VerifyResult{Valid: true}, nil)
	s.minter.EXPECT().Mint(gomock.Any(), ports.MintRequest{
		ProofID:         "prf_1",
		StudentID:       "alice",
		RequirementHash: s.requirement,
	}).Return("sbt_1", nil)

	outcome, err := s.gateway.Verify(s.ctx, p.ProofID)
	s.Require().NoError(err)
	s.False(outcome.AlreadyTerminal)
	s.Equal(models.StatusVerified, outcome.Submission.Status)
	s.Equal("sbt_1", outcome.Submission.TokenRef)
	s.Require().NotNil(outcome.Submission.VerifiedAt)
	s.Equal(fixedNow, *outcome.Submission.VerifiedAt)

	s.Run("terminal submissions are not re-verified", func() {
		again, err := s.gateway.Verify(s.ctx, p.ProofID)
		s.Require().NoError(err)
		s.True(again.AlreadyTerminal)
		s.Equal("sbt_1", again.Submission.TokenRef)
	})

	s.Run("attestation", func() {
		att, err := s.gateway.Attestation(s.ctx, p.ProofID)
		s.Require().NoError(err)
		s.Equal("signed.sbt_1", att.Token)
	})
}

func (s *GatewaySuite) TestVerify_Rejections() {
	tests := []struct {
		name   string
		mutate func(*CreateCommand)
		setup  func()
		kind   models.RejectionKind
		reason string
	}{
		{
			name:   "malformed payload",
			mutate: func(c *CreateCommand) { c.Payload.PiA = []string{"1"} },
			kind:   models.RejectMalformedPayload,
		},
		{
			name:   "signals do not bind the requirement",
			mutate: func(c *CreateCommand) { c.PublicSignals = []string{"42"} },
			kind:   models.RejectMalformedPayload,
			reason: "public signals do not reference the requirement hash",
		},
		{
			name: "verifier says invalid",
			setup: func() {
				s.verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).
					Return(&ports.VerifyResult{Valid: false, Diagnostic: "pairing check failed"}, nil)
			},
			kind:   models.RejectCollaboratorRejected,
			reason: "pairing check failed",
		},
		{
			name: "verifier unavailable",
			setup: func() {
				s.verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).
					Return(nil, ledger.NewCollaboratorError(ledger.CategoryOutage, "verifier", "status 503", nil))
			},
			kind: models.RejectCollaboratorUnavailable,
		},
		{
			name: "minting refused",
			setup: func() {
				s.expectValid()
				s.minter.EXPECT().Mint(gomock.Any(), gomock.Any()).
					Return("", ledger.NewCollaboratorError(ledger.CategoryRejected, "minter", "status 409", nil))
			},
			kind: models.RejectCollaboratorRejected,
		},
	}
	for i, tt := range tests {
		s.Run(tt.name, func() {
			cmd := s.command(id.ProofID("prf_rej_" + string(rune('a'+i))))
			if tt.mutate != nil {
				tt.mutate(&cmd)
			}
			if tt.setup != nil {
				tt.setup()
			}
			p, err := s.gateway.Create(s.ctx, cmd)
			s.Require().NoError(err)

			outcome, err := s.gateway.Verify(s.ctx, p.ProofID)
			s.Require().NoError(err)
			got := outcome.Submission
			s.Equal(models.StatusRejected, got.Status)
			s.Require().NotNil(got.Rejection)
			s.Equal(tt.kind, got.Rejection.Kind)
			if tt.reason != "" {
				s.Equal(tt.reason, got.Rejection.Reason)
			}
			s.Empty(got.TokenRef)
			s.Nil(got.VerifiedAt)

			_, err = s.gateway.Attestation(s.ctx, p.ProofID)
			s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		})
	}
}

func (s *GatewaySuite) TestVerify_CallerCancellationLeavesPending() {
	p := s.create("prf_cancel")
	ctx, cancel := context.WithCancel(s.ctx)
	s.verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ ports.VerifyRequest) (*ports.VerifyResult, error) {
			cancel()
			return nil, ledger.NewCollaboratorError(ledger.CategoryTimeout, "verifier", "cancelled", ctx.Err())
		})

	_, err := s.gateway.Verify(ctx, p.ProofID)
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))

	stored, err := s.gateway.Get(s.ctx, p.ProofID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, stored.Status)
}

func (s *GatewaySuite) TestVerify_UnknownProof() {
	_, err := s.gateway.Verify(s.ctx, "prf_missing")
	s.True(dErrors.HasCode(err, dErrors.CodeUnknownProof))
}

func (s *GatewaySuite) TestVerify_ConcurrentCallsMintOnce() {
	p := s.create("prf_race")
	s.expectValid()
	s.minter.EXPECT().Mint(gomock.Any(), gomock.Any()).Return("sbt_race", nil).Times(1)

	var decided atomic.Int32
	result := testutil.RunConcurrent(20, func(int) error {
		outcome, err := s.gateway.Verify(s.ctx, p.ProofID)
		if err != nil {
			return err
		}
		if !outcome.AlreadyTerminal {
			decided.Add(1)
		}
		return nil
	})

	s.Equal(int32(20), result.Successes)
	s.Equal(int32(1), decided.Load())
}

func (s *GatewaySuite) TestSubmit() {
	s.expectValid()
	s.minter.EXPECT().Mint(gomock.Any(), gomock.Any()).Return("sbt_submit", nil)

	outcome, err := s.gateway.Submit(s.ctx, s.command(""))
	s.Require().NoError(err)
	s.Equal(models.StatusVerified, outcome.Submission.Status)

	list, err := s.gateway.ListByStudent(s.ctx, "alice")
	s.Require().NoError(err)
	s.Len(list, 1)
}

func (s *GatewaySuite) TestAttestation_Pending() {
	p := s.create("prf_pending")
	_, err := s.gateway.Attestation(s.ctx, p.ProofID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}
