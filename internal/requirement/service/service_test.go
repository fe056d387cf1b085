package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"nexuscred/internal/requirement/models"
	"nexuscred/internal/requirement/store"
	dErrors "nexuscred/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	store   *store.InMemoryStore
	service *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.New()
	s.service = New(s.store, WithClock(func() time.Time { return time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC) }))
}

func (s *ServiceSuite) TestCommit() {
	req := &models.CommitRequest{
		EmployerID: "google",
		Title:      "SRE",
		Policy:     models.Policy{"gpa_min": models.Float(3.0), "cloud_certified": models.Bool(true)},
	}

	result, err := s.service.Commit(s.ctx, req)
	s.Require().NoError(err)
	s.True(result.Created)
	s.Equal("4497c13af89b65fcf4d5e8ec58db383487201b1d4b44a455c5179ed3df902709", result.CommitmentHash.Hex())

	published, err := s.service.IsPublished(s.ctx, result.CommitmentHash)
	s.Require().NoError(err)
	s.True(published)

	s.Run("recommit is idempotent", func() {
		again, err := s.service.Commit(s.ctx, req)
		s.Require().NoError(err)
		s.False(again.Created)
		s.Equal(result.CommitmentHash, again.CommitmentHash)

		list, err := s.service.ListRequirements(s.ctx, "google")
		s.Require().NoError(err)
		s.Len(list, 1)
	})

	s.Run("other employer may publish the same hash", func() {
		req := *req
		req.EmployerID = "amazon"
		other, err := s.service.Commit(s.ctx, &req)
		s.Require().NoError(err)
		s.True(other.Created)
	})
}

func (s *ServiceSuite) TestCommit_JobDefaults() {
	result, err := s.service.Commit(s.ctx, &models.CommitRequest{
		EmployerID:       "google",
		Policy:           models.Policy{"cloud_certified": models.Bool(false)},
		ApplyJobDefaults: true,
	})
	s.Require().NoError(err)
	s.Equal("5dc032ced4102e2a3ca85d9186e3917d94b74e0cc9ea9b87a4c8726bb7003dcf", result.CommitmentHash.Hex())
}

func (s *ServiceSuite) TestCommit_Rejections() {
	_, err := s.service.Commit(s.ctx, &models.CommitRequest{EmployerID: "google"})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = s.service.Commit(s.ctx, &models.CommitRequest{EmployerID: " ", Policy: models.Policy{"a": models.Int(1)}})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestUnpublishedHash() {
	published, err := s.service.IsPublished(s.ctx, models.Policy{"gpa_min": models.Float(9)}.CommitmentHash())
	s.Require().NoError(err)
	s.False(published)

	list, err := s.service.ListRequirements(s.ctx, "nobody")
	s.Require().NoError(err)
	s.NotNil(list)
	s.Empty(list)
}
