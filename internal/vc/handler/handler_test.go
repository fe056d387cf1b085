package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexuscred/internal/vc/models"
	id "nexuscred/pkg/domain"
	dErrors "nexuscred/pkg/domain-errors"
)

type stubService struct {
	vcs      map[id.StudentID][]*models.VerifiableCredential
	verified *models.VerifiableCredential
}

func (s *stubService) List(_ context.Context, studentID id.StudentID) ([]*models.VerifiableCredential, error) {
	if v := s.vcs[studentID]; v != nil {
		return v, nil
	}
	return []*models.VerifiableCredential{}, nil
}

func (s *stubService) HolderSummary(_ context.Context, studentID id.StudentID) (*models.HolderSummary, error) {
	if len(s.vcs[studentID]) == 0 {
		return nil, dErrors.New(dErrors.CodeUnknownStudent, "no credentials issued to student")
	}
	return &models.HolderSummary{StudentID: studentID, CredentialCount: len(s.vcs[studentID])}, nil
}

func (s *stubService) VerifyCredential(_ context.Context, vc *models.VerifiableCredential) (*models.Verification, error) {
	s.verified = vc
	return &models.Verification{Valid: true, BatchID: vc.BatchID}, nil
}

func newRouter(svc Service) http.Handler {
	r := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r
}

func TestHandler_List(t *testing.T) {
	svc := &stubService{vcs: map[id.StudentID][]*models.VerifiableCredential{
		"alice": {{StudentID: "alice", BatchID: "bat_1"}},
	}}
	router := newRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/students/alice/credentials", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body CredentialList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, id.BatchID("bat_1"), body.Credentials[0].BatchID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/students/carol/credentials", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"credentials":[]`)
}

func TestHandler_SummaryUnknownStudent(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(&stubService{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/students/carol", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"unknown_student"`)
}

func TestHandler_Verify(t *testing.T) {
	svc := &stubService{}
	router := newRouter(svc)

	t.Run("missing credential is a validation failure", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/credentials/verify", strings.NewReader(`{}`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Nil(t, svc.verified)
	})

	t.Run("forwards the decoded credential", func(t *testing.T) {
		body := `{"credential":{"student_id":"alice","batch_id":"bat_9","merkle_root":"` + strings.Repeat("00", 32) + `","merkle_path":[]}}`
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/credentials/verify", strings.NewReader(body)))
		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, svc.verified)
		assert.Equal(t, id.StudentID("alice"), svc.verified.StudentID)
		assert.JSONEq(t, `{"valid":true,"batch_id":"bat_9"}`, rec.Body.String())
	})
}
