package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexuscred/internal/ledger"
	"nexuscred/internal/proof/models"
	"nexuscred/internal/proof/service"
	"nexuscred/internal/proof/store"
	"nexuscred/pkg/commitment"
	id "nexuscred/pkg/domain"
)

type holders map[id.StudentID]int

func (h holders) Count(_ context.Context, studentID id.StudentID) (int, error) {
	return h[studentID], nil
}

type published commitment.Digest

func (p published) IsPublished(_ context.Context, hash commitment.Digest) (bool, error) {
	return hash == commitment.Digest(p), nil
}

var requirement = commitment.HashField(`{"gpa_min": 3.0}`)

func newTestRouter() http.Handler {
	gw := service.New(store.New(), holders{"alice": 2}, published(requirement),
		ledger.NewSimulatedVerifier(), ledger.NewSimulatedMinter())
	r := chi.NewRouter()
	New(gw, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r
}

func proofBody(proofID, student string, signal string) string {
	return fmt.Sprintf(`{
		"proof_id": %q,
		"student_id": %q,
		"requirement_hash": %q,
		"proof_payload": {"scheme":"groth16","pi_a":["1","2","1"],"pi_b":[["1","0"],["0","1"],["1","0"]],"pi_c":["3","4","1"]},
		"public_signals": [%q]
	}`, proofID, student, requirement.Hex(), signal)
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, path, reader))
	return rec
}

func TestHandler_CreateThenVerify(t *testing.T) {
	router := newTestRouter()

	rec := do(router, http.MethodPost, "/api/proofs", proofBody("prf_a", "alice", requirement.Hex()))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"pending"`)

	rec = do(router, http.MethodPost, "/api/proofs/prf_a/verify", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var outcome models.VerifyOutcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	assert.Equal(t, models.StatusVerified, outcome.Submission.Status)
	assert.Equal(t, "sbt_prf_a", outcome.Submission.TokenRef)

	rec = do(router, http.MethodGet, "/api/proofs/prf_a", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"verified"`)

	rec = do(router, http.MethodGet, "/api/students/alice/proofs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list ProofList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Proofs, 1)
}

func TestHandler_SubmitRejectsUnboundSignals(t *testing.T) {
	router := newTestRouter()

	rec := do(router, http.MethodPost, "/api/proofs/verify", proofBody("", "alice", "7"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"rejected"`)
	assert.Contains(t, rec.Body.String(), `"kind":"malformed_payload"`)
	assert.NotContains(t, rec.Body.String(), `"token_ref"`)
}

func TestHandler_Errors(t *testing.T) {
	router := newTestRouter()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"no credentials", http.MethodPost, "/api/proofs", proofBody("", "bob", requirement.Hex()), http.StatusUnprocessableEntity, "no_credentials"},
		{"bad hash", http.MethodPost, "/api/proofs", `{"student_id":"alice","requirement_hash":"zz"}`, http.StatusBadRequest, "validation_error"},
		{"unknown proof", http.MethodGet, "/api/proofs/prf_none", "", http.StatusNotFound, "unknown_proof"},
		{"verify unknown proof", http.MethodPost, "/api/proofs/prf_none/verify", "", http.StatusNotFound, "unknown_proof"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(router, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error":"`+tt.code+`"`)
		})
	}
}

func TestHandler_AttestationNotConfigured(t *testing.T) {
	router := newTestRouter()
	require.Equal(t, http.StatusCreated, do(router, http.MethodPost, "/api/proofs", proofBody("prf_b", "alice", requirement.Hex())).Code)

	rec := do(router, http.MethodGet, "/api/proofs/prf_b/attestation", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
