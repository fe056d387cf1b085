package httputil

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "nexuscred/pkg/domain-errors"
)

type anchorRequest struct {
	BatchID string `json:"batch_id"`
	Count   int    `json:"count"`
}

type issuerRequest struct {
	IssuerID   string `json:"issuer_id"`
	normalized bool
}

func (r *issuerRequest) Normalize() {
	r.IssuerID = strings.TrimSpace(r.IssuerID)
	r.normalized = true
}

func (r *issuerRequest) Validate() error {
	if r.IssuerID == "" {
		return errors.New("issuer_id is required")
	}
	return nil
}

type proofLookup struct {
	ProofID string `json:"proof_id"`
}

func (r *proofLookup) Validate() error {
	if r.ProofID == "" {
		return dErrors.New(dErrors.CodeBadRequest, "proof_id is required")
	}
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDecodeJSON(t *testing.T) {
	logger := discardLogger()

	t.Run("successful decode", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"batch_id":"bat_1","count":2}`))
		w := httptest.NewRecorder()

		result, ok := DecodeJSON[anchorRequest](w, req, logger)

		assert.True(t, ok)
		require.NotNil(t, result)
		assert.Equal(t, "bat_1", result.BatchID)
		assert.Equal(t, 2, result.Count)
	})

	t.Run("invalid JSON returns bad_request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{invalid json}`))
		w := httptest.NewRecorder()

		result, ok := DecodeJSON[anchorRequest](w, req, logger)

		assert.False(t, ok)
		assert.Nil(t, result)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		var errResp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
		assert.Equal(t, "bad_request", errResp.Error)
	})

	t.Run("empty body is reported", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(""))
		w := httptest.NewRecorder()

		_, ok := DecodeJSON[anchorRequest](w, req, logger)

		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "request body is empty")
	})
}

func TestDecodeAndPrepare(t *testing.T) {
	logger := discardLogger()

	t.Run("normalizes before validating", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"issuer_id":"  mit  "}`))
		w := httptest.NewRecorder()

		result, ok := DecodeAndPrepare[issuerRequest](w, req, logger)

		require.True(t, ok)
		assert.True(t, result.normalized)
		assert.Equal(t, "mit", result.IssuerID)
	})

	t.Run("plain validation error becomes validation_error", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"issuer_id":"   "}`))
		w := httptest.NewRecorder()

		result, ok := DecodeAndPrepare[issuerRequest](w, req, logger)

		assert.False(t, ok)
		assert.Nil(t, result)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		var errResp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
		assert.Equal(t, "validation_error", errResp.Error)
		assert.Contains(t, errResp.Description, "issuer_id is required")
	})

	t.Run("domain error code is preserved", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"proof_id":""}`))
		w := httptest.NewRecorder()

		_, ok := DecodeAndPrepare[proofLookup](w, req, logger)

		assert.False(t, ok)
		var errResp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
		assert.Equal(t, "bad_request", errResp.Error)
	})

	t.Run("types without hooks pass through", func(t *testing.T) {
		assert.NoError(t, PrepareRequest(&anchorRequest{}))
	})
}
