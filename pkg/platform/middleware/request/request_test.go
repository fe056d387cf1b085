package request

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexuscred/pkg/requestcontext"
)

func TestRequestID(t *testing.T) {
	t.Run("generates UUID when no header provided", func(t *testing.T) {
		var capturedID string
		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			capturedID = requestcontext.RequestID(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/proofs/prf_1", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Len(t, capturedID, 36)
		assert.Equal(t, capturedID, w.Header().Get("X-Request-ID"))
	})

	t.Run("accepts valid client-provided ID", func(t *testing.T) {
		var capturedID string
		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			capturedID = requestcontext.RequestID(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/proofs/prf_1", nil)
		req.Header.Set("X-Request-ID", "trace.span_1234")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, "trace.span_1234", capturedID)
	})

	t.Run("replaces unsafe IDs", func(t *testing.T) {
		for _, id := range []string{
			strings.Repeat("a", MaxRequestIDLength+1),
			"valid\ninjected-log-line",
			"request id",
			`request"id`,
			"request\x00id",
		} {
			handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("X-Request-ID", id)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			got := w.Header().Get("X-Request-ID")
			assert.NotEqual(t, id, got)
			assert.Len(t, got, 36)
		}
	})

	t.Run("empty when middleware not installed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		assert.Equal(t, "", requestcontext.RequestID(req.Context()))
	})
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/batches", nil)
	w := httptest.NewRecorder()
	require.NotPanics(t, func() { handler.ServeHTTP(w, req) })

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal_error"}`, w.Body.String())
	assert.Contains(t, buf.String(), "panic recovered")
}

func TestContentTypeJSON(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodPost, "/api/proofs", strings.NewReader("x=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	ContentTypeJSON(ok).ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/proofs", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	w = httptest.NewRecorder()
	ContentTypeJSON(ok).ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestLatency_UsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWith(reg)

	r := chi.NewRouter()
	r.Use(Latency(m))
	r.Get("/api/batches/{batchID}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "batchID") == "missing" {
			w.WriteHeader(http.StatusNotFound)
		}
	})

	for _, id := range []string{"bat_1", "bat_2"} {
		req := httptest.NewRequest(http.MethodGet, "/api/batches/"+id, nil)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, 1, testutil.CollectAndCount(m.RequestDuration))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/batches/missing", nil))
	assert.Equal(t, 2, testutil.CollectAndCount(m.RequestDuration))
}

func TestLogger_AnonymizesClient(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/proofs", nil)
	req = req.WithContext(requestcontext.WithClientIP(req.Context(), "198.51.100.23"))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Contains(t, buf.String(), `"client_net":"198.51.100.0"`)
	assert.Contains(t, buf.String(), `"status":202`)
	assert.NotContains(t, buf.String(), "198.51.100.23")
}
