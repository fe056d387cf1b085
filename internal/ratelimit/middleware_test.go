package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"nexuscred/pkg/requestcontext"
)

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int, time.Duration) (*Result, error) {
	return nil, errors.New("connection refused")
}

func serve(h http.Handler, method, path, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req = req.WithContext(requestcontext.WithClientIP(req.Context(), ip))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	t.Run("rejects over quota", func(t *testing.T) {
		metrics := NewMetrics(prometheus.NewRegistry())
		limiter := NewLimiter(NewInMemoryStore(), map[Class]Policy{ClassWrite: {Limit: 2, Window: time.Minute}})
		h := NewMiddleware(limiter, logger, metrics).Handler(ok)

		rec := serve(h, http.MethodPost, "/api/proofs", "203.0.113.9")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))

		serve(h, http.MethodPost, "/api/proofs", "203.0.113.9")
		rec = serve(h, http.MethodPost, "/api/proofs", "203.0.113.9")
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Contains(t, rec.Body.String(), "rate_limited")
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))
		assert.InDelta(t, 1, testutil.ToFloat64(metrics.Rejected.WithLabelValues("write")), 0)

		rec = serve(h, http.MethodPost, "/api/proofs", "203.0.113.10")
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("paths outside the api are exempt", func(t *testing.T) {
		limiter := NewLimiter(NewInMemoryStore(), map[Class]Policy{ClassRead: {Limit: 1, Window: time.Minute}})
		h := NewMiddleware(limiter, logger, nil).Handler(ok)
		for range 3 {
			rec := serve(h, http.MethodGet, "/health", "203.0.113.9")
			assert.Equal(t, http.StatusNoContent, rec.Code)
			assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
		}
	})

	t.Run("store failure lets the request through", func(t *testing.T) {
		metrics := NewMetrics(prometheus.NewRegistry())
		limiter := NewLimiter(failingStore{}, map[Class]Policy{ClassWrite: {Limit: 1, Window: time.Minute}})
		h := NewMiddleware(limiter, logger, metrics).Handler(ok)

		rec := serve(h, http.MethodPost, "/api/batches", "203.0.113.9")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.InDelta(t, 1, testutil.ToFloat64(metrics.Errors), 0)
	})
}
