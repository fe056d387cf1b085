package httptransport

import (
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nexuscred/internal/ratelimit"
	"nexuscred/pkg/platform/middleware/metadata"
	"nexuscred/pkg/platform/middleware/request"
)

const defaultRequestTimeout = 30 * time.Second

// Registrar mounts a bounded context's routes.
type Registrar interface {
	Register(r chi.Router)
}

// RouterConfig carries the cross-cutting pieces of the middleware stack.
type RouterConfig struct {
	Logger         *slog.Logger
	MaxBodyBytes   int64
	RequestTimeout time.Duration
	Latency        *request.Metrics
	// TrustedProxies may set X-Forwarded-For. Empty trusts none.
	TrustedProxies []netip.Prefix
	// RateLimit throttles /api/ routes per client. Nil disables limiting.
	RateLimit *ratelimit.Middleware
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// NewRouter wires the middleware stack and every registrar. Handlers own
// their routes; the router only owns ordering of middleware.
func NewRouter(cfg RouterConfig, registrars ...Registrar) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(logger))
	r.Use(request.RequestID)
	r.Use(metadata.NewMiddleware(metadata.Config{TrustedProxies: cfg.TrustedProxies}).Handler)
	r.Use(request.Logger(logger))
	if cfg.RateLimit != nil {
		r.Use(cfg.RateLimit.Handler)
	}
	r.Use(request.Latency(cfg.Latency))
	r.Use(chimiddleware.Timeout(timeout))
	if cfg.MaxBodyBytes > 0 {
		r.Use(request.BodyLimit(cfg.MaxBodyBytes))
	}
	r.Use(request.ContentTypeJSON)

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	for _, reg := range registrars {
		reg.Register(r)
	}
	return r
}
