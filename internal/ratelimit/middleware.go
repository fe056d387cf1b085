package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	dErrors "nexuscred/pkg/domain-errors"
	"nexuscred/pkg/platform/httputil"
	"nexuscred/pkg/platform/privacy"
	"nexuscred/pkg/requestcontext"
)

// APIPrefix scopes limiting to the public API; health and metrics are exempt.
const APIPrefix = "/api/"

// Middleware enforces the limiter on every API request, keyed by the
// client IP resolved upstream by the metadata middleware.
type Middleware struct {
	limiter *Limiter
	logger  *slog.Logger
	metrics *Metrics
}

func NewMiddleware(limiter *Limiter, logger *slog.Logger, metrics *Metrics) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{limiter: limiter, logger: logger, metrics: metrics}
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, APIPrefix) {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		ip := requestcontext.ClientIP(ctx)
		class := ClassOf(r.Method)

		result, err := m.limiter.Check(ctx, ip, class)
		if err != nil {
			// fail open
			m.metrics.incError()
			m.logger.ErrorContext(ctx, "rate limit check failed",
				"error", err,
				"client_net", privacy.AnonymizeIP(ip),
				"request_id", requestcontext.RequestID(ctx),
			)
			next.ServeHTTP(w, r)
			return
		}
		if result.Limit > 0 {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
		}
		if !result.Allowed {
			m.metrics.incRejected(class)
			m.logger.WarnContext(ctx, "rate limit exceeded",
				"class", class,
				"client_net", privacy.AnonymizeIP(ip),
				"request_id", requestcontext.RequestID(ctx),
			)
			w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
			httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests, retry later"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
