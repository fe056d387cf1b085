// Package health serves liveness, readiness and status probes.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"nexuscred/pkg/platform/httputil"
)

// Version is set at build time via ldflags.
var Version = "dev"

// CheckFunc returns nil when the dependency is reachable.
type CheckFunc func(ctx context.Context) error

const checkTimeout = 2 * time.Second

type check struct {
	fn CheckFunc
	// optional dependencies degrade the service instead of taking it out of rotation
	optional bool
}

type Handler struct {
	started     time.Time
	environment string

	mu     sync.RWMutex
	checks map[string]check
}

func New(environment string) *Handler {
	return &Handler{
		started:     time.Now(),
		environment: environment,
		checks:      make(map[string]check),
	}
}

// RegisterCheck adds a dependency the service cannot run without.
func (h *Handler) RegisterCheck(name string, fn CheckFunc) {
	h.register(name, check{fn: fn})
}

// RegisterOptional adds a dependency whose failure only degrades the service,
// such as a cache in front of the store.
func (h *Handler) RegisterOptional(name string, fn CheckFunc) {
	h.register(name, check{fn: fn, optional: true})
}

func (h *Handler) register(name string, c check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = c
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.HandleStatus)
	r.Get("/health/live", h.HandleLiveness)
	r.Get("/health/ready", h.HandleReadiness)
}

type LivenessResponse struct {
	Status string `json:"status"`
}

func (h *Handler) HandleLiveness(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, LivenessResponse{Status: "alive"})
}

// ReadinessResponse reports ready, degraded (an optional check failed) or
// not_ready (a required check failed).
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HandleReadiness runs every check concurrently under one timeout.
func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	checks := make([]check, 0, len(h.checks))
	for name, c := range h.checks {
		names = append(names, name)
		checks = append(checks, c)
	}
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	errs := make([]error, len(checks))
	var g errgroup.Group
	for i, c := range checks {
		g.Go(func() error {
			errs[i] = c.fn(ctx)
			return nil
		})
	}
	_ = g.Wait()

	resp := ReadinessResponse{Status: "ready", Checks: make(map[string]string, len(checks))}
	for i, err := range errs {
		if err == nil {
			resp.Checks[names[i]] = "up"
			continue
		}
		resp.Checks[names[i]] = "down: " + err.Error()
		switch {
		case !checks[i].optional:
			resp.Status = "not_ready"
		case resp.Status == "ready":
			resp.Status = "degraded"
		}
	}

	status := http.StatusOK
	if resp.Status == "not_ready" {
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, resp)
}

type StatusResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Environment   string `json:"environment"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Timestamp     string `json:"timestamp"`
}

func (h *Handler) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{
		Status:        "healthy",
		Version:       Version,
		Environment:   h.environment,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	})
}
