package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the proof gateway.
type Metrics struct {
	ProofsCreated   prometheus.Counter
	Outcomes        *prometheus.CounterVec
	TokensMinted    prometheus.Counter
	VerifyDuration  prometheus.Histogram
	PreconditionErr *prometheus.CounterVec
}

// New registers on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ProofsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "nexuscred_proofs_created_total",
			Help: "Proof submissions that entered pending",
		}),
		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nexuscred_proof_outcomes_total",
			Help: "Terminal proof transitions by status and rejection kind",
		}, []string{"status", "kind"}),
		TokensMinted: f.NewCounter(prometheus.CounterOpts{
			Name: "nexuscred_tokens_minted_total",
			Help: "Eligibility tokens minted for verified proofs",
		}),
		VerifyDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "nexuscred_proof_verify_duration_seconds",
			Help:    "Time from verify start to terminal state, collaborator calls included",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		PreconditionErr: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nexuscred_proof_precondition_failures_total",
			Help: "Create calls refused before a submission existed, by error code",
		}, []string{"code"}),
	}
}

func (m *Metrics) IncCreated() {
	if m != nil {
		m.ProofsCreated.Inc()
	}
}

// ObserveOutcome records a terminal transition. kind is empty for verified.
func (m *Metrics) ObserveOutcome(status, kind string, seconds float64) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(status, kind).Inc()
	m.VerifyDuration.Observe(seconds)
	if status == "verified" {
		m.TokensMinted.Inc()
	}
}

func (m *Metrics) IncPreconditionFailure(code string) {
	if m != nil {
		m.PreconditionErr.WithLabelValues(code).Inc()
	}
}
