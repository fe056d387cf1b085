package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for batch issuance.
type Metrics struct {
	BatchesCommitted   prometheus.Counter
	BatchesAnchored    prometheus.Counter
	AnchorFailures     *prometheus.CounterVec
	CredentialsEmitted prometheus.Counter
	FraudScore         prometheus.Histogram
	BatchSize          prometheus.Histogram
	AnchorDuration     prometheus.Histogram
}

// New registers on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		BatchesCommitted: f.NewCounter(prometheus.CounterOpts{
			Name: "nexuscred_batches_committed_total",
			Help: "Batch commitments created",
		}),
		BatchesAnchored: f.NewCounter(prometheus.CounterOpts{
			Name: "nexuscred_batches_anchored_total",
			Help: "Batches confirmed by the ledger",
		}),
		AnchorFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nexuscred_anchor_failures_total",
			Help: "Anchor attempts that left the batch created, by error code",
		}, []string{"code"}),
		CredentialsEmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "nexuscred_credentials_emitted_total",
			Help: "Verifiable credentials emitted from anchored batches",
		}),
		FraudScore: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "nexuscred_batch_fraud_score",
			Help:    "Fraud score assigned at commit",
			Buckets: []float64{0, 0.05, 0.1, 0.2, 0.3, 0.4, 0.5, 0.75, 1},
		}),
		BatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "nexuscred_batch_size",
			Help:    "Credentials per committed batch",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
		AnchorDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "nexuscred_anchor_duration_seconds",
			Help:    "Time taken to anchor a batch including the ledger call",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

func (m *Metrics) ObserveCommit(size int, score float64) {
	if m == nil {
		return
	}
	m.BatchesCommitted.Inc()
	m.BatchSize.Observe(float64(size))
	m.FraudScore.Observe(score)
}

func (m *Metrics) ObserveAnchored(emitted int, seconds float64) {
	if m == nil {
		return
	}
	m.BatchesAnchored.Inc()
	m.CredentialsEmitted.Add(float64(emitted))
	m.AnchorDuration.Observe(seconds)
}

func (m *Metrics) IncAnchorFailure(code string) {
	if m != nil {
		m.AnchorFailures.WithLabelValues(code).Inc()
	}
}
