package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the outbox worker.
type Metrics struct {
	PendingDepth    prometheus.Gauge
	PublishedTotal  prometheus.Counter
	PublishFailures prometheus.Counter
	PublishDuration prometheus.Histogram
	BatchSize       prometheus.Histogram
}

// New registers on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PendingDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "nexuscred_outbox_pending_total",
			Help: "Current number of unrelayed outbox entries",
		}),
		PublishedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "nexuscred_outbox_published_total",
			Help: "Outbox entries relayed to Kafka",
		}),
		PublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "nexuscred_outbox_publish_failures_total",
			Help: "Outbox fetch or relay failures",
		}),
		PublishDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "nexuscred_outbox_publish_duration_seconds",
			Help:    "Time taken to relay one outbox entry",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		BatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "nexuscred_outbox_batch_size",
			Help:    "Entries fetched per poll",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),
	}
}

func (m *Metrics) SetPendingDepth(count int64) {
	if m != nil {
		m.PendingDepth.Set(float64(count))
	}
}

func (m *Metrics) IncPublished() {
	if m != nil {
		m.PublishedTotal.Inc()
	}
}

func (m *Metrics) IncPublishFailures() {
	if m != nil {
		m.PublishFailures.Inc()
	}
}

func (m *Metrics) ObservePublishDuration(seconds float64) {
	if m != nil {
		m.PublishDuration.Observe(seconds)
	}
}

func (m *Metrics) ObserveBatchSize(size int) {
	if m != nil {
		m.BatchSize.Observe(float64(size))
	}
}
