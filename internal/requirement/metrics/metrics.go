package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for requirement commitments.
type Metrics struct {
	RequirementsCommitted prometheus.Counter
	CacheHits             prometheus.Counter
	CacheMisses           prometheus.Counter
	CacheErrors           prometheus.Counter
	LookupDuration        prometheus.Histogram
}

// New registers on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequirementsCommitted: f.NewCounter(prometheus.CounterOpts{
			Name: "nexuscred_requirements_committed_total",
			Help: "New requirement commitments published",
		}),
		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "nexuscred_requirement_cache_hits_total",
			Help: "Published-requirement lookups served from cache",
		}),
		CacheMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "nexuscred_requirement_cache_misses_total",
			Help: "Published-requirement lookups that fell through to the store",
		}),
		CacheErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "nexuscred_requirement_cache_errors_total",
			Help: "Cache operations that failed and were bypassed",
		}),
		LookupDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "nexuscred_requirement_lookup_duration_seconds",
			Help:    "Published-requirement lookup latency",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
	}
}

func (m *Metrics) IncCommitted() {
	if m != nil {
		m.RequirementsCommitted.Inc()
	}
}

func (m *Metrics) ObserveLookup(hit bool, seconds float64) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.Inc()
	} else {
		m.CacheMisses.Inc()
	}
	m.LookupDuration.Observe(seconds)
}

func (m *Metrics) IncCacheError() {
	if m != nil {
		m.CacheErrors.Inc()
	}
}
