package request

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the HTTP request histogram.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec
}

// NewMetricsWith registers on reg. Tests pass a fresh registry.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nexuscred_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status class",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route", "status"}),
	}
}

// Observe records one request; status is reduced to its class (2xx, 4xx, ...).
func (m *Metrics) Observe(method, route string, status int, d time.Duration) {
	m.RequestDuration.WithLabelValues(method, route, strconv.Itoa(status/100)+"xx").Observe(d.Seconds())
}
