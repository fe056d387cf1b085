package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts limiter decisions.
type Metrics struct {
	Rejected *prometheus.CounterVec
	Errors   prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Rejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nexuscred_rate_limit_rejections_total",
			Help: "Requests refused with 429 by endpoint class",
		}, []string{"class"}),
		Errors: f.NewCounter(prometheus.CounterOpts{
			Name: "nexuscred_rate_limit_errors_total",
			Help: "Limiter store failures; the request was let through",
		}),
	}
}

func (m *Metrics) incRejected(class Class) {
	if m != nil {
		m.Rejected.WithLabelValues(string(class)).Inc()
	}
}

func (m *Metrics) incError() {
	if m != nil {
		m.Errors.Inc()
	}
}
