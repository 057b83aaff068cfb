package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// initRecallMetrics initializes recall-related metrics.
func (m *Manager) initRecallMetrics(cfg Config) {
	m.recallRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recall_requests_total",
			Help: "Total number of recall requests by strategy and status",
		},
		[]string{"strategy", "status"},
	)

	m.recallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recall_duration_seconds",
			Help:    "Recall request duration in seconds",
			Buckets: cfg.RecallDurationBuckets,
		},
		[]string{"strategy"},
	)

	m.registry.MustRegister(m.recallRequests)
	m.registry.MustRegister(m.recallDuration)
}

// RecallObserved records a completed recall request.
func (m *Manager) RecallObserved(strategy, status string, seconds float64) {
	if !m.enabled {
		return
	}
	m.recallRequests.WithLabelValues(strategy, status).Inc()
	m.recallDuration.WithLabelValues(strategy).Observe(seconds)
}
