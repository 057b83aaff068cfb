package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// initEmbeddingMetrics initializes embedding provider metrics.
func (m *Manager) initEmbeddingMetrics(cfg Config) {
	m.embeddingRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embedding_requests_total",
			Help: "Total number of embedding provider requests by status",
		},
		[]string{"provider", "status"},
	)

	m.embeddingTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embedding_tokens_total",
			Help: "Total number of tokens sent to embedding providers",
		},
		[]string{"provider"},
	)

	m.embeddingCost = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embedding_cost_total",
			Help: "Cumulative embedding spend in provider currency units",
		},
		[]string{"provider"},
	)

	m.repairMemories = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repair_memories_total",
			Help: "Total memories touched by repair passes by outcome",
		},
		[]string{"outcome"},
	)

	m.registry.MustRegister(m.embeddingRequests)
	m.registry.MustRegister(m.embeddingTokens)
	m.registry.MustRegister(m.embeddingCost)
	m.registry.MustRegister(m.repairMemories)
}

// EmbeddingObserved records an embedding provider call and its usage.
func (m *Manager) EmbeddingObserved(provider, status string, tokens int, cost float64) {
	if !m.enabled {
		return
	}
	m.embeddingRequests.WithLabelValues(provider, status).Inc()
	if tokens > 0 {
		m.embeddingTokens.WithLabelValues(provider).Add(float64(tokens))
	}
	if cost > 0 {
		m.embeddingCost.WithLabelValues(provider).Add(cost)
	}
}

// RepairObserved records the outcome of a repair pass.
func (m *Manager) RepairObserved(updated, failed int) {
	if !m.enabled {
		return
	}
	m.repairMemories.WithLabelValues("updated").Add(float64(updated))
	m.repairMemories.WithLabelValues("failed").Add(float64(failed))
}
