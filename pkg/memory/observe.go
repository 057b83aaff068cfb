package memory

// Observer receives engine events for metrics collection. The metrics
// package implements it; NopObserver keeps the engine usable without
// instrumentation.
type Observer interface {
	// RecallObserved records a completed recall request.
	RecallObserved(strategy, status string, seconds float64)

	// EmbeddingObserved records a provider call and its usage.
	EmbeddingObserved(provider, status string, tokens int, cost float64)

	// RepairObserved records the outcome of a repair pass.
	RepairObserved(updated, failed int)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) RecallObserved(string, string, float64)         {}
func (NopObserver) EmbeddingObserved(string, string, int, float64) {}
func (NopObserver) RepairObserved(int, int)                        {}
