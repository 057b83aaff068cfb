package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
)

// MockProvider is a deterministic in-process provider for tests and
// local development. Identical text always yields the identical
// vector. Errors can be queued to simulate provider failures.
type MockProvider struct {
	dims int
	name string

	mu     sync.Mutex
	errs   []error
	calls  int
	tokens int
}

// NewMockProvider creates a mock with the given dimensionality.
func NewMockProvider(dims int) *MockProvider {
	return &MockProvider{dims: dims, name: "mock"}
}

// FailNext queues errors returned by subsequent Embed calls, in order,
// before deterministic embedding resumes.
func (p *MockProvider) FailNext(errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs = append(p.errs, errs...)
}

// Calls returns how many times Embed ran.
func (p *MockProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *MockProvider) Embed(ctx context.Context, text string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, &ProviderError{Kind: NetworkFailure, Provider: p.name, Message: "context done", Err: err}
	}

	p.mu.Lock()
	p.calls++
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		p.mu.Unlock()
		return Result{}, err
	}
	p.mu.Unlock()

	// Seed a hash from the text and expand it into a unit vector so
	// similar is only ever exactly equal.
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, p.dims)
	var norm float64
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		v := float64(int64(seed>>11))/float64(1<<52) - 1
		vec[i] = float32(v)
		norm += v * v
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}

	return Result{Vector: vec, Tokens: EstimateTokens(text)}, nil
}

func (p *MockProvider) Dims() int { return p.dims }

func (p *MockProvider) Name() string { return p.name }
