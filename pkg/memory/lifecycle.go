package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/memkeep/memkeep/pkg/embedding"
)

// LifecycleConfig tunes embedding workers, retry policy, and repair
// pacing.
type LifecycleConfig struct {
	// Workers is the number of async embedding workers.
	Workers int

	// QueueSize is the async job queue capacity.
	QueueSize int

	// MaxAttempts bounds embedding attempts per call, including
	// rate-limit retries.
	MaxAttempts int

	// RetryDelay is the wait after a rate limit when the provider
	// suggests none.
	RetryDelay time.Duration

	// RepairSpacing is the minimum gap between provider calls during a
	// repair pass.
	RepairSpacing time.Duration

	// MaxInputChars truncates embedding input. Zero disables.
	MaxInputChars int

	// CostPerMillionTokens prices provider usage for the ledger.
	CostPerMillionTokens float64
}

// DefaultLifecycleConfig returns conservative embedding defaults.
func DefaultLifecycleConfig() LifecycleConfig {
	return LifecycleConfig{
		Workers:       2,
		QueueSize:     256,
		MaxAttempts:   3,
		RetryDelay:    time.Second,
		RepairSpacing: 200 * time.Millisecond,
		MaxInputChars: 8000,
	}
}

// RepairSummary reports the outcome of a repair pass.
type RepairSummary struct {
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// usageRecorder records provider usage for the daily ledger.
type usageRecorder interface {
	Record(ctx context.Context, userID, provider string, tokens int, cost float64) error
}

// lifecycleLogger is the subset of the logger the lifecycle needs.
type lifecycleLogger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type embedJob struct {
	memoryID string
	userID   string
}

// Lifecycle owns the embedding state machine: synchronous embedding on
// write, an async worker pool for queued embedding, and the repair
// pass that backfills missing or stale vectors.
type Lifecycle struct {
	cfg      LifecycleConfig
	provider embedding.Provider
	store    Store
	usage    usageRecorder
	logger   lifecycleLogger
	metrics  Observer

	jobCh    chan embedJob
	running  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// repairMu guards repairing; one repair pass per user at a time,
	// and one global pass.
	repairMu  sync.Mutex
	repairing map[string]bool
}

// NewLifecycle creates a lifecycle. usage, logger, and metrics may be
// nil; no-op implementations are substituted.
func NewLifecycle(provider embedding.Provider, store Store, usage usageRecorder, logger lifecycleLogger, metrics Observer, cfg LifecycleConfig) *Lifecycle {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultLifecycleConfig().Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultLifecycleConfig().QueueSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultLifecycleConfig().MaxAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultLifecycleConfig().RetryDelay
	}
	if cfg.RepairSpacing <= 0 {
		cfg.RepairSpacing = DefaultLifecycleConfig().RepairSpacing
	}
	if usage == nil {
		usage = nopUsageRecorder{}
	}
	if logger == nil {
		logger = nopLifecycleLogger{}
	}
	if metrics == nil {
		metrics = NopObserver{}
	}
	return &Lifecycle{
		cfg:       cfg,
		provider:  provider,
		store:     store,
		usage:     usage,
		logger:    logger,
		metrics:   metrics,
		jobCh:     make(chan embedJob, cfg.QueueSize),
		stopCh:    make(chan struct{}),
		repairing: make(map[string]bool),
	}
}

// Start launches the async embedding workers.
func (l *Lifecycle) Start() {
	if l.running.Load() {
		return
	}
	l.running.Store(true)

	for i := 0; i < l.cfg.Workers; i++ {
		l.wg.Add(1)
		go l.worker()
	}
}

// Stop drains the workers. Queued jobs that never ran stay pending and
// are picked up by the next repair pass.
func (l *Lifecycle) Stop() {
	l.stopOnce.Do(func() {
		l.running.Store(false)
		close(l.stopCh)
		l.wg.Wait()
	})
}

// EmbedSync embeds a memory inline, retrying rate limits up to the
// attempt budget. On success the memory carries the vector and the
// ready state; on failure it carries the failed state and the error is
// returned so the caller can report a degraded write. The memory is
// mutated but not persisted.
func (l *Lifecycle) EmbedSync(ctx context.Context, m *Memory) error {
	text := l.sourceText(m)
	if text == "" {
		m.Embedding = nil
		m.EmbeddingState = EmbeddingNone
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= l.cfg.MaxAttempts; attempt++ {
		result, err := l.provider.Embed(ctx, text)
		if err == nil {
			m.Embedding = result.Vector
			m.EmbeddingState = EmbeddingReady
			m.EmbeddingAttempts = 0
			l.observeEmbed(ctx, m.UserID, result)
			return nil
		}
		lastErr = err
		l.metrics.EmbeddingObserved(l.provider.Name(), "error", 0, 0)

		pe, classified := embedding.AsProviderError(err)
		if !classified || pe.Kind != embedding.RateLimited {
			break
		}
		if attempt == l.cfg.MaxAttempts {
			break
		}
		if waitErr := l.wait(ctx, l.retryDelay(pe)); waitErr != nil {
			lastErr = waitErr
			break
		}
	}

	m.Embedding = nil
	m.EmbeddingState = EmbeddingFailed
	m.EmbeddingAttempts++
	return lastErr
}

// Enqueue marks a memory pending and schedules async embedding. The
// pending state must already be persisted by the caller. When the
// queue is full the job is dropped with a warning; repair backfills it.
func (l *Lifecycle) Enqueue(m *Memory) {
	if !l.running.Load() {
		l.logger.Warn("embedding queue stopped, memory left pending", "memory_id", m.ID)
		return
	}

	select {
	case l.jobCh <- embedJob{memoryID: m.ID, userID: m.UserID}:
	default:
		l.logger.Warn("embedding queue full, memory left pending",
			"memory_id", m.ID, "queue_size", l.cfg.QueueSize)
	}
}

// Repair walks memories missing a usable vector and re-embeds them
// sequentially, spacing provider calls to stay under rate limits.
// userID empty repairs all users. One pass per user runs at a time;
// an overlapping request returns ErrRepairInProgress. Individual
// failures are counted, never aborting the pass.
func (l *Lifecycle) Repair(ctx context.Context, userID string) (RepairSummary, error) {
	if !l.acquireRepair(userID) {
		return RepairSummary{}, ErrRepairInProgress
	}
	defer l.releaseRepair(userID)

	memories, err := l.store.ListForRepair(ctx, userID)
	if err != nil {
		return RepairSummary{}, err
	}

	limiter := rate.NewLimiter(rate.Every(l.cfg.RepairSpacing), 1)
	var summary RepairSummary
	for _, m := range memories {
		if !l.needsRepair(m) {
			continue
		}
		if err := limiter.Wait(ctx); err != nil {
			return summary, err
		}

		if err := l.embedAndPersist(ctx, m); err != nil {
			summary.Failed++
			l.logger.Warn("repair embedding failed",
				"memory_id", m.ID, "user_id", m.UserID, "error", err)
			if pe, ok := embedding.AsProviderError(err); ok && pe.Kind == embedding.RateLimited {
				if waitErr := l.wait(ctx, l.retryDelay(pe)); waitErr != nil {
					return summary, waitErr
				}
			}
			continue
		}
		summary.Updated++
	}

	l.metrics.RepairObserved(summary.Updated, summary.Failed)
	l.logger.Debug("repair pass complete",
		"user_id", userID, "updated", summary.Updated, "failed", summary.Failed)
	return summary, nil
}

// needsRepair reports whether a memory lacks a usable vector: pending
// or failed state, or a ready state whose stored vector turned out
// invalid. Memories with no embeddable text are skipped.
func (l *Lifecycle) needsRepair(m *Memory) bool {
	if l.sourceText(m) == "" {
		return false
	}
	if m.EmbeddingState == EmbeddingReady {
		return !embedding.ValidVector(m.Embedding, l.provider.Dims())
	}
	return true
}

// EmbedQuery embeds ad-hoc query text without touching any memory.
func (l *Lifecycle) EmbedQuery(ctx context.Context, userID, text string) ([]float32, error) {
	text = embedding.Truncate(text, l.cfg.MaxInputChars)
	result, err := l.provider.Embed(ctx, text)
	if err != nil {
		l.metrics.EmbeddingObserved(l.provider.Name(), "error", 0, 0)
		return nil, err
	}
	l.observeEmbed(ctx, userID, result)
	return result.Vector, nil
}

// observeEmbed books a successful embed into the ledger and metrics.
// Cache hits cost nothing and are never billed as provider requests.
func (l *Lifecycle) observeEmbed(ctx context.Context, userID string, result embedding.Result) {
	if result.Cached {
		l.metrics.EmbeddingObserved(l.provider.Name(), "cached", 0, 0)
		return
	}
	l.recordUsage(ctx, userID, result.Tokens)
	l.metrics.EmbeddingObserved(l.provider.Name(), "ok", result.Tokens, l.cost(result.Tokens))
}

func (l *Lifecycle) worker() {
	defer l.wg.Done()

	for {
		select {
		case job := <-l.jobCh:
			l.processJob(job)
		case <-l.stopCh:
			return
		}
	}
}

func (l *Lifecycle) processJob(job embedJob) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	m, err := l.store.GetMemory(ctx, job.memoryID, job.userID)
	if err != nil {
		// Deleted before the worker got to it.
		l.logger.Debug("skipping embed job", "memory_id", job.memoryID, "error", err)
		return
	}
	if m.EmbeddingState != EmbeddingPending {
		return
	}

	if err := l.embedAndPersist(ctx, m); err != nil {
		l.logger.Warn("async embedding failed",
			"memory_id", m.ID, "user_id", m.UserID, "error", err)
	}
}

// embedAndPersist embeds a memory and writes only the embedding fields
// back, so a user edit landing while the provider call is in flight is
// never overwritten. Failed embeddings persist the failed state before
// returning the provider error.
func (l *Lifecycle) embedAndPersist(ctx context.Context, m *Memory) error {
	embedErr := l.EmbedSync(ctx, m)
	err := l.store.UpdateEmbedding(ctx, m.ID, m.UserID, m.Embedding, m.EmbeddingState, m.EmbeddingAttempts)
	if err != nil && !errors.Is(err, ErrNotFound) {
		l.logger.Error("persisting embedding state failed",
			"memory_id", m.ID, "error", err)
		if embedErr == nil {
			return err
		}
	}
	return embedErr
}

func (l *Lifecycle) sourceText(m *Memory) string {
	var n Normalizer
	return embedding.Truncate(n.SourceText(m), l.cfg.MaxInputChars)
}

func (l *Lifecycle) recordUsage(ctx context.Context, userID string, tokens int) {
	if err := l.usage.Record(ctx, userID, l.provider.Name(), tokens, l.cost(tokens)); err != nil {
		l.logger.Warn("recording embedding usage failed", "user_id", userID, "error", err)
	}
}

func (l *Lifecycle) cost(tokens int) float64 {
	return float64(tokens) * l.cfg.CostPerMillionTokens / 1e6
}

func (l *Lifecycle) retryDelay(pe *embedding.ProviderError) time.Duration {
	if pe.RetryAfter > 0 {
		return pe.RetryAfter
	}
	return l.cfg.RetryDelay
}

func (l *Lifecycle) wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopCh:
		return ErrEngineStopped
	}
}

// acquireRepair takes the repair permit for a user. A global pass
// (empty user) conflicts with every per-user pass and vice versa.
func (l *Lifecycle) acquireRepair(userID string) bool {
	l.repairMu.Lock()
	defer l.repairMu.Unlock()

	if l.repairing[userID] {
		return false
	}
	if userID == "" && len(l.repairing) > 0 {
		return false
	}
	if userID != "" && l.repairing[""] {
		return false
	}
	l.repairing[userID] = true
	return true
}

func (l *Lifecycle) releaseRepair(userID string) {
	l.repairMu.Lock()
	defer l.repairMu.Unlock()
	delete(l.repairing, userID)
}

type nopUsageRecorder struct{}

func (nopUsageRecorder) Record(context.Context, string, string, int, float64) error { return nil }

type nopLifecycleLogger struct{}

func (nopLifecycleLogger) Debug(string, ...any) {}
func (nopLifecycleLogger) Warn(string, ...any)  {}
func (nopLifecycleLogger) Error(string, ...any) {}
