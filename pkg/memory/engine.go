package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// EmbeddingMode selects how a write obtains its vector.
type EmbeddingMode string

const (
	// EmbedSync embeds inline before the write returns.
	EmbedSync EmbeddingMode = "sync"
	// EmbedAsync persists first and embeds in the background.
	EmbedAsync EmbeddingMode = "async"
	// EmbedNone skips embedding entirely.
	EmbedNone EmbeddingMode = "none"
)

// ParseEmbeddingMode validates a mode name. Empty selects sync.
func ParseEmbeddingMode(s string) (EmbeddingMode, error) {
	switch EmbeddingMode(s) {
	case "":
		return EmbedSync, nil
	case EmbedSync, EmbedAsync, EmbedNone:
		return EmbeddingMode(s), nil
	default:
		return "", validationErr("embedding_mode", "unknown embedding mode %q", s)
	}
}

// WriteStatus reports the embedding outcome of a write.
type WriteStatus string

const (
	// WriteEmbedded means the memory was stored with a fresh vector.
	WriteEmbedded WriteStatus = "embedded"
	// WritePending means the memory was stored and embedding is queued.
	WritePending WriteStatus = "pending"
	// WriteSkipped means embedding was not requested.
	WriteSkipped WriteStatus = "skipped"
	// WriteDegraded means the memory was stored but embedding failed;
	// a repair pass will retry.
	WriteDegraded WriteStatus = "degraded"
)

// AddOptions configures a new memory.
type AddOptions struct {
	Title      string
	Kind       Kind
	Importance float64
	Tags       []string
	Metadata   map[string]Value
	Mode       EmbeddingMode
}

// UpdateOptions carries a partial update. Nil fields are left
// untouched.
type UpdateOptions struct {
	Title      *string
	Content    *string
	Kind       *Kind
	Importance *float64
	Tags       []string
	Metadata   map[string]Value
	Mode       EmbeddingMode
}

// WriteResult is the outcome of an add or update.
type WriteResult struct {
	Memory *Memory     `json:"memory"`
	Status WriteStatus `json:"status"`

	// EmbeddingError describes why a degraded write could not embed.
	EmbeddingError string `json:"embedding_error,omitempty"`
}

// RecallOptions configures a recall query. Threshold nil means the
// configured similarity cutoff; an explicit zero keeps every
// non-negative score.
type RecallOptions struct {
	Strategy  Strategy
	Limit     int
	Threshold *float64
	Kind      Kind
	Tags      []string
}

// RecallResult is a ranked recall response.
type RecallResult struct {
	Memories []ScoredMemory `json:"memories"`
	Strategy Strategy       `json:"strategy"`

	// Degraded means vector ranking was requested but unavailable and
	// lexical ranking served instead.
	Degraded       bool   `json:"degraded,omitempty"`
	DegradedReason string `json:"degraded_reason,omitempty"`
}

// engineLogger is the subset of the logger the engine needs.
type engineLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Engine is the recall engine: it validates writes, drives the
// embedding lifecycle, and ranks recall queries.
type Engine struct {
	store      Store
	lifecycle  *Lifecycle
	normalizer *Normalizer
	logger     engineLogger
	metrics    Observer

	scorerMu sync.RWMutex
	scorer   *Scorer

	defaultLimit int
	stopped      atomic.Bool
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithEngineLogger sets the engine logger.
func WithEngineLogger(l engineLogger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithEngineObserver sets the metrics observer.
func WithEngineObserver(o Observer) EngineOption {
	return func(e *Engine) { e.metrics = o }
}

// WithDefaultLimit sets the recall result cap used when a request
// names none.
func WithDefaultLimit(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.defaultLimit = n
		}
	}
}

// NewEngine assembles an engine around a store, a lifecycle, and a
// scorer config.
func NewEngine(store Store, lifecycle *Lifecycle, cfg ScorerConfig, opts ...EngineOption) *Engine {
	normalizer := NewNormalizer()
	e := &Engine{
		store:        store,
		lifecycle:    lifecycle,
		normalizer:   normalizer,
		scorer:       NewScorer(cfg, normalizer, NewSimilarityEngine(lifecycle.provider.Dims())),
		logger:       nopEngineLogger{},
		metrics:      NopObserver{},
		defaultLimit: 20,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start launches background embedding workers.
func (e *Engine) Start() { e.lifecycle.Start() }

// Stop drains background workers. Further writes and recalls fail
// with ErrEngineStopped.
func (e *Engine) Stop() {
	e.stopped.Store(true)
	e.lifecycle.Stop()
}

// Healthy reports whether the engine is accepting requests.
func (e *Engine) Healthy() bool {
	return !e.stopped.Load()
}

// SetScorerConfig swaps the ranking weights in place. In-flight
// recalls finish with the scorer they started with.
func (e *Engine) SetScorerConfig(cfg ScorerConfig) {
	scorer := NewScorer(cfg, e.normalizer, NewSimilarityEngine(e.lifecycle.provider.Dims()))
	e.scorerMu.Lock()
	e.scorer = scorer
	e.scorerMu.Unlock()
}

func (e *Engine) currentScorer() *Scorer {
	e.scorerMu.RLock()
	defer e.scorerMu.RUnlock()
	return e.scorer
}

// AddMemory validates and stores a new memory, embedding it per the
// requested mode. A sync embedding failure still persists the memory
// and reports a degraded status rather than failing the write.
func (e *Engine) AddMemory(ctx context.Context, userID, content string, opts AddOptions) (*WriteResult, error) {
	if e.stopped.Load() {
		return nil, ErrEngineStopped
	}
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, validationErr("content", "content must not be empty")
	}

	kind := opts.Kind
	if kind == "" {
		kind = KindSemantic
	}
	if !ValidKinds[kind] {
		return nil, validationErr("kind", "unknown memory kind %q", kind)
	}
	if opts.Importance < 0 || opts.Importance > 1 {
		return nil, validationErr("importance", "importance must be in [0, 1], got %g", opts.Importance)
	}
	mode, err := ParseEmbeddingMode(string(opts.Mode))
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	m := &Memory{
		ID:         uuid.NewString(),
		UserID:     userID,
		Title:      strings.TrimSpace(opts.Title),
		Content:    content,
		Kind:       kind,
		Importance: opts.Importance,
		Tags:       normalizeTags(opts.Tags),
		Metadata:   opts.Metadata,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	return e.persistWithEmbedding(ctx, m, mode)
}

// GetMemory fetches a memory without touching its access count.
func (e *Engine) GetMemory(ctx context.Context, userID, id string) (*Memory, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	return e.store.GetMemory(ctx, id, userID)
}

// ListMemories lists a user's memories, newest first.
func (e *Engine) ListMemories(ctx context.Context, userID string, filter ListFilter) ([]*Memory, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	if filter.Kind != "" && !ValidKinds[filter.Kind] {
		return nil, validationErr("kind", "unknown memory kind %q", filter.Kind)
	}
	return e.store.ListMemories(ctx, userID, filter)
}

// UpdateMemory applies a partial update. Changing title, content, or
// tags invalidates the stored vector and re-embeds per the requested
// mode; metadata and importance changes keep it.
func (e *Engine) UpdateMemory(ctx context.Context, userID, id string, opts UpdateOptions) (*WriteResult, error) {
	if e.stopped.Load() {
		return nil, ErrEngineStopped
	}
	if err := validateUserID(userID); err != nil {
		return nil, err
	}

	m, err := e.store.GetMemory(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	textChanged := false
	if opts.Title != nil && *opts.Title != m.Title {
		m.Title = strings.TrimSpace(*opts.Title)
		textChanged = true
	}
	if opts.Content != nil {
		if strings.TrimSpace(*opts.Content) == "" {
			return nil, validationErr("content", "content must not be empty")
		}
		if *opts.Content != m.Content {
			m.Content = *opts.Content
			textChanged = true
		}
	}
	if opts.Tags != nil {
		tags := normalizeTags(opts.Tags)
		if !slices.Equal(tags, m.Tags) {
			m.Tags = tags
			textChanged = true
		}
	}
	if opts.Kind != nil {
		if !ValidKinds[*opts.Kind] {
			return nil, validationErr("kind", "unknown memory kind %q", *opts.Kind)
		}
		m.Kind = *opts.Kind
	}
	if opts.Importance != nil {
		if *opts.Importance < 0 || *opts.Importance > 1 {
			return nil, validationErr("importance", "importance must be in [0, 1], got %g", *opts.Importance)
		}
		m.Importance = *opts.Importance
	}
	if opts.Metadata != nil {
		m.Metadata = opts.Metadata
	}

	m.UpdatedAt = time.Now().UTC()

	if !textChanged {
		if err := e.store.UpsertMemory(ctx, m); err != nil {
			return nil, err
		}
		return &WriteResult{Memory: m, Status: WriteSkipped}, nil
	}

	mode, err := ParseEmbeddingMode(string(opts.Mode))
	if err != nil {
		return nil, err
	}
	return e.persistWithEmbedding(ctx, m, mode)
}

// DeleteMemory removes a memory permanently.
func (e *Engine) DeleteMemory(ctx context.Context, userID, id string) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	return e.store.DeleteMemory(ctx, id, userID)
}

// ArchiveMemory soft-deletes a memory: it keeps its data but drops out
// of recall and listings.
func (e *Engine) ArchiveMemory(ctx context.Context, userID, id string) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	m, err := e.store.GetMemory(ctx, id, userID)
	if err != nil {
		return err
	}
	if m.Archived {
		return nil
	}
	m.Archived = true
	m.UpdatedAt = time.Now().UTC()
	return e.store.UpsertMemory(ctx, m)
}

// Recall ranks the user's memories against a query. An empty query
// returns an empty result. When a vector strategy cannot reach the
// embedding provider the result degrades to lexical ranking and says
// so instead of failing.
func (e *Engine) Recall(ctx context.Context, userID, query string, opts RecallOptions) (*RecallResult, error) {
	if e.stopped.Load() {
		return nil, ErrEngineStopped
	}
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	strategy, err := ParseStrategy(string(opts.Strategy))
	if err != nil {
		return nil, err
	}
	if opts.Kind != "" && !ValidKinds[opts.Kind] {
		return nil, validationErr("kind", "unknown memory kind %q", opts.Kind)
	}
	scorer := e.currentScorer()
	threshold := scorer.Threshold()
	if opts.Threshold != nil {
		if *opts.Threshold < -1 || *opts.Threshold > 1 {
			return nil, validationErr("threshold", "threshold must be in [-1, 1], got %g", *opts.Threshold)
		}
		threshold = *opts.Threshold
	}

	started := time.Now()
	parsed := e.normalizer.ParseQuery(query)
	if parsed.IsEmpty() {
		e.metrics.RecallObserved(string(strategy), "empty", time.Since(started).Seconds())
		return &RecallResult{Memories: []ScoredMemory{}, Strategy: strategy}, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = e.defaultLimit
	}

	memories, err := e.store.ListMemories(ctx, userID, ListFilter{Kind: opts.Kind, Tags: opts.Tags})
	if err != nil {
		e.metrics.RecallObserved(string(strategy), "error", time.Since(started).Seconds())
		return nil, err
	}

	var queryVec []float32
	var degradedReason string
	if e.wantsVector(strategy, parsed) {
		queryVec, err = e.lifecycle.EmbedQuery(ctx, userID, query)
		if err != nil {
			degradedReason = err.Error()
			e.logger.Warn("query embedding failed, degrading to lexical recall",
				"user_id", userID, "strategy", strategy, "error", err)
		}
	}

	results, degraded := scorer.Rank(memories, parsed, queryVec, strategy, threshold, time.Now().UTC(), limit)
	if results == nil {
		results = []ScoredMemory{}
	}
	if !degraded {
		degradedReason = ""
	} else if degradedReason == "" {
		degradedReason = "embedding unavailable"
	}

	e.boostAccess(ctx, results)

	status := "ok"
	if degraded {
		status = "degraded"
	}
	e.metrics.RecallObserved(string(strategy), status, time.Since(started).Seconds())

	return &RecallResult{
		Memories:       results,
		Strategy:       strategy,
		Degraded:       degraded,
		DegradedReason: degradedReason,
	}, nil
}

// RepairEmbeddings runs a repair pass for one user, or every user when
// userID is empty.
func (e *Engine) RepairEmbeddings(ctx context.Context, userID string) (RepairSummary, error) {
	if e.stopped.Load() {
		return RepairSummary{}, ErrEngineStopped
	}
	return e.lifecycle.Repair(ctx, userID)
}

// Stats summarizes a user's memories.
func (e *Engine) Stats(ctx context.Context, userID string) (*Stats, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}

	memories, err := e.store.ListMemories(ctx, userID, ListFilter{IncludeArchived: true})
	if err != nil {
		return nil, err
	}

	stats := &Stats{ByKind: make(map[Kind]int)}
	var importanceSum float64
	for _, m := range memories {
		stats.Total++
		stats.ByKind[m.Kind]++
		importanceSum += m.Importance
		if m.Archived {
			stats.Archived++
			continue
		}
		if m.EmbeddingState == EmbeddingReady {
			stats.Embedded++
		} else {
			stats.MissingEmbedding++
		}
	}
	if stats.Total > 0 {
		stats.AvgImportance = importanceSum / float64(stats.Total)
	}
	return stats, nil
}

// persistWithEmbedding stores the memory after driving the requested
// embedding mode.
func (e *Engine) persistWithEmbedding(ctx context.Context, m *Memory, mode EmbeddingMode) (*WriteResult, error) {
	switch mode {
	case EmbedNone:
		m.Embedding = nil
		m.EmbeddingState = EmbeddingNone
		if err := e.store.UpsertMemory(ctx, m); err != nil {
			return nil, err
		}
		return &WriteResult{Memory: m, Status: WriteSkipped}, nil

	case EmbedAsync:
		m.Embedding = nil
		m.EmbeddingState = EmbeddingPending
		if err := e.store.UpsertMemory(ctx, m); err != nil {
			return nil, err
		}
		e.lifecycle.Enqueue(m)
		return &WriteResult{Memory: m, Status: WritePending}, nil

	default: // sync
		embedErr := e.lifecycle.EmbedSync(ctx, m)
		if err := e.store.UpsertMemory(ctx, m); err != nil {
			return nil, err
		}
		if embedErr != nil {
			e.logger.Warn("memory stored without embedding",
				"memory_id", m.ID, "user_id", m.UserID, "error", embedErr)
			return &WriteResult{
				Memory:         m,
				Status:         WriteDegraded,
				EmbeddingError: embedErr.Error(),
			}, nil
		}
		return &WriteResult{Memory: m, Status: WriteEmbedded}, nil
	}
}

// wantsVector reports whether the strategy needs a query embedding.
// Field queries never do.
func (e *Engine) wantsVector(strategy Strategy, parsed ParsedQuery) bool {
	if parsed.IsFieldQuery() {
		return false
	}
	return strategy == StrategySimilarity || strategy == StrategyComposite
}

// boostAccess bumps access counts for recalled memories. The store
// increments atomically so a recall never clobbers a concurrent write.
// Failures only warn; recall results are already in hand.
func (e *Engine) boostAccess(ctx context.Context, results []ScoredMemory) {
	for _, r := range results {
		r.Memory.AccessCount++
		if err := e.store.IncrementAccess(ctx, r.Memory.ID, r.Memory.UserID); err != nil {
			e.logger.Warn("updating access count failed", "memory_id", r.Memory.ID, "error", err)
		}
	}
}

func validateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidUserID
	}
	return nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

type nopEngineLogger struct{}

func (nopEngineLogger) Debug(string, ...any) {}
func (nopEngineLogger) Info(string, ...any)  {}
func (nopEngineLogger) Warn(string, ...any)  {}
