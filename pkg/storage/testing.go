package storage

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/memkeep/memkeep/pkg/memory"
)

// StoreTestSuite runs the persistence contract against any Store
// implementation.
type StoreTestSuite struct {
	NewStore func(t *testing.T) Store
}

// RunAllTests runs every conformance test.
func (s *StoreTestSuite) RunAllTests(t *testing.T) {
	t.Run("MemoryCRUD", s.TestMemoryCRUD)
	t.Run("CrossUserIsolation", s.TestCrossUserIsolation)
	t.Run("ListFilters", s.TestListFilters)
	t.Run("ListPagination", s.TestListPagination)
	t.Run("EmbeddingRoundTrip", s.TestEmbeddingRoundTrip)
	t.Run("IncrementAccess", s.TestIncrementAccess)
	t.Run("UpdateEmbedding", s.TestUpdateEmbedding)
	t.Run("ListForRepair", s.TestListForRepair)
	t.Run("UsageIncrements", s.TestUsageIncrements)
	t.Run("ConcurrentUsage", s.TestConcurrentUsage)
	t.Run("NotFound", s.TestNotFound)
}

// TestFixture builds a minimal valid memory for backend tests.
func (s *StoreTestSuite) TestFixture(id, userID string) *memory.Memory {
	return s.newMemory(id, userID)
}

func (s *StoreTestSuite) newMemory(id, userID string) *memory.Memory {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &memory.Memory{
		ID:         id,
		UserID:     userID,
		Title:      "note " + id,
		Content:    "content of " + id,
		Kind:       memory.KindSemantic,
		Importance: 0.5,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// TestMemoryCRUD covers upsert, get, replace, and delete.
func (s *StoreTestSuite) TestMemoryCRUD(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	m := s.newMemory("m-1", "alice")
	m.Tags = []string{"work", "planning"}
	m.Metadata = map[string]memory.Value{
		"project": memory.StringValue("alpha"),
		"effort":  memory.NumberValue(3),
	}

	if err := store.UpsertMemory(ctx, m); err != nil {
		t.Fatalf("UpsertMemory failed: %v", err)
	}

	got, err := store.GetMemory(ctx, "m-1", "alice")
	if err != nil {
		t.Fatalf("GetMemory failed: %v", err)
	}
	if got.Title != m.Title || got.Content != m.Content || got.Kind != m.Kind {
		t.Errorf("got %+v, want %+v", got, m)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "work" {
		t.Errorf("tags not preserved: %v", got.Tags)
	}
	if v, ok := got.Metadata["project"]; !ok || v.String() != "alpha" {
		t.Errorf("metadata not preserved: %v", got.Metadata)
	}

	got.Content = "revised"
	got.UpdatedAt = time.Now().UTC()
	if err := store.UpsertMemory(ctx, got); err != nil {
		t.Fatalf("UpsertMemory replace failed: %v", err)
	}
	again, err := store.GetMemory(ctx, "m-1", "alice")
	if err != nil {
		t.Fatalf("GetMemory after replace failed: %v", err)
	}
	if again.Content != "revised" {
		t.Errorf("content = %q, want %q", again.Content, "revised")
	}

	if err := store.DeleteMemory(ctx, "m-1", "alice"); err != nil {
		t.Fatalf("DeleteMemory failed: %v", err)
	}
	if _, err := store.GetMemory(ctx, "m-1", "alice"); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("get after delete: err = %v, want ErrNotFound", err)
	}
}

// TestCrossUserIsolation checks another user's memory is
// indistinguishable from a missing one.
func (s *StoreTestSuite) TestCrossUserIsolation(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	if err := store.UpsertMemory(ctx, s.newMemory("m-1", "alice")); err != nil {
		t.Fatalf("UpsertMemory failed: %v", err)
	}

	if _, err := store.GetMemory(ctx, "m-1", "bob"); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("cross-user get: err = %v, want ErrNotFound", err)
	}
	if err := store.DeleteMemory(ctx, "m-1", "bob"); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("cross-user delete: err = %v, want ErrNotFound", err)
	}

	list, err := store.ListMemories(ctx, "bob", memory.ListFilter{})
	if err != nil {
		t.Fatalf("ListMemories failed: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("bob sees %d memories, want 0", len(list))
	}

	// The original is untouched.
	if _, err := store.GetMemory(ctx, "m-1", "alice"); err != nil {
		t.Errorf("owner get after cross-user delete: %v", err)
	}
}

// TestListFilters covers kind, tag, and archived filtering.
func (s *StoreTestSuite) TestListFilters(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	a := s.newMemory("m-1", "alice")
	a.Kind = memory.KindEpisodic
	a.Tags = []string{"work"}

	b := s.newMemory("m-2", "alice")
	b.Kind = memory.KindSemantic
	b.Tags = []string{"work", "planning"}

	c := s.newMemory("m-3", "alice")
	c.Archived = true

	for _, m := range []*memory.Memory{a, b, c} {
		if err := store.UpsertMemory(ctx, m); err != nil {
			t.Fatalf("UpsertMemory failed: %v", err)
		}
	}

	list, err := store.ListMemories(ctx, "alice", memory.ListFilter{})
	if err != nil {
		t.Fatalf("ListMemories failed: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("default list has %d memories, want 2 (archived excluded)", len(list))
	}

	list, err = store.ListMemories(ctx, "alice", memory.ListFilter{IncludeArchived: true})
	if err != nil {
		t.Fatalf("ListMemories failed: %v", err)
	}
	if len(list) != 3 {
		t.Errorf("archived-inclusive list has %d memories, want 3", len(list))
	}

	list, err = store.ListMemories(ctx, "alice", memory.ListFilter{Kind: memory.KindEpisodic})
	if err != nil {
		t.Fatalf("ListMemories failed: %v", err)
	}
	if len(list) != 1 || list[0].ID != "m-1" {
		t.Errorf("kind filter returned %v, want [m-1]", ids(list))
	}

	list, err = store.ListMemories(ctx, "alice", memory.ListFilter{Tags: []string{"work", "planning"}})
	if err != nil {
		t.Fatalf("ListMemories failed: %v", err)
	}
	if len(list) != 1 || list[0].ID != "m-2" {
		t.Errorf("tag filter returned %v, want [m-2]", ids(list))
	}
}

// TestListPagination covers limit and offset over a newest-first
// ordering.
func (s *StoreTestSuite) TestListPagination(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i, id := range []string{"m-1", "m-2", "m-3", "m-4"} {
		m := s.newMemory(id, "alice")
		m.UpdatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := store.UpsertMemory(ctx, m); err != nil {
			t.Fatalf("UpsertMemory failed: %v", err)
		}
	}

	page, err := store.ListMemories(ctx, "alice", memory.ListFilter{Limit: 2})
	if err != nil {
		t.Fatalf("ListMemories failed: %v", err)
	}
	if len(page) != 2 || page[0].ID != "m-4" || page[1].ID != "m-3" {
		t.Errorf("first page = %v, want [m-4 m-3]", ids(page))
	}

	page, err = store.ListMemories(ctx, "alice", memory.ListFilter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("ListMemories failed: %v", err)
	}
	if len(page) != 2 || page[0].ID != "m-2" || page[1].ID != "m-1" {
		t.Errorf("second page = %v, want [m-2 m-1]", ids(page))
	}
}

// TestEmbeddingRoundTrip checks vectors survive persistence.
func (s *StoreTestSuite) TestEmbeddingRoundTrip(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	m := s.newMemory("m-1", "alice")
	m.Embedding = []float32{0.1, -0.25, 0.5, 1}
	m.EmbeddingState = memory.EmbeddingReady

	if err := store.UpsertMemory(ctx, m); err != nil {
		t.Fatalf("UpsertMemory failed: %v", err)
	}

	got, err := store.GetMemory(ctx, "m-1", "alice")
	if err != nil {
		t.Fatalf("GetMemory failed: %v", err)
	}
	if got.EmbeddingState != memory.EmbeddingReady {
		t.Errorf("embedding state = %q, want %q", got.EmbeddingState, memory.EmbeddingReady)
	}
	if len(got.Embedding) != len(m.Embedding) {
		t.Fatalf("embedding length = %d, want %d", len(got.Embedding), len(m.Embedding))
	}
	for i := range m.Embedding {
		if math.Abs(float64(got.Embedding[i]-m.Embedding[i])) > 1e-6 {
			t.Errorf("embedding[%d] = %g, want %g", i, got.Embedding[i], m.Embedding[i])
		}
	}

	// No embedding stays no embedding.
	m2 := s.newMemory("m-2", "alice")
	if err := store.UpsertMemory(ctx, m2); err != nil {
		t.Fatalf("UpsertMemory failed: %v", err)
	}
	got2, err := store.GetMemory(ctx, "m-2", "alice")
	if err != nil {
		t.Fatalf("GetMemory failed: %v", err)
	}
	if got2.Embedding != nil {
		t.Errorf("embedding = %v, want nil", got2.Embedding)
	}
}

// TestIncrementAccess checks the access counter bumps atomically
// without touching other fields, and respects user scoping.
func (s *StoreTestSuite) TestIncrementAccess(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	if err := store.UpsertMemory(ctx, s.newMemory("m-1", "alice")); err != nil {
		t.Fatalf("UpsertMemory failed: %v", err)
	}

	const workers = 10
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.IncrementAccess(ctx, "m-1", "alice"); err != nil {
				t.Errorf("IncrementAccess failed: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := store.GetMemory(ctx, "m-1", "alice")
	if err != nil {
		t.Fatalf("GetMemory failed: %v", err)
	}
	if got.AccessCount != workers {
		t.Errorf("access count = %d, want %d", got.AccessCount, workers)
	}
	if got.Content != "content of m-1" {
		t.Errorf("content changed by access bump: %q", got.Content)
	}

	// Cross-user and missing IDs are silent no-ops.
	if err := store.IncrementAccess(ctx, "m-1", "bob"); err != nil {
		t.Errorf("cross-user IncrementAccess: %v", err)
	}
	if err := store.IncrementAccess(ctx, "missing", "alice"); err != nil {
		t.Errorf("missing IncrementAccess: %v", err)
	}
	got, _ = store.GetMemory(ctx, "m-1", "alice")
	if got.AccessCount != workers {
		t.Errorf("cross-user bump leaked: count = %d", got.AccessCount)
	}
}

// TestUpdateEmbedding checks only the embedding fields change.
func (s *StoreTestSuite) TestUpdateEmbedding(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	m := s.newMemory("m-1", "alice")
	m.EmbeddingState = memory.EmbeddingPending
	if err := store.UpsertMemory(ctx, m); err != nil {
		t.Fatalf("UpsertMemory failed: %v", err)
	}

	// A user edit lands before the embedding write-back.
	edited, err := store.GetMemory(ctx, "m-1", "alice")
	if err != nil {
		t.Fatalf("GetMemory failed: %v", err)
	}
	edited.Content = "edited while embedding"
	if err := store.UpsertMemory(ctx, edited); err != nil {
		t.Fatalf("UpsertMemory failed: %v", err)
	}

	vec := []float32{0.5, -0.5}
	if err := store.UpdateEmbedding(ctx, "m-1", "alice", vec, memory.EmbeddingReady, 0); err != nil {
		t.Fatalf("UpdateEmbedding failed: %v", err)
	}

	got, err := store.GetMemory(ctx, "m-1", "alice")
	if err != nil {
		t.Fatalf("GetMemory failed: %v", err)
	}
	if got.Content != "edited while embedding" {
		t.Errorf("embedding write clobbered content: %q", got.Content)
	}
	if got.EmbeddingState != memory.EmbeddingReady || len(got.Embedding) != 2 {
		t.Errorf("embedding not applied: state=%q dims=%d", got.EmbeddingState, len(got.Embedding))
	}

	// Clearing the vector persists a failed attempt.
	if err := store.UpdateEmbedding(ctx, "m-1", "alice", nil, memory.EmbeddingFailed, 2); err != nil {
		t.Fatalf("UpdateEmbedding failed: %v", err)
	}
	got, _ = store.GetMemory(ctx, "m-1", "alice")
	if got.Embedding != nil || got.EmbeddingState != memory.EmbeddingFailed || got.EmbeddingAttempts != 2 {
		t.Errorf("failed state not persisted: %+v", got)
	}

	if err := store.UpdateEmbedding(ctx, "m-1", "bob", vec, memory.EmbeddingReady, 0); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("cross-user UpdateEmbedding: err = %v, want ErrNotFound", err)
	}
}

// TestListForRepair checks the repair listing spans users and skips
// archived memories.
func (s *StoreTestSuite) TestListForRepair(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	a := s.newMemory("m-1", "alice")
	a.EmbeddingState = memory.EmbeddingFailed
	b := s.newMemory("m-2", "bob")
	b.EmbeddingState = memory.EmbeddingPending
	c := s.newMemory("m-3", "alice")
	c.Archived = true

	for _, m := range []*memory.Memory{a, b, c} {
		if err := store.UpsertMemory(ctx, m); err != nil {
			t.Fatalf("UpsertMemory failed: %v", err)
		}
	}

	all, err := store.ListForRepair(ctx, "")
	if err != nil {
		t.Fatalf("ListForRepair failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("global repair listing has %d memories, want 2", len(all))
	}

	mine, err := store.ListForRepair(ctx, "alice")
	if err != nil {
		t.Fatalf("ListForRepair failed: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != "m-1" {
		t.Errorf("alice repair listing = %v, want [m-1]", ids(mine))
	}
}

// TestUsageIncrements checks ledger rows accumulate per (user,
// provider, day).
func (s *StoreTestSuite) TestUsageIncrements(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	day := "2026-08-31"
	if err := store.AddUsage(ctx, "alice", "openai/test", day, 1, 100, 0.002); err != nil {
		t.Fatalf("AddUsage failed: %v", err)
	}
	if err := store.AddUsage(ctx, "alice", "openai/test", day, 1, 50, 0.001); err != nil {
		t.Fatalf("AddUsage failed: %v", err)
	}
	if err := store.AddUsage(ctx, "alice", "mock", day, 1, 10, 0); err != nil {
		t.Fatalf("AddUsage failed: %v", err)
	}
	if err := store.AddUsage(ctx, "bob", "openai/test", day, 1, 999, 0.02); err != nil {
		t.Fatalf("AddUsage failed: %v", err)
	}

	records, err := store.UsageForDay(ctx, "alice", day)
	if err != nil {
		t.Fatalf("UsageForDay failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	for _, r := range records {
		switch r.Provider {
		case "openai/test":
			if r.Requests != 2 || r.Tokens != 150 {
				t.Errorf("openai row = %+v, want 2 requests / 150 tokens", r.Totals)
			}
			if math.Abs(r.Cost-0.003) > 1e-9 {
				t.Errorf("openai cost = %g, want 0.003", r.Cost)
			}
		case "mock":
			if r.Requests != 1 || r.Tokens != 10 {
				t.Errorf("mock row = %+v, want 1 request / 10 tokens", r.Totals)
			}
		default:
			t.Errorf("unexpected provider %q", r.Provider)
		}
	}

	// A day with no rows is empty, not an error.
	empty, err := store.UsageForDay(ctx, "alice", "2026-01-01")
	if err != nil {
		t.Fatalf("UsageForDay failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("idle day has %d records, want 0", len(empty))
	}
}

// TestConcurrentUsage checks increments under concurrency all count.
func (s *StoreTestSuite) TestConcurrentUsage(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	const workers = 20
	day := "2026-08-31"

	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.AddUsage(ctx, "alice", "mock", day, 1, 5, 0); err != nil {
				errCh <- err
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("AddUsage failed: %v", err)
	}

	records, err := store.UsageForDay(ctx, "alice", day)
	if err != nil {
		t.Fatalf("UsageForDay failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Requests != workers || records[0].Tokens != workers*5 {
		t.Errorf("totals = %+v, want %d requests / %d tokens", records[0].Totals, workers, workers*5)
	}
}

// TestNotFound covers missing-memory errors.
func (s *StoreTestSuite) TestNotFound(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	if _, err := store.GetMemory(ctx, "missing", "alice"); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("get missing: err = %v, want ErrNotFound", err)
	}
	if err := store.DeleteMemory(ctx, "missing", "alice"); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("delete missing: err = %v, want ErrNotFound", err)
	}
}

func ids(memories []*memory.Memory) []string {
	out := make([]string, len(memories))
	for i, m := range memories {
		out[i] = m.ID
	}
	return out
}
