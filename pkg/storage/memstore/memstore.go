// Package memstore is an in-memory persistence backend for tests and
// local development. Data is lost on restart.
package memstore

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/memkeep/memkeep/pkg/memory"
	"github.com/memkeep/memkeep/pkg/usage"
)

type usageKey struct {
	userID   string
	provider string
	day      string
}

// Store implements storage.Store on maps.
type Store struct {
	mu       sync.RWMutex
	memories map[string]*memory.Memory
	ledger   map[usageKey]usage.Totals
}

// New creates an empty store.
func New() *Store {
	return &Store{
		memories: make(map[string]*memory.Memory),
		ledger:   make(map[usageKey]usage.Totals),
	}
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func (s *Store) GetMemory(ctx context.Context, id, userID string) (*memory.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.memories[id]
	if !ok || m.UserID != userID {
		return nil, memory.ErrNotFound
	}
	return m.Clone(), nil
}

func (s *Store) ListMemories(ctx context.Context, userID string, filter memory.ListFilter) ([]*memory.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*memory.Memory
	for _, m := range s.memories {
		if m.UserID != userID {
			continue
		}
		if m.Archived && !filter.IncludeArchived {
			continue
		}
		if filter.Kind != "" && m.Kind != filter.Kind {
			continue
		}
		if !hasAllTags(m, filter.Tags) {
			continue
		}
		out = append(out, m.Clone())
	}

	sortNewestFirst(out)

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) UpsertMemory(ctx context.Context, m *memory.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memories[m.ID] = m.Clone()
	return nil
}

func (s *Store) DeleteMemory(ctx context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.memories[id]
	if !ok || m.UserID != userID {
		return memory.ErrNotFound
	}
	delete(s.memories, id)
	return nil
}

func (s *Store) IncrementAccess(ctx context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.memories[id]; ok && m.UserID == userID {
		m.AccessCount++
	}
	return nil
}

func (s *Store) UpdateEmbedding(ctx context.Context, id, userID string, vec []float32, state memory.EmbeddingState, attempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.memories[id]
	if !ok || m.UserID != userID {
		return memory.ErrNotFound
	}
	m.Embedding = slices.Clone(vec)
	m.EmbeddingState = state
	m.EmbeddingAttempts = attempts
	return nil
}

func (s *Store) ListForRepair(ctx context.Context, userID string) ([]*memory.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*memory.Memory
	for _, m := range s.memories {
		if m.Archived {
			continue
		}
		if userID != "" && m.UserID != userID {
			continue
		}
		out = append(out, m.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) AddUsage(ctx context.Context, userID, provider, day string, requests, tokens int, cost float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := usageKey{userID: userID, provider: provider, day: day}
	totals := s.ledger[key]
	totals.Requests += requests
	totals.Tokens += tokens
	totals.Cost += cost
	s.ledger[key] = totals
	return nil
}

func (s *Store) UsageForDay(ctx context.Context, userID, day string) ([]usage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []usage.Record
	for key, totals := range s.ledger {
		if key.userID != userID || key.day != day {
			continue
		}
		records = append(records, usage.Record{
			UserID: key.userID, Provider: key.provider, Day: key.day, Totals: totals,
		})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Provider < records[j].Provider })
	return records, nil
}

func hasAllTags(m *memory.Memory, tags []string) bool {
	for _, tag := range tags {
		if !slices.Contains(m.Tags, tag) {
			return false
		}
	}
	return true
}

func sortNewestFirst(memories []*memory.Memory) {
	sort.Slice(memories, func(i, j int) bool {
		if !memories[i].UpdatedAt.Equal(memories[j].UpdatedAt) {
			return memories[i].UpdatedAt.After(memories[j].UpdatedAt)
		}
		return memories[i].ID < memories[j].ID
	})
}

var _ interface {
	memory.Store
	usage.Store
} = (*Store)(nil)
