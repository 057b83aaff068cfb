package memory

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Strategy selects how recall candidates are ranked.
type Strategy string

const (
	StrategyRecency    Strategy = "recency"
	StrategyFrequency  Strategy = "frequency"
	StrategyImportance Strategy = "importance"
	StrategySimilarity Strategy = "similarity"
	StrategyComposite  Strategy = "composite"
)

// DefaultStrategy is used when a recall request names no strategy.
const DefaultStrategy = StrategyComposite

// ParseStrategy validates a strategy name. Empty selects the default.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "":
		return DefaultStrategy, nil
	case StrategyRecency, StrategyFrequency, StrategyImportance,
		StrategySimilarity, StrategyComposite:
		return Strategy(s), nil
	default:
		return "", validationErr("strategy", "unknown recall strategy %q", s)
	}
}

// ScorerConfig tunes the composite signal weights and decay horizon.
// Weights are normalized to sum to 1 at construction.
type ScorerConfig struct {
	VectorWeight     float64
	LexicalWeight    float64
	RecencyWeight    float64
	ImportanceWeight float64

	SimilarityThreshold float64
	RecencyHalfLife     time.Duration
}

// DefaultScorerConfig returns the stock weighting: vector similarity
// dominates, lexical overlap second, recency and importance as
// tie-breaking signals.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		VectorWeight:        0.45,
		LexicalWeight:       0.25,
		RecencyWeight:       0.15,
		ImportanceWeight:    0.15,
		SimilarityThreshold: DefaultSimilarityThreshold,
		RecencyHalfLife:     7 * 24 * time.Hour,
	}
}

// Validate checks the config for usable values.
func (c ScorerConfig) Validate() error {
	sum := c.VectorWeight + c.LexicalWeight + c.RecencyWeight + c.ImportanceWeight
	if sum <= 0 {
		return fmt.Errorf("scorer weights must sum to a positive value")
	}
	for _, w := range []float64{c.VectorWeight, c.LexicalWeight, c.RecencyWeight, c.ImportanceWeight} {
		if w < 0 {
			return fmt.Errorf("scorer weights must be non-negative")
		}
	}
	if c.SimilarityThreshold < -1 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity threshold must be in [-1, 1]")
	}
	if c.RecencyHalfLife <= 0 {
		return fmt.Errorf("recency half-life must be positive")
	}
	return nil
}

// Scorer ranks memories for a parsed query under a chosen strategy.
type Scorer struct {
	cfg        ScorerConfig
	normalizer *Normalizer
	similarity *SimilarityEngine
}

// NewScorer creates a scorer. Weights are normalized so callers can
// pass any positive proportions.
func NewScorer(cfg ScorerConfig, normalizer *Normalizer, similarity *SimilarityEngine) *Scorer {
	sum := cfg.VectorWeight + cfg.LexicalWeight + cfg.RecencyWeight + cfg.ImportanceWeight
	if sum > 0 {
		cfg.VectorWeight /= sum
		cfg.LexicalWeight /= sum
		cfg.RecencyWeight /= sum
		cfg.ImportanceWeight /= sum
	}
	return &Scorer{cfg: cfg, normalizer: normalizer, similarity: similarity}
}

// Threshold returns the configured similarity cutoff.
func (s *Scorer) Threshold() float64 { return s.cfg.SimilarityThreshold }

// Rank scores candidates for the query and returns the top matches.
// The threshold is taken literally, so zero keeps every non-negative
// similarity score. queryVec may be nil when no embedding is
// available: similarity and composite then fall back to lexical
// ranking and degraded reports it.
func (s *Scorer) Rank(memories []*Memory, query ParsedQuery, queryVec []float32, strategy Strategy, threshold float64, now time.Time, limit int) (results []ScoredMemory, degraded bool) {
	if query.IsEmpty() {
		return nil, false
	}

	if query.IsFieldQuery() {
		return s.rankFieldQuery(memories, query, now, limit), false
	}

	switch strategy {
	case StrategyRecency:
		results = s.rankBySignal(memories, query, now, func(m *Memory) float64 {
			return s.recencyScore(m, now)
		})
	case StrategyFrequency:
		results = s.rankBySignal(memories, query, now, func(m *Memory) float64 {
			return float64(m.AccessCount)
		})
	case StrategyImportance:
		results = s.rankBySignal(memories, query, now, func(m *Memory) float64 {
			return m.Importance
		})
	case StrategySimilarity:
		if queryVec == nil {
			degraded = true
			results = s.rankBySignal(memories, query, now, func(m *Memory) float64 {
				return s.normalizer.LexicalScore(m, query.Terms)
			})
			break
		}
		results = s.rankBySimilarity(memories, queryVec, threshold)
	default: // composite
		if queryVec == nil {
			degraded = true
		}
		results = s.rankComposite(memories, query, queryVec, threshold, now)
	}

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, degraded
}

// rankFieldQuery matches memories whose metadata field equals the
// queried value, case-insensitively, newest first.
func (s *Scorer) rankFieldQuery(memories []*Memory, query ParsedQuery, now time.Time, limit int) []ScoredMemory {
	var hits []ScoredMemory
	for _, m := range memories {
		index := s.normalizer.MetadataIndex(m)
		if value, ok := index[query.Field]; ok && value == query.FieldValue {
			hits = append(hits, ScoredMemory{Memory: m, Score: 1})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Memory.UpdatedAt.After(hits[j].Memory.UpdatedAt)
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// rankBySignal filters to lexical matches then orders by the signal.
func (s *Scorer) rankBySignal(memories []*Memory, query ParsedQuery, now time.Time, signal func(*Memory) float64) []ScoredMemory {
	var hits []ScoredMemory
	for _, m := range memories {
		if !s.normalizer.MatchesAllTerms(m, query.Terms) {
			continue
		}
		hits = append(hits, ScoredMemory{Memory: m, Score: signal(m)})
	}
	s.sortScored(hits)
	return hits
}

// rankBySimilarity ranks purely by cosine similarity against stored
// embeddings. Memories without a valid embedding are skipped, and
// scores below the threshold (including all negatives at the default
// threshold) are excluded.
func (s *Scorer) rankBySimilarity(memories []*Memory, queryVec []float32, threshold float64) []ScoredMemory {
	byID := make(map[string]*Memory, len(memories))
	items := make([]VectorItem, 0, len(memories))
	for _, m := range memories {
		byID[m.ID] = m
		items = append(items, VectorItem{ID: m.ID, Vector: m.Embedding})
	}

	matches := s.similarity.Rank(queryVec, items, threshold)
	hits := make([]ScoredMemory, 0, len(matches))
	for _, match := range matches {
		hits = append(hits, ScoredMemory{Memory: byID[match.ID], Score: match.Score})
	}
	return hits
}

// rankComposite blends vector, lexical, recency, and importance
// signals. Candidates are the union of lexical matches and vector
// matches at or above the threshold.
func (s *Scorer) rankComposite(memories []*Memory, query ParsedQuery, queryVec []float32, threshold float64, now time.Time) []ScoredMemory {
	var hits []ScoredMemory
	for _, m := range memories {
		lexical := s.normalizer.LexicalScore(m, query.Terms)
		lexicalHit := lexical == 1

		var vector float64
		vectorHit := false
		if queryVec != nil && s.similarity.Valid(m.Embedding) {
			cos := CosineSimilarity(queryVec, m.Embedding)
			if cos >= threshold {
				vectorHit = true
			}
			vector = math.Max(0, cos)
		}

		if !lexicalHit && !vectorHit {
			continue
		}

		score := s.cfg.VectorWeight*vector +
			s.cfg.LexicalWeight*lexical +
			s.cfg.RecencyWeight*s.recencyScore(m, now) +
			s.cfg.ImportanceWeight*m.Importance
		hits = append(hits, ScoredMemory{Memory: m, Score: score})
	}
	s.sortScored(hits)
	return hits
}

// recencyScore decays exponentially with age: 1 now, 0.5 at one
// half-life, approaching 0 for old memories.
func (s *Scorer) recencyScore(m *Memory, now time.Time) float64 {
	age := now.Sub(m.UpdatedAt)
	if age <= 0 {
		return 1
	}
	return math.Exp(-math.Ln2 * age.Seconds() / s.cfg.RecencyHalfLife.Seconds())
}

// sortScored orders by score descending, breaking ties by most
// recently updated.
func (s *Scorer) sortScored(hits []ScoredMemory) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Memory.UpdatedAt.After(hits[j].Memory.UpdatedAt)
	})
}
