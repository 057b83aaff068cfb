package memory

import (
	"math"
	"sort"
)

// DefaultSimilarityThreshold is the minimum cosine similarity for a
// vector match when no threshold is configured.
const DefaultSimilarityThreshold = 0.3

// VectorItem pairs a memory ID with its stored embedding.
type VectorItem struct {
	ID     string
	Vector []float32
}

// VectorMatch is a ranked vector search hit.
type VectorMatch struct {
	ID    string
	Score float64
}

// SimilarityEngine ranks stored embeddings against a query embedding.
// Vectors with the wrong dimensionality or non-finite components are
// skipped rather than failing the whole query.
type SimilarityEngine struct {
	dims int
}

// NewSimilarityEngine creates an engine expecting vectors of the given
// dimensionality.
func NewSimilarityEngine(dims int) *SimilarityEngine {
	return &SimilarityEngine{dims: dims}
}

// Dims returns the expected vector dimensionality.
func (e *SimilarityEngine) Dims() int { return e.dims }

// Valid reports whether a vector has the expected length and only
// finite components.
func (e *SimilarityEngine) Valid(vec []float32) bool {
	if len(vec) != e.dims {
		return false
	}
	for _, v := range vec {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return false
		}
	}
	return true
}

// Rank scores every valid item against the query and returns matches at
// or above threshold, best first. Ties keep input order.
func (e *SimilarityEngine) Rank(query []float32, items []VectorItem, threshold float64) []VectorMatch {
	if !e.Valid(query) {
		return nil
	}

	matches := make([]VectorMatch, 0, len(items))
	for _, item := range items {
		if !e.Valid(item.Vector) {
			continue
		}
		score := CosineSimilarity(query, item.Vector)
		if score >= threshold {
			matches = append(matches, VectorMatch{ID: item.ID, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

// CosineSimilarity computes the cosine of the angle between two
// vectors, clamped to [-1, 1]. Mismatched lengths or a zero-magnitude
// vector yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	score := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return math.Max(-1, math.Min(1, score))
}
