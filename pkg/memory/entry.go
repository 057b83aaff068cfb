package memory

import (
	"time"
)

// Kind classifies a memory. The set is closed; writes with an unknown
// kind are rejected.
type Kind string

const (
	KindEpisodic   Kind = "episodic"
	KindSemantic   Kind = "semantic"
	KindProcedural Kind = "procedural"
	KindWorking    Kind = "working"
	KindSensory    Kind = "sensory"
)

// ValidKinds are the allowed memory kinds.
var ValidKinds = map[Kind]bool{
	KindEpisodic:   true,
	KindSemantic:   true,
	KindProcedural: true,
	KindWorking:    true,
	KindSensory:    true,
}

// EmbeddingState tracks where a memory is in the embedding lifecycle.
type EmbeddingState string

const (
	// EmbeddingNone means no vector exists and none is scheduled.
	EmbeddingNone EmbeddingState = "none"
	// EmbeddingPending means a vector is queued or being computed.
	EmbeddingPending EmbeddingState = "pending"
	// EmbeddingReady means a valid vector is stored.
	EmbeddingReady EmbeddingState = "embedded"
	// EmbeddingFailed means the last attempt exhausted its retry budget.
	EmbeddingFailed EmbeddingState = "failed"
)

// Memory is a stored note owned by a single user.
type Memory struct {
	// ID is the unique identifier for this memory.
	ID string `json:"id"`

	// UserID is the owning user. All reads and writes are scoped by it.
	UserID string `json:"user_id"`

	// Title is a short label for the memory.
	Title string `json:"title"`

	// Content is the raw text content.
	Content string `json:"content"`

	// Kind classifies the memory (episodic, semantic, ...).
	Kind Kind `json:"kind"`

	// Importance is a continuous value in [0, 1].
	Importance float64 `json:"importance"`

	// Tags is an ordered set of labels.
	Tags []string `json:"tags,omitempty"`

	// Metadata holds arbitrary key-value pairs for field queries.
	Metadata map[string]Value `json:"metadata,omitempty"`

	// Embedding is the vector representation of the memory text.
	// Nil when absent; a wrong-dimension vector is treated as absent.
	Embedding []float32 `json:"embedding,omitempty"`

	// EmbeddingState is the lifecycle state of the embedding.
	EmbeddingState EmbeddingState `json:"embedding_state"`

	// EmbeddingAttempts counts failed embedding attempts since the
	// last success. Reset to zero when a vector is stored.
	EmbeddingAttempts int `json:"embedding_attempts,omitempty"`

	// Archived soft-deletes the memory. Archived memories are excluded
	// from recall but never physically removed by archiving.
	Archived bool `json:"archived"`

	// AccessCount is incremented each time recall returns the memory.
	AccessCount int `json:"access_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the memory.
func (m *Memory) Clone() *Memory {
	if m == nil {
		return nil
	}
	clone := *m
	if m.Tags != nil {
		clone.Tags = append([]string(nil), m.Tags...)
	}
	if m.Embedding != nil {
		clone.Embedding = append([]float32(nil), m.Embedding...)
	}
	if m.Metadata != nil {
		clone.Metadata = make(map[string]Value, len(m.Metadata))
		for key, value := range m.Metadata {
			clone.Metadata[key] = value
		}
	}
	return &clone
}

// ScoredMemory wraps a memory with its relevance score.
type ScoredMemory struct {
	// Memory is the matched memory.
	Memory *Memory `json:"memory"`

	// Score is the relevance score (higher is better).
	Score float64 `json:"score"`
}

// Stats holds per-user statistics about stored memories.
type Stats struct {
	Total            int          `json:"total"`
	ByKind           map[Kind]int `json:"by_kind"`
	Embedded         int          `json:"embedded"`
	MissingEmbedding int          `json:"missing_embedding"`
	Archived         int          `json:"archived"`
	AvgImportance    float64      `json:"avg_importance"`
}
