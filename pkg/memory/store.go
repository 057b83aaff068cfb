package memory

import "context"

// ListFilter narrows a memory listing. Zero value lists every
// non-archived memory for the user.
type ListFilter struct {
	// Kind restricts to a single memory kind when non-empty.
	Kind Kind

	// Tags restricts to memories carrying every listed tag.
	Tags []string

	// IncludeArchived keeps archived memories in the listing.
	IncludeArchived bool

	// Limit caps the number of results. Zero or negative means no cap.
	Limit int

	// Offset skips results for pagination.
	Offset int
}

// Store is the persistence contract for memories. Implementations must
// scope every operation to the given user: a memory belonging to
// another user is indistinguishable from one that never existed.
type Store interface {
	// GetMemory fetches a memory by ID. Returns ErrNotFound when the
	// memory does not exist or belongs to a different user.
	GetMemory(ctx context.Context, id, userID string) (*Memory, error)

	// ListMemories lists the user's memories, newest first.
	ListMemories(ctx context.Context, userID string, filter ListFilter) ([]*Memory, error)

	// UpsertMemory inserts or replaces a memory by ID.
	UpsertMemory(ctx context.Context, m *Memory) error

	// DeleteMemory removes a memory. Returns ErrNotFound when it does
	// not exist or belongs to a different user.
	DeleteMemory(ctx context.Context, id, userID string) error

	// IncrementAccess atomically bumps a memory's access counter
	// without touching any other field, so a recall never races a
	// concurrent content write. A missing memory is not an error.
	IncrementAccess(ctx context.Context, id, userID string) error

	// UpdateEmbedding persists only the embedding fields, leaving
	// user-visible fields untouched. Returns ErrNotFound when the
	// memory does not exist or belongs to a different user.
	UpdateEmbedding(ctx context.Context, id, userID string, vec []float32, state EmbeddingState, attempts int) error

	// ListForRepair lists non-archived memories across users (userID
	// empty) or for one user, regardless of embedding state.
	ListForRepair(ctx context.Context, userID string) ([]*Memory, error)
}
