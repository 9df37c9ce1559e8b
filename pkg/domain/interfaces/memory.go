package interfaces

import (
	"context"

	"github.com/magpipe/recurra/pkg/domain/model"
)

// MemoryRepository defines the interface for Memory data persistence
type MemoryRepository interface {
	// Get retrieves a memory by ID
	Get(ctx context.Context, id model.MemoryID) (*model.Memory, error)

	// ListByAgent returns all memories of an agent, newest-updated first
	ListByAgent(ctx context.Context, agentID model.AgentID) ([]*model.Memory, error)

	// ListMissingEmbedding returns up to limit memories with content but no
	// embedding, across all agents
	ListMissingEmbedding(ctx context.Context, limit int) ([]*model.Memory, error)

	// ListEmbedded returns every memory that carries a vector, across all
	// agents
	ListEmbedded(ctx context.Context) ([]*model.Memory, error)

	// Upsert merges patch into the memory of (agentID, contactID), creating it
	// when absent. The merge runs atomically against concurrent upserts of the
	// same pair. The returned flag reports whether a new embedding is required.
	Upsert(ctx context.Context, agentID model.AgentID, contactID model.ContactID, patch *model.MemoryPatch) (*model.Memory, bool, error)

	// SetEmbedding stores the vector computed from text on the record. The
	// write is a compare-and-set: when the record's current EmbeddingText is
	// not text, nothing is written and model.ErrStaleEmbedding is returned.
	SetEmbedding(ctx context.Context, id model.MemoryID, text string, vector []float32) error

	// ClearEmbedding removes the vector from the record
	ClearEmbedding(ctx context.Context, id model.MemoryID) error

	// IncrementMatchCount atomically adds delta (> 0) to SemanticMatchCount
	// and returns the updated memory
	IncrementMatchCount(ctx context.Context, id model.MemoryID, delta int64) (*model.Memory, error)

	// Delete removes a memory
	Delete(ctx context.Context, id model.MemoryID) error

	// DeleteAllForAgent removes every memory of an agent and returns the count
	DeleteAllForAgent(ctx context.Context, agentID model.AgentID) (int, error)
}
