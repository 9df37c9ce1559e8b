package interfaces

import (
	"context"

	"github.com/magpipe/recurra/pkg/domain/model"
)

// EmbeddingStore holds memory vectors and answers nearest-neighbor queries
type EmbeddingStore interface {
	// Upsert replaces any prior vector for rec.MemoryID
	Upsert(ctx context.Context, rec *model.EmbeddingRecord) error

	// Delete removes the vector of a memory. Deleting an absent vector succeeds.
	Delete(ctx context.Context, id model.MemoryID) error

	// DeleteByAgent removes every vector of an agent
	DeleteByAgent(ctx context.Context, agentID model.AgentID) error

	// Search returns up to limit memories of agentID closest to query by
	// cosine similarity. Memories of excludeContactID are skipped when it is
	// non-empty. Negative similarities are never returned and ties are broken
	// by the most recently updated memory first.
	Search(ctx context.Context, agentID model.AgentID, query []float32, excludeContactID model.ContactID, limit int) ([]model.EmbeddingMatch, error)
}

// Embedder turns text into a vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
