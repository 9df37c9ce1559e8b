package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/domain/model"
)

type memoryRepository struct {
	mu      sync.RWMutex
	entries map[model.MemoryID]*model.Memory
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		entries: make(map[model.MemoryID]*model.Memory),
	}
}

func notFound(id model.MemoryID) error {
	return goerr.Wrap(model.ErrNotFound, "memory not found", goerr.V("memoryID", id))
}

func (r *memoryRepository) Get(ctx context.Context, id model.MemoryID) (*model.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mem, exists := r.entries[id]
	if !exists {
		return nil, notFound(id)
	}
	return mem.Clone(), nil
}

func (r *memoryRepository) ListByAgent(ctx context.Context, agentID model.AgentID) ([]*model.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*model.Memory, 0)
	for _, m := range r.entries {
		if m.AgentID == agentID {
			result = append(result, m.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result, nil
}

func (r *memoryRepository) ListMissingEmbedding(ctx context.Context, limit int) ([]*model.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*model.Memory, 0)
	for _, m := range r.entries {
		if !m.HasEmbedding() && m.EmbeddingText() != "" {
			result = append(result, m.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.Before(result[j].UpdatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *memoryRepository) ListEmbedded(ctx context.Context) ([]*model.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*model.Memory, 0)
	for _, m := range r.entries {
		if m.HasEmbedding() {
			result = append(result, m.Clone())
		}
	}
	return result, nil
}

func (r *memoryRepository) Upsert(ctx context.Context, agentID model.AgentID, contactID model.ContactID, patch *model.MemoryPatch) (*model.Memory, bool, error) {
	if err := patch.Validate(); err != nil {
		return nil, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	id := model.NewMemoryID(agentID, contactID)

	mem, exists := r.entries[id]
	if !exists {
		mem = model.NewMemory(agentID, contactID, patch.Direction, now)
	} else {
		mem = mem.Clone()
	}

	required := mem.Apply(patch, now)
	r.entries[id] = mem

	return mem.Clone(), required, nil
}

func (r *memoryRepository) SetEmbedding(ctx context.Context, id model.MemoryID, text string, vector []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	mem, exists := r.entries[id]
	if !exists {
		return notFound(id)
	}
	if mem.EmbeddingText() != text {
		return goerr.Wrap(model.ErrStaleEmbedding, "memory was updated while embedding", goerr.V("memoryID", id))
	}
	mem.Embedding = slices.Clone(vector)
	return nil
}

func (r *memoryRepository) ClearEmbedding(ctx context.Context, id model.MemoryID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	mem, exists := r.entries[id]
	if !exists {
		return notFound(id)
	}
	mem.Embedding = nil
	return nil
}

func (r *memoryRepository) IncrementMatchCount(ctx context.Context, id model.MemoryID, delta int64) (*model.Memory, error) {
	if delta <= 0 {
		return nil, goerr.Wrap(model.ErrInvalidMemory, "match count delta must be positive", goerr.V("delta", delta))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	mem, exists := r.entries[id]
	if !exists {
		return nil, notFound(id)
	}
	mem.SemanticMatchCount += delta
	return mem.Clone(), nil
}

func (r *memoryRepository) Delete(ctx context.Context, id model.MemoryID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[id]; !exists {
		return notFound(id)
	}
	delete(r.entries, id)
	return nil
}

func (r *memoryRepository) DeleteAllForAgent(ctx context.Context, agentID model.AgentID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deleted := 0
	for id, m := range r.entries {
		if m.AgentID == agentID {
			delete(r.entries, id)
			deleted++
		}
	}
	return deleted, nil
}
