package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/domain/interfaces"
	"github.com/magpipe/recurra/pkg/domain/model"
	"github.com/magpipe/recurra/pkg/utils/errutil"
	"github.com/magpipe/recurra/pkg/utils/logging"
)

type MemoryUseCase struct {
	repo       interfaces.Repository
	store      interfaces.EmbeddingStore
	embeddings *embeddingWriter
	configs    *AgentConfigUseCase
	timeout    time.Duration
}

func NewMemoryUseCase(repo interfaces.Repository, store interfaces.EmbeddingStore, embeddings *embeddingWriter, configs *AgentConfigUseCase, timeout time.Duration) *MemoryUseCase {
	return &MemoryUseCase{
		repo:       repo,
		store:      store,
		embeddings: embeddings,
		configs:    configs,
		timeout:    timeout,
	}
}

func memoryNotFound(err error, id model.MemoryID) error {
	if errors.Is(err, model.ErrNotFound) {
		return goerr.Wrap(ErrMemoryNotFound, "memory not found", goerr.V(MemoryIDKey, id))
	}
	return goerr.Wrap(err, "failed to access memory", goerr.V(MemoryIDKey, id))
}

func (uc *MemoryUseCase) GetMemory(ctx context.Context, id model.MemoryID) (*model.Memory, error) {
	mem, err := uc.repo.Memory().Get(ctx, id)
	if err != nil {
		return nil, memoryNotFound(err, id)
	}
	return mem, nil
}

func (uc *MemoryUseCase) ListMemories(ctx context.Context, agentID model.AgentID) ([]*model.Memory, error) {
	memories, err := uc.repo.Memory().ListByAgent(ctx, agentID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list memories", goerr.V(AgentIDKey, agentID))
	}
	return memories, nil
}

func (uc *MemoryUseCase) restoreVector(ctx context.Context, mem *model.Memory) {
	if !mem.HasEmbedding() {
		return
	}
	if err := uc.store.Upsert(ctx, &model.EmbeddingRecord{
		MemoryID:  mem.ID,
		AgentID:   mem.AgentID,
		ContactID: mem.ContactID,
		Vector:    mem.Embedding,
		UpdatedAt: mem.UpdatedAt,
	}); err != nil {
		errutil.Handle(ctx, goerr.Wrap(err, "failed to restore embedding", goerr.V(MemoryIDKey, mem.ID)),
			"memory left without its vector after failed delete")
	}
}

// DeleteMemory removes the memory and its vector. The vector goes first; if
// the record cannot be deleted afterwards the vector is put back and the
// delete fails as a whole.
func (uc *MemoryUseCase) DeleteMemory(ctx context.Context, id model.MemoryID) error {
	mem, err := uc.repo.Memory().Get(ctx, id)
	if err != nil {
		return memoryNotFound(err, id)
	}

	if err := uc.store.Delete(ctx, id); err != nil {
		return goerr.Wrap(err, "failed to delete embedding", goerr.V(MemoryIDKey, id))
	}

	if err := uc.repo.Memory().Delete(ctx, id); err != nil {
		uc.restoreVector(ctx, mem)
		return memoryNotFound(err, id)
	}

	logging.From(ctx).Info("memory deleted", slog.String("memory_id", string(id)))
	return nil
}

// DeleteAllMemories removes every memory of the agent with their vectors
// and returns the number of deleted memories
func (uc *MemoryUseCase) DeleteAllMemories(ctx context.Context, agentID model.AgentID) (int, error) {
	if err := uc.store.DeleteByAgent(ctx, agentID); err != nil {
		return 0, goerr.Wrap(err, "failed to delete agent embeddings", goerr.V(AgentIDKey, agentID))
	}

	n, err := uc.repo.Memory().DeleteAllForAgent(ctx, agentID)
	if err != nil {
		// put back the vectors of whatever survived
		if remaining, listErr := uc.repo.Memory().ListByAgent(ctx, agentID); listErr == nil {
			for _, mem := range remaining {
				uc.restoreVector(ctx, mem)
			}
		} else {
			errutil.Handle(ctx, listErr, "failed to list memories for vector restore")
		}
		return n, goerr.Wrap(err, "failed to delete agent memories", goerr.V(AgentIDKey, agentID))
	}

	logging.From(ctx).Info("agent memories deleted",
		slog.String("agent_id", string(agentID)),
		slog.Int("count", n),
	)
	return n, nil
}

// SearchQuery is an operator search. Limit and threshold default to the
// agent's semantic memory settings.
type SearchQuery struct {
	Text             string          `json:"query"`
	ExcludeContactID model.ContactID `json:"exclude_contact_id,omitempty"`
	Limit            int             `json:"limit,omitempty"`
	Threshold        *float64        `json:"threshold,omitempty"`
}

// SearchMemories embeds the query text and returns the agent's closest
// memories. It never changes match counts.
func (uc *MemoryUseCase) SearchMemories(ctx context.Context, agentID model.AgentID, q SearchQuery) ([]*model.MemorySearchResult, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, goerr.Wrap(ErrInvalidQuery, "query text is required")
	}
	if len(text) > model.MaxEmbeddingInputChars {
		text = (&model.Memory{Summary: text}).EmbeddingText()
	}

	vec, err := uc.embeddings.embed(ctx, text)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed search query", goerr.V(AgentIDKey, agentID))
	}

	return uc.search(ctx, agentID, vec, q)
}

// FindSimilarTo returns memories of other contacts resembling an existing
// memory, using its stored vector. It never changes match counts.
func (uc *MemoryUseCase) FindSimilarTo(ctx context.Context, id model.MemoryID, limit int) ([]*model.MemorySearchResult, error) {
	mem, err := uc.repo.Memory().Get(ctx, id)
	if err != nil {
		return nil, memoryNotFound(err, id)
	}
	if !mem.HasEmbedding() {
		return []*model.MemorySearchResult{}, nil
	}

	results, err := uc.search(ctx, mem.AgentID, mem.Embedding, SearchQuery{
		ExcludeContactID: mem.ContactID,
		Limit:            limit,
	})
	if err != nil {
		return nil, err
	}

	out := results[:0]
	for _, r := range results {
		if r.Memory.ID != mem.ID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (uc *MemoryUseCase) search(ctx context.Context, agentID model.AgentID, vec []float32, q SearchQuery) ([]*model.MemorySearchResult, error) {
	cfg, err := uc.configs.GetConfig(ctx, agentID)
	if err != nil {
		return nil, err
	}

	limit := cfg.SemanticMemory.MaxResults
	if q.Limit > 0 {
		limit = q.Limit
	}
	threshold := cfg.SemanticMemory.SimilarityThreshold
	if q.Threshold != nil {
		threshold = *q.Threshold
	}

	searchCtx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	matches, err := uc.store.Search(searchCtx, agentID, vec, q.ExcludeContactID, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search memories", goerr.V(AgentIDKey, agentID))
	}

	results := make([]*model.MemorySearchResult, 0, len(matches))
	for _, match := range matches {
		if match.Similarity < threshold {
			continue
		}
		mem, err := uc.repo.Memory().Get(ctx, match.MemoryID)
		if errors.Is(err, model.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to load matched memory", goerr.V(MemoryIDKey, match.MemoryID))
		}
		results = append(results, &model.MemorySearchResult{
			Memory:     mem,
			Similarity: match.Similarity,
		})
	}
	return results, nil
}

// RebuildEmbeddingIndex copies the vector of every embedded memory into the
// embedding store and returns how many were written. Run it at startup when
// the store is kept apart from the memory records and may have lost them.
func (uc *MemoryUseCase) RebuildEmbeddingIndex(ctx context.Context) (int, error) {
	embedded, err := uc.repo.Memory().ListEmbedded(ctx)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to list embedded memories")
	}

	for i, mem := range embedded {
		if err := uc.embeddings.restore(ctx, mem); err != nil {
			return i, goerr.Wrap(err, "failed to rebuild embedding index", goerr.V(MemoryIDKey, mem.ID))
		}
	}

	logging.From(ctx).Info("embedding index rebuilt", slog.Int("vectors", len(embedded)))
	return len(embedded), nil
}

// BackfillEmbeddings embeds up to limit memories that have content but no
// vector and returns how many were embedded. Counts and rules are not
// touched. Memories whose embedding fails are left for the next run.
func (uc *MemoryUseCase) BackfillEmbeddings(ctx context.Context, limit int) (int, error) {
	pending, err := uc.repo.Memory().ListMissingEmbedding(ctx, limit)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to list memories without embedding")
	}

	done := 0
	for _, mem := range pending {
		if ctx.Err() != nil {
			return done, goerr.Wrap(ctx.Err(), "backfill interrupted", goerr.V("embedded", done))
		}
		if err := uc.embeddings.Ensure(ctx, mem); err != nil {
			if errors.Is(err, model.ErrStaleEmbedding) {
				continue
			}
			if errors.Is(err, ErrEmbeddingUnavailable) && uc.embeddings.embedder == nil {
				return done, err
			}
			errutil.Handle(ctx, err, "failed to backfill embedding")
			continue
		}
		done++
	}

	if done > 0 {
		logging.From(ctx).Info("embeddings backfilled",
			slog.Int("embedded", done),
			slog.Int("pending", len(pending)),
		)
	}
	return done, nil
}
