package usecase

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/domain/interfaces"
	"github.com/magpipe/recurra/pkg/domain/model"
	"github.com/magpipe/recurra/pkg/utils/errutil"
)

const embeddingLockStripes = 64

// embeddingWriter computes a memory's vector and keeps the memory record and
// the embedding store in step. Writes for one memory are serialized so the
// store never ends up with a vector older than the record's.
type embeddingWriter struct {
	memories interfaces.MemoryRepository
	store    interfaces.EmbeddingStore
	embedder interfaces.Embedder

	locks [embeddingLockStripes]sync.Mutex
}

func newEmbeddingWriter(memories interfaces.MemoryRepository, store interfaces.EmbeddingStore, embedder interfaces.Embedder) *embeddingWriter {
	return &embeddingWriter{
		memories: memories,
		store:    store,
		embedder: embedder,
	}
}

func unavailable(cause error, msg string) error {
	if cause == nil {
		return goerr.Wrap(ErrEmbeddingUnavailable, msg)
	}
	return goerr.Wrap(errors.Join(ErrEmbeddingUnavailable, cause), msg)
}

// embed returns the vector for text
func (w *embeddingWriter) embed(ctx context.Context, text string) ([]float32, error) {
	if w.embedder == nil {
		return nil, unavailable(nil, "embedding provider is not configured")
	}
	vec, err := w.embedder.Embed(ctx, text)
	if err != nil {
		return nil, unavailable(err, "failed to generate embedding")
	}
	if len(vec) == 0 {
		return nil, unavailable(nil, "embedding provider returned an empty vector")
	}
	return vec, nil
}

// restore writes the record's own vector to the store
func (w *embeddingWriter) restore(ctx context.Context, mem *model.Memory) error {
	unlock := w.lock(mem.ID)
	defer unlock()

	current, err := w.memories.Get(ctx, mem.ID)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	if err != nil {
		return goerr.Wrap(err, "failed to reload memory", goerr.V(MemoryIDKey, mem.ID))
	}
	if !current.HasEmbedding() {
		return nil
	}

	return w.store.Upsert(ctx, &model.EmbeddingRecord{
		MemoryID:  current.ID,
		AgentID:   current.AgentID,
		ContactID: current.ContactID,
		Vector:    current.Embedding,
		UpdatedAt: current.UpdatedAt,
	})
}

func (w *embeddingWriter) lock(id model.MemoryID) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	mu := &w.locks[h.Sum32()%embeddingLockStripes]
	mu.Lock()
	return mu.Unlock
}

// Ensure gives mem a vector when it has none. On success mem.Embedding is set.
// When the stored memory has moved on to other content, Ensure returns
// model.ErrStaleEmbedding and leaves the vector to whoever wrote that content.
func (w *embeddingWriter) Ensure(ctx context.Context, mem *model.Memory) error {
	if mem.HasEmbedding() {
		return nil
	}

	text := mem.EmbeddingText()
	if text == "" {
		return goerr.Wrap(unavailable(nil, "memory has no content to embed"), "cannot embed memory", goerr.V(MemoryIDKey, mem.ID))
	}

	unlock := w.lock(mem.ID)
	defer unlock()

	current, err := w.memories.Get(ctx, mem.ID)
	if err != nil {
		return goerr.Wrap(err, "failed to reload memory before embedding", goerr.V(MemoryIDKey, mem.ID))
	}
	if current.EmbeddingText() != text {
		return goerr.Wrap(model.ErrStaleEmbedding, "memory changed before embedding", goerr.V(MemoryIDKey, mem.ID))
	}
	if current.HasEmbedding() {
		mem.Embedding = current.Embedding
		return nil
	}

	vec, err := w.embed(ctx, text)
	if err != nil {
		// a vector of older content must not keep matching
		if delErr := w.store.Delete(ctx, mem.ID); delErr != nil {
			errutil.Handle(ctx, delErr, "failed to drop stale embedding")
		}
		return goerr.Wrap(err, "failed to embed memory", goerr.V(MemoryIDKey, mem.ID))
	}

	if err := w.memories.SetEmbedding(ctx, mem.ID, text, vec); err != nil {
		return goerr.Wrap(err, "failed to save embedding on memory", goerr.V(MemoryIDKey, mem.ID))
	}

	if err := w.store.Upsert(ctx, &model.EmbeddingRecord{
		MemoryID:  mem.ID,
		AgentID:   mem.AgentID,
		ContactID: mem.ContactID,
		Vector:    vec,
		UpdatedAt: current.UpdatedAt,
	}); err != nil {
		// leave the record without a vector so backfill retries it
		if clrErr := w.memories.ClearEmbedding(ctx, mem.ID); clrErr != nil {
			errutil.Handle(ctx, clrErr, "failed to roll back memory embedding")
		}
		return goerr.Wrap(err, "failed to store embedding", goerr.V(MemoryIDKey, mem.ID))
	}

	mem.Embedding = vec
	return nil
}
