package usecase_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/magpipe/recurra/pkg/domain/interfaces"
	"github.com/magpipe/recurra/pkg/domain/model"
	"github.com/magpipe/recurra/pkg/repository/memory"
	"github.com/magpipe/recurra/pkg/usecase"
)

// gatedEmbedder holds every call for text starting with prefix until release
// is closed
type gatedEmbedder struct {
	*fakeEmbedder
	prefix  string
	entered chan struct{}
	release chan struct{}
}

func (g *gatedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.HasPrefix(text, g.prefix) {
		g.entered <- struct{}{}
		<-g.release
	}
	return g.fakeEmbedder.Embed(ctx, text)
}

func TestEmbedding_BackfillDoesNotOverwriteNewerContent(t *testing.T) {
	repo := memory.New()
	embedder := &gatedEmbedder{
		fakeEmbedder: newFakeEmbedder(),
		prefix:       "old",
		entered:      make(chan struct{}, 1),
		release:      make(chan struct{}),
	}
	embedder.set("old billing", 1, 0)
	embedder.set("new shipping", 0, 1)

	uc := usecase.New(repo, usecase.WithEmbedder(embedder))
	ctx := context.Background()

	_, _, err := repo.Memory().Upsert(ctx, testAgentID, "c1", &model.MemoryPatch{
		Summary:   "old billing",
		KeyTopics: []string{"x"},
	})
	gt.NoError(t, err).Required()

	backfilled := make(chan int, 1)
	go func() {
		n, _ := uc.Memory.BackfillEmbeddings(ctx, 10)
		backfilled <- n
	}()
	<-embedder.entered

	conversed := make(chan error, 1)
	go func() {
		_, err := uc.Conversation.OnConversationComplete(ctx, usecase.ConversationEvent{
			AgentID:   testAgentID,
			ContactID: "c1",
			Summary:   "new shipping",
		})
		conversed <- err
	}()

	// let the conversation save its content before the stale vector returns
	gt.NoError(t, waitFor(func() bool {
		mem, err := repo.Memory().Get(ctx, model.NewMemoryID(testAgentID, "c1"))
		return err == nil && mem.Summary == "new shipping"
	})).Required()
	close(embedder.release)

	gt.Number(t, <-backfilled).Equal(0)
	gt.NoError(t, <-conversed).Required()

	mem, err := repo.Memory().Get(ctx, model.NewMemoryID(testAgentID, "c1"))
	gt.NoError(t, err).Required()
	gt.Value(t, mem.Summary).Equal("new shipping")
	gt.Array(t, mem.Embedding).Equal([]float32{0, 1})

	matches, err := repo.Embedding().Search(ctx, testAgentID, []float32{0, 1}, "", 10)
	gt.NoError(t, err).Required()
	gt.Array(t, matches).Length(1).Required()
	gt.Bool(t, matches[0].Similarity > 0.99).True()
}

func TestEmbedding_StoreFailureLeavesMemoryForBackfill(t *testing.T) {
	base := memory.New()
	store := &failingUpsertStore{EmbeddingStore: base.Embedding(), fail: true}
	h := newHarnessWithRepo(t, base, usecase.WithEmbeddingStore(store))
	h.embedder.set("s", 1, 0)

	h.converse(t, "c1", "summary")
	gt.Bool(t, h.memoryOf(t, "c1").HasEmbedding()).False()

	store.setFail(false)
	n, err := h.uc.Memory.BackfillEmbeddings(context.Background(), 10)
	gt.NoError(t, err).Required()
	gt.Number(t, n).Equal(1)
	gt.Bool(t, h.memoryOf(t, "c1").HasEmbedding()).True()
}

type failingUpsertStore struct {
	interfaces.EmbeddingStore

	mu   sync.Mutex
	fail bool
}

func (s *failingUpsertStore) setFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

func (s *failingUpsertStore) Upsert(ctx context.Context, rec *model.EmbeddingRecord) error {
	s.mu.Lock()
	fail := s.fail
	s.mu.Unlock()
	if fail {
		return errors.New("vector store unavailable")
	}
	return s.EmbeddingStore.Upsert(ctx, rec)
}

func waitFor(cond func() bool) error {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return nil
		}
		time.Sleep(5 * time.Millisecond)
	}
	return context.DeadlineExceeded
}
