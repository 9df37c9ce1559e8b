package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/domain/interfaces"
	"github.com/magpipe/recurra/pkg/domain/model"
)

// over-fetch factor applied before threshold filtering
const searchOverFetch = 3

// Matcher finds memories of other contacts of the same agent that resemble a
// given memory
type Matcher struct {
	store      interfaces.EmbeddingStore
	embeddings *embeddingWriter
	timeout    time.Duration
}

func NewMatcher(store interfaces.EmbeddingStore, embeddings *embeddingWriter, timeout time.Duration) *Matcher {
	return &Matcher{
		store:      store,
		embeddings: embeddings,
		timeout:    timeout,
	}
}

// FindSimilar returns at most cfg.MaxResults candidates whose similarity is at
// least cfg.SimilarityThreshold, best first. mem gets a vector first when it
// has none; that failure is reported as ErrEmbeddingUnavailable.
func (m *Matcher) FindSimilar(ctx context.Context, mem *model.Memory, cfg model.SemanticMemoryConfig) ([]model.MatchCandidate, error) {
	if err := m.embeddings.Ensure(ctx, mem); err != nil {
		return nil, err
	}

	searchCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	matches, err := m.store.Search(searchCtx, mem.AgentID, mem.Embedding, mem.ContactID, cfg.MaxResults*searchOverFetch)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search similar memories",
			goerr.V(MemoryIDKey, mem.ID),
			goerr.V(AgentIDKey, mem.AgentID),
		)
	}

	candidates := make([]model.MatchCandidate, 0, len(matches))
	for _, match := range matches {
		if match.MemoryID == mem.ID || match.ContactID == mem.ContactID {
			continue
		}
		if match.Similarity < cfg.SimilarityThreshold {
			continue
		}
		candidates = append(candidates, match)
	}

	return model.RankMatches(candidates, cfg.MaxResults), nil
}
