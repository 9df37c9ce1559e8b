package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/magpipe/recurra/pkg/domain/model"
)

// embeddingStore is a brute-force vector index. Search scans every vector of
// the agent.
type embeddingStore struct {
	mu      sync.RWMutex
	records map[model.MemoryID]*model.EmbeddingRecord
}

func newEmbeddingStore() *embeddingStore {
	return &embeddingStore{
		records: make(map[model.MemoryID]*model.EmbeddingRecord),
	}
}

func (s *embeddingStore) Upsert(ctx context.Context, rec *model.EmbeddingRecord) error {
	copied := *rec
	copied.Vector = slices.Clone(rec.Vector)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.MemoryID] = &copied
	return nil
}

func (s *embeddingStore) Delete(ctx context.Context, id model.MemoryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func (s *embeddingStore) DeleteByAgent(ctx context.Context, agentID model.AgentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, rec := range s.records {
		if rec.AgentID == agentID {
			delete(s.records, id)
		}
	}
	return nil
}

func (s *embeddingStore) Search(ctx context.Context, agentID model.AgentID, query []float32, excludeContactID model.ContactID, limit int) ([]model.EmbeddingMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []model.EmbeddingMatch
	for _, rec := range s.records {
		if rec.AgentID != agentID {
			continue
		}
		if excludeContactID != "" && rec.ContactID == excludeContactID {
			continue
		}
		if len(rec.Vector) != len(query) {
			continue
		}
		matches = append(matches, model.EmbeddingMatch{
			MemoryID:   rec.MemoryID,
			ContactID:  rec.ContactID,
			Similarity: model.CosineSimilarity(query, rec.Vector),
			UpdatedAt:  rec.UpdatedAt,
		})
	}

	return model.RankMatches(matches, limit), nil
}
