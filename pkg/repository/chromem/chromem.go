package chromem

import (
	"context"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/domain/interfaces"
	"github.com/magpipe/recurra/pkg/domain/model"
	chromem "github.com/philippgille/chromem-go"
)

const (
	metaAgentID   = "agent_id"
	metaContactID = "contact_id"
	metaUpdatedAt = "updated_at"
)

// Store is an embedded vector store backed by chromem-go. Vectors live in one
// collection per agent and dimension, so a query only ever meets vectors it
// can be compared with.
type Store struct {
	db *chromem.DB
	mu sync.Mutex
}

var _ interfaces.EmbeddingStore = &Store{}

// New returns an in-process store. With a non-empty path the collections are
// persisted as gob files below it.
func New(path string) (*Store, error) {
	if path == "" {
		return &Store{db: chromem.NewDB()}, nil
	}

	db, err := chromem.NewPersistentDB(path, true)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open chromem database", goerr.V("path", path))
	}
	return &Store{db: db}, nil
}

func collectionName(agentID model.AgentID, dim int) string {
	return agentPrefix(agentID) + strconv.Itoa(dim)
}

func agentPrefix(agentID model.AgentID) string {
	return "agent:" + string(agentID) + ":dim:"
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// deleteLocked removes id from every collection. Caller holds s.mu.
func (s *Store) deleteLocked(ctx context.Context, id model.MemoryID) error {
	for name, col := range s.db.ListCollections() {
		if err := col.Delete(ctx, nil, nil, string(id)); err != nil {
			return goerr.Wrap(err, "failed to delete embedding",
				goerr.V("memoryID", id),
				goerr.V("collection", name),
			)
		}
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, rec *model.EmbeddingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.deleteLocked(ctx, rec.MemoryID); err != nil {
		return err
	}
	// a zero vector has no direction and cannot be normalized
	if len(rec.Vector) == 0 || isZero(rec.Vector) {
		return nil
	}

	name := collectionName(rec.AgentID, len(rec.Vector))
	col, err := s.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to get collection", goerr.V("collection", name))
	}

	doc := chromem.Document{
		ID: string(rec.MemoryID),
		Metadata: map[string]string{
			metaAgentID:   string(rec.AgentID),
			metaContactID: string(rec.ContactID),
			metaUpdatedAt: rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
		},
		Embedding: append([]float32{}, rec.Vector...),
		Content:   string(rec.MemoryID),
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to add embedding", goerr.V("memoryID", rec.MemoryID))
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id model.MemoryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.deleteLocked(ctx, id)
}

func (s *Store) DeleteByAgent(ctx context.Context, agentID model.AgentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := agentPrefix(agentID)
	for name := range s.db.ListCollections() {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if err := s.db.DeleteCollection(name); err != nil {
			return goerr.Wrap(err, "failed to delete collection",
				goerr.V("agentID", agentID),
				goerr.V("collection", name),
			)
		}
	}
	return nil
}

func (s *Store) Search(ctx context.Context, agentID model.AgentID, query []float32, excludeContactID model.ContactID, limit int) ([]model.EmbeddingMatch, error) {
	if limit <= 0 || len(query) == 0 || isZero(query) {
		return []model.EmbeddingMatch{}, nil
	}

	col := s.db.GetCollection(collectionName(agentID, len(query)), nil)
	if col == nil {
		return []model.EmbeddingMatch{}, nil
	}

	n := limit
	if excludeContactID != "" {
		n++
	}
	// chromem refuses nResults larger than the collection
	n = min(n, col.Count())
	if n == 0 {
		return []model.EmbeddingMatch{}, nil
	}

	results, err := col.QueryEmbedding(ctx, query, n, nil, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query embeddings",
			goerr.V("agentID", agentID),
			goerr.V("n", n),
		)
	}

	matches := make([]model.EmbeddingMatch, 0, len(results))
	for _, r := range results {
		contactID := model.ContactID(r.Metadata[metaContactID])
		if excludeContactID != "" && contactID == excludeContactID {
			continue
		}
		sim := float64(r.Similarity)
		if math.IsNaN(sim) {
			continue
		}
		updatedAt, _ := time.Parse(time.RFC3339Nano, r.Metadata[metaUpdatedAt])

		matches = append(matches, model.EmbeddingMatch{
			MemoryID:   model.MemoryID(r.ID),
			ContactID:  contactID,
			Similarity: sim,
			UpdatedAt:  updatedAt,
		})
	}

	return model.RankMatches(matches, limit), nil
}
