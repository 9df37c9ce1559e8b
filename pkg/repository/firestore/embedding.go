package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/domain/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const distanceResultField = "VectorDistance"

// embeddingStore keeps vectors in their own collection so that FindNearest
// can be scoped by AgentID with a single-field pre-filter.
type embeddingStore struct {
	*base
}

type embeddingDoc struct {
	MemoryID       string             `firestore:"MemoryID"`
	AgentID        string             `firestore:"AgentID"`
	ContactID      string             `firestore:"ContactID"`
	Embedding      firestore.Vector32 `firestore:"Embedding"`
	UpdatedAt      time.Time          `firestore:"UpdatedAt"`
	VectorDistance float64            `firestore:"VectorDistance,omitempty"`
}

func (s *embeddingStore) Upsert(ctx context.Context, rec *model.EmbeddingRecord) error {
	doc := &embeddingDoc{
		MemoryID:  string(rec.MemoryID),
		AgentID:   string(rec.AgentID),
		ContactID: string(rec.ContactID),
		Embedding: firestore.Vector32(rec.Vector),
		UpdatedAt: rec.UpdatedAt,
	}

	if _, err := s.collection(collectionEmbeddings).Doc(string(rec.MemoryID)).Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to upsert embedding", goerr.V("memoryID", rec.MemoryID))
	}
	return nil
}

func (s *embeddingStore) Delete(ctx context.Context, id model.MemoryID) error {
	if _, err := s.collection(collectionEmbeddings).Doc(string(id)).Delete(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return goerr.Wrap(err, "failed to delete embedding", goerr.V("memoryID", id))
	}
	return nil
}

func (s *embeddingStore) DeleteByAgent(ctx context.Context, agentID model.AgentID) error {
	q := s.collection(collectionEmbeddings).Where("AgentID", "==", string(agentID))
	if _, err := deleteQuery(ctx, s.client, q); err != nil {
		return goerr.Wrap(err, "failed to delete embeddings", goerr.V("agentID", agentID))
	}
	return nil
}

func (s *embeddingStore) Search(ctx context.Context, agentID model.AgentID, query []float32, excludeContactID model.ContactID, limit int) ([]model.EmbeddingMatch, error) {
	if limit <= 0 || len(query) == 0 {
		return []model.EmbeddingMatch{}, nil
	}

	// one extra neighbor so that excluding the caller still leaves limit hits
	n := limit
	if excludeContactID != "" {
		n++
	}
	if n > maxNearestLimit {
		n = maxNearestLimit
	}

	vq := s.collection(collectionEmbeddings).
		Where("AgentID", "==", string(agentID)).
		FindNearest("Embedding", firestore.Vector32(query), n, firestore.DistanceMeasureCosine,
			&firestore.FindNearestOptions{DistanceResultField: distanceResultField})

	iter := vq.Documents(ctx)
	defer iter.Stop()

	var matches []model.EmbeddingMatch
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to search embeddings", goerr.V("agentID", agentID))
		}

		var d embeddingDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal embedding", goerr.V("id", snap.Ref.ID))
		}
		if excludeContactID != "" && model.ContactID(d.ContactID) == excludeContactID {
			continue
		}
		if len(d.Embedding) != len(query) {
			continue
		}

		matches = append(matches, model.EmbeddingMatch{
			MemoryID:   model.MemoryID(d.MemoryID),
			ContactID:  model.ContactID(d.ContactID),
			Similarity: 1 - d.VectorDistance,
			UpdatedAt:  d.UpdatedAt,
		})
	}

	return model.RankMatches(matches, limit), nil
}
