package firestore

import (
	"context"
	"errors"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/domain/model"
	"github.com/magpipe/recurra/pkg/domain/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type memoryRepository struct {
	*base
}

type callRecordDoc struct {
	CallID          string    `firestore:"CallID"`
	StartedAt       time.Time `firestore:"StartedAt"`
	DurationSeconds int       `firestore:"DurationSeconds"`
	Summary         string    `firestore:"Summary"`
	Sentiment       string    `firestore:"Sentiment"`
	Direction       string    `firestore:"Direction"`
}

type memoryDoc struct {
	ID                 string             `firestore:"ID"`
	AgentID            string             `firestore:"AgentID"`
	ContactID          string             `firestore:"ContactID"`
	ContactName        string             `firestore:"ContactName"`
	ContactPhone       string             `firestore:"ContactPhone"`
	Summary            string             `firestore:"Summary"`
	KeyTopics          []string           `firestore:"KeyTopics"`
	Preferences        map[string]string  `firestore:"Preferences"`
	CallHistory        []callRecordDoc    `firestore:"CallHistory"`
	InteractionCount   int64              `firestore:"InteractionCount"`
	Direction          string             `firestore:"Direction"`
	Embedding          firestore.Vector32 `firestore:"Embedding,omitempty"`
	HasEmbedding       bool               `firestore:"HasEmbedding"`
	SemanticMatchCount int64              `firestore:"SemanticMatchCount"`
	CreatedAt          time.Time          `firestore:"CreatedAt"`
	UpdatedAt          time.Time          `firestore:"UpdatedAt"`
}

func toMemoryDoc(m *model.Memory) *memoryDoc {
	calls := make([]callRecordDoc, len(m.CallHistory))
	for i, c := range m.CallHistory {
		calls[i] = callRecordDoc{
			CallID:          c.CallID,
			StartedAt:       c.StartedAt,
			DurationSeconds: c.DurationSeconds,
			Summary:         c.Summary,
			Sentiment:       c.Sentiment,
			Direction:       string(c.Direction),
		}
	}

	var vec firestore.Vector32
	if m.HasEmbedding() {
		vec = firestore.Vector32(m.Embedding)
	}

	return &memoryDoc{
		ID:                 string(m.ID),
		AgentID:            string(m.AgentID),
		ContactID:          string(m.ContactID),
		ContactName:        m.ContactName,
		ContactPhone:       m.ContactPhone,
		Summary:            m.Summary,
		KeyTopics:          m.KeyTopics,
		Preferences:        m.Preferences,
		CallHistory:        calls,
		InteractionCount:   m.InteractionCount,
		Direction:          string(m.Direction),
		Embedding:          vec,
		HasEmbedding:       m.HasEmbedding(),
		SemanticMatchCount: m.SemanticMatchCount,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

func (d *memoryDoc) toModel() *model.Memory {
	var calls []model.CallRecord
	if len(d.CallHistory) > 0 {
		calls = make([]model.CallRecord, len(d.CallHistory))
		for i, c := range d.CallHistory {
			calls[i] = model.CallRecord{
				CallID:          c.CallID,
				StartedAt:       c.StartedAt,
				DurationSeconds: c.DurationSeconds,
				Summary:         c.Summary,
				Sentiment:       c.Sentiment,
				Direction:       types.Direction(c.Direction),
			}
		}
	}

	topics := d.KeyTopics
	if topics == nil {
		topics = []string{}
	}

	var vec []float32
	if len(d.Embedding) > 0 {
		vec = []float32(d.Embedding)
	}

	return &model.Memory{
		ID:                 model.MemoryID(d.ID),
		AgentID:            model.AgentID(d.AgentID),
		ContactID:          model.ContactID(d.ContactID),
		ContactName:        d.ContactName,
		ContactPhone:       d.ContactPhone,
		Summary:            d.Summary,
		KeyTopics:          topics,
		Preferences:        d.Preferences,
		CallHistory:        calls,
		InteractionCount:   d.InteractionCount,
		Direction:          types.Direction(d.Direction),
		Embedding:          vec,
		SemanticMatchCount: d.SemanticMatchCount,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

func notFound(kind, id string) error {
	return goerr.Wrap(model.ErrNotFound, kind+" not found", goerr.V("id", id))
}

func (r *memoryRepository) Get(ctx context.Context, id model.MemoryID) (*model.Memory, error) {
	snap, err := r.collection(collectionMemories).Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, notFound("memory", string(id))
		}
		return nil, goerr.Wrap(err, "failed to get memory", goerr.V("id", id))
	}

	var d memoryDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal memory", goerr.V("id", id))
	}
	return d.toModel(), nil
}

func (r *memoryRepository) ListByAgent(ctx context.Context, agentID model.AgentID) ([]*model.Memory, error) {
	iter := r.collection(collectionMemories).
		Where("AgentID", "==", string(agentID)).
		Documents(ctx)
	defer iter.Stop()

	memories, err := collectDocs(iter, (*memoryDoc).toModel)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list memories", goerr.V("agentID", agentID))
	}

	sort.Slice(memories, func(i, j int) bool {
		return memories[i].UpdatedAt.After(memories[j].UpdatedAt)
	})
	return memories, nil
}

func (r *memoryRepository) ListMissingEmbedding(ctx context.Context, limit int) ([]*model.Memory, error) {
	q := r.collection(collectionMemories).
		Where("HasEmbedding", "==", false).
		OrderBy("UpdatedAt", firestore.Asc)
	iter := q.Documents(ctx)
	defer iter.Stop()

	all, err := collectDocs(iter, (*memoryDoc).toModel)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list memories without embedding")
	}

	result := make([]*model.Memory, 0)
	for _, m := range all {
		if m.EmbeddingText() == "" {
			continue
		}
		result = append(result, m)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (r *memoryRepository) ListEmbedded(ctx context.Context) ([]*model.Memory, error) {
	iter := r.collection(collectionMemories).
		Where("HasEmbedding", "==", true).
		Documents(ctx)
	defer iter.Stop()

	memories, err := collectDocs(iter, (*memoryDoc).toModel)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list embedded memories")
	}
	return memories, nil
}

func (r *memoryRepository) Upsert(ctx context.Context, agentID model.AgentID, contactID model.ContactID, patch *model.MemoryPatch) (*model.Memory, bool, error) {
	if err := patch.Validate(); err != nil {
		return nil, false, err
	}

	id := model.NewMemoryID(agentID, contactID)
	ref := r.collection(collectionMemories).Doc(string(id))

	var (
		result   *model.Memory
		required bool
	)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		now := time.Now().UTC()

		var mem *model.Memory
		snap, err := tx.Get(ref)
		switch {
		case status.Code(err) == codes.NotFound:
			mem = model.NewMemory(agentID, contactID, patch.Direction, now)
		case err != nil:
			return goerr.Wrap(err, "failed to get memory in transaction")
		default:
			var d memoryDoc
			if err := snap.DataTo(&d); err != nil {
				return goerr.Wrap(err, "failed to unmarshal memory")
			}
			mem = d.toModel()
		}

		required = mem.Apply(patch, now)
		result = mem
		return tx.Set(ref, toMemoryDoc(mem))
	})
	if err != nil {
		return nil, false, goerr.Wrap(err, "failed to upsert memory",
			goerr.V("agentID", agentID),
			goerr.V("contactID", contactID),
		)
	}

	return result, required, nil
}

func (r *memoryRepository) update(ctx context.Context, id model.MemoryID, updates []firestore.Update) error {
	_, err := r.collection(collectionMemories).Doc(string(id)).Update(ctx, updates)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return notFound("memory", string(id))
		}
		return goerr.Wrap(err, "failed to update memory", goerr.V("id", id))
	}
	return nil
}

func (r *memoryRepository) SetEmbedding(ctx context.Context, id model.MemoryID, text string, vector []float32) error {
	ref := r.collection(collectionMemories).Doc(string(id))

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var d memoryDoc
		if err := snap.DataTo(&d); err != nil {
			return goerr.Wrap(err, "failed to unmarshal memory")
		}
		if d.toModel().EmbeddingText() != text {
			return goerr.Wrap(model.ErrStaleEmbedding, "memory was updated while embedding", goerr.V("id", id))
		}

		return tx.Update(ref, []firestore.Update{
			{Path: "Embedding", Value: firestore.Vector32(vector)},
			{Path: "HasEmbedding", Value: len(vector) > 0},
		}, firestore.LastUpdateTime(snap.UpdateTime))
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return notFound("memory", string(id))
		}
		if errors.Is(err, model.ErrStaleEmbedding) {
			return err
		}
		return goerr.Wrap(err, "failed to set memory embedding", goerr.V("id", id))
	}
	return nil
}

func (r *memoryRepository) ClearEmbedding(ctx context.Context, id model.MemoryID) error {
	return r.update(ctx, id, []firestore.Update{
		{Path: "Embedding", Value: firestore.Delete},
		{Path: "HasEmbedding", Value: false},
	})
}

func (r *memoryRepository) IncrementMatchCount(ctx context.Context, id model.MemoryID, delta int64) (*model.Memory, error) {
	if delta <= 0 {
		return nil, goerr.Wrap(model.ErrInvalidMemory, "match count delta must be positive", goerr.V("delta", delta))
	}

	if err := r.update(ctx, id, []firestore.Update{
		{Path: "SemanticMatchCount", Value: firestore.Increment(delta)},
	}); err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

func (r *memoryRepository) Delete(ctx context.Context, id model.MemoryID) error {
	ref := r.collection(collectionMemories).Doc(string(id))
	if _, err := ref.Delete(ctx, firestore.Exists); err != nil {
		if status.Code(err) == codes.NotFound {
			return notFound("memory", string(id))
		}
		return goerr.Wrap(err, "failed to delete memory", goerr.V("id", id))
	}
	return nil
}

func (r *memoryRepository) DeleteAllForAgent(ctx context.Context, agentID model.AgentID) (int, error) {
	q := r.collection(collectionMemories).Where("AgentID", "==", string(agentID))
	n, err := deleteQuery(ctx, r.client, q)
	if err != nil {
		return n, goerr.Wrap(err, "failed to delete memories", goerr.V("agentID", agentID))
	}
	return n, nil
}
