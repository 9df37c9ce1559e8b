package sqlite

import (
	"context"
	"database/sql"

	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/domain/model"
)

// embeddingStore keeps vectors as blobs and ranks them in process. The scan
// is limited to a single agent's rows by index.
type embeddingStore struct {
	db *sql.DB
}

func (s *embeddingStore) Upsert(ctx context.Context, rec *model.EmbeddingRecord) error {
	if len(rec.Vector) == 0 {
		return goerr.New("embedding vector is empty", goerr.V("memoryID", rec.MemoryID))
	}

	if _, err := s.db.ExecContext(ctx, `
INSERT INTO memory_embeddings(memory_id, agent_id, contact_id, vector, updated_at_ns)
VALUES(?, ?, ?, ?, ?)
ON CONFLICT(memory_id) DO UPDATE SET
	agent_id = excluded.agent_id,
	contact_id = excluded.contact_id,
	vector = excluded.vector,
	updated_at_ns = excluded.updated_at_ns`,
		rec.MemoryID, rec.AgentID, rec.ContactID, encodeVector(rec.Vector), toNS(rec.UpdatedAt),
	); err != nil {
		return goerr.Wrap(err, "failed to upsert embedding", goerr.V("memoryID", rec.MemoryID))
	}
	return nil
}

func (s *embeddingStore) Delete(ctx context.Context, id model.MemoryID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM memory_embeddings WHERE memory_id = ?`, id); err != nil {
		return goerr.Wrap(err, "failed to delete embedding", goerr.V("memoryID", id))
	}
	return nil
}

func (s *embeddingStore) DeleteByAgent(ctx context.Context, agentID model.AgentID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM memory_embeddings WHERE agent_id = ?`, agentID); err != nil {
		return goerr.Wrap(err, "failed to delete embeddings", goerr.V("agentID", agentID))
	}
	return nil
}

func (s *embeddingStore) Search(ctx context.Context, agentID model.AgentID, query []float32, excludeContactID model.ContactID, limit int) ([]model.EmbeddingMatch, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT memory_id, contact_id, vector, updated_at_ns
FROM memory_embeddings
WHERE agent_id = ? AND (? = '' OR contact_id != ?)`,
		agentID, excludeContactID, excludeContactID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query embeddings", goerr.V("agentID", agentID))
	}
	defer rows.Close()

	var matches []model.EmbeddingMatch
	for rows.Next() {
		var (
			m         model.EmbeddingMatch
			blob      []byte
			updatedNS int64
		)
		if err := rows.Scan(&m.MemoryID, &m.ContactID, &blob, &updatedNS); err != nil {
			return nil, goerr.Wrap(err, "failed to scan embedding")
		}
		vector, err := decodeVector(blob)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to decode embedding", goerr.V("memoryID", m.MemoryID))
		}
		if len(vector) != len(query) {
			continue
		}
		m.Similarity = model.CosineSimilarity(query, vector)
		m.UpdatedAt = fromNS(updatedNS)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate embeddings")
	}

	return model.RankMatches(matches, limit), nil
}
