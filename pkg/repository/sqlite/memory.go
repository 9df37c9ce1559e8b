package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/domain/model"
	"github.com/magpipe/recurra/pkg/domain/types"
)

type memoryRepository struct {
	db *sql.DB
}

const memoryColumns = `id, agent_id, contact_id, contact_name, contact_phone, summary,
	key_topics_json, preferences_json, call_history_json, interaction_count, direction,
	embedding, semantic_match_count, created_at_ns, updated_at_ns`

func scanMemory(row scanner) (*model.Memory, error) {
	var (
		m                                  model.Memory
		topicsJSON, prefsJSON, historyJSON string
		direction                          string
		embedding                          []byte
		createdNS, updatedNS               int64
	)
	if err := row.Scan(
		&m.ID, &m.AgentID, &m.ContactID, &m.ContactName, &m.ContactPhone, &m.Summary,
		&topicsJSON, &prefsJSON, &historyJSON, &m.InteractionCount, &direction,
		&embedding, &m.SemanticMatchCount, &createdNS, &updatedNS,
	); err != nil {
		return nil, err
	}

	if err := decodeJSON(topicsJSON, &m.KeyTopics); err != nil {
		return nil, err
	}
	if err := decodeJSON(prefsJSON, &m.Preferences); err != nil {
		return nil, err
	}
	if err := decodeJSON(historyJSON, &m.CallHistory); err != nil {
		return nil, err
	}
	vector, err := decodeVector(embedding)
	if err != nil {
		return nil, err
	}

	m.Embedding = vector
	m.Direction = types.Direction(direction)
	m.CreatedAt = fromNS(createdNS)
	m.UpdatedAt = fromNS(updatedNS)
	return &m, nil
}

func notFound(id model.MemoryID) error {
	return goerr.Wrap(model.ErrNotFound, "memory not found", goerr.V("memoryID", id))
}

func (r *memoryRepository) Get(ctx context.Context, id model.MemoryID) (*model.Memory, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+memoryColumns+` FROM memories WHERE id = ?`, id)
	mem, err := scanMemory(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, goerr.Wrap(err, "failed to get memory", goerr.V("memoryID", id))
	}
	return mem, nil
}

func (r *memoryRepository) queryMemories(ctx context.Context, query string, args ...any) ([]*model.Memory, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query memories")
	}
	defer rows.Close()

	result := make([]*model.Memory, 0)
	for rows.Next() {
		mem, err := scanMemory(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan memory")
		}
		result = append(result, mem)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate memories")
	}
	return result, nil
}

func (r *memoryRepository) ListByAgent(ctx context.Context, agentID model.AgentID) ([]*model.Memory, error) {
	return r.queryMemories(ctx,
		`SELECT `+memoryColumns+` FROM memories WHERE agent_id = ? ORDER BY updated_at_ns DESC`, agentID)
}

func (r *memoryRepository) ListMissingEmbedding(ctx context.Context, limit int) ([]*model.Memory, error) {
	candidates, err := r.queryMemories(ctx,
		`SELECT `+memoryColumns+` FROM memories WHERE embedding IS NULL ORDER BY updated_at_ns ASC`)
	if err != nil {
		return nil, err
	}

	result := make([]*model.Memory, 0)
	for _, m := range candidates {
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
	return r.queryMemories(ctx,
		`SELECT `+memoryColumns+` FROM memories WHERE embedding IS NOT NULL`)
}

func (r *memoryRepository) Upsert(ctx context.Context, agentID model.AgentID, contactID model.ContactID, patch *model.MemoryPatch) (*model.Memory, bool, error) {
	if err := patch.Validate(); err != nil {
		return nil, false, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, goerr.Wrap(err, "failed to begin upsert transaction")
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	id := model.NewMemoryID(agentID, contactID)

	mem, err := scanMemory(tx.QueryRowContext(ctx, `SELECT `+memoryColumns+` FROM memories WHERE id = ?`, id))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		mem = model.NewMemory(agentID, contactID, patch.Direction, now)
	case err != nil:
		return nil, false, goerr.Wrap(err, "failed to load memory for upsert", goerr.V("memoryID", id))
	}

	required := mem.Apply(patch, now)

	topicsJSON, err := encodeJSON(mem.KeyTopics)
	if err != nil {
		return nil, false, err
	}
	prefsJSON, err := encodeJSON(mem.Preferences)
	if err != nil {
		return nil, false, err
	}
	historyJSON, err := encodeJSON(mem.CallHistory)
	if err != nil {
		return nil, false, err
	}
	var embedding []byte
	if mem.HasEmbedding() {
		embedding = encodeVector(mem.Embedding)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO memories(id, agent_id, contact_id, contact_name, contact_phone, summary,
	key_topics_json, preferences_json, call_history_json, interaction_count, direction,
	embedding, semantic_match_count, created_at_ns, updated_at_ns)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	contact_name = excluded.contact_name,
	contact_phone = excluded.contact_phone,
	summary = excluded.summary,
	key_topics_json = excluded.key_topics_json,
	preferences_json = excluded.preferences_json,
	call_history_json = excluded.call_history_json,
	interaction_count = excluded.interaction_count,
	embedding = excluded.embedding,
	updated_at_ns = excluded.updated_at_ns`,
		mem.ID, mem.AgentID, mem.ContactID, mem.ContactName, mem.ContactPhone, mem.Summary,
		topicsJSON, prefsJSON, historyJSON, mem.InteractionCount, string(mem.Direction),
		embedding, toNS(mem.CreatedAt), toNS(mem.UpdatedAt),
	); err != nil {
		return nil, false, goerr.Wrap(err, "failed to upsert memory", goerr.V("memoryID", id))
	}

	if err := tx.Commit(); err != nil {
		return nil, false, goerr.Wrap(err, "failed to commit memory upsert", goerr.V("memoryID", id))
	}
	return mem, required, nil
}

func (r *memoryRepository) setEmbedding(ctx context.Context, id model.MemoryID, blob []byte) error {
	res, err := r.db.ExecContext(ctx, `UPDATE memories SET embedding = ? WHERE id = ?`, blob, id)
	if err != nil {
		return goerr.Wrap(err, "failed to update memory embedding", goerr.V("memoryID", id))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(id)
	}
	return nil
}

func (r *memoryRepository) SetEmbedding(ctx context.Context, id model.MemoryID, text string, vector []float32) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to begin embedding transaction")
	}
	defer func() { _ = tx.Rollback() }()

	mem, err := scanMemory(tx.QueryRowContext(ctx, `SELECT `+memoryColumns+` FROM memories WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(id)
		}
		return goerr.Wrap(err, "failed to load memory for embedding", goerr.V("memoryID", id))
	}
	if mem.EmbeddingText() != text {
		return goerr.Wrap(model.ErrStaleEmbedding, "memory was updated while embedding", goerr.V("memoryID", id))
	}

	var blob []byte
	if len(vector) > 0 {
		blob = encodeVector(vector)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE memories SET embedding = ? WHERE id = ? AND updated_at_ns = ?`,
		blob, id, toNS(mem.UpdatedAt)); err != nil {
		return goerr.Wrap(err, "failed to update memory embedding", goerr.V("memoryID", id))
	}

	if err := tx.Commit(); err != nil {
		return goerr.Wrap(err, "failed to commit memory embedding", goerr.V("memoryID", id))
	}
	return nil
}

func (r *memoryRepository) ClearEmbedding(ctx context.Context, id model.MemoryID) error {
	return r.setEmbedding(ctx, id, nil)
}

func (r *memoryRepository) IncrementMatchCount(ctx context.Context, id model.MemoryID, delta int64) (*model.Memory, error) {
	if delta <= 0 {
		return nil, goerr.Wrap(model.ErrInvalidMemory, "match count delta must be positive", goerr.V("delta", delta))
	}

	row := r.db.QueryRowContext(ctx, `
UPDATE memories SET semantic_match_count = semantic_match_count + ?
WHERE id = ?
RETURNING `+memoryColumns, delta, id)

	mem, err := scanMemory(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, goerr.Wrap(err, "failed to increment match count", goerr.V("memoryID", id))
	}
	return mem, nil
}

func (r *memoryRepository) Delete(ctx context.Context, id model.MemoryID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return goerr.Wrap(err, "failed to delete memory", goerr.V("memoryID", id))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(id)
	}
	return nil
}

func (r *memoryRepository) DeleteAllForAgent(ctx context.Context, agentID model.AgentID) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM memories WHERE agent_id = ?`, agentID)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to delete memories", goerr.V("agentID", agentID))
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
