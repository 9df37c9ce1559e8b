package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/domain/model"
)

type agentConfigRepository struct {
	db *sql.DB
}

func scanAgentConfig(row scanner) (*model.AgentConfig, error) {
	var (
		cfg     model.AgentConfig
		enabled int
	)
	if err := row.Scan(&cfg.AgentID, &cfg.Name, &enabled,
		&cfg.SemanticMemory.SimilarityThreshold, &cfg.SemanticMemory.MaxResults); err != nil {
		return nil, err
	}
	cfg.SemanticMemory.Enabled = enabled != 0
	return &cfg, nil
}

func (r *agentConfigRepository) Get(ctx context.Context, agentID model.AgentID) (*model.AgentConfig, error) {
	cfg, err := scanAgentConfig(r.db.QueryRowContext(ctx, `
SELECT agent_id, name, enabled, similarity_threshold, max_results
FROM agent_configs WHERE agent_id = ?`, agentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goerr.Wrap(model.ErrNotFound, "agent config not found", goerr.V("agentID", agentID))
		}
		return nil, goerr.Wrap(err, "failed to get agent config", goerr.V("agentID", agentID))
	}
	return cfg, nil
}

func (r *agentConfigRepository) Put(ctx context.Context, cfg *model.AgentConfig) error {
	if _, err := r.db.ExecContext(ctx, `
INSERT INTO agent_configs(agent_id, name, enabled, similarity_threshold, max_results)
VALUES(?, ?, ?, ?, ?)
ON CONFLICT(agent_id) DO UPDATE SET
	name = excluded.name,
	enabled = excluded.enabled,
	similarity_threshold = excluded.similarity_threshold,
	max_results = excluded.max_results`,
		cfg.AgentID, cfg.Name, boolToInt(cfg.SemanticMemory.Enabled),
		cfg.SemanticMemory.SimilarityThreshold, cfg.SemanticMemory.MaxResults,
	); err != nil {
		return goerr.Wrap(err, "failed to put agent config", goerr.V("agentID", cfg.AgentID))
	}
	return nil
}

func (r *agentConfigRepository) List(ctx context.Context) ([]*model.AgentConfig, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT agent_id, name, enabled, similarity_threshold, max_results
FROM agent_configs ORDER BY agent_id`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query agent configs")
	}
	defer rows.Close()

	result := make([]*model.AgentConfig, 0)
	for rows.Next() {
		cfg, err := scanAgentConfig(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan agent config")
		}
		result = append(result, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate agent configs")
	}
	return result, nil
}
