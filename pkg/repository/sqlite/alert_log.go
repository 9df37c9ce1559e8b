package sqlite

import (
	"context"
	"database/sql"

	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/domain/model"
	"github.com/magpipe/recurra/pkg/domain/types"
)

type alertLogRepository struct {
	db *sql.DB
}

func (r *alertLogRepository) Put(ctx context.Context, log *model.AlertLog) error {
	id := log.ID
	if id == "" {
		id = model.NewAlertLogID()
	}

	if _, err := r.db.ExecContext(ctx, `
INSERT INTO alert_logs(id, rule_id, agent_id, memory_id, status, reason, match_count, action_type, created_at_ns)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, log.RuleID, log.AgentID, log.MemoryID, string(log.Status), log.Reason,
		log.MatchCount, string(log.ActionType), toNS(log.CreatedAt),
	); err != nil {
		return goerr.Wrap(err, "failed to put alert log", goerr.V("ruleID", log.RuleID))
	}
	return nil
}

func (r *alertLogRepository) ListByRule(ctx context.Context, ruleID model.RuleID, limit int) ([]*model.AlertLog, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id, rule_id, agent_id, memory_id, status, reason, match_count, action_type, created_at_ns
FROM alert_logs WHERE rule_id = ?
ORDER BY created_at_ns DESC
LIMIT ?`, ruleID, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query alert logs", goerr.V("ruleID", ruleID))
	}
	defer rows.Close()

	result := make([]*model.AlertLog, 0)
	for rows.Next() {
		var (
			l                  model.AlertLog
			status, actionType string
			createdNS          int64
		)
		if err := rows.Scan(&l.ID, &l.RuleID, &l.AgentID, &l.MemoryID, &status, &l.Reason,
			&l.MatchCount, &actionType, &createdNS); err != nil {
			return nil, goerr.Wrap(err, "failed to scan alert log")
		}
		l.Status = types.AlertStatus(status)
		l.ActionType = types.ActionType(actionType)
		l.CreatedAt = fromNS(createdNS)
		result = append(result, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate alert logs")
	}
	return result, nil
}
