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

type ruleRepository struct {
	db *sql.DB
}

const ruleColumns = `id, agent_id, name, monitored_topics_json, match_threshold, cooldown_minutes,
	action_config_json, is_active, trigger_count, last_triggered_at_ns, lease_token, lease_until_ns,
	created_at_ns, updated_at_ns`

func scanRule(row scanner) (*model.SemanticMatchAction, error) {
	var (
		r                    model.SemanticMatchAction
		topicsJSON, cfgJSON  string
		isActive             int
		lastTriggered        sql.NullInt64
		leaseToken           string
		leaseUntilNS         int64
		createdNS, updatedNS int64
	)
	if err := row.Scan(
		&r.ID, &r.AgentID, &r.Name, &topicsJSON, &r.MatchThreshold, &r.CooldownMinutes,
		&cfgJSON, &isActive, &r.TriggerCount, &lastTriggered, &leaseToken, &leaseUntilNS,
		&createdNS, &updatedNS,
	); err != nil {
		return nil, err
	}

	if err := decodeJSON(topicsJSON, &r.MonitoredTopics); err != nil {
		return nil, err
	}
	if err := decodeJSON(cfgJSON, &r.ActionConfig); err != nil {
		return nil, err
	}

	r.IsActive = isActive != 0
	r.LastTriggeredAt = fromNullNS(lastTriggered)
	if leaseToken != "" {
		r.Lease = &model.DispatchLease{Token: leaseToken, Until: fromNS(leaseUntilNS)}
	}
	r.CreatedAt = fromNS(createdNS)
	r.UpdatedAt = fromNS(updatedNS)
	return &r, nil
}

func ruleNotFound(id model.RuleID) error {
	return goerr.Wrap(model.ErrNotFound, "rule not found", goerr.V("ruleID", id))
}

func (r *ruleRepository) Create(ctx context.Context, rule *model.SemanticMatchAction) (*model.SemanticMatchAction, error) {
	created := rule.Clone()
	if created.ID == "" {
		created.ID = model.NewRuleID()
	}
	now := time.Now().UTC()
	created.CreatedAt = now
	created.UpdatedAt = now
	created.TriggerCount = 0
	created.LastTriggeredAt = nil
	created.Lease = nil

	topicsJSON, err := encodeJSON(created.MonitoredTopics)
	if err != nil {
		return nil, err
	}
	cfgJSON, err := encodeJSON(created.ActionConfig)
	if err != nil {
		return nil, err
	}

	if _, err := r.db.ExecContext(ctx, `
INSERT INTO rules(id, agent_id, name, monitored_topics_json, match_threshold, cooldown_minutes,
	action_config_json, is_active, trigger_count, last_triggered_at_ns, lease_token, lease_until_ns,
	created_at_ns, updated_at_ns)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, 0, NULL, '', 0, ?, ?)`,
		created.ID, created.AgentID, created.Name, topicsJSON, created.MatchThreshold, created.CooldownMinutes,
		cfgJSON, boolToInt(created.IsActive), toNS(now), toNS(now),
	); err != nil {
		return nil, goerr.Wrap(err, "failed to create rule", goerr.V("ruleID", created.ID))
	}
	return created, nil
}

func (r *ruleRepository) Get(ctx context.Context, id model.RuleID) (*model.SemanticMatchAction, error) {
	rule, err := scanRule(r.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM rules WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ruleNotFound(id)
		}
		return nil, goerr.Wrap(err, "failed to get rule", goerr.V("ruleID", id))
	}
	return rule, nil
}

func (r *ruleRepository) list(ctx context.Context, query string, args ...any) ([]*model.SemanticMatchAction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query rules")
	}
	defer rows.Close()

	result := make([]*model.SemanticMatchAction, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan rule")
		}
		result = append(result, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate rules")
	}
	return result, nil
}

func (r *ruleRepository) ListByAgent(ctx context.Context, agentID model.AgentID) ([]*model.SemanticMatchAction, error) {
	return r.list(ctx, `SELECT `+ruleColumns+` FROM rules WHERE agent_id = ? ORDER BY created_at_ns ASC`, agentID)
}

func (r *ruleRepository) ListActiveByAgent(ctx context.Context, agentID model.AgentID) ([]*model.SemanticMatchAction, error) {
	return r.list(ctx, `SELECT `+ruleColumns+` FROM rules WHERE agent_id = ? AND is_active = 1 ORDER BY created_at_ns ASC`, agentID)
}

func (r *ruleRepository) Update(ctx context.Context, rule *model.SemanticMatchAction) (*model.SemanticMatchAction, error) {
	topicsJSON, err := encodeJSON(rule.MonitoredTopics)
	if err != nil {
		return nil, err
	}
	cfgJSON, err := encodeJSON(rule.ActionConfig)
	if err != nil {
		return nil, err
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE rules SET
	name = ?, monitored_topics_json = ?, match_threshold = ?, cooldown_minutes = ?,
	action_config_json = ?, is_active = ?, updated_at_ns = ?
WHERE id = ?`,
		rule.Name, topicsJSON, rule.MatchThreshold, rule.CooldownMinutes,
		cfgJSON, boolToInt(rule.IsActive), toNS(time.Now().UTC()), rule.ID,
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to update rule", goerr.V("ruleID", rule.ID))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ruleNotFound(rule.ID)
	}
	return r.Get(ctx, rule.ID)
}

func (r *ruleRepository) SetActive(ctx context.Context, id model.RuleID, active bool) (*model.SemanticMatchAction, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE rules SET is_active = ?, updated_at_ns = ? WHERE id = ?`,
		boolToInt(active), toNS(time.Now().UTC()), id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to set rule active state", goerr.V("ruleID", id))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ruleNotFound(id)
	}
	return r.Get(ctx, id)
}

func (r *ruleRepository) Delete(ctx context.Context, id model.RuleID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id)
	if err != nil {
		return goerr.Wrap(err, "failed to delete rule", goerr.V("ruleID", id))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ruleNotFound(id)
	}
	return nil
}

// AcquireDispatch is a single conditional UPDATE: the WHERE clause carries the
// whole claim predicate, so two concurrent claims cannot both match.
func (r *ruleRepository) AcquireDispatch(ctx context.Context, id model.RuleID, now time.Time, leaseTTL time.Duration) (*model.DispatchLease, types.SuppressReason, error) {
	lease := model.NewDispatchLease(now, leaseTTL)
	nowNS := toNS(now)

	res, err := r.db.ExecContext(ctx, `
UPDATE rules SET lease_token = ?, lease_until_ns = ?
WHERE id = ?
	AND is_active = 1
	AND (lease_token = '' OR lease_until_ns <= ?)
	AND (last_triggered_at_ns IS NULL OR last_triggered_at_ns <= ? - cooldown_minutes * ?)`,
		lease.Token, toNS(lease.Until), id, nowNS, nowNS, int64(time.Minute),
	)
	if err != nil {
		return nil, types.SuppressNone, goerr.Wrap(err, "failed to acquire dispatch", goerr.V("ruleID", id))
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return lease, types.SuppressNone, nil
	}

	rule, err := r.Get(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, types.SuppressNotFound, err
		}
		return nil, types.SuppressNone, err
	}
	reason := rule.DispatchBlocker(now)
	if reason == types.SuppressNone {
		// state changed between the UPDATE and the read
		reason = types.SuppressInFlight
	}
	return nil, reason, nil
}

func (r *ruleRepository) CompleteDispatch(ctx context.Context, id model.RuleID, token string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE rules SET
	last_triggered_at_ns = ?, trigger_count = trigger_count + 1, lease_token = '', lease_until_ns = 0
WHERE id = ? AND lease_token = ?`, toNS(now), id, token)
	if err != nil {
		return goerr.Wrap(err, "failed to complete dispatch", goerr.V("ruleID", id))
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return goerr.Wrap(model.ErrLeaseLost, "dispatch lease is not held", goerr.V("ruleID", id))
}

func (r *ruleRepository) ReleaseDispatch(ctx context.Context, id model.RuleID, token string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE rules SET lease_token = '', lease_until_ns = 0
WHERE id = ? AND lease_token = ?`, id, token)
	if err != nil {
		return goerr.Wrap(err, "failed to release dispatch", goerr.V("ruleID", id))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
