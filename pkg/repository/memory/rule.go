package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/domain/model"
	"github.com/magpipe/recurra/pkg/domain/types"
)

type ruleRepository struct {
	mu    sync.RWMutex
	rules map[model.RuleID]*model.SemanticMatchAction
}

func newRuleRepository() *ruleRepository {
	return &ruleRepository{
		rules: make(map[model.RuleID]*model.SemanticMatchAction),
	}
}

func ruleNotFound(id model.RuleID) error {
	return goerr.Wrap(model.ErrNotFound, "rule not found", goerr.V("ruleID", id))
}

func (r *ruleRepository) Create(ctx context.Context, rule *model.SemanticMatchAction) (*model.SemanticMatchAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	created := rule.Clone()
	if created.ID == "" {
		created.ID = model.NewRuleID()
	}
	if _, exists := r.rules[created.ID]; exists {
		return nil, goerr.New("rule already exists", goerr.V("ruleID", created.ID))
	}

	now := time.Now().UTC()
	created.CreatedAt = now
	created.UpdatedAt = now
	created.TriggerCount = 0
	created.LastTriggeredAt = nil
	created.Lease = nil

	r.rules[created.ID] = created
	return created.Clone(), nil
}

func (r *ruleRepository) Get(ctx context.Context, id model.RuleID) (*model.SemanticMatchAction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rule, exists := r.rules[id]
	if !exists {
		return nil, ruleNotFound(id)
	}
	return rule.Clone(), nil
}

func (r *ruleRepository) list(agentID model.AgentID, activeOnly bool) []*model.SemanticMatchAction {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*model.SemanticMatchAction, 0)
	for _, rule := range r.rules {
		if rule.AgentID != agentID || (activeOnly && !rule.IsActive) {
			continue
		}
		result = append(result, rule.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

func (r *ruleRepository) ListByAgent(ctx context.Context, agentID model.AgentID) ([]*model.SemanticMatchAction, error) {
	return r.list(agentID, false), nil
}

func (r *ruleRepository) ListActiveByAgent(ctx context.Context, agentID model.AgentID) ([]*model.SemanticMatchAction, error) {
	return r.list(agentID, true), nil
}

func (r *ruleRepository) Update(ctx context.Context, rule *model.SemanticMatchAction) (*model.SemanticMatchAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.rules[rule.ID]
	if !exists {
		return nil, ruleNotFound(rule.ID)
	}
	stored.ApplyConfig(rule, time.Now().UTC())
	return stored.Clone(), nil
}

func (r *ruleRepository) SetActive(ctx context.Context, id model.RuleID, active bool) (*model.SemanticMatchAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.rules[id]
	if !exists {
		return nil, ruleNotFound(id)
	}
	stored.IsActive = active
	stored.UpdatedAt = time.Now().UTC()
	return stored.Clone(), nil
}

func (r *ruleRepository) Delete(ctx context.Context, id model.RuleID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rules[id]; !exists {
		return ruleNotFound(id)
	}
	delete(r.rules, id)
	return nil
}

func (r *ruleRepository) AcquireDispatch(ctx context.Context, id model.RuleID, now time.Time, leaseTTL time.Duration) (*model.DispatchLease, types.SuppressReason, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.rules[id]
	if !exists {
		return nil, types.SuppressNotFound, ruleNotFound(id)
	}
	if reason := stored.DispatchBlocker(now); reason != types.SuppressNone {
		return nil, reason, nil
	}

	lease := model.NewDispatchLease(now, leaseTTL)
	stored.Lease = lease
	copied := *lease
	return &copied, types.SuppressNone, nil
}

func (r *ruleRepository) CompleteDispatch(ctx context.Context, id model.RuleID, token string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.rules[id]
	if !exists {
		return ruleNotFound(id)
	}
	if stored.Lease == nil || stored.Lease.Token != token {
		return goerr.Wrap(model.ErrLeaseLost, "dispatch lease is not held", goerr.V("ruleID", id))
	}

	triggered := now
	stored.LastTriggeredAt = &triggered
	stored.TriggerCount++
	stored.Lease = nil
	return nil
}

func (r *ruleRepository) ReleaseDispatch(ctx context.Context, id model.RuleID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.rules[id]
	if !exists {
		return ruleNotFound(id)
	}
	if stored.Lease != nil && stored.Lease.Token == token {
		stored.Lease = nil
	}
	return nil
}
