package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/magpipe/recurra/pkg/domain/model"
)

type alertLogRepository struct {
	mu   sync.RWMutex
	logs map[model.RuleID][]*model.AlertLog
}

func newAlertLogRepository() *alertLogRepository {
	return &alertLogRepository{
		logs: make(map[model.RuleID][]*model.AlertLog),
	}
}

func (r *alertLogRepository) Put(ctx context.Context, log *model.AlertLog) error {
	copied := *log
	if copied.ID == "" {
		copied.ID = model.NewAlertLogID()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs[log.RuleID] = append(r.logs[log.RuleID], &copied)
	return nil
}

func (r *alertLogRepository) ListByRule(ctx context.Context, ruleID model.RuleID, limit int) ([]*model.AlertLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.logs[ruleID]
	result := make([]*model.AlertLog, 0, len(entries))
	for _, entry := range entries {
		copied := *entry
		result = append(result, &copied)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
