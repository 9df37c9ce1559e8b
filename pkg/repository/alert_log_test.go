package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/magpipe/recurra/pkg/domain/interfaces"
	"github.com/magpipe/recurra/pkg/domain/model"
	"github.com/magpipe/recurra/pkg/domain/types"
)

func runAlertLogRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("ListByRule returns newest first within limit", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		ruleID := model.NewRuleID()

		statuses := []types.AlertStatus{types.AlertStatusFired, types.AlertStatusSuppressed, types.AlertStatusFailed}
		for i, st := range statuses {
			gt.NoError(t, repo.AlertLog().Put(ctx, &model.AlertLog{
				ID:         model.NewAlertLogID(),
				RuleID:     ruleID,
				AgentID:    "agent-1",
				MemoryID:   "memory-1",
				Status:     st,
				MatchCount: int64(3 + i),
				ActionType: types.ActionTypeWebhook,
				CreatedAt:  base.Add(time.Duration(i) * time.Minute),
			})).Required()
		}
		gt.NoError(t, repo.AlertLog().Put(ctx, &model.AlertLog{
			ID:        model.NewAlertLogID(),
			RuleID:    model.NewRuleID(),
			Status:    types.AlertStatusFired,
			CreatedAt: base,
		})).Required()

		logs, err := repo.AlertLog().ListByRule(ctx, ruleID, 2)
		gt.NoError(t, err).Required()
		gt.Array(t, logs).Length(2)
		gt.Value(t, logs[0].Status).Equal(types.AlertStatusFailed)
		gt.Value(t, logs[1].Status).Equal(types.AlertStatusSuppressed)
		gt.Number(t, logs[0].MatchCount).Equal(5)

		all, err := repo.AlertLog().ListByRule(ctx, ruleID, 0)
		gt.NoError(t, err).Required()
		gt.Array(t, all).Length(3)
	})

	t.Run("unknown rule has no history", func(t *testing.T) {
		repo := newRepo(t)
		logs, err := repo.AlertLog().ListByRule(context.Background(), model.NewRuleID(), 10)
		gt.NoError(t, err).Required()
		gt.Array(t, logs).Length(0)
	})
}

func TestAlertLogRepository_Memory(t *testing.T) {
	runAlertLogRepositoryTest(t, newMemoryRepository)
}

func TestAlertLogRepository_SQLite(t *testing.T) {
	runAlertLogRepositoryTest(t, newSQLiteRepository)
}

func TestAlertLogRepository_Firestore(t *testing.T) {
	runAlertLogRepositoryTest(t, newFirestoreRepository)
}
