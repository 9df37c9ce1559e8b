package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/domain/model"
	"github.com/magpipe/recurra/pkg/domain/types"
)

type alertLogRepository struct {
	*base
}

type alertLogDoc struct {
	ID         string    `firestore:"ID"`
	RuleID     string    `firestore:"RuleID"`
	AgentID    string    `firestore:"AgentID"`
	MemoryID   string    `firestore:"MemoryID"`
	Status     string    `firestore:"Status"`
	Reason     string    `firestore:"Reason"`
	MatchCount int64     `firestore:"MatchCount"`
	ActionType string    `firestore:"ActionType"`
	CreatedAt  time.Time `firestore:"CreatedAt"`
}

func (d *alertLogDoc) toModel() *model.AlertLog {
	return &model.AlertLog{
		ID:         model.AlertLogID(d.ID),
		RuleID:     model.RuleID(d.RuleID),
		AgentID:    model.AgentID(d.AgentID),
		MemoryID:   model.MemoryID(d.MemoryID),
		Status:     types.AlertStatus(d.Status),
		Reason:     d.Reason,
		MatchCount: d.MatchCount,
		ActionType: types.ActionType(d.ActionType),
		CreatedAt:  d.CreatedAt,
	}
}

func (r *alertLogRepository) Put(ctx context.Context, log *model.AlertLog) error {
	id := log.ID
	if id == "" {
		id = model.NewAlertLogID()
	}

	doc := &alertLogDoc{
		ID:         string(id),
		RuleID:     string(log.RuleID),
		AgentID:    string(log.AgentID),
		MemoryID:   string(log.MemoryID),
		Status:     string(log.Status),
		Reason:     log.Reason,
		MatchCount: log.MatchCount,
		ActionType: string(log.ActionType),
		CreatedAt:  log.CreatedAt,
	}

	if _, err := r.collection(collectionAlertLogs).Doc(string(id)).Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to put alert log",
			goerr.V("id", id),
			goerr.V("ruleID", log.RuleID),
		)
	}
	return nil
}

func (r *alertLogRepository) ListByRule(ctx context.Context, ruleID model.RuleID, limit int) ([]*model.AlertLog, error) {
	q := r.collection(collectionAlertLogs).
		Where("RuleID", "==", string(ruleID)).
		OrderBy("CreatedAt", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	logs, err := collectDocs(iter, (*alertLogDoc).toModel)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list alert logs", goerr.V("ruleID", ruleID))
	}
	return logs, nil
}
