package interfaces

import (
	"context"

	"github.com/magpipe/recurra/pkg/domain/model"
)

// AlertLogRepository stores the dispatch history of rules
type AlertLogRepository interface {
	Put(ctx context.Context, log *model.AlertLog) error

	// ListByRule returns the most recent entries first, at most limit
	ListByRule(ctx context.Context, ruleID model.RuleID, limit int) ([]*model.AlertLog, error)
}

// AgentConfigRepository stores per-agent engine settings
type AgentConfigRepository interface {
	Get(ctx context.Context, agentID model.AgentID) (*model.AgentConfig, error)
	Put(ctx context.Context, cfg *model.AgentConfig) error
	List(ctx context.Context) ([]*model.AgentConfig, error)
}
