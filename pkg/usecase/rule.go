package usecase

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/domain/interfaces"
	"github.com/magpipe/recurra/pkg/domain/model"
	"github.com/magpipe/recurra/pkg/domain/types"
)

const DefaultAlertLogLimit = 50

// RuleInput carries operator-supplied rule fields. Nil or zero fields take
// defaults on create and keep the stored value on update.
type RuleInput struct {
	Name            string              `json:"name"`
	MonitoredTopics []string            `json:"monitored_topics"`
	MatchThreshold  *int64              `json:"match_threshold,omitempty"`
	CooldownMinutes *int64              `json:"cooldown_minutes,omitempty"`
	ActionConfig    *model.ActionConfig `json:"action_config,omitempty"`
	IsActive        *bool               `json:"is_active,omitempty"`
}

type RuleUseCase struct {
	repo     interfaces.Repository
	channels interfaces.ChannelRegistry
}

// NewRuleUseCase creates the rule use case. When connector can tell which
// channels are configured, rules for any other channel are rejected.
func NewRuleUseCase(repo interfaces.Repository, connector interfaces.Connector) *RuleUseCase {
	uc := &RuleUseCase{repo: repo}
	if channels, ok := connector.(interfaces.ChannelRegistry); ok {
		uc.channels = channels
	}
	return uc
}

func (uc *RuleUseCase) checkChannel(t types.ActionType) error {
	if uc.channels == nil || uc.channels.Supports(t) {
		return nil
	}
	return invalidRule(goerr.New("no connector is configured for the action type", goerr.V("type", t)))
}

func invalidRule(err error) error {
	return goerr.Wrap(errors.Join(ErrInvalidRuleConfig, err), "rule configuration rejected")
}

func ruleNotFound(err error, id model.RuleID) error {
	if errors.Is(err, model.ErrNotFound) {
		return goerr.Wrap(ErrRuleNotFound, "rule not found", goerr.V(RuleIDKey, id))
	}
	return goerr.Wrap(err, "failed to access rule", goerr.V(RuleIDKey, id))
}

func (in *RuleInput) applyTo(rule *model.SemanticMatchAction) {
	if in.Name != "" {
		rule.Name = in.Name
	}
	if in.MonitoredTopics != nil {
		rule.MonitoredTopics = in.MonitoredTopics
	}
	if in.MatchThreshold != nil {
		rule.MatchThreshold = *in.MatchThreshold
	}
	if in.CooldownMinutes != nil {
		rule.CooldownMinutes = *in.CooldownMinutes
	}
	if in.ActionConfig != nil {
		rule.ActionConfig = in.ActionConfig.Clone()
	}
	if in.IsActive != nil {
		rule.IsActive = *in.IsActive
	}
}

// CreateRule validates and stores a new rule for the agent. The channel
// config is checked here so a rule that could never deliver is never stored.
func (uc *RuleUseCase) CreateRule(ctx context.Context, agentID model.AgentID, in RuleInput) (*model.SemanticMatchAction, error) {
	rule := &model.SemanticMatchAction{
		AgentID:         agentID,
		MatchThreshold:  model.DefaultMatchThreshold,
		CooldownMinutes: model.DefaultCooldownMinutes,
		IsActive:        true,
	}
	in.applyTo(rule)
	rule.Normalize()

	if err := rule.Validate(); err != nil {
		return nil, invalidRule(err)
	}
	if err := uc.checkChannel(rule.ActionConfig.Type); err != nil {
		return nil, err
	}

	created, err := uc.repo.Rule().Create(ctx, rule)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create rule", goerr.V(AgentIDKey, agentID))
	}
	return created, nil
}

func (uc *RuleUseCase) GetRule(ctx context.Context, id model.RuleID) (*model.SemanticMatchAction, error) {
	rule, err := uc.repo.Rule().Get(ctx, id)
	if err != nil {
		return nil, ruleNotFound(err, id)
	}
	return rule, nil
}

func (uc *RuleUseCase) ListRules(ctx context.Context, agentID model.AgentID) ([]*model.SemanticMatchAction, error) {
	rules, err := uc.repo.Rule().ListByAgent(ctx, agentID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list rules", goerr.V(AgentIDKey, agentID))
	}
	return rules, nil
}

// UpdateRule changes the operator-editable fields. Trigger count, last
// trigger time and any in-flight dispatch are preserved.
func (uc *RuleUseCase) UpdateRule(ctx context.Context, id model.RuleID, in RuleInput) (*model.SemanticMatchAction, error) {
	rule, err := uc.repo.Rule().Get(ctx, id)
	if err != nil {
		return nil, ruleNotFound(err, id)
	}

	in.applyTo(rule)
	rule.Normalize()
	if err := rule.Validate(); err != nil {
		return nil, invalidRule(err)
	}
	if in.ActionConfig != nil {
		if err := uc.checkChannel(rule.ActionConfig.Type); err != nil {
			return nil, err
		}
	}

	updated, err := uc.repo.Rule().Update(ctx, rule)
	if err != nil {
		return nil, ruleNotFound(err, id)
	}
	return updated, nil
}

func (uc *RuleUseCase) SetRuleActive(ctx context.Context, id model.RuleID, active bool) (*model.SemanticMatchAction, error) {
	rule, err := uc.repo.Rule().SetActive(ctx, id, active)
	if err != nil {
		return nil, ruleNotFound(err, id)
	}
	return rule, nil
}

func (uc *RuleUseCase) DeleteRule(ctx context.Context, id model.RuleID) error {
	if err := uc.repo.Rule().Delete(ctx, id); err != nil {
		return ruleNotFound(err, id)
	}
	return nil
}

// ListAlerts returns the rule's dispatch history, most recent first
func (uc *RuleUseCase) ListAlerts(ctx context.Context, id model.RuleID, limit int) ([]*model.AlertLog, error) {
	if _, err := uc.repo.Rule().Get(ctx, id); err != nil {
		return nil, ruleNotFound(err, id)
	}
	if limit <= 0 {
		limit = DefaultAlertLogLimit
	}

	logs, err := uc.repo.AlertLog().ListByRule(ctx, id, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list alert logs", goerr.V(RuleIDKey, id))
	}
	return logs, nil
}
