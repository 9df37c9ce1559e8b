package usecase

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/domain/interfaces"
	"github.com/magpipe/recurra/pkg/domain/model"
)

type AgentConfigUseCase struct {
	repo interfaces.Repository
}

func NewAgentConfigUseCase(repo interfaces.Repository) *AgentConfigUseCase {
	return &AgentConfigUseCase{repo: repo}
}

// GetConfig returns the agent's settings, or the defaults when none are stored
func (uc *AgentConfigUseCase) GetConfig(ctx context.Context, agentID model.AgentID) (*model.AgentConfig, error) {
	cfg, err := uc.repo.AgentConfig().Get(ctx, agentID)
	if errors.Is(err, model.ErrNotFound) {
		return model.DefaultAgentConfig(agentID), nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get agent config", goerr.V(AgentIDKey, agentID))
	}
	return cfg, nil
}

func (uc *AgentConfigUseCase) PutConfig(ctx context.Context, cfg *model.AgentConfig) (*model.AgentConfig, error) {
	if err := cfg.Validate(); err != nil {
		return nil, goerr.Wrap(errors.Join(ErrInvalidAgentConfig, err), "agent config rejected")
	}
	if err := uc.repo.AgentConfig().Put(ctx, cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to save agent config", goerr.V(AgentIDKey, cfg.AgentID))
	}
	return cfg, nil
}

func (uc *AgentConfigUseCase) ListConfigs(ctx context.Context) ([]*model.AgentConfig, error) {
	cfgs, err := uc.repo.AgentConfig().List(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list agent configs")
	}
	return cfgs, nil
}

// Seed stores every config, replacing existing ones. Used to load agent
// settings from a file at startup.
func (uc *AgentConfigUseCase) Seed(ctx context.Context, cfgs []*model.AgentConfig) error {
	for _, cfg := range cfgs {
		if _, err := uc.PutConfig(ctx, cfg); err != nil {
			return err
		}
	}
	return nil
}
