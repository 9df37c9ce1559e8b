package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/domain/model"
)

type agentConfigRepository struct {
	mu      sync.RWMutex
	configs map[model.AgentID]model.AgentConfig
}

func newAgentConfigRepository() *agentConfigRepository {
	return &agentConfigRepository{
		configs: make(map[model.AgentID]model.AgentConfig),
	}
}

func (r *agentConfigRepository) Get(ctx context.Context, agentID model.AgentID) (*model.AgentConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, exists := r.configs[agentID]
	if !exists {
		return nil, goerr.Wrap(model.ErrNotFound, "agent config not found", goerr.V("agentID", agentID))
	}
	return &cfg, nil
}

func (r *agentConfigRepository) Put(ctx context.Context, cfg *model.AgentConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.AgentID] = *cfg
	return nil
}

func (r *agentConfigRepository) List(ctx context.Context) ([]*model.AgentConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*model.AgentConfig, 0, len(r.configs))
	for _, cfg := range r.configs {
		copied := cfg
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].AgentID < result[j].AgentID
	})
	return result, nil
}
