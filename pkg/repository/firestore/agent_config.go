package firestore

import (
	"context"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/domain/model"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type agentConfigRepository struct {
	*base
}

func (r *agentConfigRepository) Get(ctx context.Context, agentID model.AgentID) (*model.AgentConfig, error) {
	snap, err := r.collection(collectionAgentConfigs).Doc(string(agentID)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, notFound("agent config", string(agentID))
		}
		return nil, goerr.Wrap(err, "failed to get agent config", goerr.V("agentID", agentID))
	}

	var cfg model.AgentConfig
	if err := snap.DataTo(&cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal agent config", goerr.V("agentID", agentID))
	}
	return &cfg, nil
}

func (r *agentConfigRepository) Put(ctx context.Context, cfg *model.AgentConfig) error {
	if _, err := r.collection(collectionAgentConfigs).Doc(string(cfg.AgentID)).Set(ctx, cfg); err != nil {
		return goerr.Wrap(err, "failed to put agent config", goerr.V("agentID", cfg.AgentID))
	}
	return nil
}

func (r *agentConfigRepository) List(ctx context.Context) ([]*model.AgentConfig, error) {
	iter := r.collection(collectionAgentConfigs).Documents(ctx)
	defer iter.Stop()

	configs, err := collectDocs(iter, func(c *model.AgentConfig) *model.AgentConfig { return c })
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list agent configs")
	}
	sort.Slice(configs, func(i, j int) bool {
		return configs[i].AgentID < configs[j].AgentID
	})
	return configs, nil
}
