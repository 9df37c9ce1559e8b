package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/domain/interfaces"
	"github.com/magpipe/recurra/pkg/domain/model"
)

type Evaluator struct {
	rules interfaces.RuleRepository
}

func NewEvaluator(rules interfaces.RuleRepository) *Evaluator {
	return &Evaluator{rules: rules}
}

// Evaluate returns the active rules of the memory's agent that mem satisfies
// with its current count and topics
func (e *Evaluator) Evaluate(ctx context.Context, mem *model.Memory) ([]*model.SemanticMatchAction, error) {
	rules, err := e.rules.ListActiveByAgent(ctx, mem.AgentID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list active rules", goerr.V(AgentIDKey, mem.AgentID))
	}

	var eligible []*model.SemanticMatchAction
	for _, rule := range rules {
		if rule.Matches(mem) {
			eligible = append(eligible, rule)
		}
	}
	return eligible, nil
}
