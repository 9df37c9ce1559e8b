package interfaces

import (
	"context"
	"time"

	"github.com/magpipe/recurra/pkg/domain/model"
	"github.com/magpipe/recurra/pkg/domain/types"
)

// RuleRepository defines persistence of SemanticMatchAction rules and the
// atomic dispatch claim used by the dispatch gate.
type RuleRepository interface {
	Create(ctx context.Context, rule *model.SemanticMatchAction) (*model.SemanticMatchAction, error)
	Get(ctx context.Context, id model.RuleID) (*model.SemanticMatchAction, error)
	ListByAgent(ctx context.Context, agentID model.AgentID) ([]*model.SemanticMatchAction, error)
	ListActiveByAgent(ctx context.Context, agentID model.AgentID) ([]*model.SemanticMatchAction, error)

	// Update writes the operator-editable fields only. Trigger state and the
	// dispatch lease are preserved.
	Update(ctx context.Context, rule *model.SemanticMatchAction) (*model.SemanticMatchAction, error)

	SetActive(ctx context.Context, id model.RuleID, active bool) (*model.SemanticMatchAction, error)
	Delete(ctx context.Context, id model.RuleID) error

	// AcquireDispatch claims the rule for delivery at now. The claim is a
	// compare-and-set: it succeeds only for an active rule outside its
	// cooldown window with no unexpired lease. When refused, the lease is nil
	// and the reason is returned.
	AcquireDispatch(ctx context.Context, id model.RuleID, now time.Time, leaseTTL time.Duration) (*model.DispatchLease, types.SuppressReason, error)

	// CompleteDispatch records a successful delivery for the lease holder:
	// LastTriggeredAt is set to now, TriggerCount is incremented and the
	// lease is cleared.
	CompleteDispatch(ctx context.Context, id model.RuleID, token string, now time.Time) error

	// ReleaseDispatch clears the lease without touching trigger state
	ReleaseDispatch(ctx context.Context, id model.RuleID, token string) error
}
