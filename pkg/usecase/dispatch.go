package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/domain/interfaces"
	"github.com/magpipe/recurra/pkg/domain/model"
	"github.com/magpipe/recurra/pkg/domain/types"
	"github.com/magpipe/recurra/pkg/utils/errutil"
	"github.com/magpipe/recurra/pkg/utils/logging"
)

// DispatchResult is the outcome of one rule dispatch attempt
type DispatchResult struct {
	RuleID   model.RuleID         `json:"rule_id"`
	MemoryID model.MemoryID       `json:"memory_id"`
	Status   types.AlertStatus    `json:"status"`
	Reason   types.SuppressReason `json:"reason,omitempty"`
	Err      error                `json:"-"`
}

// DispatchGate claims a rule, delivers its alert and records the decision.
// At most one delivery per rule succeeds within its cooldown window.
type DispatchGate struct {
	rules     interfaces.RuleRepository
	alertLogs interfaces.AlertLogRepository
	notifier  interfaces.Connector
	clock     func() time.Time
	timeout   time.Duration
}

type GateOption func(*DispatchGate)

func WithGateClock(clock func() time.Time) GateOption {
	return func(g *DispatchGate) {
		g.clock = clock
	}
}

func WithGateDeliveryTimeout(d time.Duration) GateOption {
	return func(g *DispatchGate) {
		if d > 0 {
			g.timeout = d
		}
	}
}

func NewDispatchGate(rules interfaces.RuleRepository, alertLogs interfaces.AlertLogRepository, notifier interfaces.Connector, opts ...GateOption) *DispatchGate {
	g := &DispatchGate{
		rules:     rules,
		alertLogs: alertLogs,
		notifier:  notifier,
		clock:     time.Now,
		timeout:   DefaultDeliveryTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *DispatchGate) leaseTTL() time.Duration {
	return g.timeout + leaseMargin
}

// Dispatch runs the gate for rule fired by mem. A refused claim yields a
// suppressed result and no error. A failed delivery yields a failed result
// whose Err wraps ErrDeliveryFailed; the rule's trigger state is unchanged.
func (g *DispatchGate) Dispatch(ctx context.Context, rule *model.SemanticMatchAction, mem *model.Memory, agentName string) *DispatchResult {
	result := &DispatchResult{
		RuleID:   rule.ID,
		MemoryID: mem.ID,
	}
	logger := logging.From(ctx).With(
		slog.String("rule_id", string(rule.ID)),
		slog.String("memory_id", string(mem.ID)),
	)

	now := g.clock().UTC()
	lease, reason, err := g.rules.AcquireDispatch(ctx, rule.ID, now, g.leaseTTL())
	if errors.Is(err, model.ErrNotFound) {
		// deleted after evaluation
		err, reason = nil, types.SuppressNotFound
	}
	if err != nil {
		result.Status = types.AlertStatusFailed
		result.Err = goerr.Wrap(err, "failed to claim rule for dispatch", goerr.V(RuleIDKey, rule.ID))
		g.record(ctx, rule, mem, result, now)
		return result
	}
	if reason != types.SuppressNone {
		logger.Info("dispatch suppressed", slog.String("reason", reason.String()))
		result.Status = types.AlertStatusSuppressed
		result.Reason = reason
		g.record(ctx, rule, mem, result, now)
		return result
	}

	if err := g.deliver(ctx, rule, mem, agentName, now); err != nil {
		if relErr := g.rules.ReleaseDispatch(ctx, rule.ID, lease.Token); relErr != nil {
			errutil.Handle(ctx, relErr, "failed to release dispatch lease")
		}
		result.Status = types.AlertStatusFailed
		result.Err = err
		errutil.Handle(ctx, err, "alert delivery failed")
		g.record(ctx, rule, mem, result, now)
		return result
	}

	if err := g.rules.CompleteDispatch(ctx, rule.ID, lease.Token, now); err != nil {
		// the alert went out; only the trigger bookkeeping is missing
		errutil.Handle(ctx, goerr.Wrap(err, "failed to complete dispatch", goerr.V(RuleIDKey, rule.ID)),
			"dispatch completed without trigger state update")
		if !errors.Is(err, model.ErrLeaseLost) {
			result.Err = err
		}
	}

	logger.Info("alert fired",
		slog.String("action_type", rule.ActionType().String()),
		slog.Int64("match_count", mem.SemanticMatchCount),
	)
	result.Status = types.AlertStatusFired
	g.record(ctx, rule, mem, result, now)
	return result
}

func (g *DispatchGate) deliver(ctx context.Context, rule *model.SemanticMatchAction, mem *model.Memory, agentName string, now time.Time) error {
	if g.notifier == nil {
		return goerr.Wrap(ErrDeliveryFailed, "no notifier is configured", goerr.V(RuleIDKey, rule.ID))
	}

	deliverCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	payload := model.NewAlertPayload(rule, mem, agentName, now)
	delivered, err := g.notifier.Deliver(deliverCtx, rule.ActionConfig, payload)
	if err != nil {
		return goerr.Wrap(errors.Join(ErrDeliveryFailed, err), "connector failed",
			goerr.V(RuleIDKey, rule.ID),
			goerr.V("action_type", rule.ActionType()),
		)
	}
	if !delivered {
		return goerr.Wrap(ErrDeliveryFailed, "connector did not deliver",
			goerr.V(RuleIDKey, rule.ID),
			goerr.V("action_type", rule.ActionType()),
		)
	}
	return nil
}

func (g *DispatchGate) record(ctx context.Context, rule *model.SemanticMatchAction, mem *model.Memory, result *DispatchResult, now time.Time) {
	entry := &model.AlertLog{
		ID:         model.NewAlertLogID(),
		RuleID:     rule.ID,
		AgentID:    rule.AgentID,
		MemoryID:   mem.ID,
		Status:     result.Status,
		Reason:     result.Reason.String(),
		MatchCount: mem.SemanticMatchCount,
		ActionType: rule.ActionType(),
		CreatedAt:  now,
	}
	if result.Status == types.AlertStatusFailed && result.Err != nil {
		entry.Reason = result.Err.Error()
	}

	if err := g.alertLogs.Put(ctx, entry); err != nil {
		errutil.Handle(ctx, err, "failed to record alert log")
	}
}
