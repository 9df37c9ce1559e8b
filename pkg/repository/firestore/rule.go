package firestore

import (
	"context"
	"errors"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/domain/model"
	"github.com/magpipe/recurra/pkg/domain/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type ruleRepository struct {
	*base
}

type ruleDoc struct {
	ID              string               `firestore:"ID"`
	AgentID         string               `firestore:"AgentID"`
	Name            string               `firestore:"Name"`
	MonitoredTopics []string             `firestore:"MonitoredTopics"`
	MatchThreshold  int64                `firestore:"MatchThreshold"`
	CooldownMinutes int64                `firestore:"CooldownMinutes"`
	ActionConfig    model.ActionConfig   `firestore:"ActionConfig"`
	IsActive        bool                 `firestore:"IsActive"`
	TriggerCount    int64                `firestore:"TriggerCount"`
	LastTriggeredAt *time.Time           `firestore:"LastTriggeredAt"`
	Lease           *model.DispatchLease `firestore:"Lease"`
	CreatedAt       time.Time            `firestore:"CreatedAt"`
	UpdatedAt       time.Time            `firestore:"UpdatedAt"`
}

func toRuleDoc(r *model.SemanticMatchAction) *ruleDoc {
	return &ruleDoc{
		ID:              string(r.ID),
		AgentID:         string(r.AgentID),
		Name:            r.Name,
		MonitoredTopics: r.MonitoredTopics,
		MatchThreshold:  r.MatchThreshold,
		CooldownMinutes: r.CooldownMinutes,
		ActionConfig:    r.ActionConfig,
		IsActive:        r.IsActive,
		TriggerCount:    r.TriggerCount,
		LastTriggeredAt: r.LastTriggeredAt,
		Lease:           r.Lease,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func (d *ruleDoc) toModel() *model.SemanticMatchAction {
	topics := d.MonitoredTopics
	if topics == nil {
		topics = []string{}
	}
	return &model.SemanticMatchAction{
		ID:              model.RuleID(d.ID),
		AgentID:         model.AgentID(d.AgentID),
		Name:            d.Name,
		MonitoredTopics: topics,
		MatchThreshold:  d.MatchThreshold,
		CooldownMinutes: d.CooldownMinutes,
		ActionConfig:    d.ActionConfig,
		IsActive:        d.IsActive,
		TriggerCount:    d.TriggerCount,
		LastTriggeredAt: d.LastTriggeredAt,
		Lease:           d.Lease,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

func (r *ruleRepository) doc(id model.RuleID) *firestore.DocumentRef {
	return r.collection(collectionRules).Doc(string(id))
}

func getRule(snap *firestore.DocumentSnapshot, err error, id model.RuleID) (*model.SemanticMatchAction, error) {
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, notFound("rule", string(id))
		}
		return nil, goerr.Wrap(err, "failed to get rule", goerr.V("ruleID", id))
	}

	var d ruleDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal rule", goerr.V("ruleID", id))
	}
	return d.toModel(), nil
}

func (r *ruleRepository) Create(ctx context.Context, rule *model.SemanticMatchAction) (*model.SemanticMatchAction, error) {
	created := rule.Clone()
	if created.ID == "" {
		created.ID = model.NewRuleID()
	}
	now := time.Now().UTC()
	created.CreatedAt = now
	created.UpdatedAt = now
	created.TriggerCount = 0
	created.LastTriggeredAt = nil
	created.Lease = nil

	if _, err := r.doc(created.ID).Create(ctx, toRuleDoc(created)); err != nil {
		return nil, goerr.Wrap(err, "failed to create rule", goerr.V("ruleID", created.ID))
	}
	return created, nil
}

func (r *ruleRepository) Get(ctx context.Context, id model.RuleID) (*model.SemanticMatchAction, error) {
	snap, err := r.doc(id).Get(ctx)
	return getRule(snap, err, id)
}

func (r *ruleRepository) list(ctx context.Context, q firestore.Query) ([]*model.SemanticMatchAction, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	rules, err := collectDocs(iter, (*ruleDoc).toModel)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list rules")
	}
	sort.Slice(rules, func(i, j int) bool {
		return rules[i].CreatedAt.Before(rules[j].CreatedAt)
	})
	return rules, nil
}

func (r *ruleRepository) ListByAgent(ctx context.Context, agentID model.AgentID) ([]*model.SemanticMatchAction, error) {
	return r.list(ctx, r.collection(collectionRules).Where("AgentID", "==", string(agentID)))
}

func (r *ruleRepository) ListActiveByAgent(ctx context.Context, agentID model.AgentID) ([]*model.SemanticMatchAction, error) {
	return r.list(ctx, r.collection(collectionRules).
		Where("AgentID", "==", string(agentID)).
		Where("IsActive", "==", true))
}

func (r *ruleRepository) Update(ctx context.Context, rule *model.SemanticMatchAction) (*model.SemanticMatchAction, error) {
	var updated *model.SemanticMatchAction

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref := r.doc(rule.ID)
		snap, err := tx.Get(ref)
		stored, err := getRule(snap, err, rule.ID)
		if err != nil {
			return err
		}

		stored.ApplyConfig(rule, time.Now().UTC())
		updated = stored
		return tx.Update(ref, []firestore.Update{
			{Path: "Name", Value: stored.Name},
			{Path: "MonitoredTopics", Value: stored.MonitoredTopics},
			{Path: "MatchThreshold", Value: stored.MatchThreshold},
			{Path: "CooldownMinutes", Value: stored.CooldownMinutes},
			{Path: "ActionConfig", Value: stored.ActionConfig},
			{Path: "IsActive", Value: stored.IsActive},
			{Path: "UpdatedAt", Value: stored.UpdatedAt},
		})
	})
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, err
		}
		return nil, goerr.Wrap(err, "failed to update rule", goerr.V("ruleID", rule.ID))
	}
	return updated, nil
}

func (r *ruleRepository) SetActive(ctx context.Context, id model.RuleID, active bool) (*model.SemanticMatchAction, error) {
	_, err := r.doc(id).Update(ctx, []firestore.Update{
		{Path: "IsActive", Value: active},
		{Path: "UpdatedAt", Value: time.Now().UTC()},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, notFound("rule", string(id))
		}
		return nil, goerr.Wrap(err, "failed to set rule active", goerr.V("ruleID", id))
	}
	return r.Get(ctx, id)
}

func (r *ruleRepository) Delete(ctx context.Context, id model.RuleID) error {
	if _, err := r.doc(id).Delete(ctx, firestore.Exists); err != nil {
		if status.Code(err) == codes.NotFound {
			return notFound("rule", string(id))
		}
		return goerr.Wrap(err, "failed to delete rule", goerr.V("ruleID", id))
	}
	return nil
}

func (r *ruleRepository) AcquireDispatch(ctx context.Context, id model.RuleID, now time.Time, leaseTTL time.Duration) (*model.DispatchLease, types.SuppressReason, error) {
	var (
		lease  *model.DispatchLease
		reason types.SuppressReason
	)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		lease, reason = nil, types.SuppressNone

		ref := r.doc(id)
		snap, err := tx.Get(ref)
		stored, err := getRule(snap, err, id)
		if err != nil {
			return err
		}

		if reason = stored.DispatchBlocker(now); reason != types.SuppressNone {
			return nil
		}

		lease = model.NewDispatchLease(now, leaseTTL)
		return tx.Update(ref, []firestore.Update{
			{Path: "Lease", Value: lease},
		})
	})
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, types.SuppressNotFound, err
		}
		return nil, types.SuppressNone, goerr.Wrap(err, "failed to acquire dispatch", goerr.V("ruleID", id))
	}
	return lease, reason, nil
}

func (r *ruleRepository) CompleteDispatch(ctx context.Context, id model.RuleID, token string, now time.Time) error {
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref := r.doc(id)
		snap, err := tx.Get(ref)
		stored, err := getRule(snap, err, id)
		if err != nil {
			return err
		}
		if stored.Lease == nil || stored.Lease.Token != token {
			return goerr.Wrap(model.ErrLeaseLost, "dispatch lease is not held", goerr.V("ruleID", id))
		}

		return tx.Update(ref, []firestore.Update{
			{Path: "LastTriggeredAt", Value: now},
			{Path: "TriggerCount", Value: firestore.Increment(1)},
			{Path: "Lease", Value: nil},
		})
	})
	if err != nil {
		if errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrLeaseLost) {
			return err
		}
		return goerr.Wrap(err, "failed to complete dispatch", goerr.V("ruleID", id))
	}
	return nil
}

func (r *ruleRepository) ReleaseDispatch(ctx context.Context, id model.RuleID, token string) error {
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref := r.doc(id)
		snap, err := tx.Get(ref)
		stored, err := getRule(snap, err, id)
		if err != nil {
			return err
		}
		if stored.Lease == nil || stored.Lease.Token != token {
			return nil
		}
		return tx.Update(ref, []firestore.Update{
			{Path: "Lease", Value: nil},
		})
	})
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return err
		}
		return goerr.Wrap(err, "failed to release dispatch", goerr.V("ruleID", id))
	}
	return nil
}
