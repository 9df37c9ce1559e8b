package model

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/domain/types"
)

// RuleID is a UUID-based identifier for SemanticMatchAction
type RuleID string

// NewRuleID generates a new UUID v4 RuleID
func NewRuleID() RuleID {
	return RuleID(uuid.New().String())
}

const (
	DefaultMatchThreshold  = 3
	DefaultCooldownMinutes = 60
	MinMatchThreshold      = 2
)

// DispatchLease marks a rule as being dispatched. Only the holder of Token may
// complete or release it; an expired lease no longer blocks new claims.
type DispatchLease struct {
	Token string    `json:"-" firestore:"Token"`
	Until time.Time `json:"-" firestore:"Until"`
}

// NewDispatchLease issues a lease valid for ttl from now
func NewDispatchLease(now time.Time, ttl time.Duration) *DispatchLease {
	return &DispatchLease{
		Token: uuid.New().String(),
		Until: now.Add(ttl),
	}
}

// SemanticMatchAction is an alert rule watching an agent's memories for a
// recurring pattern. TriggerCount, LastTriggeredAt and Lease belong to the
// dispatch gate and are never written by configuration updates.
type SemanticMatchAction struct {
	ID              RuleID         `json:"id"`
	AgentID         AgentID        `json:"agent_id"`
	Name            string         `json:"name"`
	MonitoredTopics []string       `json:"monitored_topics"`
	MatchThreshold  int64          `json:"match_threshold"`
	CooldownMinutes int64          `json:"cooldown_minutes"`
	ActionConfig    ActionConfig   `json:"action_config"`
	IsActive        bool           `json:"is_active"`
	TriggerCount    int64          `json:"trigger_count"`
	LastTriggeredAt *time.Time     `json:"last_triggered_at,omitempty"`
	Lease           *DispatchLease `json:"-"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// ActionType returns the delivery channel of the rule
func (r *SemanticMatchAction) ActionType() types.ActionType {
	return r.ActionConfig.Type
}

// Cooldown returns the configured cooldown as a duration
func (r *SemanticMatchAction) Cooldown() time.Duration {
	return time.Duration(r.CooldownMinutes) * time.Minute
}

// Normalize trims monitored topics and drops blanks and duplicates
func (r *SemanticMatchAction) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.MonitoredTopics = MergeTopics(nil, r.MonitoredTopics)
	if r.MonitoredTopics == nil {
		r.MonitoredTopics = []string{}
	}
}

// Validate checks the rule configuration
func (r *SemanticMatchAction) Validate() error {
	if r.AgentID == "" {
		return goerr.Wrap(ErrInvalidRule, "agent_id is required")
	}
	if r.Name == "" {
		return goerr.Wrap(ErrInvalidRule, "name is required")
	}
	if r.MatchThreshold < MinMatchThreshold {
		return goerr.Wrap(ErrInvalidRule, "match_threshold must be at least 2", goerr.V("match_threshold", r.MatchThreshold))
	}
	if r.CooldownMinutes < 0 {
		return goerr.Wrap(ErrInvalidRule, "cooldown_minutes must not be negative", goerr.V("cooldown_minutes", r.CooldownMinutes))
	}
	if err := r.ActionConfig.Validate(); err != nil {
		return err
	}
	return nil
}

// Matches reports whether the rule is eligible to fire for the memory: active,
// topics overlapping and the memory's count at or over the threshold.
func (r *SemanticMatchAction) Matches(m *Memory) bool {
	if !r.IsActive {
		return false
	}
	if m.SemanticMatchCount < r.MatchThreshold {
		return false
	}
	return TopicsOverlap(r.MonitoredTopics, m.KeyTopics)
}

// DispatchBlocker returns why a dispatch claim at now must be refused, or
// SuppressNone when the rule may be claimed.
func (r *SemanticMatchAction) DispatchBlocker(now time.Time) types.SuppressReason {
	if !r.IsActive {
		return types.SuppressInactive
	}
	if r.Lease != nil && now.Before(r.Lease.Until) {
		return types.SuppressInFlight
	}
	if r.LastTriggeredAt != nil && now.Sub(*r.LastTriggeredAt) < r.Cooldown() {
		return types.SuppressCooldown
	}
	return types.SuppressNone
}

// ApplyConfig copies the operator-editable fields of src into r
func (r *SemanticMatchAction) ApplyConfig(src *SemanticMatchAction, now time.Time) {
	r.Name = src.Name
	r.MonitoredTopics = slices.Clone(src.MonitoredTopics)
	r.MatchThreshold = src.MatchThreshold
	r.CooldownMinutes = src.CooldownMinutes
	r.ActionConfig = src.ActionConfig.Clone()
	r.IsActive = src.IsActive
	r.UpdatedAt = now
}

// Clone returns a deep copy
func (r *SemanticMatchAction) Clone() *SemanticMatchAction {
	if r == nil {
		return nil
	}
	c := *r
	c.MonitoredTopics = slices.Clone(r.MonitoredTopics)
	c.ActionConfig = r.ActionConfig.Clone()
	if r.LastTriggeredAt != nil {
		t := *r.LastTriggeredAt
		c.LastTriggeredAt = &t
	}
	if r.Lease != nil {
		l := *r.Lease
		c.Lease = &l
	}
	return &c
}
