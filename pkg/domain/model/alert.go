package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/magpipe/recurra/pkg/domain/types"
)

// AlertLogID is a UUID-based identifier for AlertLog
type AlertLogID string

func NewAlertLogID() AlertLogID {
	return AlertLogID(uuid.New().String())
}

// AlertLog is one dispatch decision of a rule, kept as operator-facing history
type AlertLog struct {
	ID         AlertLogID        `json:"id"`
	RuleID     RuleID            `json:"rule_id"`
	AgentID    AgentID           `json:"agent_id"`
	MemoryID   MemoryID          `json:"memory_id"`
	Status     types.AlertStatus `json:"status"`
	Reason     string            `json:"reason,omitempty"`
	MatchCount int64             `json:"match_count"`
	ActionType types.ActionType  `json:"action_type"`
	CreatedAt  time.Time         `json:"created_at"`
}

const (
	maxPayloadSummary = 300
	maxPayloadTopics  = 5
)

// AlertPayload is the normalized content handed to every channel connector
type AlertPayload struct {
	RuleID       RuleID      `json:"rule_id"`
	RuleName     string      `json:"rule_name"`
	AgentID      AgentID     `json:"agent_id"`
	AgentName    string      `json:"agent_name"`
	MemoryID     MemoryID    `json:"memory_id"`
	ContactName  string      `json:"contact_name"`
	ContactPhone string      `json:"contact_phone"`
	Summary      string      `json:"summary"`
	KeyTopics    []string    `json:"key_topics"`
	MatchCount   int64       `json:"match_count"`
	Sentiment    string      `json:"sentiment"`
	RecentCall   *CallRecord `json:"recent_call,omitempty"`
	TriggeredAt  time.Time   `json:"triggered_at"`
}

// NewAlertPayload builds the payload for a rule fired by a memory. The
// summary is capped at 300 bytes and topics at the first five.
func NewAlertPayload(rule *SemanticMatchAction, mem *Memory, agentName string, now time.Time) *AlertPayload {
	topics := mem.KeyTopics
	if len(topics) > maxPayloadTopics {
		topics = topics[:maxPayloadTopics]
	}
	if agentName == "" {
		agentName = string(mem.AgentID)
	}
	contactName := mem.ContactName
	if contactName == "" {
		contactName = "Unknown"
	}

	return &AlertPayload{
		RuleID:       rule.ID,
		RuleName:     rule.Name,
		AgentID:      mem.AgentID,
		AgentName:    agentName,
		MemoryID:     mem.ID,
		ContactName:  contactName,
		ContactPhone: mem.ContactPhone,
		Summary:      truncateUTF8(mem.Summary, maxPayloadSummary),
		KeyTopics:    append([]string{}, topics...),
		MatchCount:   mem.SemanticMatchCount,
		Sentiment:    mem.DominantSentiment(),
		RecentCall:   mem.LastCall(),
		TriggeredAt:  now,
	}
}
