package model_test

import (
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/magpipe/recurra/pkg/domain/model"
)

func TestNewAlertPayload(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rule := newTestRule()
	mem := &model.Memory{
		ID:                 "mem-1",
		AgentID:            "agent-1",
		ContactPhone:       "+15550100",
		Summary:            strings.Repeat("x", 400),
		KeyTopics:          []string{"a", "b", "c", "d", "e", "f"},
		SemanticMatchCount: 4,
		CallHistory:        []model.CallRecord{{Sentiment: "frustrated", DurationSeconds: 30}},
	}

	p := model.NewAlertPayload(rule, mem, "", now)

	gt.Value(t, p.RuleName).Equal(rule.Name)
	gt.Value(t, p.AgentName).Equal("agent-1")
	gt.Value(t, p.ContactName).Equal("Unknown")
	gt.Number(t, len(p.Summary)).Equal(300)
	gt.Array(t, p.KeyTopics).Length(5)
	gt.Number(t, p.MatchCount).Equal(4)
	gt.Value(t, p.Sentiment).Equal("frustrated")
	gt.Value(t, p.RecentCall).NotNil()
	gt.Value(t, p.TriggeredAt).Equal(now)

	p.KeyTopics[0] = "changed"
	gt.Value(t, mem.KeyTopics[0]).Equal("a")
}

func TestAgentConfig_Validate(t *testing.T) {
	cfg := model.DefaultAgentConfig("agent-1")
	gt.NoError(t, cfg.Validate())
	gt.Value(t, cfg.SemanticMemory.SimilarityThreshold).Equal(0.75)
	gt.Number(t, cfg.SemanticMemory.MaxResults).Equal(3)
	gt.Bool(t, cfg.SemanticMemory.Enabled).True()
	gt.Value(t, cfg.DisplayName()).Equal("agent-1")

	cfg.SemanticMemory.SimilarityThreshold = 1.5
	gt.Error(t, cfg.Validate()).Is(model.ErrInvalidAgentConfig)

	cfg = model.DefaultAgentConfig("agent-1")
	cfg.SemanticMemory.MaxResults = 0
	gt.Error(t, cfg.Validate()).Is(model.ErrInvalidAgentConfig)

	gt.Error(t, model.DefaultAgentConfig("").Validate()).Is(model.ErrInvalidAgentConfig)
}
