package usecase_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/magpipe/recurra/pkg/domain/model"
	"github.com/magpipe/recurra/pkg/domain/types"
	"github.com/magpipe/recurra/pkg/service/notifier"
	"github.com/magpipe/recurra/pkg/usecase"
)

func TestRuleUseCase_CreateRule(t *testing.T) {
	ctx := context.Background()

	t.Run("applies defaults", func(t *testing.T) {
		h := newHarness(t)
		rule, err := h.uc.Rule.CreateRule(ctx, testAgentID, usecase.RuleInput{
			Name:            "  Refund wave ",
			MonitoredTopics: []string{"Refund", "refund", " "},
			ActionConfig: &model.ActionConfig{
				Type: types.ActionTypeSMS,
				SMS:  &model.SMSConfig{PhoneNumber: "+15551234"},
			},
		})
		gt.NoError(t, err).Required()

		gt.Value(t, rule.ID).NotEqual(model.RuleID(""))
		gt.Value(t, rule.Name).Equal("Refund wave")
		gt.Array(t, rule.MonitoredTopics).Equal([]string{"Refund"})
		gt.Number(t, rule.MatchThreshold).Equal(model.DefaultMatchThreshold)
		gt.Number(t, rule.CooldownMinutes).Equal(model.DefaultCooldownMinutes)
		gt.Value(t, rule.IsActive).Equal(true)
		gt.Number(t, rule.TriggerCount).Equal(0)
	})

	t.Run("zero cooldown is kept", func(t *testing.T) {
		h := newHarness(t)
		rule := h.createRule(t, "no cooldown", 2, 0)
		gt.Number(t, rule.CooldownMinutes).Equal(0)
	})

	t.Run("webhook without url is rejected", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.uc.Rule.CreateRule(ctx, testAgentID, usecase.RuleInput{
			Name: "hook",
			ActionConfig: &model.ActionConfig{
				Type:    types.ActionTypeWebhook,
				Webhook: &model.WebhookConfig{},
			},
		})
		gt.Error(t, err).Is(usecase.ErrInvalidRuleConfig)
		gt.Error(t, err).Is(model.ErrInvalidActionConfig)

		rules, err := h.uc.Rule.ListRules(ctx, testAgentID)
		gt.NoError(t, err).Required()
		gt.Array(t, rules).Length(0)
	})

	t.Run("invalid fields are rejected", func(t *testing.T) {
		h := newHarness(t)
		slack := &model.ActionConfig{Type: types.ActionTypeSlack, Slack: &model.SlackConfig{ChannelName: "#a"}}

		tests := []struct {
			name  string
			input usecase.RuleInput
		}{
			{name: "missing name", input: usecase.RuleInput{ActionConfig: slack}},
			{name: "threshold below two", input: usecase.RuleInput{Name: "r", MatchThreshold: int64Ptr(1), ActionConfig: slack}},
			{name: "negative cooldown", input: usecase.RuleInput{Name: "r", CooldownMinutes: int64Ptr(-1), ActionConfig: slack}},
			{name: "missing action config", input: usecase.RuleInput{Name: "r"}},
			{name: "email without address", input: usecase.RuleInput{Name: "r", ActionConfig: &model.ActionConfig{Type: types.ActionTypeEmail}}},
			{name: "slack without channel", input: usecase.RuleInput{Name: "r", ActionConfig: &model.ActionConfig{Type: types.ActionTypeSlack, Slack: &model.SlackConfig{ChannelName: "#"}}}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := h.uc.Rule.CreateRule(ctx, testAgentID, tt.input)
				gt.Error(t, err).Is(usecase.ErrInvalidRuleConfig)
			})
		}
	})

	t.Run("hubspot without contact email is accepted", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.uc.Rule.CreateRule(ctx, testAgentID, usecase.RuleInput{
			Name:         "crm",
			ActionConfig: &model.ActionConfig{Type: types.ActionTypeHubSpot},
		})
		gt.NoError(t, err)
	})
}

func TestRuleUseCase_UpdateRule(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	rule := h.createRule(t, "original", 3, 60, "billing")

	lease, reason, err := h.repo.Rule().AcquireDispatch(ctx, rule.ID, h.clock.Now(), 0)
	gt.NoError(t, err).Required()
	gt.Value(t, reason).Equal(types.SuppressNone)
	gt.NoError(t, h.repo.Rule().CompleteDispatch(ctx, rule.ID, lease.Token, h.clock.Now())).Required()

	updated, err := h.uc.Rule.UpdateRule(ctx, rule.ID, usecase.RuleInput{
		Name:            "renamed",
		MonitoredTopics: []string{},
		CooldownMinutes: int64Ptr(5),
	})
	gt.NoError(t, err).Required()

	gt.Value(t, updated.Name).Equal("renamed")
	gt.Array(t, updated.MonitoredTopics).Length(0)
	gt.Number(t, updated.MatchThreshold).Equal(3)
	gt.Number(t, updated.CooldownMinutes).Equal(5)
	gt.Number(t, updated.TriggerCount).Equal(1)
	gt.Value(t, updated.LastTriggeredAt).NotNil()
	gt.Value(t, updated.ActionConfig.Type).Equal(types.ActionTypeSlack)

	t.Run("invalid update is rejected", func(t *testing.T) {
		_, err := h.uc.Rule.UpdateRule(ctx, rule.ID, usecase.RuleInput{
			ActionConfig: &model.ActionConfig{Type: types.ActionTypeWebhook},
		})
		gt.Error(t, err).Is(usecase.ErrInvalidRuleConfig)

		stored, err := h.uc.Rule.GetRule(ctx, rule.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, stored.ActionConfig.Type).Equal(types.ActionTypeSlack)
	})

	t.Run("unknown rule", func(t *testing.T) {
		_, err := h.uc.Rule.UpdateRule(ctx, "missing", usecase.RuleInput{Name: "x"})
		gt.Error(t, err).Is(usecase.ErrRuleNotFound)
	})
}

func TestRuleUseCase_ActiveAndDelete(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	rule := h.createRule(t, "toggle", 2, 0)

	off, err := h.uc.Rule.SetRuleActive(ctx, rule.ID, false)
	gt.NoError(t, err).Required()
	gt.Value(t, off.IsActive).Equal(false)

	on, err := h.uc.Rule.SetRuleActive(ctx, rule.ID, true)
	gt.NoError(t, err).Required()
	gt.Value(t, on.IsActive).Equal(true)

	gt.NoError(t, h.uc.Rule.DeleteRule(ctx, rule.ID)).Required()
	_, err = h.uc.Rule.GetRule(ctx, rule.ID)
	gt.Error(t, err).Is(usecase.ErrRuleNotFound)

	gt.Error(t, h.uc.Rule.DeleteRule(ctx, rule.ID)).Is(usecase.ErrRuleNotFound)
	_, err = h.uc.Rule.SetRuleActive(ctx, rule.ID, true)
	gt.Error(t, err).Is(usecase.ErrRuleNotFound)
	_, err = h.uc.Rule.ListAlerts(ctx, rule.ID, 10)
	gt.Error(t, err).Is(usecase.ErrRuleNotFound)
}

func TestRuleUseCase_RejectsUnconfiguredChannel(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, usecase.WithNotifier(notifier.New(
		notifier.WithConnector(types.ActionTypeWebhook, notifier.NewWebhook()),
	)))

	smsRule := usecase.RuleInput{
		Name: "sms without provider",
		ActionConfig: &model.ActionConfig{
			Type: types.ActionTypeSMS,
			SMS:  &model.SMSConfig{PhoneNumber: "+15551234"},
		},
	}
	_, err := h.uc.Rule.CreateRule(ctx, testAgentID, smsRule)
	gt.Error(t, err).Is(usecase.ErrInvalidRuleConfig)

	rules, err := h.uc.Rule.ListRules(ctx, testAgentID)
	gt.NoError(t, err).Required()
	gt.Array(t, rules).Length(0)

	rule, err := h.uc.Rule.CreateRule(ctx, testAgentID, usecase.RuleInput{
		Name: "webhook",
		ActionConfig: &model.ActionConfig{
			Type:    types.ActionTypeWebhook,
			Webhook: &model.WebhookConfig{URL: "https://hooks.example.com/alerts"},
		},
	})
	gt.NoError(t, err).Required()

	_, err = h.uc.Rule.UpdateRule(ctx, rule.ID, usecase.RuleInput{ActionConfig: smsRule.ActionConfig})
	gt.Error(t, err).Is(usecase.ErrInvalidRuleConfig)

	renamed, err := h.uc.Rule.UpdateRule(ctx, rule.ID, usecase.RuleInput{Name: "renamed"})
	gt.NoError(t, err).Required()
	gt.Value(t, renamed.Name).Equal("renamed")
}
