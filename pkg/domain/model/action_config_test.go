package model_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/magpipe/recurra/pkg/domain/model"
	"github.com/magpipe/recurra/pkg/domain/types"
)

func TestActionConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     model.ActionConfig
		wantErr bool
	}{
		{
			name: "sms with phone",
			cfg:  model.ActionConfig{Type: types.ActionTypeSMS, SMS: &model.SMSConfig{PhoneNumber: "+15550100"}},
		},
		{
			name:    "sms without phone",
			cfg:     model.ActionConfig{Type: types.ActionTypeSMS, SMS: &model.SMSConfig{}},
			wantErr: true,
		},
		{
			name:    "sms without variant",
			cfg:     model.ActionConfig{Type: types.ActionTypeSMS},
			wantErr: true,
		},
		{
			name: "email with template",
			cfg: model.ActionConfig{Type: types.ActionTypeEmail, Email: &model.EmailConfig{
				EmailAddress:    "ops@example.com",
				SubjectTemplate: "Alert {{.RuleName}}",
			}},
		},
		{
			name: "email with broken template",
			cfg: model.ActionConfig{Type: types.ActionTypeEmail, Email: &model.EmailConfig{
				EmailAddress:    "ops@example.com",
				SubjectTemplate: "Alert {{.RuleName",
			}},
			wantErr: true,
		},
		{
			name:    "email with malformed address",
			cfg:     model.ActionConfig{Type: types.ActionTypeEmail, Email: &model.EmailConfig{EmailAddress: "not-an-address"}},
			wantErr: true,
		},
		{
			name: "slack channel by name",
			cfg:  model.ActionConfig{Type: types.ActionTypeSlack, Slack: &model.SlackConfig{ChannelName: "#alerts"}},
		},
		{
			name:    "slack bare hash",
			cfg:     model.ActionConfig{Type: types.ActionTypeSlack, Slack: &model.SlackConfig{ChannelName: "#"}},
			wantErr: true,
		},
		{
			name: "hubspot without contact",
			cfg:  model.ActionConfig{Type: types.ActionTypeHubSpot},
		},
		{
			name:    "hubspot with malformed contact",
			cfg:     model.ActionConfig{Type: types.ActionTypeHubSpot, HubSpot: &model.HubSpotConfig{ContactEmail: "nope"}},
			wantErr: true,
		},
		{
			name: "webhook with put",
			cfg: model.ActionConfig{Type: types.ActionTypeWebhook, Webhook: &model.WebhookConfig{
				URL: "https://example.com/hook", Method: "put",
			}},
		},
		{
			name:    "webhook without url",
			cfg:     model.ActionConfig{Type: types.ActionTypeWebhook, Webhook: &model.WebhookConfig{}},
			wantErr: true,
		},
		{
			name:    "webhook relative url",
			cfg:     model.ActionConfig{Type: types.ActionTypeWebhook, Webhook: &model.WebhookConfig{URL: "/hook"}},
			wantErr: true,
		},
		{
			name: "webhook unsupported method",
			cfg: model.ActionConfig{Type: types.ActionTypeWebhook, Webhook: &model.WebhookConfig{
				URL: "https://example.com/hook", Method: "DELETE",
			}},
			wantErr: true,
		},
		{
			name: "two variants set",
			cfg: model.ActionConfig{
				Type:  types.ActionTypeSMS,
				SMS:   &model.SMSConfig{PhoneNumber: "+15550100"},
				Slack: &model.SlackConfig{ChannelName: "alerts"},
			},
			wantErr: true,
		},
		{
			name:    "unknown type",
			cfg:     model.ActionConfig{Type: "fax"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				gt.Error(t, err).Is(model.ErrInvalidActionConfig)
				return
			}
			gt.NoError(t, err)
		})
	}
}

func TestActionConfig_Clone(t *testing.T) {
	cfg := model.ActionConfig{Type: types.ActionTypeWebhook, Webhook: &model.WebhookConfig{
		URL:     "https://example.com",
		Headers: map[string]string{"X-Token": "a"},
	}}
	c := cfg.Clone()
	c.Webhook.Headers["X-Token"] = "b"
	c.Webhook.URL = "https://other.example.com"

	gt.Value(t, cfg.Webhook.Headers["X-Token"]).Equal("a")
	gt.Value(t, cfg.Webhook.URL).Equal("https://example.com")
}
