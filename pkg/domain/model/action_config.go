package model

import (
	"maps"
	"net/http"
	"net/mail"
	"net/url"
	"strings"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/domain/types"
)

type SMSConfig struct {
	PhoneNumber string `json:"phone_number" firestore:"PhoneNumber"`
}

type EmailConfig struct {
	EmailAddress    string `json:"email_address" firestore:"EmailAddress"`
	SubjectTemplate string `json:"subject_template,omitempty" firestore:"SubjectTemplate"`
}

type SlackConfig struct {
	// ChannelName is either "#name", a bare name or a channel ID
	ChannelName string `json:"channel_name" firestore:"ChannelName"`
}

type HubSpotConfig struct {
	ContactEmail string `json:"contact_email,omitempty" firestore:"ContactEmail"`
}

type WebhookConfig struct {
	URL     string            `json:"url" firestore:"URL"`
	Method  string            `json:"method,omitempty" firestore:"Method"`
	Headers map[string]string `json:"headers,omitempty" firestore:"Headers" masq:"secret"`
}

// ActionConfig is a tagged union keyed by Type. Exactly the variant matching
// Type is set on a valid config.
type ActionConfig struct {
	Type    types.ActionType `json:"type" firestore:"Type"`
	SMS     *SMSConfig       `json:"sms,omitempty" firestore:"SMS,omitempty"`
	Email   *EmailConfig     `json:"email,omitempty" firestore:"Email,omitempty"`
	Slack   *SlackConfig     `json:"slack,omitempty" firestore:"Slack,omitempty"`
	HubSpot *HubSpotConfig   `json:"hubspot,omitempty" firestore:"HubSpot,omitempty"`
	Webhook *WebhookConfig   `json:"webhook,omitempty" firestore:"Webhook,omitempty"`
}

var allowedWebhookMethods = map[string]struct{}{
	http.MethodPost:  {},
	http.MethodPut:   {},
	http.MethodPatch: {},
}

// WebhookMethod returns the configured method, POST when unset
func (c *WebhookConfig) WebhookMethod() string {
	if c.Method == "" {
		return http.MethodPost
	}
	return strings.ToUpper(c.Method)
}

// Validate checks that the variant selected by Type is present and carries
// its required fields.
func (c *ActionConfig) Validate() error {
	if !c.Type.IsValid() {
		return goerr.Wrap(ErrInvalidActionConfig, "unknown action type", goerr.V("type", c.Type))
	}

	set := 0
	for _, v := range []bool{c.SMS != nil, c.Email != nil, c.Slack != nil, c.HubSpot != nil, c.Webhook != nil} {
		if v {
			set++
		}
	}
	if set > 1 {
		return goerr.Wrap(ErrInvalidActionConfig, "more than one channel config is set", goerr.V("type", c.Type))
	}

	switch c.Type {
	case types.ActionTypeSMS:
		if c.SMS == nil || strings.TrimSpace(c.SMS.PhoneNumber) == "" {
			return goerr.Wrap(ErrInvalidActionConfig, "sms action requires phone_number")
		}

	case types.ActionTypeEmail:
		if c.Email == nil || strings.TrimSpace(c.Email.EmailAddress) == "" {
			return goerr.Wrap(ErrInvalidActionConfig, "email action requires email_address")
		}
		if _, err := mail.ParseAddress(c.Email.EmailAddress); err != nil {
			return goerr.Wrap(ErrInvalidActionConfig, "invalid email_address", goerr.V("email_address", c.Email.EmailAddress))
		}
		if c.Email.SubjectTemplate != "" {
			if _, err := template.New("subject").Parse(c.Email.SubjectTemplate); err != nil {
				return goerr.Wrap(ErrInvalidActionConfig, "invalid subject_template", goerr.V("error", err.Error()))
			}
		}

	case types.ActionTypeSlack:
		if c.Slack == nil || strings.TrimSpace(strings.TrimPrefix(c.Slack.ChannelName, "#")) == "" {
			return goerr.Wrap(ErrInvalidActionConfig, "slack action requires channel_name")
		}

	case types.ActionTypeHubSpot:
		if c.HubSpot != nil && c.HubSpot.ContactEmail != "" {
			if _, err := mail.ParseAddress(c.HubSpot.ContactEmail); err != nil {
				return goerr.Wrap(ErrInvalidActionConfig, "invalid contact_email", goerr.V("contact_email", c.HubSpot.ContactEmail))
			}
		}

	case types.ActionTypeWebhook:
		if c.Webhook == nil || strings.TrimSpace(c.Webhook.URL) == "" {
			return goerr.Wrap(ErrInvalidActionConfig, "webhook action requires url")
		}
		u, err := url.Parse(c.Webhook.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return goerr.Wrap(ErrInvalidActionConfig, "webhook url must be an absolute http(s) URL", goerr.V("url", c.Webhook.URL))
		}
		if _, ok := allowedWebhookMethods[c.Webhook.WebhookMethod()]; !ok {
			return goerr.Wrap(ErrInvalidActionConfig, "unsupported webhook method", goerr.V("method", c.Webhook.Method))
		}
	}

	return nil
}

// Clone returns a deep copy
func (c ActionConfig) Clone() ActionConfig {
	out := ActionConfig{Type: c.Type}
	if c.SMS != nil {
		v := *c.SMS
		out.SMS = &v
	}
	if c.Email != nil {
		v := *c.Email
		out.Email = &v
	}
	if c.Slack != nil {
		v := *c.Slack
		out.Slack = &v
	}
	if c.HubSpot != nil {
		v := *c.HubSpot
		out.HubSpot = &v
	}
	if c.Webhook != nil {
		v := *c.Webhook
		v.Headers = maps.Clone(c.Webhook.Headers)
		out.Webhook = &v
	}
	return out
}
