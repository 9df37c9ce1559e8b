package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/domain/interfaces"
	"github.com/magpipe/recurra/pkg/domain/model"
	"github.com/magpipe/recurra/pkg/domain/types"
)

// Webhook sends the alert payload as JSON to an operator-supplied URL
type Webhook struct {
	client *http.Client
}

var _ interfaces.Connector = &Webhook{}

type WebhookOption func(*Webhook)

func WithWebhookHTTPClient(c *http.Client) WebhookOption {
	return func(w *Webhook) {
		w.client = c
	}
}

func NewWebhook(opts ...WebhookOption) *Webhook {
	w := &Webhook{client: defaultHTTPClient()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WebhookBody is the JSON document posted to webhooks
type WebhookBody struct {
	Event     string              `json:"event"`
	Timestamp string              `json:"timestamp"`
	Alert     *model.AlertPayload `json:"alert"`
}

func (w *Webhook) Deliver(ctx context.Context, cfg model.ActionConfig, payload *model.AlertPayload) (bool, error) {
	if cfg.Type != types.ActionTypeWebhook || cfg.Webhook == nil {
		return false, goerr.Wrap(model.ErrInvalidActionConfig, "webhook config is missing")
	}

	raw, err := json.Marshal(WebhookBody{
		Event:     "semantic_match",
		Timestamp: payload.TriggeredAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Alert:     payload,
	})
	if err != nil {
		return false, goerr.Wrap(err, "failed to marshal webhook body")
	}

	req, err := http.NewRequestWithContext(ctx, cfg.Webhook.WebhookMethod(), cfg.Webhook.URL, bytes.NewReader(raw))
	if err != nil {
		return false, goerr.Wrap(err, "failed to build webhook request", goerr.V("url", cfg.Webhook.URL))
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range cfg.Webhook.Headers {
		req.Header.Set(k, v)
	}

	if _, err := do(ctx, w.client, req); err != nil {
		return false, goerr.Wrap(err, "failed to call webhook")
	}
	return true, nil
}
