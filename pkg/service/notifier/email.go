package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/domain/interfaces"
	"github.com/magpipe/recurra/pkg/domain/model"
	"github.com/magpipe/recurra/pkg/domain/types"
)

const defaultPostmarkURL = "https://api.postmarkapp.com"

// PostmarkConfig holds Postmark credentials and the sender address
type PostmarkConfig struct {
	ServerToken string `masq:"secret"`
	From        string
}

// Email delivers alerts through the Postmark email API
type Email struct {
	cfg     PostmarkConfig
	baseURL string
	client  *http.Client
}

var _ interfaces.Connector = &Email{}

type EmailOption func(*Email)

func WithEmailBaseURL(u string) EmailOption {
	return func(e *Email) {
		e.baseURL = strings.TrimSuffix(u, "/")
	}
}

func WithEmailHTTPClient(c *http.Client) EmailOption {
	return func(e *Email) {
		e.client = c
	}
}

func NewEmail(cfg PostmarkConfig, opts ...EmailOption) (*Email, error) {
	if cfg.ServerToken == "" || cfg.From == "" {
		return nil, goerr.New("postmark server token and from address are required")
	}

	e := &Email{
		cfg:     cfg,
		baseURL: defaultPostmarkURL,
		client:  defaultHTTPClient(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

type postmarkMessage struct {
	From          string `json:"From"`
	To            string `json:"To"`
	Subject       string `json:"Subject"`
	HtmlBody      string `json:"HtmlBody"`
	TextBody      string `json:"TextBody"`
	MessageStream string `json:"MessageStream"`
}

func (e *Email) Deliver(ctx context.Context, cfg model.ActionConfig, payload *model.AlertPayload) (bool, error) {
	if cfg.Type != types.ActionTypeEmail || cfg.Email == nil {
		return false, goerr.Wrap(model.ErrInvalidActionConfig, "email config is missing")
	}

	subject, err := EmailSubject(cfg.Email, payload)
	if err != nil {
		return false, err
	}
	htmlBody, err := FormatEmailHTML(payload)
	if err != nil {
		return false, err
	}

	body, err := json.Marshal(postmarkMessage{
		From:          e.cfg.From,
		To:            cfg.Email.EmailAddress,
		Subject:       subject,
		HtmlBody:      htmlBody,
		TextBody:      FormatPlain(payload),
		MessageStream: "outbound",
	})
	if err != nil {
		return false, goerr.Wrap(err, "failed to marshal postmark message")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/email", bytes.NewReader(body))
	if err != nil {
		return false, goerr.Wrap(err, "failed to build postmark request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Postmark-Server-Token", e.cfg.ServerToken)

	if _, err := do(ctx, e.client, req); err != nil {
		return false, goerr.Wrap(err, "failed to send email", goerr.V("to", cfg.Email.EmailAddress))
	}
	return true, nil
}
