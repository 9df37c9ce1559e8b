package notifier

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/domain/interfaces"
	"github.com/magpipe/recurra/pkg/domain/model"
	"github.com/magpipe/recurra/pkg/domain/types"
)

// SignalWireConfig holds SignalWire LaML credentials
type SignalWireConfig struct {
	SpaceURL   string
	ProjectID  string
	APIToken   string `masq:"secret"`
	FromNumber string
}

// SMS delivers alerts as text messages through SignalWire
type SMS struct {
	cfg     SignalWireConfig
	baseURL string
	client  *http.Client
}

var _ interfaces.Connector = &SMS{}

type SMSOption func(*SMS)

// WithSMSBaseURL overrides the API origin derived from the space URL
func WithSMSBaseURL(u string) SMSOption {
	return func(s *SMS) {
		s.baseURL = strings.TrimSuffix(u, "/")
	}
}

func WithSMSHTTPClient(c *http.Client) SMSOption {
	return func(s *SMS) {
		s.client = c
	}
}

func NewSMS(cfg SignalWireConfig, opts ...SMSOption) (*SMS, error) {
	if cfg.SpaceURL == "" || cfg.ProjectID == "" || cfg.APIToken == "" || cfg.FromNumber == "" {
		return nil, goerr.New("signalwire space url, project id, api token and from number are required")
	}

	s := &SMS{
		cfg:     cfg,
		baseURL: "https://" + strings.TrimPrefix(strings.TrimSuffix(cfg.SpaceURL, "/"), "https://"),
		client:  defaultHTTPClient(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SMS) Deliver(ctx context.Context, cfg model.ActionConfig, payload *model.AlertPayload) (bool, error) {
	if cfg.Type != types.ActionTypeSMS || cfg.SMS == nil {
		return false, goerr.Wrap(model.ErrInvalidActionConfig, "sms config is missing")
	}

	form := url.Values{}
	form.Set("From", s.cfg.FromNumber)
	form.Set("To", cfg.SMS.PhoneNumber)
	form.Set("Body", FormatSMS(payload))

	endpoint := fmt.Sprintf("%s/api/laml/2010-04-01/Accounts/%s/Messages", s.baseURL, url.PathEscape(s.cfg.ProjectID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return false, goerr.Wrap(err, "failed to build signalwire request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.cfg.ProjectID, s.cfg.APIToken)

	if _, err := do(ctx, s.client, req); err != nil {
		return false, goerr.Wrap(err, "failed to send sms")
	}
	return true, nil
}
