package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/domain/types"
	"github.com/magpipe/recurra/pkg/service/notifier"
	slacksvc "github.com/magpipe/recurra/pkg/service/slack"
	"github.com/magpipe/recurra/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Notifier holds credentials of the alert delivery channels. A channel
// without credentials is left unregistered and its alerts fail delivery.
type Notifier struct {
	signalWire   notifier.SignalWireConfig
	postmark     notifier.PostmarkConfig
	hubspotToken string
	webhook      bool
}

func (x *Notifier) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "signalwire-space-url",
			Usage:       "SignalWire space URL, e.g. https://example.signalwire.com",
			Category:    "Notifier",
			Sources:     cli.EnvVars("RECURRA_SIGNALWIRE_SPACE_URL"),
			Destination: &x.signalWire.SpaceURL,
		},
		&cli.StringFlag{
			Name:        "signalwire-project-id",
			Usage:       "SignalWire project ID",
			Category:    "Notifier",
			Sources:     cli.EnvVars("RECURRA_SIGNALWIRE_PROJECT_ID"),
			Destination: &x.signalWire.ProjectID,
		},
		&cli.StringFlag{
			Name:        "signalwire-api-token",
			Usage:       "SignalWire API token",
			Category:    "Notifier",
			Sources:     cli.EnvVars("RECURRA_SIGNALWIRE_API_TOKEN"),
			Destination: &x.signalWire.APIToken,
		},
		&cli.StringFlag{
			Name:        "signalwire-from",
			Usage:       "Sender phone number for SMS alerts",
			Category:    "Notifier",
			Sources:     cli.EnvVars("RECURRA_SIGNALWIRE_FROM"),
			Destination: &x.signalWire.FromNumber,
		},
		&cli.StringFlag{
			Name:        "postmark-server-token",
			Usage:       "Postmark server token for email alerts",
			Category:    "Notifier",
			Sources:     cli.EnvVars("RECURRA_POSTMARK_SERVER_TOKEN"),
			Destination: &x.postmark.ServerToken,
		},
		&cli.StringFlag{
			Name:        "postmark-from",
			Usage:       "Sender address for email alerts",
			Category:    "Notifier",
			Sources:     cli.EnvVars("RECURRA_POSTMARK_FROM"),
			Destination: &x.postmark.From,
		},
		&cli.StringFlag{
			Name:        "hubspot-access-token",
			Usage:       "HubSpot private app access token for CRM note alerts",
			Category:    "Notifier",
			Sources:     cli.EnvVars("RECURRA_HUBSPOT_ACCESS_TOKEN"),
			Destination: &x.hubspotToken,
		},
		&cli.BoolFlag{
			Name:        "webhook",
			Usage:       "Enable webhook alerts",
			Category:    "Notifier",
			Value:       true,
			Sources:     cli.EnvVars("RECURRA_WEBHOOK"),
			Destination: &x.webhook,
		},
	}
}

func (x Notifier) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("sms", x.signalWire.SpaceURL != ""),
		slog.Bool("email", x.postmark.ServerToken != ""),
		slog.Bool("hubspot", x.hubspotToken != ""),
		slog.Bool("webhook", x.webhook),
	)
}

// Configure registers a connector for every channel with credentials.
// slackSvc may be nil.
func (x *Notifier) Configure(slackSvc slacksvc.Service) (*notifier.Notifier, error) {
	var opts []notifier.Option

	if x.signalWire.SpaceURL != "" || x.signalWire.ProjectID != "" {
		sms, err := notifier.NewSMS(x.signalWire)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to configure SMS connector")
		}
		opts = append(opts, notifier.WithConnector(types.ActionTypeSMS, sms))
	}

	if x.postmark.ServerToken != "" {
		email, err := notifier.NewEmail(x.postmark)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to configure email connector")
		}
		opts = append(opts, notifier.WithConnector(types.ActionTypeEmail, email))
	}

	if x.hubspotToken != "" {
		hubspot, err := notifier.NewHubSpot(x.hubspotToken)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to configure HubSpot connector")
		}
		opts = append(opts, notifier.WithConnector(types.ActionTypeHubSpot, hubspot))
	}

	if slackSvc != nil {
		opts = append(opts, notifier.WithConnector(types.ActionTypeSlack, notifier.NewSlack(slackSvc)))
	}

	if x.webhook {
		opts = append(opts, notifier.WithConnector(types.ActionTypeWebhook, notifier.NewWebhook()))
	}

	n := notifier.New(opts...)
	for _, t := range types.AllActionTypes() {
		if !n.Supports(t) {
			logging.Default().Warn("alert channel not configured", "type", t)
		}
	}
	return n, nil
}
