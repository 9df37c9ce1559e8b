package config

import (
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	slacksvc "github.com/magpipe/recurra/pkg/service/slack"
	"github.com/urfave/cli/v3"
)

type Slack struct {
	botToken        string
	channelCacheTTL time.Duration
}

func (x *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-bot-token",
			Usage:       "Slack Bot User OAuth Token (for posting alerts)",
			Category:    "Slack",
			Destination: &x.botToken,
			Sources:     cli.EnvVars("RECURRA_SLACK_BOT_TOKEN"),
		},
		&cli.DurationFlag{
			Name:        "slack-channel-cache-ttl",
			Usage:       "How long a resolved channel name is cached",
			Category:    "Slack",
			Value:       10 * time.Minute,
			Destination: &x.channelCacheTTL,
			Sources:     cli.EnvVars("RECURRA_SLACK_CHANNEL_CACHE_TTL"),
		},
	}
}

func (x Slack) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("bot-token.len", len(x.botToken)),
	)
}

// IsConfigured checks if a bot token is set
func (x *Slack) IsConfigured() bool {
	return x.botToken != ""
}

// Configure creates the Slack service, or nil when no bot token is set
func (x *Slack) Configure() (slacksvc.Service, error) {
	if !x.IsConfigured() {
		return nil, nil
	}

	svc, err := slacksvc.New(x.botToken, slacksvc.WithCacheTTL(x.channelCacheTTL))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize slack service")
	}
	return svc, nil
}
