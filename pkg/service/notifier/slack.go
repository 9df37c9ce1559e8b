package notifier

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/domain/interfaces"
	"github.com/magpipe/recurra/pkg/domain/model"
	"github.com/magpipe/recurra/pkg/domain/types"
	slacksvc "github.com/magpipe/recurra/pkg/service/slack"
	"github.com/magpipe/recurra/pkg/utils/logging"
)

// Slack posts alerts to a channel through the bot
type Slack struct {
	svc slacksvc.Service
}

var _ interfaces.Connector = &Slack{}

func NewSlack(svc slacksvc.Service) *Slack {
	return &Slack{svc: svc}
}

func (s *Slack) Deliver(ctx context.Context, cfg model.ActionConfig, payload *model.AlertPayload) (bool, error) {
	if cfg.Type != types.ActionTypeSlack || cfg.Slack == nil {
		return false, goerr.Wrap(model.ErrInvalidActionConfig, "slack config is missing")
	}

	channelID, err := s.svc.ResolveChannelID(ctx, cfg.Slack.ChannelName)
	if err != nil {
		return false, goerr.Wrap(err, "failed to resolve slack channel", goerr.V("channel", cfg.Slack.ChannelName))
	}

	// Not fatal: the bot may already be a member of a private channel
	if err := s.svc.JoinChannel(ctx, channelID); err != nil {
		logging.From(ctx).Warn("failed to join slack channel",
			slog.String("channel_id", channelID),
			slog.Any("error", err),
		)
	}

	if _, err := s.svc.PostMessage(ctx, channelID, FormatSlack(payload)); err != nil {
		return false, goerr.Wrap(err, "failed to post slack message", goerr.V("channel_id", channelID))
	}
	return true, nil
}
