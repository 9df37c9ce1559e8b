package slack

import (
	"context"
)

// Service provides the Slack operations needed to deliver alerts
type Service interface {
	// ResolveChannelID returns the ID of the channel referenced by ref, which
	// is either a channel ID or a channel name with or without "#". Name
	// lookups are cached.
	ResolveChannelID(ctx context.Context, ref string) (string, error)

	// JoinChannel makes the bot a member of the channel. Joining a channel
	// the bot is already in succeeds.
	JoinChannel(ctx context.Context, channelID string) error

	// PostMessage posts mrkdwn text to a channel and returns the message timestamp
	PostMessage(ctx context.Context, channelID string, text string) (string, error)
}

// Channel represents a Slack channel
type Channel struct {
	ID   string
	Name string
}
