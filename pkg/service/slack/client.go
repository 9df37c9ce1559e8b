package slack

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"
)

const (
	// DefaultCacheTTL is the default TTL for channel name resolution
	DefaultCacheTTL = 10 * time.Minute
)

var ErrChannelNotFound = goerr.New("slack channel not found")

// cacheEntry holds a resolved channel ID with expiration
type cacheEntry struct {
	id        string
	expiresAt time.Time
}

// client implements Service interface
type client struct {
	api      *slack.Client
	cacheTTL time.Duration
	apiURL   string

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// Option is a functional option for client configuration
type Option func(*client)

// WithCacheTTL sets the TTL for channel name resolution
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *client) {
		c.cacheTTL = ttl
	}
}

// WithAPIURL points the client at another Slack API endpoint, e.g. a test server
func WithAPIURL(url string) Option {
	return func(c *client) {
		c.apiURL = url
	}
}

// New creates a new Slack service with the provided bot token
func New(token string, opts ...Option) (Service, error) {
	if token == "" {
		return nil, goerr.New("Slack bot token is required")
	}

	c := &client{
		cacheTTL: DefaultCacheTTL,
		cache:    make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}

	apiOpts := []slack.Option{slack.OptionHTTPClient(cleanhttp.DefaultPooledClient())}
	if c.apiURL != "" {
		url := c.apiURL
		if !strings.HasSuffix(url, "/") {
			url += "/"
		}
		apiOpts = append(apiOpts, slack.OptionAPIURL(url))
	}
	c.api = slack.New(token, apiOpts...)

	return c, nil
}

func (c *client) lookup(name string, now time.Time) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.cache[name]
	if !ok || !entry.expiresAt.After(now) {
		return "", false
	}
	return entry.id, true
}

// ResolveChannelID resolves a channel reference to its ID
func (c *client) ResolveChannelID(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if IsChannelID(ref) {
		return ref, nil
	}

	name := NormalizeChannelName(ref)
	if name == "" {
		return "", goerr.Wrap(ErrChannelNotFound, "channel name is empty", goerr.V("ref", ref))
	}

	now := time.Now()
	if id, ok := c.lookup(name, now); ok {
		return id, nil
	}

	channels, err := c.listChannels(ctx)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Every page is cached so later lookups of other channels skip the API
	var found string
	for _, ch := range channels {
		key := strings.ToLower(ch.Name)
		c.cache[key] = cacheEntry{id: ch.ID, expiresAt: now.Add(c.cacheTTL)}
		if key == name {
			found = ch.ID
		}
	}

	if found == "" {
		return "", goerr.Wrap(ErrChannelNotFound, "no channel with the given name", goerr.V("name", name))
	}
	return found, nil
}

func (c *client) listChannels(ctx context.Context) ([]Channel, error) {
	var channels []Channel
	var cursor string

	for {
		params := &slack.GetConversationsParameters{
			Types:           []string{"public_channel", "private_channel"},
			ExcludeArchived: true,
			Limit:           200,
			Cursor:          cursor,
		}

		convs, nextCursor, err := c.api.GetConversationsContext(ctx, params)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to get conversations")
		}

		for _, conv := range convs {
			channels = append(channels, Channel{
				ID:   conv.ID,
				Name: conv.Name,
			})
		}

		if nextCursor == "" {
			break
		}
		cursor = nextCursor
	}

	return channels, nil
}

// JoinChannel joins the bot to a public channel
func (c *client) JoinChannel(ctx context.Context, channelID string) error {
	if _, _, _, err := c.api.JoinConversationContext(ctx, channelID); err != nil {
		return goerr.Wrap(err, "failed to join Slack channel", goerr.V("channelID", channelID))
	}
	return nil
}

// PostMessage posts mrkdwn text and returns the message timestamp
func (c *client) PostMessage(ctx context.Context, channelID string, text string) (string, error) {
	_, ts, err := c.api.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false))
	if err != nil {
		return "", goerr.Wrap(err, "failed to post Slack message", goerr.V("channelID", channelID))
	}
	return ts, nil
}
