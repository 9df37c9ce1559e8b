package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/magpipe/recurra/pkg/domain/interfaces"
	"github.com/magpipe/recurra/pkg/service/embedding"
	"github.com/urfave/cli/v3"
)

// Embedding holds configuration for the Gemini embedding provider
type Embedding struct {
	projectID string
	location  string
	dimension int
	cacheTTL  time.Duration
	timeout   time.Duration
}

// Flags returns CLI flags for embedding configuration
func (g *Embedding) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini API",
			Category:    "Embedding",
			Sources:     cli.EnvVars("RECURRA_GEMINI_PROJECT"),
			Destination: &g.projectID,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini API",
			Category:    "Embedding",
			Value:       "us-central1",
			Sources:     cli.EnvVars("RECURRA_GEMINI_LOCATION"),
			Destination: &g.location,
		},
		&cli.IntFlag{
			Name:        "embedding-dimension",
			Usage:       "Dimension of memory vectors",
			Category:    "Embedding",
			Value:       embedding.DefaultDimension,
			Sources:     cli.EnvVars("RECURRA_EMBEDDING_DIMENSION"),
			Destination: &g.dimension,
		},
		&cli.DurationFlag{
			Name:        "embedding-cache-ttl",
			Usage:       "How long a computed vector is reused for identical text (0 disables)",
			Category:    "Embedding",
			Value:       embedding.DefaultCacheTTL,
			Sources:     cli.EnvVars("RECURRA_EMBEDDING_CACHE_TTL"),
			Destination: &g.cacheTTL,
		},
		&cli.DurationFlag{
			Name:        "embedding-timeout",
			Usage:       "Timeout of a single embedding request",
			Category:    "Embedding",
			Value:       embedding.DefaultTimeout,
			Sources:     cli.EnvVars("RECURRA_EMBEDDING_TIMEOUT"),
			Destination: &g.timeout,
		},
	}
}

// LogAttrs returns log attributes for the embedding configuration
func (g *Embedding) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("project_id", g.projectID),
		slog.String("location", g.location),
		slog.Int("dimension", g.dimension),
	}
}

// Configure creates the embedder from the configured flags.
// Returns nil if projectID is not configured; memories are then stored
// without vectors and matching is skipped.
func (g *Embedding) Configure(ctx context.Context) (interfaces.Embedder, error) {
	if g.projectID == "" {
		return nil, nil
	}

	client, err := gemini.New(ctx, g.projectID, g.location)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Gemini client")
	}

	svc, err := embedding.New(client,
		embedding.WithDimension(g.dimension),
		embedding.WithCacheTTL(g.cacheTTL),
		embedding.WithTimeout(g.timeout),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create embedding service")
	}
	return svc, nil
}
