package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/cli/config"
	"github.com/magpipe/recurra/pkg/domain/interfaces"
	"github.com/magpipe/recurra/pkg/usecase"
	"github.com/magpipe/recurra/pkg/utils/logging"
)

// engine is the wiring shared by every command
type engine struct {
	repo     interfaces.Repository
	uc       *usecase.UseCases
	embedder interfaces.Embedder
}

func (e *engine) Close() {
	if err := e.repo.Close(); err != nil {
		logging.Default().Error("failed to close repository", "error", err.Error())
	}
}

// setupEngine opens the repository and builds the use cases. The caller must
// Close the returned engine.
func setupEngine(ctx context.Context, repoCfg *config.Repository, embeddingCfg *config.Embedding, opts ...usecase.Option) (*engine, error) {
	repo, err := repoCfg.Configure(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize repository")
	}

	store, err := repoCfg.EmbeddingStore()
	if err != nil {
		_ = repo.Close()
		return nil, err
	}
	if store != nil {
		opts = append(opts, usecase.WithEmbeddingStore(store))
	}

	embedder, err := embeddingCfg.Configure(ctx)
	if err != nil {
		_ = repo.Close()
		return nil, goerr.Wrap(err, "failed to initialize embedding provider")
	}
	if embedder != nil {
		opts = append(opts, usecase.WithEmbedder(embedder))
		logging.Default().Info("Embedding provider enabled", "embedding", embeddingCfg.LogAttrs())
	} else {
		logging.Default().Warn("Embedding provider not configured, memories are stored without vectors")
	}

	uc := usecase.New(repo, opts...)

	// an external vector store starts out empty or behind the memory records
	if store != nil {
		n, err := uc.Memory.RebuildEmbeddingIndex(ctx)
		if err != nil {
			_ = repo.Close()
			return nil, goerr.Wrap(err, "failed to load vectors into embedding store")
		}
		logging.Default().Info("Embedding store loaded from memory records", "vectors", n)
	}

	return &engine{
		repo:     repo,
		uc:       uc,
		embedder: embedder,
	}, nil
}
