package config

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/domain/interfaces"
	"github.com/magpipe/recurra/pkg/repository/chromem"
	"github.com/magpipe/recurra/pkg/repository/firestore"
	"github.com/magpipe/recurra/pkg/repository/memory"
	"github.com/magpipe/recurra/pkg/repository/sqlite"
	"github.com/magpipe/recurra/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Repository holds CLI flags for repository backend configuration
type Repository struct {
	backend          string
	sqlitePath       string
	projectID        string
	databaseID       string
	collectionPrefix string
	embeddingStore   string
	chromemPath      string
}

// Flags returns CLI flags for repository configuration
func (r *Repository) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "repository-backend",
			Usage:       "Repository backend type (firestore, sqlite or memory)",
			Category:    "Repository",
			Value:       "sqlite",
			Sources:     cli.EnvVars("RECURRA_REPOSITORY_BACKEND"),
			Destination: &r.backend,
		},
		&cli.StringFlag{
			Name:        "sqlite-path",
			Usage:       "SQLite database file (sqlite backend)",
			Category:    "Repository",
			Value:       "recurra.db",
			Sources:     cli.EnvVars("RECURRA_SQLITE_PATH"),
			Destination: &r.sqlitePath,
		},
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Firestore Project ID (required when using firestore backend)",
			Category:    "Repository",
			Sources:     cli.EnvVars("RECURRA_FIRESTORE_PROJECT_ID"),
			Destination: &r.projectID,
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Usage:       "Firestore Database ID",
			Category:    "Repository",
			Sources:     cli.EnvVars("RECURRA_FIRESTORE_DATABASE_ID"),
			Destination: &r.databaseID,
		},
		&cli.StringFlag{
			Name:        "firestore-collection-prefix",
			Usage:       "Prefix for Firestore collection names",
			Category:    "Repository",
			Sources:     cli.EnvVars("RECURRA_FIRESTORE_COLLECTION_PREFIX"),
			Destination: &r.collectionPrefix,
		},
		&cli.StringFlag{
			Name:        "embedding-store",
			Usage:       "Where memory vectors are indexed (native: the repository backend, chromem: embedded vector database)",
			Category:    "Repository",
			Value:       "native",
			Sources:     cli.EnvVars("RECURRA_EMBEDDING_STORE"),
			Destination: &r.embeddingStore,
		},
		&cli.StringFlag{
			Name:        "chromem-path",
			Usage:       "Directory persisting the chromem vector database (in-memory when empty)",
			Category:    "Repository",
			Sources:     cli.EnvVars("RECURRA_CHROMEM_PATH"),
			Destination: &r.chromemPath,
		},
	}
}

// Backend returns the configured backend type
func (r *Repository) Backend() string {
	return r.backend
}

// Configure initializes and returns a repository based on the configured backend.
// The caller is responsible for calling Close() on the returned repository.
func (r *Repository) Configure(ctx context.Context) (interfaces.Repository, error) {
	switch r.backend {
	case "firestore":
		if r.projectID == "" {
			return nil, goerr.Wrap(ErrInvalidConfig, "firestore-project-id is required when using firestore backend")
		}
		var opts []firestore.Option
		if r.collectionPrefix != "" {
			opts = append(opts, firestore.WithCollectionPrefix(r.collectionPrefix))
		}
		repo, err := firestore.New(ctx, r.projectID, r.databaseID, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize firestore repository")
		}
		logging.Default().Info("Using Firestore repository",
			"project_id", r.projectID,
			"database_id", r.databaseID,
		)
		return repo, nil

	case "sqlite":
		if r.sqlitePath == "" {
			return nil, goerr.Wrap(ErrInvalidConfig, "sqlite-path is required when using sqlite backend")
		}
		repo, err := sqlite.New(ctx, r.sqlitePath)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize sqlite repository")
		}
		logging.Default().Info("Using SQLite repository", "path", r.sqlitePath)
		return repo, nil

	case "memory":
		logging.Default().Info("Using in-memory repository (development mode)")
		return memory.New(), nil

	default:
		return nil, goerr.Wrap(ErrInvalidBackend, "unknown repository backend", goerr.V(BackendKey, r.backend))
	}
}

// EmbeddingStore returns the vector index replacing the repository's own, or
// nil when the repository backend indexes vectors itself
func (r *Repository) EmbeddingStore() (interfaces.EmbeddingStore, error) {
	switch r.embeddingStore {
	case "", "native":
		return nil, nil

	case "chromem":
		store, err := chromem.New(r.chromemPath)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize chromem embedding store")
		}
		logging.Default().Info("Using chromem embedding store", "path", r.chromemPath)
		return store, nil

	default:
		return nil, goerr.Wrap(ErrInvalidConfig, "unknown embedding store", goerr.V("embedding_store", r.embeddingStore))
	}
}
