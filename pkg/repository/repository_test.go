package repository_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/m-mizutani/gt"
	"github.com/magpipe/recurra/pkg/domain/interfaces"
	"github.com/magpipe/recurra/pkg/domain/model"
	"github.com/magpipe/recurra/pkg/repository/chromem"
	"github.com/magpipe/recurra/pkg/repository/firestore"
	"github.com/magpipe/recurra/pkg/repository/memory"
	"github.com/magpipe/recurra/pkg/repository/sqlite"
)

func newMemoryRepository(t *testing.T) interfaces.Repository {
	return memory.New()
}

func newSQLiteRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	repo, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "recurra.db"))
	gt.NoError(t, err).Required()
	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})
	return repo
}

func newFirestoreRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	if projectID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID not set")
	}

	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")
	if databaseID == "" {
		t.Skip("TEST_FIRESTORE_DATABASE_ID not set")
	}

	ctx := context.Background()
	repo, err := firestore.New(ctx, projectID, databaseID,
		firestore.WithCollectionPrefix("test_"+uuid.NewString()[:8]+"_"),
	)
	gt.NoError(t, err).Required()
	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})
	return repo
}

func newChromemStore(t *testing.T) interfaces.EmbeddingStore {
	store, err := chromem.New("")
	gt.NoError(t, err).Required()
	return store
}

func newPersistentChromemStore(t *testing.T) interfaces.EmbeddingStore {
	store, err := chromem.New(filepath.Join(t.TempDir(), "vectors"))
	gt.NoError(t, err).Required()
	return store
}

func embeddingOf(newRepo func(t *testing.T) interfaces.Repository) func(t *testing.T) interfaces.EmbeddingStore {
	return func(t *testing.T) interfaces.EmbeddingStore {
		return newRepo(t).Embedding()
	}
}

// newAgentID isolates test data of backends shared between subtests
func newAgentID() model.AgentID {
	return model.AgentID("agent-" + uuid.NewString())
}
