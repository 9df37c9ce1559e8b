package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/domain/interfaces"
)

const (
	collectionMemories     = "memories"
	collectionEmbeddings   = "memory_embeddings"
	collectionRules        = "semantic_match_actions"
	collectionAlertLogs    = "alert_logs"
	collectionAgentConfigs = "agent_configs"

	// maxNearestLimit is the upper bound Firestore accepts for FindNearest
	maxNearestLimit = 1000
)

type base struct {
	client *firestore.Client
	prefix string
}

func (b *base) collection(name string) *firestore.CollectionRef {
	return b.client.Collection(b.prefix + name)
}

type Firestore struct {
	base        *base
	memory      *memoryRepository
	embedding   *embeddingStore
	rule        *ruleRepository
	alertLog    *alertLogRepository
	agentConfig *agentConfigRepository
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

// WithCollectionPrefix namespaces every collection, e.g. for test isolation
func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.base.prefix = prefix
	}
}

func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID),
			goerr.V("databaseID", databaseID),
		)
	}

	b := &base{client: client}
	f := &Firestore{
		base:        b,
		memory:      &memoryRepository{base: b},
		embedding:   &embeddingStore{base: b},
		rule:        &ruleRepository{base: b},
		alertLog:    &alertLogRepository{base: b},
		agentConfig: &agentConfigRepository{base: b},
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *Firestore) Memory() interfaces.MemoryRepository {
	return f.memory
}

func (f *Firestore) Embedding() interfaces.EmbeddingStore {
	return f.embedding
}

func (f *Firestore) Rule() interfaces.RuleRepository {
	return f.rule
}

func (f *Firestore) AlertLog() interfaces.AlertLogRepository {
	return f.alertLog
}

func (f *Firestore) AgentConfig() interfaces.AgentConfigRepository {
	return f.agentConfig
}

func (f *Firestore) Close() error {
	if f.base.client != nil {
		return f.base.client.Close()
	}
	return nil
}

// deleteQuery removes every document matched by q through a BulkWriter
func deleteQuery(ctx context.Context, client *firestore.Client, q firestore.Query) (int, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	refs, err := collectRefs(iter)
	if err != nil {
		return 0, err
	}
	if len(refs) == 0 {
		return 0, nil
	}

	bw := client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(refs))
	for _, ref := range refs {
		job, err := bw.Delete(ref)
		if err != nil {
			bw.End()
			return 0, goerr.Wrap(err, "failed to enqueue delete", goerr.V("path", ref.Path))
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for i, job := range jobs {
		if _, err := job.Results(); err != nil {
			return i, goerr.Wrap(err, "failed to delete document", goerr.V("path", refs[i].Path))
		}
	}
	return len(refs), nil
}
