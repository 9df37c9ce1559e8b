package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/domain/interfaces"
	_ "modernc.org/sqlite"
)

// Repository is a single-file SQLite backend. All statements share one
// connection, which serializes writers and makes every transaction atomic
// with respect to the others.
type Repository struct {
	db *sql.DB

	memory      *memoryRepository
	embedding   *embeddingStore
	rule        *ruleRepository
	alertLog    *alertLogRepository
	agentConfig *agentConfigRepository
}

var _ interfaces.Repository = &Repository{}

var schema = []string{
	`PRAGMA journal_mode=WAL;`,
	`PRAGMA synchronous=NORMAL;`,
	`PRAGMA busy_timeout=5000;`,
	`PRAGMA foreign_keys=ON;`,
	`CREATE TABLE IF NOT EXISTS memories (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL,
		contact_id TEXT NOT NULL,
		contact_name TEXT NOT NULL DEFAULT '',
		contact_phone TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL DEFAULT '',
		key_topics_json TEXT NOT NULL DEFAULT '[]',
		preferences_json TEXT NOT NULL DEFAULT '{}',
		call_history_json TEXT NOT NULL DEFAULT '[]',
		interaction_count INTEGER NOT NULL DEFAULT 0,
		direction TEXT NOT NULL DEFAULT 'inbound',
		embedding BLOB,
		semantic_match_count INTEGER NOT NULL DEFAULT 0 CHECK (semantic_match_count >= 0),
		created_at_ns INTEGER NOT NULL,
		updated_at_ns INTEGER NOT NULL,
		UNIQUE(agent_id, contact_id)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_memories_agent ON memories(agent_id, updated_at_ns DESC);`,
	`CREATE TABLE IF NOT EXISTS memory_embeddings (
		memory_id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL,
		contact_id TEXT NOT NULL,
		vector BLOB NOT NULL,
		updated_at_ns INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_memory_embeddings_agent ON memory_embeddings(agent_id);`,
	`CREATE TABLE IF NOT EXISTS rules (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL,
		name TEXT NOT NULL,
		monitored_topics_json TEXT NOT NULL DEFAULT '[]',
		match_threshold INTEGER NOT NULL,
		cooldown_minutes INTEGER NOT NULL,
		action_config_json TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		trigger_count INTEGER NOT NULL DEFAULT 0,
		last_triggered_at_ns INTEGER,
		lease_token TEXT NOT NULL DEFAULT '',
		lease_until_ns INTEGER NOT NULL DEFAULT 0,
		created_at_ns INTEGER NOT NULL,
		updated_at_ns INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_rules_agent ON rules(agent_id, created_at_ns);`,
	`CREATE TABLE IF NOT EXISTS alert_logs (
		id TEXT PRIMARY KEY,
		rule_id TEXT NOT NULL,
		agent_id TEXT NOT NULL,
		memory_id TEXT NOT NULL,
		status TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		match_count INTEGER NOT NULL DEFAULT 0,
		action_type TEXT NOT NULL DEFAULT '',
		created_at_ns INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_alert_logs_rule ON alert_logs(rule_id, created_at_ns DESC);`,
	`CREATE TABLE IF NOT EXISTS agent_configs (
		agent_id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		enabled INTEGER NOT NULL,
		similarity_threshold REAL NOT NULL,
		max_results INTEGER NOT NULL
	);`,
}

// New opens (or creates) the database at path. ":memory:" gives a private
// in-process database.
func New(ctx context.Context, path string) (*Repository, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, goerr.Wrap(err, "failed to create database directory", goerr.V("path", path))
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite database", goerr.V("path", path))
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to ping sqlite database", goerr.V("path", path))
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, goerr.Wrap(err, "failed to apply schema", goerr.V("statement", stmt))
		}
	}

	return &Repository{
		db:          db,
		memory:      &memoryRepository{db: db},
		embedding:   &embeddingStore{db: db},
		rule:        &ruleRepository{db: db},
		alertLog:    &alertLogRepository{db: db},
		agentConfig: &agentConfigRepository{db: db},
	}, nil
}

func (r *Repository) Memory() interfaces.MemoryRepository {
	return r.memory
}

func (r *Repository) Embedding() interfaces.EmbeddingStore {
	return r.embedding
}

func (r *Repository) Rule() interfaces.RuleRepository {
	return r.rule
}

func (r *Repository) AlertLog() interfaces.AlertLogRepository {
	return r.alertLog
}

func (r *Repository) AgentConfig() interfaces.AgentConfigRepository {
	return r.agentConfig
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}
