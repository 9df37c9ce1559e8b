package memory

import (
	"github.com/magpipe/recurra/pkg/domain/interfaces"
)

// Repository is an alias for Memory to match the pattern
type Repository = Memory

// Memory is the in-process backend. Every record is copied on the way in and
// out, so callers never share state with the store.
type Memory struct {
	memory      *memoryRepository
	embedding   *embeddingStore
	rule        *ruleRepository
	alertLog    *alertLogRepository
	agentConfig *agentConfigRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		memory:      newMemoryRepository(),
		embedding:   newEmbeddingStore(),
		rule:        newRuleRepository(),
		alertLog:    newAlertLogRepository(),
		agentConfig: newAgentConfigRepository(),
	}
}

func (m *Memory) Memory() interfaces.MemoryRepository {
	return m.memory
}

func (m *Memory) Embedding() interfaces.EmbeddingStore {
	return m.embedding
}

func (m *Memory) Rule() interfaces.RuleRepository {
	return m.rule
}

func (m *Memory) AlertLog() interfaces.AlertLogRepository {
	return m.alertLog
}

func (m *Memory) AgentConfig() interfaces.AgentConfigRepository {
	return m.agentConfig
}

func (m *Memory) Close() error {
	return nil
}
