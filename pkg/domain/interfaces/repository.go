package interfaces

// Repository bundles every persistence concern of the engine. Backends
// return errors wrapping model.ErrNotFound for absent records.
type Repository interface {
	Memory() MemoryRepository
	Embedding() EmbeddingStore
	Rule() RuleRepository
	AlertLog() AlertLogRepository
	AgentConfig() AgentConfigRepository

	Close() error
}
