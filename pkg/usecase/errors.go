package usecase

import "errors"

// Sentinel errors for use case layer
var (
	// Not found errors
	ErrMemoryNotFound = errors.New("memory not found")
	ErrRuleNotFound   = errors.New("semantic match action not found")

	// Embedding provider failed or is not configured. The memory is kept
	// without a vector and matching is skipped.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// A connector returned an error or timed out. Trigger state is untouched.
	ErrDeliveryFailed = errors.New("alert delivery failed")

	// One or more candidate increments failed during a matching pass
	ErrPartialIncrementFailure = errors.New("partial match count increment failure")

	// Rule creation or update rejected by validation
	ErrInvalidRuleConfig = errors.New("invalid rule config")

	ErrInvalidAgentConfig = errors.New("invalid agent config")
	ErrInvalidQuery       = errors.New("invalid search query")
	ErrInvalidEvent       = errors.New("invalid conversation event")
)

// Context keys for error values
const (
	MemoryIDKey = "memory_id"
	RuleIDKey   = "rule_id"
	AgentIDKey  = "agent_id"
)
