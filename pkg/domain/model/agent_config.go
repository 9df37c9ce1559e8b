package model

import (
	"github.com/m-mizutani/goerr/v2"
)

const (
	DefaultSimilarityThreshold = 0.75
	DefaultMaxResults          = 3
)

// SemanticMemoryConfig holds the per-agent matching parameters
type SemanticMemoryConfig struct {
	Enabled             bool    `json:"enabled" toml:"enabled" firestore:"Enabled"`
	SimilarityThreshold float64 `json:"similarity_threshold" toml:"similarity_threshold" firestore:"SimilarityThreshold"`
	MaxResults          int     `json:"max_results" toml:"max_results" firestore:"MaxResults"`
}

// DefaultSemanticMemoryConfig returns the configuration used for agents that
// have none stored.
func DefaultSemanticMemoryConfig() SemanticMemoryConfig {
	return SemanticMemoryConfig{
		Enabled:             true,
		SimilarityThreshold: DefaultSimilarityThreshold,
		MaxResults:          DefaultMaxResults,
	}
}

func (c SemanticMemoryConfig) Validate() error {
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return goerr.Wrap(ErrInvalidAgentConfig, "similarity_threshold must be within [0, 1]",
			goerr.V("similarity_threshold", c.SimilarityThreshold))
	}
	if c.MaxResults < 1 {
		return goerr.Wrap(ErrInvalidAgentConfig, "max_results must be at least 1",
			goerr.V("max_results", c.MaxResults))
	}
	return nil
}

// AgentConfig is the engine-relevant slice of an agent's settings
type AgentConfig struct {
	AgentID        AgentID              `json:"agent_id" toml:"id" firestore:"AgentID"`
	Name           string               `json:"name" toml:"name" firestore:"Name"`
	SemanticMemory SemanticMemoryConfig `json:"semantic_memory" toml:"semantic_memory" firestore:"SemanticMemory"`
}

// DefaultAgentConfig returns the config assumed for an agent with no record
func DefaultAgentConfig(agentID AgentID) *AgentConfig {
	return &AgentConfig{
		AgentID:        agentID,
		SemanticMemory: DefaultSemanticMemoryConfig(),
	}
}

func (c *AgentConfig) Validate() error {
	if c.AgentID == "" {
		return goerr.Wrap(ErrInvalidAgentConfig, "agent id is required")
	}
	return c.SemanticMemory.Validate()
}

// DisplayName returns Name, falling back to the agent ID
func (c *AgentConfig) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return string(c.AgentID)
}
