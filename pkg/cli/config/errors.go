package config

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for configuration validation
var (
	ErrConfigNotFound   = goerr.New("configuration file not found")
	ErrInvalidConfig    = goerr.New("invalid configuration")
	ErrDuplicateAgentID = goerr.New("duplicate agent ID")
	ErrMissingAgentID   = goerr.New("agent id is required")
	ErrInvalidBackend   = goerr.New("invalid repository backend")
)

// Context keys for error values
const (
	ConfigPathKey = "config_path"
	AgentIDKey    = "agent_id"
	AgentIndexKey = "agent_index"
	BackendKey    = "backend"
)
