package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/domain/model"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"
)

// AppConfig points at the TOML file seeding per-agent settings
type AppConfig struct {
	path string
}

func (a *AppConfig) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "TOML file with per-agent semantic memory settings",
			Sources:     cli.EnvVars("RECURRA_CONFIG"),
			Destination: &a.path,
		},
	}
}

// Configure loads the agent configs, or returns nil when no file is given
func (a *AppConfig) Configure() ([]*model.AgentConfig, error) {
	if a.path == "" {
		return nil, nil
	}
	return LoadAgentConfigs(a.path)
}

type agentFile struct {
	Agents []agentEntry `toml:"agent"`
}

type agentEntry struct {
	ID             string               `toml:"id"`
	Name           string               `toml:"name"`
	SemanticMemory *semanticMemoryEntry `toml:"semantic_memory"`
}

// semanticMemoryEntry leaves unset keys at their defaults
type semanticMemoryEntry struct {
	Enabled             *bool    `toml:"enabled"`
	SimilarityThreshold *float64 `toml:"similarity_threshold"`
	MaxResults          *int     `toml:"max_results"`
}

func (e *agentEntry) toModel() *model.AgentConfig {
	cfg := model.DefaultAgentConfig(model.AgentID(e.ID))
	cfg.Name = e.Name

	if sm := e.SemanticMemory; sm != nil {
		if sm.Enabled != nil {
			cfg.SemanticMemory.Enabled = *sm.Enabled
		}
		if sm.SimilarityThreshold != nil {
			cfg.SemanticMemory.SimilarityThreshold = *sm.SimilarityThreshold
		}
		if sm.MaxResults != nil {
			cfg.SemanticMemory.MaxResults = *sm.MaxResults
		}
	}
	return cfg
}

// LoadAgentConfigs loads per-agent settings from a TOML file
func LoadAgentConfigs(path string) ([]*model.AgentConfig, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, goerr.Wrap(ErrConfigNotFound, "config file does not exist", goerr.V(ConfigPathKey, path))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V(ConfigPathKey, path))
	}

	var file agentFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, goerr.Wrap(errors.Join(ErrInvalidConfig, err), "failed to parse TOML config", goerr.V(ConfigPathKey, path))
	}

	seen := make(map[string]bool, len(file.Agents))
	configs := make([]*model.AgentConfig, 0, len(file.Agents))
	for i, entry := range file.Agents {
		if entry.ID == "" {
			return nil, goerr.Wrap(ErrMissingAgentID, "agent entry has no id",
				goerr.V(ConfigPathKey, path), goerr.V(AgentIndexKey, i))
		}
		if seen[entry.ID] {
			return nil, goerr.Wrap(ErrDuplicateAgentID, "agent is configured twice",
				goerr.V(ConfigPathKey, path), goerr.V(AgentIDKey, entry.ID))
		}
		seen[entry.ID] = true

		cfg := entry.toModel()
		if err := cfg.Validate(); err != nil {
			return nil, goerr.Wrap(errors.Join(ErrInvalidConfig, err), "invalid agent config",
				goerr.V(ConfigPathKey, path), goerr.V(AgentIDKey, entry.ID))
		}
		configs = append(configs, cfg)
	}

	return configs, nil
}
