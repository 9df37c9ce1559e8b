package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/magpipe/recurra/pkg/cli/config"
	"github.com/magpipe/recurra/pkg/domain/model"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recurra.toml")
	gt.NoError(t, os.WriteFile(path, []byte(content), 0600)).Required()
	return path
}

func TestLoadAgentConfigs(t *testing.T) {
	t.Run("valid file with defaults", func(t *testing.T) {
		path := writeConfig(t, `
[[agent]]
id = "front-desk"
name = "Front Desk"

  [agent.semantic_memory]
  similarity_threshold = 0.8
  max_results = 5

[[agent]]
id = "after-hours"

  [agent.semantic_memory]
  enabled = false
`)

		configs, err := config.LoadAgentConfigs(path)
		gt.NoError(t, err).Required()
		gt.Array(t, configs).Length(2).Required()

		gt.Value(t, configs[0].AgentID).Equal(model.AgentID("front-desk"))
		gt.Value(t, configs[0].Name).Equal("Front Desk")
		gt.Bool(t, configs[0].SemanticMemory.Enabled).True()
		gt.Value(t, configs[0].SemanticMemory.SimilarityThreshold).Equal(0.8)
		gt.Number(t, configs[0].SemanticMemory.MaxResults).Equal(5)

		gt.Bool(t, configs[1].SemanticMemory.Enabled).False()
		gt.Value(t, configs[1].SemanticMemory.SimilarityThreshold).Equal(model.DefaultSemanticMemoryConfig().SimilarityThreshold)
		gt.Number(t, configs[1].SemanticMemory.MaxResults).Equal(model.DefaultSemanticMemoryConfig().MaxResults)
		gt.Value(t, configs[1].DisplayName()).Equal("after-hours")
	})

	t.Run("empty file", func(t *testing.T) {
		configs, err := config.LoadAgentConfigs(writeConfig(t, ""))
		gt.NoError(t, err)
		gt.Array(t, configs).Length(0)
	})

	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name:    "missing id",
			content: "[[agent]]\nname = \"no id\"\n",
			wantErr: config.ErrMissingAgentID,
		},
		{
			name:    "duplicate id",
			content: "[[agent]]\nid = \"a\"\n[[agent]]\nid = \"a\"\n",
			wantErr: config.ErrDuplicateAgentID,
		},
		{
			name:    "threshold out of range",
			content: "[[agent]]\nid = \"a\"\n[agent.semantic_memory]\nsimilarity_threshold = 1.5\n",
			wantErr: config.ErrInvalidConfig,
		},
		{
			name:    "zero max results",
			content: "[[agent]]\nid = \"a\"\n[agent.semantic_memory]\nmax_results = 0\n",
			wantErr: model.ErrInvalidAgentConfig,
		},
		{
			name:    "broken toml",
			content: "[[agent]\nid = ",
			wantErr: config.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.LoadAgentConfigs(writeConfig(t, tt.content))
			gt.Error(t, err).Is(tt.wantErr)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := config.LoadAgentConfigs(filepath.Join(t.TempDir(), "absent.toml"))
		gt.Error(t, err).Is(config.ErrConfigNotFound)
	})
}

func TestAppConfig_ConfigureWithoutPath(t *testing.T) {
	var cfg config.AppConfig
	configs, err := cfg.Configure()
	gt.NoError(t, err)
	gt.Value(t, configs).Nil()
	gt.Array(t, cfg.Flags()).Length(1)
}
