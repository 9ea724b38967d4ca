package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"askace/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("BRAVE_API_KEY", "")
	t.Setenv("ASKACE_DB", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "brave", cfg.Search.Provider)
	assert.Equal(t, 40, cfg.Limits.MaxChunks)
	assert.Equal(t, 8, cfg.Limits.FetchConcurrency)
	assert.Equal(t, 2, cfg.ACE.FreshnessBufferDays)
	assert.NoError(t, cfg.Validate())
}

func TestLoadResolvesEnvPlaceholders(t *testing.T) {
	t.Setenv("MY_BRAVE", "brave-from-env")
	t.Setenv("BRAVE_API_KEY", "")

	path := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
search:
  provider: brave
  brave:
    api_key: ${MY_BRAVE}
limits:
  max_chunks: 12
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "brave-from-env", cfg.Search.Brave.APIKey)
	assert.Equal(t, 12, cfg.Limits.MaxChunks)
	// untouched defaults survive partial files
	assert.Equal(t, 8, cfg.Limits.FetchConcurrency)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("BRAVE_API_KEY wins over file", func(t *testing.T) {
		t.Setenv("BRAVE_API_KEY", "env-key")
		cfg := DefaultConfig()
		cfg.Search.Brave.APIKey = "file-key"
		cfg.applyEnvOverrides()
		assert.Equal(t, "env-key", cfg.Search.Brave.APIKey)
	})

	t.Run("provider specific llm keys", func(t *testing.T) {
		t.Setenv("OPENROUTER_API_KEY", "or-key")
		t.Setenv("OPENAI_API_KEY", "oa-key")
		cfg := DefaultConfig()
		cfg.Models.Planner.Provider = "openrouter"
		cfg.Models.Synthesizer.Provider = "openai"
		cfg.applyEnvOverrides()
		assert.Equal(t, "or-key", cfg.Models.Planner.APIKey)
		assert.Equal(t, "oa-key", cfg.Models.Synthesizer.APIKey)
	})

	t.Run("ASKACE_DB", func(t *testing.T) {
		t.Setenv("ASKACE_DB", "/tmp/x.db")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, "/tmp/x.db", cfg.ACE.DBPath)
	})
}

func TestValidateWrapsConfigurationError(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad search provider", func(c *Config) { c.Search.Provider = "bing" }},
		{"openrouter without key", func(c *Config) {
			c.Models.Planner = LLMConfig{Provider: "openrouter", Model: "x"}
		}},
		{"missing model", func(c *Config) { c.Models.Synthesizer = LLMConfig{Provider: "gemini", APIKey: "k"} }},
		{"genai embeddings without key", func(c *Config) { c.Models.Embeddings.Provider = "genai" }},
		{"http reranker without endpoint", func(c *Config) { c.Models.Reranker.Provider = "http" }},
		{"zero concurrency", func(c *Config) { c.Limits.FetchConcurrency = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrConfiguration), "got %v", err)
		})
	}
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 3*time.Second, GetDuration("3s", time.Minute))
	assert.Equal(t, time.Minute, GetDuration("", time.Minute))
	assert.Equal(t, time.Minute, GetDuration("soon", time.Minute))
}

func TestLoadSourcesMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "niche_sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
arxiv:
  query_base: site:arxiv.org/abs
  freshness_days: 60
`), 0644))

	sources, err := LoadSources(path)
	require.NoError(t, err)
	assert.Equal(t, "site:arxiv.org/abs", sources["arxiv"].QueryBase)
	assert.Equal(t, 60, sources["arxiv"].FreshnessDays)
	assert.Equal(t, DefaultSources()["github"], sources["github"])
}

func TestSourcesWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "niche_sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte("github:\n  query_base: site:github.com\n"), 0644))

	table := NewSourceTable(DefaultSources())
	w, err := NewSourcesWatcher(path, table)
	require.NoError(t, err)
	w.debounceDur = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("github:\n  query_base: site:gitlab.com\n  freshness_days: 9\n"), 0644))

	require.Eventually(t, func() bool {
		sc, ok := table.Lookup("github")
		return ok && sc.QueryBase == "site:gitlab.com"
	}, 5*time.Second, 20*time.Millisecond)
	assert.GreaterOrEqual(t, w.Reloads(), 1)
}
