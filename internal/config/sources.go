package config

import (
	"fmt"
	"os"
	"sync"

	"askace/internal/logging"

	"gopkg.in/yaml.v3"
)

// SourceConfig is one row of the per-source query table.
type SourceConfig struct {
	QueryBase     string `yaml:"query_base"`
	FreshnessDays int    `yaml:"freshness_days"`
}

// DefaultSources returns the built-in source table.
func DefaultSources() map[string]SourceConfig {
	return map[string]SourceConfig{
		"arxiv":       {QueryBase: "site:arxiv.org", FreshnessDays: 30},
		"github":      {QueryBase: "site:github.com", FreshnessDays: 30},
		"huggingface": {QueryBase: "site:huggingface.co", FreshnessDays: 14},
		"news": {
			QueryBase:     "site:techcrunch.com OR site:theverge.com OR site:venturebeat.com OR site:reuters.com OR site:theinformation.com",
			FreshnessDays: 7,
		},
		"blogs": {
			QueryBase:     "site:medium.com OR site:substack.com OR site:huggingface.co/blog OR site:openai.com/blog OR site:ai.googleblog.com",
			FreshnessDays: 30,
		},
		"twitter": {QueryBase: "site:x.com OR site:twitter.com", FreshnessDays: 3},
		"reddit": {
			QueryBase:     "site:reddit.com/r/MachineLearning OR site:reddit.com/r/LocalLLaMA OR site:reddit.com/r/singularity",
			FreshnessDays: 7,
		},
	}
}

// LoadSources reads a source table. A missing file yields the defaults;
// entries in the file replace the default entry of the same name.
func LoadSources(path string) (map[string]SourceConfig, error) {
	sources := DefaultSources()
	if path == "" {
		return sources, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return sources, nil
		}
		return nil, fmt.Errorf("failed to read sources: %w", err)
	}

	var fromFile map[string]SourceConfig
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return nil, fmt.Errorf("failed to parse sources: %w", err)
	}
	for name, sc := range fromFile {
		sources[name] = sc
	}
	return sources, nil
}

// SourceTable is a concurrency-safe view of the source table that can be
// swapped at runtime by the watcher.
type SourceTable struct {
	mu      sync.RWMutex
	sources map[string]SourceConfig
}

// NewSourceTable wraps a loaded table.
func NewSourceTable(sources map[string]SourceConfig) *SourceTable {
	return &SourceTable{sources: sources}
}

// Lookup returns the entry for a source name.
func (t *SourceTable) Lookup(name string) (SourceConfig, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	sc, ok := t.sources[name]
	return sc, ok
}

// Replace swaps the whole table.
func (t *SourceTable) Replace(sources map[string]SourceConfig) {
	t.mu.Lock()
	t.sources = sources
	t.mu.Unlock()
	logging.Get(logging.CategoryBoot).Info("source table replaced (%d entries)", len(sources))
}

// Len returns the number of entries.
func (t *SourceTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sources)
}
