package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"askace/internal/logging"
	"askace/internal/types"

	"gopkg.in/yaml.v3"
)

// Config holds all askace configuration.
type Config struct {
	Server  ServerConfig   `yaml:"server"`
	Search  SearchConfig   `yaml:"search"`
	Models  ModelsConfig   `yaml:"models"`
	Fetch   FetchConfig    `yaml:"fetch"`
	Limits  LimitsConfig   `yaml:"limits"`
	ACE     ACEConfig      `yaml:"ace"`
	Digest  DigestConfig   `yaml:"digest"`
	Logging logging.Config `yaml:"logging"`

	// SourcesPath points at the per-source query table (niche_sources.yaml).
	SourcesPath string `yaml:"sources_path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// SearchConfig selects and configures the search provider.
type SearchConfig struct {
	Provider   string           `yaml:"provider"` // brave, duckduckgo, offline
	Brave      BraveConfig      `yaml:"brave"`
	DuckDuckGo DuckDuckGoConfig `yaml:"duckduckgo"`
}

// BraveConfig configures the Brave web search API.
type BraveConfig struct {
	APIKey   string `yaml:"api_key"`
	Endpoint string `yaml:"endpoint"`
}

// DuckDuckGoConfig configures the DuckDuckGo HTML endpoint.
type DuckDuckGoConfig struct {
	Endpoint string `yaml:"endpoint"`
}

// ModelsConfig groups the model collaborators.
type ModelsConfig struct {
	Planner     LLMConfig       `yaml:"planner"`
	Synthesizer LLMConfig       `yaml:"synthesizer"`
	Embeddings  EmbeddingConfig `yaml:"embeddings"`
	Reranker    RerankerConfig  `yaml:"reranker"`
}

// LLMConfig configures one text generation client.
type LLMConfig struct {
	Provider string `yaml:"provider"` // offline, openai, openrouter, gemini
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	Endpoint string `yaml:"endpoint"`
	Timeout  string `yaml:"timeout"`
}

// EmbeddingConfig configures the stage-A embedding engine.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // none, ollama, genai
	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`
	GenAIAPIKey    string `yaml:"genai_api_key"`
	GenAIModel     string `yaml:"genai_model"`
	TaskType       string `yaml:"task_type"`
}

// RerankerConfig configures the stage-C cross-encoder service.
type RerankerConfig struct {
	Provider string `yaml:"provider"` // none, http
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	Timeout  string `yaml:"timeout"`
}

// FetchConfig configures document acquisition.
type FetchConfig struct {
	UserAgent string `yaml:"user_agent"`
	Timeout   string `yaml:"timeout"`
	CacheTTL  string `yaml:"cache_ttl"`
	CacheSize int    `yaml:"cache_size"`
	ProxyBase string `yaml:"proxy_base"`
}

// LimitsConfig bounds per-request work.
type LimitsConfig struct {
	MaxChunks             int `yaml:"max_chunks"`
	FetchConcurrency      int `yaml:"fetch_concurrency"`
	MaxPlannerSteps       int `yaml:"max_planner_steps"`
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
}

// ACEConfig configures the reflect/curate loop and its store.
type ACEConfig struct {
	DBPath              string `yaml:"db_path"`
	FreshnessBufferDays int    `yaml:"freshness_buffer_days"`
	HintLimit           int    `yaml:"hint_limit"`
}

// DigestConfig configures the scheduled digest run. Empty schedule disables it.
type DigestConfig struct {
	Schedule string `yaml:"schedule"`
	Question string `yaml:"question"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Search: SearchConfig{
			Provider: "brave",
			Brave: BraveConfig{
				Endpoint: "https://api.search.brave.com/res/v1/web/search",
			},
			DuckDuckGo: DuckDuckGoConfig{
				Endpoint: "https://html.duckduckgo.com/html/",
			},
		},
		Models: ModelsConfig{
			Planner:     LLMConfig{Provider: "offline", Timeout: "40s"},
			Synthesizer: LLMConfig{Provider: "offline", Timeout: "60s"},
			Embeddings: EmbeddingConfig{
				Provider:       "none",
				OllamaEndpoint: "http://localhost:11434",
				OllamaModel:    "embeddinggemma",
				GenAIModel:     "gemini-embedding-001",
				TaskType:       "RETRIEVAL_DOCUMENT",
			},
			Reranker: RerankerConfig{Provider: "none", Timeout: "20s"},
		},
		Fetch: FetchConfig{
			UserAgent: "askace/0.1",
			Timeout:   "20s",
			CacheTTL:  "6h",
			CacheSize: 512,
			ProxyBase: "https://r.jina.ai/",
		},
		Limits: LimitsConfig{
			MaxChunks:             40,
			FetchConcurrency:      8,
			MaxPlannerSteps:       3,
			RequestTimeoutSeconds: 120,
		},
		ACE: ACEConfig{
			DBPath:              filepath.Join(".askace", "playbook.db"),
			FreshnessBufferDays: 2,
			HintLimit:           5,
		},
		Digest: DigestConfig{
			Question: "What are the latest AI/ML releases, tricks and discussions today?",
		},
		Logging: logging.Config{Level: "info", Format: "console"},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults.
// Scalar values of the form ${NAME} are replaced with the environment value.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	resolveEnv(&root)
	if len(root.Content) > 0 {
		if err := root.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// resolveEnv rewrites "${NAME}" scalars in place.
func resolveEnv(n *yaml.Node) {
	if n.Kind == yaml.ScalarNode {
		v := n.Value
		if strings.HasPrefix(v, "${") && strings.HasSuffix(v, "}") {
			n.Value = os.Getenv(v[2 : len(v)-1])
			n.Tag = ""
		}
		return
	}
	for _, c := range n.Content {
		resolveEnv(c)
	}
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("BRAVE_API_KEY"); key != "" {
		c.Search.Brave.APIKey = key
	}
	for _, m := range []*LLMConfig{&c.Models.Planner, &c.Models.Synthesizer} {
		switch m.Provider {
		case "openai":
			if key := os.Getenv("OPENAI_API_KEY"); key != "" {
				m.APIKey = key
			}
		case "openrouter":
			if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
				m.APIKey = key
			}
		case "gemini":
			if key := os.Getenv("GEMINI_API_KEY"); key != "" {
				m.APIKey = key
			}
		}
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" && c.Models.Embeddings.GenAIAPIKey == "" {
		c.Models.Embeddings.GenAIAPIKey = key
	}
	if path := os.Getenv("ASKACE_DB"); path != "" {
		c.ACE.DBPath = path
	}
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ValidLLMProviders lists supported generation providers.
var ValidLLMProviders = []string{"offline", "openai", "openrouter", "gemini"}

// ValidSearchProviders lists supported search providers.
var ValidSearchProviders = []string{"brave", "duckduckgo", "offline"}

// Validate validates the configuration. Errors wrap types.ErrConfiguration.
func (c *Config) Validate() error {
	if !contains(ValidSearchProviders, c.Search.Provider) {
		return fmt.Errorf("%w: invalid search provider %q (valid: %v)", types.ErrConfiguration, c.Search.Provider, ValidSearchProviders)
	}
	for name, m := range map[string]LLMConfig{"planner": c.Models.Planner, "synthesizer": c.Models.Synthesizer} {
		if !contains(ValidLLMProviders, m.Provider) {
			return fmt.Errorf("%w: invalid %s provider %q (valid: %v)", types.ErrConfiguration, name, m.Provider, ValidLLMProviders)
		}
		if m.Provider == "offline" {
			continue
		}
		if m.Model == "" {
			return fmt.Errorf("%w: missing model for %s", types.ErrConfiguration, name)
		}
		if m.APIKey == "" && m.Provider != "openai" {
			return fmt.Errorf("%w: %s provider %s requires an api_key", types.ErrConfiguration, name, m.Provider)
		}
	}
	switch c.Models.Embeddings.Provider {
	case "", "none", "ollama":
	case "genai":
		if c.Models.Embeddings.GenAIAPIKey == "" {
			return fmt.Errorf("%w: genai embeddings require genai_api_key or GEMINI_API_KEY", types.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: invalid embedding provider %q", types.ErrConfiguration, c.Models.Embeddings.Provider)
	}
	switch c.Models.Reranker.Provider {
	case "", "none":
	case "http":
		if c.Models.Reranker.Endpoint == "" {
			return fmt.Errorf("%w: http reranker requires an endpoint", types.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: invalid reranker provider %q", types.ErrConfiguration, c.Models.Reranker.Provider)
	}
	if c.Limits.FetchConcurrency < 1 {
		return fmt.Errorf("%w: limits.fetch_concurrency must be positive", types.ErrConfiguration)
	}
	if c.ACE.DBPath == "" {
		return fmt.Errorf("%w: ace.db_path is required", types.ErrConfiguration)
	}
	return nil
}

// GetDuration parses a duration string, returning fallback when empty or invalid.
func GetDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// GetRequestTimeout returns the per-request deadline.
func (c *Config) GetRequestTimeout() time.Duration {
	if c.Limits.RequestTimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.Limits.RequestTimeoutSeconds) * time.Second
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
