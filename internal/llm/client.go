// Package llm provides text generation clients used by the planner and the
// synthesizer. Every client returns errors wrapping
// types.ErrCollaboratorUnavailable so callers can degrade to their fallbacks.
package llm

import (
	"context"
	"fmt"
	"time"

	"askace/internal/config"
	"askace/internal/logging"
	"askace/internal/types"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tune a single generation call. Zero values mean provider defaults.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Response is the generated text plus token usage.
type Response struct {
	Content string
	Usage   map[string]int
}

// Client generates text from a message list.
type Client interface {
	Generate(ctx context.Context, messages []Message, opts Options) (Response, error)
	Name() string
}

// System and User build messages.
func System(content string) Message { return Message{Role: "system", Content: content} }
func User(content string) Message   { return Message{Role: "user", Content: content} }

// NewClient builds the client named by cfg.Provider. section labels logs
// ("planner", "synthesizer").
func NewClient(ctx context.Context, section string, cfg config.LLMConfig) (Client, error) {
	timeout := config.GetDuration(cfg.Timeout, 40*time.Second)
	logging.Get(logging.CategoryLLM).Info("Creating %s client provider=%s model=%s", section, cfg.Provider, cfg.Model)

	switch cfg.Provider {
	case "", "offline":
		return NewOfflineClient(section), nil
	case "openai":
		base := cfg.Endpoint
		if base == "" {
			base = "https://api.openai.com/v1"
		}
		return NewChatClient(ChatConfig{
			Provider: "openai",
			APIKey:   cfg.APIKey,
			BaseURL:  base,
			Model:    cfg.Model,
			Timeout:  timeout,
		}), nil
	case "openrouter":
		base := cfg.Endpoint
		if base == "" {
			base = "https://openrouter.ai/api/v1"
		}
		return NewChatClient(ChatConfig{
			Provider: "openrouter",
			APIKey:   cfg.APIKey,
			BaseURL:  base,
			Model:    cfg.Model,
			Timeout:  timeout,
			Headers: map[string]string{
				"HTTP-Referer": "https://askace.local",
				"X-Title":      "askace",
			},
		}), nil
	case "gemini":
		return NewGeminiClient(ctx, cfg.APIKey, cfg.Model, timeout)
	default:
		return nil, fmt.Errorf("%w: unsupported LLM provider %q", types.ErrConfiguration, cfg.Provider)
	}
}

// unavailable wraps err as a collaborator failure.
func unavailable(provider string, err error) error {
	return fmt.Errorf("%w: %s: %v", types.ErrCollaboratorUnavailable, provider, err)
}
