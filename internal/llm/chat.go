package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"askace/internal/logging"
)

// ChatConfig configures an OpenAI-compatible chat completions client.
type ChatConfig struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
	Timeout  time.Duration
	Headers  map[string]string
}

// ChatClient talks to any /chat/completions endpoint (OpenAI, OpenRouter).
type ChatClient struct {
	provider    string
	apiKey      string
	baseURL     string
	model       string
	headers     map[string]string
	httpClient  *http.Client
	maxRetries  int
	backoff     func(attempt int) time.Duration
	mu          sync.Mutex
	lastRequest time.Time
}

// NewChatClient creates a chat client.
func NewChatClient(cfg ChatConfig) *ChatClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 40 * time.Second
	}
	return &ChatClient{
		provider:   cfg.Provider,
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		headers:    cfg.Headers,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: 3,
		backoff: func(attempt int) time.Duration {
			return time.Duration(1<<uint(attempt-1)) * time.Second
		},
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Usage map[string]int `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Name returns provider:model.
func (c *ChatClient) Name() string { return c.provider + ":" + c.model }

// Generate sends messages and returns the first choice.
func (c *ChatClient) Generate(ctx context.Context, messages []Message, opts Options) (Response, error) {
	if c.apiKey == "" {
		return Response{}, unavailable(c.provider, fmt.Errorf("API key not configured"))
	}

	startTime := time.Now()
	log := logging.Get(logging.CategoryLLM)
	log.Debug("[%s] Generate: model=%s messages=%d", c.provider, c.model, len(messages))

	// Light client-side pacing
	c.mu.Lock()
	if elapsed := time.Since(c.lastRequest); elapsed < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	reqBody := chatRequest{Model: c.model, Messages: messages, MaxTokens: opts.MaxTokens}
	if opts.Temperature > 0 {
		t := opts.Temperature
		reqBody.Temperature = &t
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for i := 0; i <= c.maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return Response{}, unavailable(c.provider, ctx.Err())
			case <-time.After(c.backoff(i)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
		if err != nil {
			return Response{}, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		for k, v := range c.headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 200))
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return Response{}, unavailable(c.provider, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, truncate(string(body), 500)))
		}

		var parsed chatResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return Response{}, unavailable(c.provider, fmt.Errorf("failed to parse response: %w", err))
		}
		if parsed.Error != nil {
			return Response{}, unavailable(c.provider, fmt.Errorf("API error: %s", parsed.Error.Message))
		}
		if len(parsed.Choices) == 0 {
			return Response{}, unavailable(c.provider, fmt.Errorf("no completion returned"))
		}

		content := strings.TrimSpace(parsed.Choices[0].Message.Content)
		log.Debug("[%s] Generate: completed in %v response_len=%d", c.provider, time.Since(startTime), len(content))
		return Response{Content: content, Usage: parsed.Usage}, nil
	}

	log.Warn("[%s] Generate: max retries exceeded after %v: %v", c.provider, time.Since(startTime), lastErr)
	return Response{}, unavailable(c.provider, fmt.Errorf("max retries exceeded: %w", lastErr))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
