package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"askace/internal/logging"

	"google.golang.org/genai"
)

// GeminiClient generates text through the Google GenAI SDK.
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiClient creates a Gemini client.
func NewGeminiClient(ctx context.Context, apiKey, model string, timeout time.Duration) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiClient{client: client, model: model, timeout: timeout}, nil
}

// Name returns gemini:model.
func (g *GeminiClient) Name() string { return "gemini:" + g.model }

// Generate folds system messages into the system instruction and sends the
// remaining turns as contents.
func (g *GeminiClient) Generate(ctx context.Context, messages []Message, opts Options) (Response, error) {
	if _, ok := ctx.Deadline(); !ok && g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	var system []string
	var contents []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case "system":
			system = append(system, m.Content)
		case "assistant":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	cfg := &genai.GenerateContentConfig{}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	if opts.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(opts.Temperature))
	}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return Response{}, unavailable("gemini", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return Response{}, unavailable("gemini", fmt.Errorf("empty response"))
	}

	usage := map[string]int{}
	if resp.UsageMetadata != nil {
		usage["prompt_tokens"] = int(resp.UsageMetadata.PromptTokenCount)
		usage["completion_tokens"] = int(resp.UsageMetadata.CandidatesTokenCount)
		usage["total_tokens"] = int(resp.UsageMetadata.TotalTokenCount)
	}
	logging.Get(logging.CategoryLLM).Debug("[gemini] Generate: completed in %v response_len=%d", time.Since(start), len(text))
	return Response{Content: text, Usage: usage}, nil
}
