package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"askace/internal/logging"
	"askace/internal/types"
)

const (
	defaultOllamaEndpoint = "http://localhost:11434"
	defaultOllamaModel    = "embeddinggemma"
	defaultOllamaDims     = 768

	// inputs per /api/embed call; a run's chunk corpus is a few hundred at most
	ollamaBatchSize = 32
)

// OllamaEngine embeds chunks through a local Ollama server's /api/embed
// endpoint, which accepts a list of inputs per call.
type OllamaEngine struct {
	endpoint string
	model    string
	client   *http.Client

	// dims is learned from the first response
	dims atomic.Int64
}

// NewOllamaEngine creates an engine for model served at endpoint.
func NewOllamaEngine(endpoint, model string) (*OllamaEngine, error) {
	if endpoint == "" {
		endpoint = defaultOllamaEndpoint
	}
	if model == "" {
		model = defaultOllamaModel
	}
	return &OllamaEngine{
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    model,
		client:   &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// Embed embeds one text.
func (e *OllamaEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in groups of ollamaBatchSize, preserving order.
func (e *OllamaEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += ollamaBatchSize {
		end := start + ollamaBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := e.embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", start, end, err)
		}
		out = append(out, vecs...)
	}
	logging.EmbeddingDebug("Ollama embedded %d texts in %d calls", len(texts), (len(texts)+ollamaBatchSize-1)/ollamaBatchSize)
	return out, nil
}

func (e *OllamaEngine) embed(ctx context.Context, inputs []string) ([][]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Input: inputs, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: ollama request failed: %v", types.ErrCollaboratorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: ollama returned status %d: %s",
			types.ErrCollaboratorUnavailable, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decode ollama response: %v", types.ErrCollaboratorUnavailable, err)
	}
	if len(result.Embeddings) != len(inputs) {
		return nil, fmt.Errorf("%w: ollama returned %d embeddings for %d inputs",
			types.ErrCollaboratorUnavailable, len(result.Embeddings), len(inputs))
	}
	if len(result.Embeddings[0]) > 0 {
		e.dims.CompareAndSwap(0, int64(len(result.Embeddings[0])))
	}
	return result.Embeddings, nil
}

// Dimensions is the vector size seen so far, or the embeddinggemma size
// before the first call.
func (e *OllamaEngine) Dimensions() int {
	if d := e.dims.Load(); d > 0 {
		return int(d)
	}
	return defaultOllamaDims
}

func (e *OllamaEngine) Name() string { return "ollama:" + e.model }

type ollamaEmbedRequest struct {
	Model    string   `json:"model"`
	Input    []string `json:"input"`
	Truncate bool     `json:"truncate"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}
