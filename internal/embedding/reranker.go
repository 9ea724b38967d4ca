package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"askace/internal/types"
)

// HTTPReranker calls a cross-encoder service speaking the common /rerank
// shape: {"query", "documents"} in, {"results":[{"index","relevance_score"}]} out.
type HTTPReranker struct {
	endpoint string
	model    string
	client   *http.Client
}

// NewHTTPReranker creates a reranker for endpoint.
func NewHTTPReranker(endpoint, model string, timeout time.Duration) *HTTPReranker {
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	return &HTTPReranker{endpoint: endpoint, model: model, client: &http.Client{Timeout: timeout}}
}

type rerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Score returns one score per text, in input order.
func (r *HTTPReranker) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(rerankRequest{Model: r.model, Query: query, Documents: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: rerank request failed: %v", types.ErrCollaboratorUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: reranker returned status %d: %s", types.ErrCollaboratorUnavailable, resp.StatusCode, string(b))
	}

	var parsed rerankResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10*1024*1024)).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to decode rerank response: %v", types.ErrCollaboratorUnavailable, err)
	}
	if len(parsed.Results) != len(texts) {
		return nil, fmt.Errorf("%w: reranker returned %d scores for %d texts", types.ErrCollaboratorUnavailable, len(parsed.Results), len(texts))
	}

	scores := make([]float64, len(texts))
	seen := make([]bool, len(texts))
	for _, res := range parsed.Results {
		if res.Index < 0 || res.Index >= len(texts) || seen[res.Index] {
			return nil, fmt.Errorf("%w: reranker returned bad index %d", types.ErrCollaboratorUnavailable, res.Index)
		}
		seen[res.Index] = true
		scores[res.Index] = res.RelevanceScore
	}
	return scores, nil
}

// Name returns the reranker name.
func (r *HTTPReranker) Name() string { return "http:" + r.model }
