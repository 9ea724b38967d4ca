package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"askace/internal/logging"
	"askace/internal/types"
)

const (
	defaultTimeout       = 10 * time.Second
	defaultBraveEndpoint = "https://api.search.brave.com/res/v1/web/search"
	maxResponseBytes     = 4 * 1024 * 1024
)

// BraveProvider queries the Brave web search API. Without an API key it
// degrades to OfflineProvider results.
type BraveProvider struct {
	apiKey   string
	endpoint string
	client   *http.Client
	offline  OfflineProvider
}

// NewBraveProvider creates a Brave provider.
func NewBraveProvider(apiKey, endpoint string, timeout time.Duration) *BraveProvider {
	if endpoint == "" {
		endpoint = defaultBraveEndpoint
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if apiKey == "" {
		logging.Get(logging.CategorySearch).Warn("Brave API key not provided; search results will be mocked")
	}
	return &BraveProvider{
		apiKey:   apiKey,
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: timeout},
	}
}

// Name returns "brave".
func (b *BraveProvider) Name() string { return "brave" }

type braveResponse struct {
	Web struct {
		Results []braveResult `json:"results"`
	} `json:"web"`
}

type braveResult struct {
	URL         string  `json:"url"`
	Title       string  `json:"title"`
	Snippet     string  `json:"snippet"`
	Description string  `json:"description"`
	Score       float64 `json:"score"`
	Published   string  `json:"published"`
	PageAge     string  `json:"page_age"`
}

// Search runs query against the API, tagging results with the query's source.
func (b *BraveProvider) Search(ctx context.Context, query types.SearchQuery, topK int) ([]types.SearchResult, error) {
	if b.apiKey == "" {
		return b.offline.Search(ctx, query, topK)
	}

	params := url.Values{}
	params.Set("q", query.Query)
	params.Set("count", strconv.Itoa(topK))
	if f := freshnessParam(query.FreshnessDays); f != "" {
		params.Set("freshness", f)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("brave request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("brave returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload braveResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode brave response: %w", err)
	}
	return parseBrave(payload, query), nil
}

func parseBrave(payload braveResponse, query types.SearchQuery) []types.SearchResult {
	results := make([]types.SearchResult, 0, len(payload.Web.Results))
	for _, item := range payload.Web.Results {
		if item.URL == "" {
			continue
		}
		title := item.Title
		if title == "" {
			title = "Untitled"
		}
		snippet := item.Snippet
		if snippet == "" {
			snippet = item.Description
		}
		results = append(results, types.SearchResult{
			URL:         item.URL,
			Title:       title,
			Snippet:     snippet,
			Score:       item.Score,
			SourceType:  query.SourceType,
			PublishedAt: parsePublished(item.Published),
		})
	}
	return results
}

// freshnessParam renders a window as Brave's "pd:{n}d"; zero means none.
func freshnessParam(days int) string {
	if days <= 0 {
		return ""
	}
	return fmt.Sprintf("pd:%dd", days)
}

func parsePublished(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func encodeQuery(q string) string {
	return url.Values{"q": {q}}.Encode()
}
