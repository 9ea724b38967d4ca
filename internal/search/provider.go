// Package search runs planner queries against a web search provider and
// aggregates the results into a deduplicated, source-diverse list.
package search

import (
	"context"
	"fmt"
	"strings"

	"askace/internal/config"
	"askace/internal/logging"
	"askace/internal/types"
)

// Provider executes one search query.
type Provider interface {
	Search(ctx context.Context, query types.SearchQuery, topK int) ([]types.SearchResult, error)
	Name() string
}

// NewProvider selects the provider named in cfg.Search.Provider.
func NewProvider(cfg *config.Config) (Provider, error) {
	timeout := config.GetDuration(cfg.Fetch.Timeout, defaultTimeout)
	switch strings.ToLower(cfg.Search.Provider) {
	case "", "brave":
		return NewBraveProvider(cfg.Search.Brave.APIKey, cfg.Search.Brave.Endpoint, timeout), nil
	case "duckduckgo", "ddg":
		return NewDuckDuckGoProvider(cfg.Search.DuckDuckGo.Endpoint, cfg.Fetch.UserAgent, timeout), nil
	case "offline":
		return OfflineProvider{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown search provider %q", types.ErrConfiguration, cfg.Search.Provider)
	}
}

// OfflineProvider returns deterministic placeholder results. It stands in for
// a real provider when no credentials are configured.
type OfflineProvider struct{}

// Name returns "offline".
func (OfflineProvider) Name() string { return "offline" }

// Search returns topK results https://example.com/{i}?q=... scored 1/(i+1).
func (OfflineProvider) Search(_ context.Context, query types.SearchQuery, topK int) ([]types.SearchResult, error) {
	logging.SearchDebug("Returning offline results for query %q", query.Query)
	results := make([]types.SearchResult, 0, topK)
	for i := 0; i < topK; i++ {
		results = append(results, types.SearchResult{
			URL:        fmt.Sprintf("https://example.com/%d?%s", i, encodeQuery(query.Query)),
			Title:      fmt.Sprintf("Mock result %d for %s", i, query.Query),
			Snippet:    "No API key configured. This is a stub result.",
			Score:      1.0 / float64(i+1),
			SourceType: query.SourceType,
		})
	}
	return results, nil
}
