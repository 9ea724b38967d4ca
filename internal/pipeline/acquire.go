package pipeline

import (
	"context"
	"fmt"
	"net/http"

	"askace/internal/extract"
	"askace/internal/fetch"
	"askace/internal/types"
)

// minBodyBytes is the smallest 200 response treated as a real page.
const minBodyBytes = 200

// Acquirer turns one search result into a document.
type Acquirer interface {
	Acquire(ctx context.Context, result types.SearchResult) (*types.Document, error)
}

// WebAcquirer fetches the result URL and extracts its text.
type WebAcquirer struct {
	fetcher   *fetch.Fetcher
	extractor *extract.Extractor
}

// NewWebAcquirer creates an acquirer.
func NewWebAcquirer(fetcher *fetch.Fetcher, extractor *extract.Extractor) *WebAcquirer {
	return &WebAcquirer{fetcher: fetcher, extractor: extractor}
}

// Acquire returns an error wrapping types.ErrFetchFailure for blocked,
// short or unparseable pages.
func (a *WebAcquirer) Acquire(ctx context.Context, result types.SearchResult) (*types.Document, error) {
	res, err := a.fetcher.Fetch(ctx, result.URL)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %d", types.ErrFetchFailure, res.FetchURL, res.StatusCode)
	}
	if len(res.Body) < minBodyBytes {
		return nil, fmt.Errorf("%w: %s body too short (%d bytes)", types.ErrFetchFailure, res.FetchURL, len(res.Body))
	}

	doc, err := a.extractor.Extract(extract.Page{
		URL:         res.URL,
		ContentType: res.ContentType,
		Body:        res.Body,
	}, result.SourceType, result.Title)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrFetchFailure, err)
	}
	if doc.PublishedAt == nil {
		doc.PublishedAt = result.PublishedAt
	}
	doc.Metadata["from_cache"] = res.FromCache
	doc.Metadata["requested_url"] = res.RequestedURL
	doc.Metadata["fetch_url"] = res.FetchURL
	doc.Metadata["via_proxy"] = res.ViaProxy
	return doc, nil
}

// snippetDocument stands in for a result whose page could not be used.
func snippetDocument(r types.SearchResult) types.Document {
	return types.Document{
		URL:         r.URL,
		Title:       r.Title,
		Text:        r.Snippet,
		SourceType:  r.SourceType,
		PublishedAt: r.PublishedAt,
		Metadata: map[string]interface{}{
			"fallback": true,
			"reason":   "fetch_blocked_or_failed",
		},
	}
}
