package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"askace/internal/logging"
	"askace/internal/types"

	"golang.org/x/net/html"
)

const defaultDuckDuckGoEndpoint = "https://html.duckduckgo.com/html/"

// DuckDuckGoProvider scrapes the DuckDuckGo HTML endpoint. It needs no API
// key. Results carry rank-derived scores since the page exposes none.
type DuckDuckGoProvider struct {
	endpoint  string
	userAgent string
	client    *http.Client
}

// NewDuckDuckGoProvider creates a DuckDuckGo provider.
func NewDuckDuckGoProvider(endpoint, userAgent string, timeout time.Duration) *DuckDuckGoProvider {
	if endpoint == "" {
		endpoint = defaultDuckDuckGoEndpoint
	}
	if userAgent == "" {
		userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &DuckDuckGoProvider{endpoint: endpoint, userAgent: userAgent, client: &http.Client{Timeout: timeout}}
}

// Name returns "duckduckgo".
func (d *DuckDuckGoProvider) Name() string { return "duckduckgo" }

// Search fetches one results page and parses up to topK hits.
func (d *DuckDuckGoProvider) Search(ctx context.Context, query types.SearchQuery, topK int) ([]types.SearchResult, error) {
	params := url.Values{}
	params.Set("q", query.Query)
	if df := ddgFreshness(query.FreshnessDays); df != "" {
		params.Set("df", df)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	hits, err := parseDuckDuckGo(string(body), topK)
	if err != nil {
		return nil, err
	}
	results := make([]types.SearchResult, 0, len(hits))
	for i, h := range hits {
		h.Score = 1.0 / float64(i+1)
		h.SourceType = query.SourceType
		results = append(results, h)
	}
	logging.SearchDebug("DuckDuckGo returned %d results for %q", len(results), query.Query)
	return results, nil
}

// ddgFreshness maps a day window onto DuckDuckGo's coarse df buckets.
func ddgFreshness(days int) string {
	switch {
	case days <= 0:
		return ""
	case days <= 1:
		return "d"
	case days <= 7:
		return "w"
	case days <= 31:
		return "m"
	default:
		return "y"
	}
}

func parseDuckDuckGo(page string, limit int) ([]types.SearchResult, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var results []types.SearchResult
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= limit {
			return
		}
		if n.Type == html.ElementNode && n.Data == "div" {
			if class := attr(n, "class"); strings.Contains(class, "result") && strings.Contains(class, "results_links") {
				if r := resultFromNode(n); r.URL != "" && r.Title != "" {
					results = append(results, r)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results, nil
}

func resultFromNode(n *html.Node) types.SearchResult {
	var r types.SearchResult
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			class := attr(n, "class")
			switch {
			case strings.Contains(class, "result__a"):
				r.URL = attr(n, "href")
				r.Title = textContent(n)
			case strings.Contains(class, "result__snippet"):
				r.Snippet = textContent(n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	r.URL = unwrapRedirect(r.URL)
	return r
}

// unwrapRedirect turns "//duckduckgo.com/l/?uddg=<target>&rut=..." into target.
func unwrapRedirect(href string) string {
	if !strings.Contains(href, "duckduckgo.com/l/") {
		return href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
