// Package fetch downloads result pages for extraction. It normalises a few
// known URL shapes, routes social hosts through a reader proxy and caches
// successful responses.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"askace/internal/config"
	"askace/internal/logging"
	"askace/internal/types"
)

const (
	defaultTimeout   = 20 * time.Second
	defaultUserAgent = "askace/0.1"
	maxBodyBytes     = 5 * 1024 * 1024
)

// Result is one HTTP fetch.
type Result struct {
	URL          string // normalised URL
	RequestedURL string
	FetchURL     string // URL actually requested, proxy included
	StatusCode   int
	ContentType  string
	Body         string
	FetchedAt    time.Time
	FromCache    bool
	ViaProxy     bool
}

// Fetcher performs GET requests with caching.
type Fetcher struct {
	client    *http.Client
	userAgent string
	proxyBase string
	cache     *Cache
}

// New creates a Fetcher from the fetch config section.
func New(cfg config.FetchConfig) *Fetcher {
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: config.GetDuration(cfg.Timeout, defaultTimeout),
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				return nil
			},
		},
		userAgent: ua,
		proxyBase: cfg.ProxyBase,
		cache:     NewCache(cfg.CacheSize, config.GetDuration(cfg.CacheTTL, 0)),
	}
}

// Fetch retrieves rawURL. Transport failures wrap types.ErrFetchFailure;
// non-200 responses are returned as results so callers can inspect them.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	normalized := NormalizeURL(rawURL)
	if cached, ok := f.cache.Get(normalized); ok {
		logging.FetchDebug("Cache hit: %s", normalized)
		return cached, nil
	}

	fetchURL := normalized
	viaProxy := false
	if proxied := ProxyURL(f.proxyBase, normalized); proxied != "" {
		logging.FetchDebug("Routing %s via proxy %s", normalized, proxied)
		fetchURL = proxied
		viaProxy = true
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: new request: %v", types.ErrFetchFailure, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", types.ErrFetchFailure, fetchURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", types.ErrFetchFailure, err)
	}

	result := &Result{
		URL:          normalized,
		RequestedURL: rawURL,
		FetchURL:     fetchURL,
		StatusCode:   resp.StatusCode,
		ContentType:  resp.Header.Get("Content-Type"),
		Body:         string(body),
		FetchedAt:    time.Now().UTC(),
		ViaProxy:     viaProxy,
	}
	if resp.StatusCode == http.StatusOK {
		f.cache.Set(normalized, result)
	} else {
		logging.Get(logging.CategoryFetch).Warn("Non-200 response for %s: %d", fetchURL, resp.StatusCode)
	}
	return result, nil
}

// NormalizeURL rewrites arxiv PDF links to their abstract pages. Other URLs
// are returned unchanged.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || !strings.Contains(strings.ToLower(u.Host), "arxiv.org") {
		return rawURL
	}
	switch {
	case strings.HasPrefix(u.Path, "/pdf/"):
		u.Path = "/abs/" + strings.TrimSuffix(strings.TrimPrefix(u.Path, "/pdf/"), ".pdf")
	case strings.HasSuffix(u.Path, ".pdf"):
		u.Path = strings.TrimSuffix(u.Path, ".pdf")
	default:
		return rawURL
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.RawPath = ""
	return u.String()
}

var proxiedHosts = map[string]bool{
	"x.com":              true,
	"www.x.com":          true,
	"twitter.com":        true,
	"www.twitter.com":    true,
	"mobile.twitter.com": true,
}

// ProxyURL returns the reader-proxy URL for hosts that block direct fetches,
// or "" when rawURL should be fetched directly.
func ProxyURL(proxyBase, rawURL string) string {
	if proxyBase == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Host)
	if !proxiedHosts[host] && !strings.HasSuffix(host, "reddit.com") {
		return ""
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	target := "https://" + host + path
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}
	return strings.TrimRight(proxyBase, "/") + "/" + target
}
