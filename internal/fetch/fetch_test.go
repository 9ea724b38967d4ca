package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"askace/internal/config"
	"askace/internal/types"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://arxiv.org/pdf/2401.00001.pdf", "https://arxiv.org/abs/2401.00001"},
		{"https://arxiv.org/pdf/2401.00001v2?download=1#page=3", "https://arxiv.org/abs/2401.00001v2"},
		{"https://export.arxiv.org/papers/2401.00001.pdf", "https://export.arxiv.org/papers/2401.00001"},
		{"https://arxiv.org/abs/2401.00001", "https://arxiv.org/abs/2401.00001"},
		{"https://example.com/paper.pdf", "https://example.com/paper.pdf"},
	}
	for _, tt := range tests {
		if got := NormalizeURL(tt.in); got != tt.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestProxyURL(t *testing.T) {
	base := "https://r.jina.ai/"
	tests := []struct {
		in, want string
	}{
		{"https://x.com/user/status/1?s=20", "https://r.jina.ai/https://x.com/user/status/1?s=20"},
		{"https://mobile.twitter.com/user", "https://r.jina.ai/https://mobile.twitter.com/user"},
		{"https://old.reddit.com/r/LocalLLaMA/", "https://r.jina.ai/https://old.reddit.com/r/LocalLLaMA/"},
		{"https://reddit.com", "https://r.jina.ai/https://reddit.com/"},
		{"https://github.com/acme/tool", ""},
	}
	for _, tt := range tests {
		if got := ProxyURL(base, tt.in); got != tt.want {
			t.Errorf("ProxyURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := ProxyURL("", "https://x.com/a"); got != "" {
		t.Errorf("ProxyURL without base = %q, want empty", got)
	}
}

func TestFetchCachesSuccess(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("user agent = %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer srv.Close()

	f := New(config.FetchConfig{UserAgent: "test-agent", CacheSize: 4, CacheTTL: "1h"})
	first, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if first.StatusCode != 200 || first.FromCache || first.ContentType != "text/html" {
		t.Fatalf("first = %#v", first)
	}

	second, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !second.FromCache || second.Body != first.Body {
		t.Fatalf("second = %#v, want cached copy", second)
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("server hits = %d, want 1", got)
	}
}

func TestFetchDoesNotCacheErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	f := New(config.FetchConfig{CacheSize: 4, CacheTTL: "1h"})
	for i := 0; i < 2; i++ {
		res, err := f.Fetch(context.Background(), srv.URL)
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if res.StatusCode != http.StatusForbidden {
			t.Fatalf("status = %d", res.StatusCode)
		}
	}
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Fatalf("server hits = %d, want 2", got)
	}
}

func TestFetchTransportErrorIsFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(config.FetchConfig{}).Fetch(context.Background(), url)
	if !errors.Is(err, types.ErrFetchFailure) {
		t.Fatalf("Fetch() error = %v, want ErrFetchFailure", err)
	}
}

func TestCacheExpiryAndEviction(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCache(2, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("a", &Result{URL: "a"})
	now = now.Add(time.Second)
	c.Set("b", &Result{URL: "b"})
	now = now.Add(time.Second)
	c.Set("c", &Result{URL: "c"})

	if c.Size() != 2 {
		t.Fatalf("size = %d, want 2", c.Size())
	}
	if _, ok := c.Get("a"); ok {
		t.Fatal("oldest entry should have been evicted")
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatal("newest entry missing")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("c"); ok {
		t.Fatal("entry should have expired")
	}
}

func TestDisabledCache(t *testing.T) {
	c := NewCache(0, time.Hour)
	c.Set("a", &Result{})
	if _, ok := c.Get("a"); ok || c.Size() != 0 {
		t.Fatal("zero-size cache should store nothing")
	}
}
