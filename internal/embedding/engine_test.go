package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"askace/internal/config"
	"askace/internal/types"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name    string
		a, b    []float32
		want    float64
		wantErr bool
	}{
		{"Identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 1, false},
		{"Orthogonal", []float32{1, 0, 0}, []float32{0, 1, 0}, 0, false},
		{"Opposite", []float32{1, 0, 0}, []float32{-1, 0, 0}, -1, false},
		{"Zero vector", []float32{0, 0}, []float32{1, 1}, 0, false},
		{"Length Mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineSimilarity(tt.a, tt.b)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CosineSimilarity() error = %v, wantErr %v", err, tt.wantErr)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewEngineNoneIsNil(t *testing.T) {
	engine, err := NewEngine(context.Background(), config.EmbeddingConfig{Provider: "none"})
	if err != nil || engine != nil {
		t.Fatalf("NewEngine(none) = %v, %v; want nil, nil", engine, err)
	}
	if _, err := NewEngine(context.Background(), config.EmbeddingConfig{Provider: "word2vec"}); !errors.Is(err, types.ErrConfiguration) {
		t.Fatalf("unknown provider error = %v, want ErrConfiguration", err)
	}
}

func TestOllamaEngineEmbedBatch(t *testing.T) {
	var calls []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("path = %s, want /api/embed", r.URL.Path)
		}
		var req ollamaEmbedRequest
		json.NewDecoder(r.Body).Decode(&req)
		calls = append(calls, len(req.Input))
		resp := ollamaEmbedResponse{Model: req.Model}
		for _, in := range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{float32(len(in)), 1, 0})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	texts := make([]string, ollamaBatchSize+3)
	for i := range texts {
		texts[i] = strings.Repeat("x", i+1)
	}

	engine, _ := NewOllamaEngine(srv.URL, "test")
	if engine.Dimensions() != 768 {
		t.Fatalf("Dimensions() before first call = %d, want 768", engine.Dimensions())
	}
	got, err := engine.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}
	if len(got) != len(texts) {
		t.Fatalf("EmbedBatch() returned %d vectors, want %d", len(got), len(texts))
	}
	for i, v := range got {
		if v[0] != float32(i+1) {
			t.Fatalf("vector %d = %v, out of order", i, v)
		}
	}
	if len(calls) != 2 || calls[0] != ollamaBatchSize || calls[1] != 3 {
		t.Fatalf("calls = %v, want [%d 3]", calls, ollamaBatchSize)
	}
	if engine.Dimensions() != 3 {
		t.Fatalf("Dimensions() = %d, want 3", engine.Dimensions())
	}
}

func TestOllamaEngineCountMismatchIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"embeddings":[]}`))
	}))
	defer srv.Close()

	engine, _ := NewOllamaEngine(srv.URL, "test")
	if _, err := engine.Embed(context.Background(), "x"); !errors.Is(err, types.ErrCollaboratorUnavailable) {
		t.Fatalf("Embed() error = %v, want ErrCollaboratorUnavailable", err)
	}
}

func TestOllamaEngineErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	engine, _ := NewOllamaEngine(srv.URL, "missing")
	if _, err := engine.Embed(context.Background(), "x"); !errors.Is(err, types.ErrCollaboratorUnavailable) {
		t.Fatalf("Embed() error = %v, want ErrCollaboratorUnavailable", err)
	}
}

func TestHTTPRerankerScoresInInputOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rerankRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Query != "q" || len(req.Documents) != 2 {
			t.Errorf("unexpected request %#v", req)
		}
		w.Write([]byte(`{"results":[{"index":1,"relevance_score":0.9},{"index":0,"relevance_score":0.1}]}`))
	}))
	defer srv.Close()

	scores, err := NewHTTPReranker(srv.URL, "bge", 0).Score(context.Background(), "q", []string{"a", "b"})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if scores[0] != 0.1 || scores[1] != 0.9 {
		t.Fatalf("Score() = %v, want [0.1 0.9]", scores)
	}
}

func TestHTTPRerankerShortResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{"index":0,"relevance_score":0.5}]}`))
	}))
	defer srv.Close()

	_, err := NewHTTPReranker(srv.URL, "", 0).Score(context.Background(), "q", []string{"a", "b"})
	if !errors.Is(err, types.ErrCollaboratorUnavailable) {
		t.Fatalf("Score() error = %v, want ErrCollaboratorUnavailable", err)
	}
}
