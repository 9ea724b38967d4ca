// Package embedding provides the vector embedding and rerank collaborators
// used by the retrieval ranker.
// Embedding backends: Ollama (local) and Google GenAI (cloud).
// Reranking: an HTTP cross-encoder service.
package embedding

import (
	"context"
	"fmt"
	"math"

	"askace/internal/config"
	"askace/internal/logging"
	"askace/internal/types"
)

// =============================================================================
// INTERFACES
// =============================================================================

// Engine generates vector embeddings for text.
type Engine interface {
	// Embed generates embeddings for a single text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of embeddings
	Dimensions() int

	// Name returns the engine name
	Name() string
}

// Reranker scores (query, text) pairs with a cross-encoder.
type Reranker interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
	Name() string
}

// =============================================================================
// FACTORY
// =============================================================================

// NewEngine creates an embedding engine from configuration. Provider "none"
// (or empty) returns a nil engine; the ranker then scores lexically.
func NewEngine(ctx context.Context, cfg config.EmbeddingConfig) (Engine, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "NewEngine")
	defer timer.Stop()

	logging.EmbeddingDebug("Engine config: provider=%s, ollama_endpoint=%s, ollama_model=%s, genai_model=%s, task_type=%s",
		cfg.Provider, cfg.OllamaEndpoint, cfg.OllamaModel, cfg.GenAIModel, cfg.TaskType)

	var engine Engine
	var err error

	switch cfg.Provider {
	case "", "none":
		logging.Embedding("Embeddings disabled; ranker will use lexical overlap")
		return nil, nil
	case "ollama":
		engine, err = NewOllamaEngine(cfg.OllamaEndpoint, cfg.OllamaModel)
	case "genai":
		engine, err = NewGenAIEngine(ctx, cfg.GenAIAPIKey, cfg.GenAIModel, cfg.TaskType)
	default:
		return nil, fmt.Errorf("%w: unsupported embedding provider: %s (use 'ollama', 'genai' or 'none')", types.ErrConfiguration, cfg.Provider)
	}
	if err != nil {
		logging.Get(logging.CategoryEmbedding).Error("Failed to create embedding engine: %v", err)
		return nil, err
	}

	logging.Embedding("Embedding engine created: name=%s, dimensions=%d", engine.Name(), engine.Dimensions())
	return engine, nil
}

// NewReranker creates a reranker from configuration. Provider "none" (or
// empty) returns nil; the ranker then keeps stage-A scores.
func NewReranker(cfg config.RerankerConfig) (Reranker, error) {
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "http":
		return NewHTTPReranker(cfg.Endpoint, cfg.Model, config.GetDuration(cfg.Timeout, 0)), nil
	default:
		return nil, fmt.Errorf("%w: unsupported reranker provider: %s", types.ErrConfiguration, cfg.Provider)
	}
}

// =============================================================================
// COSINE SIMILARITY UTILITY
// =============================================================================

// CosineSimilarity calculates the cosine similarity between two vectors.
// Returns a value between -1 and 1, where 1 means identical, 0 means orthogonal.
// A zero-magnitude vector scores 0.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have the same length: %d != %d", len(a), len(b))
	}

	var dotProduct, aMagnitude, bMagnitude float64
	for i := 0; i < len(a); i++ {
		dotProduct += float64(a[i]) * float64(b[i])
		aMagnitude += float64(a[i]) * float64(a[i])
		bMagnitude += float64(b[i]) * float64(b[i])
	}

	if aMagnitude == 0 || bMagnitude == 0 {
		return 0, nil
	}
	return dotProduct / (math.Sqrt(aMagnitude) * math.Sqrt(bMagnitude)), nil
}

// IsZero reports whether every component of v is zero.
func IsZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
