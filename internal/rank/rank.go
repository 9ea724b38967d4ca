// Package rank orders evidence chunks for a question: embedding similarity
// (or lexical overlap when no embeddings are available), then an optional
// cross-encoder pass over the best candidates.
package rank

import (
	"context"
	"sort"
	"strings"

	"askace/internal/embedding"
	"askace/internal/logging"
	"askace/internal/types"
)

// Ranker is safe for concurrent use if its collaborators are.
type Ranker struct {
	engine   embedding.Engine
	reranker embedding.Reranker
}

// New creates a ranker. Either collaborator may be nil.
func New(engine embedding.Engine, reranker embedding.Reranker) *Ranker {
	return &Ranker{engine: engine, reranker: reranker}
}

type scored struct {
	chunk types.Chunk
	score float64
}

// Rank returns the top k chunks with Score overwritten by the final score.
// The input slice is not modified.
func (r *Ranker) Rank(ctx context.Context, query string, chunks []types.Chunk, k int) []types.Chunk {
	if len(chunks) == 0 || k <= 0 {
		return nil
	}
	timer := logging.StartTimer(logging.CategoryRank, "Rank")
	defer timer.Stop()

	// stage A
	candidates := r.firstStage(ctx, query, chunks)
	sortByScore(candidates)

	// stage B
	if limit := 2 * k; len(candidates) > limit {
		candidates = candidates[:limit]
	}

	// stage C
	r.rerank(ctx, query, candidates)

	// stage D
	sortByScore(candidates)
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	out := make([]types.Chunk, len(candidates))
	for i, c := range candidates {
		c.chunk.Score = c.score
		out[i] = c.chunk
	}
	logging.RankDebug("Ranked %d chunks down to %d", len(chunks), len(out))
	return out
}

func (r *Ranker) firstStage(ctx context.Context, query string, chunks []types.Chunk) []scored {
	out := make([]scored, len(chunks))
	for i, c := range chunks {
		out[i].chunk = c
	}

	if sims, ok := r.similarities(ctx, query, chunks); ok {
		for i := range out {
			out[i].score = sims[i]
		}
		return out
	}

	logging.RankDebug("No embeddings available; using lexical overlap scoring")
	for i := range out {
		out[i].score = LexicalScore(query, out[i].chunk.Text)
	}
	return out
}

// similarities reports false when the engine is missing, fails or returns
// only zero vectors.
func (r *Ranker) similarities(ctx context.Context, query string, chunks []types.Chunk) ([]float64, bool) {
	if r.engine == nil {
		return nil, false
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := r.engine.EmbedBatch(ctx, texts)
	if err != nil || len(vectors) != len(chunks) {
		logging.Get(logging.CategoryRank).Warn("Chunk embedding unavailable (%s): %v", r.engine.Name(), err)
		return nil, false
	}
	qv, err := r.engine.Embed(ctx, query)
	if err != nil || embedding.IsZero(qv) {
		logging.Get(logging.CategoryRank).Warn("Query embedding unavailable (%s): %v", r.engine.Name(), err)
		return nil, false
	}

	sims := make([]float64, len(vectors))
	allZero := true
	for i, v := range vectors {
		if !embedding.IsZero(v) {
			allZero = false
		}
		s, err := embedding.CosineSimilarity(qv, v)
		if err != nil {
			logging.Get(logging.CategoryRank).Warn("Embedding dimension mismatch: %v", err)
			return nil, false
		}
		sims[i] = s
	}
	if allZero {
		return nil, false
	}
	return sims, true
}

func (r *Ranker) rerank(ctx context.Context, query string, candidates []scored) {
	if r.reranker == nil || len(candidates) == 0 {
		return
	}
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.chunk.Text
	}
	scores, err := r.reranker.Score(ctx, query, texts)
	if err != nil || len(scores) != len(candidates) {
		logging.Get(logging.CategoryRank).Warn("Reranker unavailable (%s), keeping first-stage scores: %v", r.reranker.Name(), err)
		return
	}
	for i := range candidates {
		candidates[i].score = scores[i]
	}
}

func sortByScore(s []scored) {
	sort.SliceStable(s, func(i, j int) bool { return s[i].score > s[j].score })
}

// LexicalScore is |q ∩ c| / |q| over lowercase whitespace tokens, and 0
// for a chunk with no tokens.
func LexicalScore(query, text string) float64 {
	chunkTerms := termSet(text)
	if len(chunkTerms) == 0 {
		return 0
	}
	queryTerms := termSet(query)
	if len(queryTerms) == 0 {
		return 0
	}
	overlap := 0
	for t := range queryTerms {
		if chunkTerms[t] {
			overlap++
		}
	}
	return float64(overlap) / float64(len(queryTerms))
}

func termSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range strings.Fields(strings.ToLower(s)) {
		set[t] = true
	}
	return set
}
