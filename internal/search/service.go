package search

import (
	"context"
	"sort"

	"askace/internal/logging"
	"askace/internal/metrics"
	"askace/internal/types"
)

// Service fans planner queries out to one provider and merges the results.
type Service struct {
	provider Provider
}

// NewService wraps provider.
func NewService(provider Provider) *Service {
	return &Service{provider: provider}
}

// Provider returns the wrapped provider.
func (s *Service) Provider() Provider { return s.provider }

// BatchSearch runs queries in order with topK per query, dedupes by URL and
// returns at most topK results with source diversity. A failing query is
// logged and contributes nothing.
func (s *Service) BatchSearch(ctx context.Context, queries []types.SearchQuery, topK int) []types.SearchResult {
	timer := logging.StartTimer(logging.CategorySearch, "BatchSearch")
	defer timer.Stop()

	var ordered []types.SearchResult
	index := make(map[string]int)
	failures := 0

	for _, q := range queries {
		if ctx.Err() != nil {
			break
		}
		results, err := s.provider.Search(ctx, q, topK)
		if err != nil {
			failures++
			metrics.SearchFailures.Inc()
			logging.Get(logging.CategorySearch).Warn("Search failed for %s query %q: %v", q.SourceType, q.Query, err)
			continue
		}
		for _, r := range results {
			if i, ok := index[r.URL]; ok {
				if r.Score > ordered[i].Score {
					ordered[i] = r
				}
				continue
			}
			index[r.URL] = len(ordered)
			ordered = append(ordered, r)
		}
	}

	selected := LimitWithDiversity(ordered, topK)
	logging.Search("Batch search: %d queries, %d failures, %d unique, %d selected",
		len(queries), failures, len(ordered), len(selected))
	return selected
}

// LimitWithDiversity picks at most topK results. When there are more
// candidates than topK it round-robins over per-source buckets: each round
// visits every non-empty bucket once, strongest head first. Rounds continue
// until topK is reached, so the result never holds fewer than
// min(len(results), topK) entries.
func LimitWithDiversity(results []types.SearchResult, topK int) []types.SearchResult {
	if topK <= 0 {
		return nil
	}
	if len(results) <= topK {
		return results
	}

	var order []types.SourceType
	buckets := make(map[types.SourceType][]types.SearchResult)
	for _, r := range results {
		if _, ok := buckets[r.SourceType]; !ok {
			order = append(order, r.SourceType)
		}
		buckets[r.SourceType] = append(buckets[r.SourceType], r)
	}
	for _, st := range order {
		b := buckets[st]
		sort.SliceStable(b, func(i, j int) bool { return b[i].Score > b[j].Score })
	}

	selected := make([]types.SearchResult, 0, topK)
	for len(selected) < topK {
		round := make([]types.SourceType, 0, len(order))
		for _, st := range order {
			if len(buckets[st]) > 0 {
				round = append(round, st)
			}
		}
		if len(round) == 0 {
			break
		}
		sort.SliceStable(round, func(i, j int) bool {
			return buckets[round[i]][0].Score > buckets[round[j]][0].Score
		})
		for _, st := range round {
			selected = append(selected, buckets[st][0])
			buckets[st] = buckets[st][1:]
			if len(selected) == topK {
				break
			}
		}
	}
	return selected
}
