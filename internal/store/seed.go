package store

import (
	"context"

	"askace/internal/types"
)

// SeedItems are the starter heuristics written by `askace playbook seed`.
var SeedItems = []types.HeuristicItem{
	{
		ID:      "query_rewrite:hf-new-models",
		Type:    types.HeuristicQueryRewrite,
		Content: "huggingface:new models => sort:recent",
		Helpful: 5,
		Tags:    []string{"models", "fresh"},
	},
	{
		ID:      "source_rule:avoid-stale-medium",
		Type:    types.HeuristicSourceRule,
		Content: "Avoid medium.com posts older than 60 days unless explicitly requested.",
		Helpful: 3,
		Tags:    []string{"blogs", "fresh"},
	},
	{
		ID:      "template_rule:model-compare",
		Type:    types.HeuristicTemplateRule,
		Content: "When comparing models, include parameter count, training data summary, benchmark score, and license line.",
		Helpful: 4,
		Tags:    []string{"comparison", "models"},
	},
	{
		ID:      "query_rewrite:twitter-latest-ai",
		Type:    types.HeuristicQueryRewrite,
		Content: "twitter:latest => sort:recent",
		Helpful: 2,
		Tags:    []string{"social", "fresh", "twitter"},
	},
	{
		ID:      "query_rewrite:reddit-discussion",
		Type:    types.HeuristicQueryRewrite,
		Content: "reddit:discussion => sort:recent",
		Helpful: 2,
		Tags:    []string{"community", "reddit"},
	},
}

// Seed upserts SeedItems and returns how many were written.
func (s *PlaybookStore) Seed(ctx context.Context) (int, error) {
	for _, item := range SeedItems {
		item.Tags = append([]string(nil), item.Tags...)
		if err := s.Upsert(ctx, item); err != nil {
			return 0, err
		}
	}
	return len(SeedItems), nil
}
