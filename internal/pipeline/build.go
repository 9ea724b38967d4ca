package pipeline

import (
	"context"
	"fmt"

	"askace/internal/config"
	"askace/internal/embedding"
	"askace/internal/extract"
	"askace/internal/fetch"
	"askace/internal/llm"
	"askace/internal/logging"
	"askace/internal/planner"
	"askace/internal/rank"
	"askace/internal/search"
	"askace/internal/synth"
)

// Build wires every collaborator from cfg. Providers are selected once here.
func Build(ctx context.Context, cfg *config.Config, sources *config.SourceTable) (*Pipeline, error) {
	timer := logging.StartTimer(logging.CategoryBoot, "pipeline.Build")
	defer timer.Stop()

	plannerLLM, err := llm.NewClient(ctx, "planner", cfg.Models.Planner)
	if err != nil {
		return nil, fmt.Errorf("planner client: %w", err)
	}
	synthLLM, err := llm.NewClient(ctx, "synthesizer", cfg.Models.Synthesizer)
	if err != nil {
		return nil, fmt.Errorf("synthesizer client: %w", err)
	}
	provider, err := search.NewProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("search provider: %w", err)
	}
	engine, err := embedding.NewEngine(ctx, cfg.Models.Embeddings)
	if err != nil {
		return nil, fmt.Errorf("embedding engine: %w", err)
	}
	reranker, err := embedding.NewReranker(cfg.Models.Reranker)
	if err != nil {
		return nil, fmt.Errorf("reranker: %w", err)
	}

	logging.Boot("Pipeline ready: planner=%s synthesizer=%s search=%s sources=%d",
		plannerLLM.Name(), synthLLM.Name(), provider.Name(), sources.Len())

	return New(Deps{
		Planner:  planner.New(plannerLLM, sources, cfg.Limits.MaxPlannerSteps),
		Search:   search.NewService(provider),
		Acquirer: NewWebAcquirer(fetch.New(cfg.Fetch), extract.New()),
		Ranker:   rank.New(engine, reranker),
		Synth:    synth.New(synthLLM),
		Sources:  sources,
	}, cfg.Limits), nil
}
