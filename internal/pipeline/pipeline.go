// Package pipeline sequences one question through planning, search,
// acquisition, chunking, ranking, synthesis and validation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"askace/internal/chunk"
	"askace/internal/config"
	"askace/internal/logging"
	"askace/internal/metrics"
	"askace/internal/planner"
	"askace/internal/rank"
	"askace/internal/search"
	"askace/internal/synth"
	"askace/internal/types"
	"askace/internal/validate"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Stage names used in telemetry durations and metrics.
const (
	StagePlan       = "plan"
	StageSearch     = "search"
	StageAcquire    = "acquire"
	StageChunk      = "chunk"
	StageRank       = "rank"
	StageSynthesize = "synthesize"
	StageValidate   = "validate"
)

const (
	defaultMaxChunks   = 40
	defaultConcurrency = 8
	fetchAttempts      = 2
)

// Deps are the stage collaborators.
type Deps struct {
	Planner  *planner.Planner
	Search   *search.Service
	Acquirer Acquirer
	Ranker   *rank.Ranker
	Synth    *synth.Synthesizer
	Sources  planner.SourceLookup
}

// Pipeline runs questions end to end. A Pipeline is safe for concurrent
// runs; each run owns its telemetry.
type Pipeline struct {
	deps        Deps
	maxChunks   int
	concurrency int

	sleep func(ctx context.Context, d time.Duration) error
	newID func() string
	now   func() time.Time
}

// New creates a pipeline bounded by limits.
func New(deps Deps, limits config.LimitsConfig) *Pipeline {
	p := &Pipeline{
		deps:        deps,
		maxChunks:   limits.MaxChunks,
		concurrency: limits.FetchConcurrency,
		sleep:       sleepContext,
		newID:       uuid.NewString,
		now:         time.Now,
	}
	if p.maxChunks <= 0 {
		p.maxChunks = defaultMaxChunks
	}
	if p.concurrency <= 0 {
		p.concurrency = defaultConcurrency
	}
	return p
}

// Run answers req. hints are playbook contents handed to the planner. The
// only stage failure is synthesis without evidence, reported as
// types.ErrEvidenceExhausted with no answer; telemetry is returned either way.
// Run sets no deadline of its own: callers bound ctx and collaborators bound
// their own calls.
func (p *Pipeline) Run(ctx context.Context, req types.QueryRequest, hints []string) (*types.AnswerResponse, *types.RunTelemetry, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	tel := types.NewRunTelemetry(p.newID(), req.Question)
	tel.Hints = hints
	metrics.ActiveRuns.Inc()
	defer metrics.ActiveRuns.Dec()

	logging.Pipeline("Run %s started: %q (max_sources=%d, fresh_only=%v, hints=%d)",
		tel.RunID, req.Question, req.MaxSources, req.FreshOnly, len(hints))

	stage := p.stageTimer(tel)

	done := stage(StagePlan)
	tel.PlannerSteps = p.deps.Planner.Plan(ctx, req.Question, hints)
	done()

	done = stage(StageSearch)
	var queries []types.SearchQuery
	for _, step := range tel.PlannerSteps {
		queries = append(queries, step.SearchQueries...)
	}
	results := p.deps.Search.BatchSearch(ctx, queries, req.MaxSources)
	if req.FreshOnly {
		results = p.freshOnly(results)
	}
	tel.SearchResults = results
	done()

	done = stage(StageAcquire)
	if len(results) > req.MaxSources {
		results = results[:req.MaxSources]
	}
	tel.Documents = p.acquire(ctx, results)
	done()

	done = stage(StageChunk)
	chunks := chunk.Corpus(tel.Documents)
	done()

	done = stage(StageRank)
	k := len(chunks)
	if k > p.maxChunks {
		k = p.maxChunks
	}
	tel.SelectedChunks = p.deps.Ranker.Rank(ctx, req.Question, chunks, k)
	done()

	done = stage(StageSynthesize)
	answer, trace, err := p.deps.Synth.Synthesize(ctx, req.Question, tel.SelectedChunks, tel.RunID)
	tel.Synth = trace
	done()
	if err != nil {
		outcome := metrics.OutcomeError
		if errors.Is(err, types.ErrEvidenceExhausted) {
			outcome = metrics.OutcomeEvidenceExhausted
		}
		metrics.Runs.WithLabelValues(outcome).Inc()
		logging.Get(logging.CategoryPipeline).
			WithContext(map[string]interface{}{"run_id": tel.RunID, "chunks": len(tel.SelectedChunks)}).
			Warn("Run failed during synthesis: %v", err)
		return nil, tel, fmt.Errorf("synthesize: %w", err)
	}
	tel.Citations = answer.Sources

	done = stage(StageValidate)
	report := validate.Answer(answer)
	tel.ValidatorReport = &report
	answer.Metadata["validation"] = report
	done()

	metrics.Runs.WithLabelValues(metrics.OutcomeSuccess).Inc()
	logging.Pipeline("Run %s finished: %d bullets, %d sources, coverage %.2f",
		tel.RunID, len(answer.Bullets), len(answer.Sources), report.Coverage)
	return answer, tel, nil
}

// stageTimer returns a function that starts timing a stage; calling the
// returned func records the duration in telemetry and metrics.
func (p *Pipeline) stageTimer(tel *types.RunTelemetry) func(string) func() {
	return func(name string) func() {
		start := p.now()
		return func() {
			d := p.now().Sub(start)
			tel.Durations[name] = d
			metrics.ObserveStage(name, d)
			logging.PipelineDebug("Stage %s took %v", name, d)
		}
	}
}

// acquire fans out over results and returns documents in result order.
func (p *Pipeline) acquire(ctx context.Context, results []types.SearchResult) []types.Document {
	docs := make([]types.Document, len(results))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, r := range results {
		g.Go(func() error {
			docs[i] = p.acquireOne(gctx, r)
			return nil
		})
	}
	_ = g.Wait()

	fallbacks := 0
	for _, d := range docs {
		if d.IsFallback() {
			fallbacks++
		}
	}
	logging.Pipeline("Acquired %d documents (%d from snippets)", len(docs), fallbacks)
	return docs
}

func (p *Pipeline) acquireOne(ctx context.Context, r types.SearchResult) types.Document {
	for attempt := 0; attempt < fetchAttempts; attempt++ {
		doc, err := p.deps.Acquirer.Acquire(ctx, r)
		if err == nil && doc != nil && strings.TrimSpace(doc.Text) != "" {
			return *doc
		}
		logging.FetchDebug("Attempt %d for %s unusable: %v", attempt+1, r.URL, err)
		if attempt < fetchAttempts-1 {
			if err := p.sleep(ctx, time.Duration(attempt+1)*time.Second); err != nil {
				break
			}
		}
	}
	logging.Get(logging.CategoryFetch).Warn("All fetch attempts failed for %s, using snippet", r.URL)
	metrics.FetchFallbacks.Inc()
	return snippetDocument(r)
}

// freshOnly drops results whose known publish date is outside their
// source's freshness window. Undated results are kept.
func (p *Pipeline) freshOnly(results []types.SearchResult) []types.SearchResult {
	if p.deps.Sources == nil {
		return results
	}
	now := p.now()
	kept := results[:0:0]
	for _, r := range results {
		if r.PublishedAt != nil {
			if sc, ok := p.deps.Sources.Lookup(string(r.SourceType)); ok && sc.FreshnessDays > 0 {
				if now.Sub(*r.PublishedAt) > time.Duration(sc.FreshnessDays)*24*time.Hour {
					logging.PipelineDebug("Dropping stale result %s (%s)", r.URL, r.PublishedAt.Format(time.RFC3339))
					continue
				}
			}
		}
		kept = append(kept, r)
	}
	return kept
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
