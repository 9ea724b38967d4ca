package ace

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"askace/internal/store"
	"askace/internal/types"
	"askace/internal/validate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)

func newTestReflector() *Reflector {
	r := NewReflector(DefaultFreshnessBuffer)
	r.now = func() time.Time { return fixedNow }
	n := 0
	r.suffix = func(width int) string {
		n++
		return fmt.Sprintf("%0*d", width, n)
	}
	return r
}

func newTestStore(t *testing.T) *store.PlaybookStore {
	t.Helper()
	s, err := store.NewPlaybookStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func daysAgo(d int) *time.Time {
	ts := fixedNow.Add(-time.Duration(d) * 24 * time.Hour)
	return &ts
}

func TestReflectorFreshness(t *testing.T) {
	tel := types.NewRunTelemetry("run-1", "summary of things")
	tel.Citations = []types.Citation{
		{Label: "1", SourceType: types.SourceTwitter, PublishedAt: daysAgo(10)},
		{Label: "2", SourceType: types.SourceArxiv, PublishedAt: daysAgo(10)},
		{Label: "3", SourceType: types.SourceTwitter, PublishedAt: daysAgo(7)},
		{Label: "4", SourceType: types.SourceNews},
	}

	deltas := newTestReflector().Critique(tel)
	require.Len(t, deltas, 1)
	d := deltas[0]
	assert.Equal(t, "freshness:twitter:000001", d.Item.ID)
	assert.Equal(t, types.HeuristicQueryRewrite, d.Item.Type)
	assert.Equal(t, 1, d.Item.Helpful)
	assert.Equal(t, []string{"twitter", "fresh"}, d.Item.Tags)
	assert.Equal(t, "run-1", d.RunID)
	assert.Equal(t, "1 citation(s) exceeded freshness window.", d.Rationale)
}

func TestReflectorFreshnessWeightsByCount(t *testing.T) {
	tel := types.NewRunTelemetry("run-1", "summary of things")
	tel.Citations = []types.Citation{
		{Label: "1", SourceType: types.SourceReddit, PublishedAt: daysAgo(30)},
		{Label: "2", SourceType: types.SourceReddit, PublishedAt: daysAgo(9)},
		{Label: "3", SourceType: types.SourceNews, PublishedAt: daysAgo(13)},
		{Label: "4", SourceType: types.SourceGitHub, PublishedAt: daysAgo(17)},
	}

	deltas := newTestReflector().Critique(tel)
	require.Len(t, deltas, 3)
	// canonical source order, not citation order
	assert.Equal(t, "freshness:github:000001", deltas[0].Item.ID)
	assert.Equal(t, "freshness:news:000002", deltas[1].Item.ID)
	assert.Equal(t, "freshness:reddit:000003", deltas[2].Item.ID)
	assert.Equal(t, 2, deltas[2].Item.Helpful)
}

func TestReflectorValidation(t *testing.T) {
	answer := &types.AnswerResponse{
		Bullets: []types.AnswerBullet{{Text: "no cite"}, {Text: "cited [1]", Citations: []string{"1"}}},
		Sources: []types.Citation{{Label: "1"}},
	}
	report := validate.Answer(answer)
	require.False(t, report.Passed)

	tel := types.NewRunTelemetry("run-2", "tell me things")
	tel.ValidatorReport = &report
	deltas := newTestReflector().Critique(tel)
	require.Len(t, deltas, 1)
	assert.Equal(t, "validation:00000001", deltas[0].Item.ID)
	assert.Equal(t, types.HeuristicValidationRule, deltas[0].Item.Type)

	// unknown citations alone do not trigger the rule
	answer.Bullets = []types.AnswerBullet{{Text: "bad [9]", Citations: []string{"9"}}}
	report = validate.Answer(answer)
	tel.ValidatorReport = &report
	assert.Empty(t, newTestReflector().Critique(tel))
}

func TestReflectorCoverage(t *testing.T) {
	tel := types.NewRunTelemetry("run-3", "Latest github repo and x reactions on reddit")
	tel.SearchResults = []types.SearchResult{{URL: "https://reddit.com/a", SourceType: types.SourceReddit}}

	deltas := newTestReflector().Critique(tel)
	var ids []string
	for _, d := range deltas {
		ids = append(ids, d.Item.ID)
	}
	assert.Equal(t, []string{"coverage:github:000001", "coverage:news:000002", "coverage:twitter:000003"}, ids)
	assert.Equal(t, "Planner missed github coverage.", deltas[0].Rationale)
	assert.Equal(t, []string{"github", "coverage"}, deltas[0].Item.Tags)
}

func TestExpectedSourcesUsesWholeWords(t *testing.T) {
	assert.Empty(t, ExpectedSources("explain mixture of experts"))
	assert.Equal(t, []types.SourceType{types.SourceHuggingFace, types.SourceArxiv},
		ExpectedSources("research on the new model"))
}

func TestContentSimilarity(t *testing.T) {
	got := ContentSimilarity("use sort: recent for huggingface model", "Use sort:recent for huggingface models")
	assert.Greater(t, got, DuplicateThreshold)
	assert.Less(t, ContentSimilarity("prefer arxiv for papers", "add site filter for github"), DuplicateThreshold)
	assert.Zero(t, ContentSimilarity("", "anything"))
}

func TestCuratorRejectsNearDuplicate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Upsert(ctx, types.HeuristicItem{
		ID: "seed-1", Type: types.HeuristicQueryRewrite, Content: "Use sort:recent for huggingface models",
	}))

	c := NewCurator(s)
	merged, err := c.Merge(ctx, []types.HeuristicDelta{
		{Item: types.HeuristicItem{ID: "new-1", Type: types.HeuristicQueryRewrite, Content: "use sort: recent for huggingface model"}},
		{Item: types.HeuristicItem{ID: "new-2", Type: types.HeuristicSourceRule, Content: "use sort: recent for huggingface model"}},
	})
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, "new-2", merged[0].ID, "different type is never a near duplicate")
}

func TestCuratorSeesEarlierDeltasInBatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	c := NewCurator(s)
	merged, err := c.Merge(ctx, []types.HeuristicDelta{
		{Item: types.HeuristicItem{ID: "a", Type: types.HeuristicQueryRewrite, Content: "prefer recent arxiv listings"}},
		{Item: types.HeuristicItem{ID: "b", Type: types.HeuristicQueryRewrite, Content: "Prefer recent arxiv listing"}},
		{Item: types.HeuristicItem{ID: "c", Type: types.HeuristicQueryRewrite, Content: "add stars filter for github"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, itemIDs(merged))
}

func TestCuratorSameIDTwiceStoresOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	c := NewCurator(s)
	delta := types.HeuristicDelta{Item: types.HeuristicItem{ID: "dup", Type: types.HeuristicSourceRule, Content: "one rule"}}

	first, err := c.Merge(ctx, []types.HeuristicDelta{delta})
	require.NoError(t, err)
	second, err := c.Merge(ctx, []types.HeuristicDelta{delta})
	require.NoError(t, err)

	assert.Len(t, first, 1)
	assert.Empty(t, second)
	items, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestCuratorRecordsRunningTotals(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.RecordCounter(ctx, CounterProposed, 10))
	require.NoError(t, s.RecordCounter(ctx, CounterMerged, 4))

	c := NewCurator(s)
	_, err := c.Merge(ctx, []types.HeuristicDelta{
		{Item: types.HeuristicItem{ID: "x1", Type: types.HeuristicSourceRule, Content: "alpha rule"}},
		{Item: types.HeuristicItem{ID: "x1", Type: types.HeuristicSourceRule, Content: "alpha rule"}},
	})
	require.NoError(t, err)

	proposed, err := s.Counter(ctx, CounterProposed)
	require.NoError(t, err)
	merged, err := s.Counter(ctx, CounterMerged)
	require.NoError(t, err)
	assert.Equal(t, int64(12), proposed.Value)
	assert.Equal(t, int64(5), merged.Value)
}

func TestCuratorEmptyInput(t *testing.T) {
	merged, err := NewCurator(newTestStore(t)).Merge(context.Background(), nil)
	assert.NoError(t, err)
	assert.Empty(t, merged)
}

type failingStore struct {
	*store.PlaybookStore
}

func (failingStore) Upsert(context.Context, types.HeuristicItem) error { return errors.New("disk full") }

func TestCuratorPropagatesUpsertError(t *testing.T) {
	c := NewCurator(failingStore{newTestStore(t)})
	_, err := c.Merge(context.Background(), []types.HeuristicDelta{
		{Item: types.HeuristicItem{ID: "z", Type: types.HeuristicSourceRule, Content: "rule"}},
	})
	assert.ErrorContains(t, err, "disk full")
}

func TestKeywords(t *testing.T) {
	got := Keywords("What's new with open weight models on huggingface with models")
	assert.Equal(t, []string{"huggingface", "models", "open", "weight", "what's", "with"}, got)
}

type stubRunner struct {
	hints []string
	tel   *types.RunTelemetry
	err   error
}

func (r *stubRunner) Run(ctx context.Context, req types.QueryRequest, hints []string) (*types.AnswerResponse, *types.RunTelemetry, error) {
	r.hints = hints
	if r.err != nil {
		return nil, nil, r.err
	}
	r.tel.Hints = hints
	return &types.AnswerResponse{Question: req.Question, RunID: r.tel.RunID}, r.tel, nil
}

func TestServiceAnswerFeedsLoop(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Upsert(ctx, types.HeuristicItem{
		ID: "seed-gh", Type: types.HeuristicSourceRule, Content: "github: => stars:>50", Helpful: 3,
	}))

	tel := types.NewRunTelemetry("run-9", "latest github release notes")
	runner := &stubRunner{tel: tel}
	svc := NewService(runner, s, newTestReflector())

	answer, err := svc.Answer(ctx, types.NewQueryRequest("latest github release notes"))
	require.NoError(t, err)
	assert.Equal(t, []string{"github: => stars:>50"}, runner.hints)

	block, ok := answer.Metadata["ace"].(map[string][]string)
	require.True(t, ok)
	assert.Equal(t, []string{"coverage:github:000001", "coverage:news:000002"}, block["deltas_proposed"])
	// the news rule differs from the github one by a single word
	assert.Equal(t, []string{"coverage:github:000001"}, block["deltas_merged"])

	items, err := svc.ListHeuristics(ctx, "coverage")
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestServiceSkipsPlaybookWhenDisabled(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Upsert(ctx, types.HeuristicItem{ID: "h", Type: types.HeuristicSourceRule, Content: "github rule"}))

	runner := &stubRunner{tel: types.NewRunTelemetry("run-1", "github question")}
	svc := NewService(runner, s, newTestReflector())
	off := false
	req := types.NewQueryRequest("github question")
	req.IncludePlaybook = &off

	_, err := svc.Answer(ctx, req)
	require.NoError(t, err)
	assert.Nil(t, runner.hints)
}

func TestServiceAnswerPropagatesRunError(t *testing.T) {
	runner := &stubRunner{err: types.ErrEvidenceExhausted}
	svc := NewService(runner, newTestStore(t), nil)
	_, err := svc.Answer(context.Background(), types.NewQueryRequest("anything at all"))
	assert.ErrorIs(t, err, types.ErrEvidenceExhausted)
}
