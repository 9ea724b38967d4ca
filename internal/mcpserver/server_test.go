package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"askace/internal/types"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnswerer struct {
	got   types.QueryRequest
	err   error
	items []types.HeuristicItem
	tag   string
}

func (f *fakeAnswerer) Answer(ctx context.Context, req types.QueryRequest) (*types.AnswerResponse, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &types.AnswerResponse{
		Question: req.Question,
		RunID:    "run-7",
		Bullets:  []types.AnswerBullet{{Text: "GGUF builds landed [1]", Citations: []string{"1"}}},
		Sources:  []types.Citation{{Label: "1", URL: "https://huggingface.co/x", Title: "x", SourceType: types.SourceHuggingFace}},
		Metadata: map[string]interface{}{
			"validation": types.ValidationReport{Passed: true, Coverage: 1},
			"ace":        map[string][]string{"deltas_proposed": {"coverage:news:aa11bb"}, "deltas_merged": {"coverage:news:aa11bb"}},
		},
	}, nil
}

func (f *fakeAnswerer) ListHeuristics(ctx context.Context, tag string) ([]types.HeuristicItem, error) {
	f.tag = tag
	return f.items, nil
}

func connect(t *testing.T, ctx context.Context, srv *Server) *sdkmcp.ClientSession {
	t.Helper()
	t1, t2 := sdkmcp.NewInMemoryTransports()
	_, err := srv.MCPServer.Connect(ctx, t1, nil)
	require.NoError(t, err)
	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, t2, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })
	return session
}

func call(t *testing.T, ctx context.Context, session *sdkmcp.ClientSession, name string, args map[string]any) (*sdkmcp.CallToolResult, string) {
	t.Helper()
	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok, "expected text content")
	return res, tc.Text
}

func TestAnswerTool(t *testing.T) {
	ctx := context.Background()
	fake := &fakeAnswerer{}
	session := connect(t, ctx, New(fake, "test"))

	res, text := call(t, ctx, session, "answer", map[string]any{"question": "new gguf quantizations", "max_sources": 5})
	require.False(t, res.IsError, text)

	assert.Equal(t, "new gguf quantizations", fake.got.Question)
	assert.Equal(t, 5, fake.got.MaxSources)
	assert.True(t, fake.got.WantsPlaybook())

	var out answerOutput
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	assert.Equal(t, "run-7", out.RunID)
	assert.Equal(t, 1.0, out.Coverage)
	assert.True(t, out.Passed)
	assert.Equal(t, []string{"1"}, out.Bullets[0].Citations)
	assert.Equal(t, []string{"coverage:news:aa11bb"}, out.DeltasMerged)
}

func TestAnswerToolDefaultsMaxSources(t *testing.T) {
	ctx := context.Background()
	fake := &fakeAnswerer{}
	session := connect(t, ctx, New(fake, "test"))

	off := false
	res, text := call(t, ctx, session, "answer", map[string]any{"question": "what is new", "include_playbook": off})
	require.False(t, res.IsError, text)
	assert.Equal(t, types.DefaultMaxSources, fake.got.MaxSources)
	assert.False(t, fake.got.WantsPlaybook())
}

func TestAnswerToolReportsFailure(t *testing.T) {
	ctx := context.Background()
	fake := &fakeAnswerer{err: fmt.Errorf("synthesize: %w", types.ErrEvidenceExhausted)}
	session := connect(t, ctx, New(fake, "test"))

	res, text := call(t, ctx, session, "answer", map[string]any{"question": "anything here"})
	assert.True(t, res.IsError)
	assert.Contains(t, text, "no supporting evidence")
}

func TestListHeuristicsTool(t *testing.T) {
	ctx := context.Background()
	fake := &fakeAnswerer{items: []types.HeuristicItem{
		{ID: "freshness:twitter:abc123", Type: types.HeuristicQueryRewrite, Content: "use sort:recent", Helpful: 4, Tags: []string{"twitter", "fresh"}},
		{ID: "seed-1", Type: types.HeuristicSourceRule, Content: "prefer arxiv", Helpful: 1},
	}}
	session := connect(t, ctx, New(fake, "test"))

	res, text := call(t, ctx, session, "list_heuristics", map[string]any{"tag": "fresh"})
	require.False(t, res.IsError, text)
	assert.Equal(t, "fresh", fake.tag)

	var out listOutput
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	require.Len(t, out.Items, 2)
	assert.Equal(t, "freshness:twitter:abc123", out.Items[0].ID)
	assert.Equal(t, []string{}, out.Items[1].Tags)
}
