// Package mcpserver exposes the answer loop as MCP tools.
package mcpserver

import (
	"context"
	"fmt"
	"time"

	"askace/internal/api"
	"askace/internal/logging"
	"askace/internal/types"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP SDK server.
type Server struct {
	MCPServer *sdkmcp.Server
	svc       api.Answerer
}

// New creates a server with the answer and list_heuristics tools registered.
func New(svc api.Answerer, version string) *Server {
	s := &Server{
		MCPServer: sdkmcp.NewServer(&sdkmcp.Implementation{Name: "askace", Version: version}, nil),
		svc:       svc,
	}
	s.registerTools()
	return s
}

// RunStdio serves over stdin/stdout until the client disconnects or ctx ends.
func (s *Server) RunStdio(ctx context.Context) error {
	logging.Get(logging.CategoryAPI).Info("MCP server running on stdio")
	return s.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "answer",
		Description: "Answer a question about recent AI/ML developments with cited bullets, then learn from the run.",
	}, s.handleAnswer)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_heuristics",
		Description: "List learned playbook heuristics, most helpful first, optionally filtered by tag.",
	}, s.handleListHeuristics)
}

type answerInput struct {
	Question        string `json:"question" jsonschema:"the question to answer (at least 4 characters)"`
	FreshOnly       bool   `json:"fresh_only,omitempty" jsonschema:"drop results older than each source's freshness window"`
	MaxSources      int    `json:"max_sources,omitempty" jsonschema:"number of search results to read, 1-20 (default 8)"`
	IncludePlaybook *bool  `json:"include_playbook,omitempty" jsonschema:"pass learned heuristics to the planner (default true)"`
}

type bulletOutput struct {
	Text      string   `json:"text"`
	Citations []string `json:"citations"`
}

type sourceOutput struct {
	Label       string `json:"label"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	SourceType  string `json:"source_type"`
	PublishedAt string `json:"published_at,omitempty"`
}

type answerOutput struct {
	Question       string         `json:"question"`
	RunID          string         `json:"run_id"`
	Bullets        []bulletOutput `json:"bullets"`
	Sources        []sourceOutput `json:"sources"`
	Coverage       float64        `json:"coverage"`
	Passed         bool           `json:"passed"`
	DeltasProposed []string       `json:"deltas_proposed"`
	DeltasMerged   []string       `json:"deltas_merged"`
}

type listInput struct {
	Tag string `json:"tag,omitempty" jsonschema:"only items whose tags contain this text"`
}

type heuristicOutput struct {
	ID      string   `json:"id"`
	Type    string   `json:"type"`
	Content string   `json:"content"`
	Helpful int      `json:"helpful"`
	Harmful int      `json:"harmful"`
	Tags    []string `json:"tags"`
}

type listOutput struct {
	Items []heuristicOutput `json:"items"`
}

func (s *Server) handleAnswer(ctx context.Context, _ *sdkmcp.CallToolRequest, in answerInput) (*sdkmcp.CallToolResult, answerOutput, error) {
	req := types.NewQueryRequest(in.Question)
	req.FreshOnly = in.FreshOnly
	req.IncludePlaybook = in.IncludePlaybook
	if in.MaxSources != 0 {
		req.MaxSources = in.MaxSources
	}

	answer, err := s.svc.Answer(ctx, req)
	if err != nil {
		return nil, answerOutput{}, fmt.Errorf("answer: %w", err)
	}
	return nil, toAnswerOutput(answer), nil
}

func (s *Server) handleListHeuristics(ctx context.Context, _ *sdkmcp.CallToolRequest, in listInput) (*sdkmcp.CallToolResult, listOutput, error) {
	items, err := s.svc.ListHeuristics(ctx, in.Tag)
	if err != nil {
		return nil, listOutput{}, fmt.Errorf("list_heuristics: %w", err)
	}
	out := listOutput{Items: make([]heuristicOutput, 0, len(items))}
	for _, it := range items {
		tags := it.Tags
		if tags == nil {
			tags = []string{}
		}
		out.Items = append(out.Items, heuristicOutput{
			ID:      it.ID,
			Type:    string(it.Type),
			Content: it.Content,
			Helpful: it.Helpful,
			Harmful: it.Harmful,
			Tags:    tags,
		})
	}
	return nil, out, nil
}

func toAnswerOutput(a *types.AnswerResponse) answerOutput {
	out := answerOutput{
		Question:       a.Question,
		RunID:          a.RunID,
		Bullets:        make([]bulletOutput, 0, len(a.Bullets)),
		Sources:        make([]sourceOutput, 0, len(a.Sources)),
		DeltasProposed: []string{},
		DeltasMerged:   []string{},
	}
	for _, b := range a.Bullets {
		cites := b.Citations
		if cites == nil {
			cites = []string{}
		}
		out.Bullets = append(out.Bullets, bulletOutput{Text: b.Text, Citations: cites})
	}
	for _, c := range a.Sources {
		src := sourceOutput{Label: c.Label, URL: c.URL, Title: c.Title, SourceType: string(c.SourceType)}
		if c.PublishedAt != nil {
			src.PublishedAt = c.PublishedAt.Format(time.RFC3339)
		}
		out.Sources = append(out.Sources, src)
	}
	if report, ok := a.Metadata["validation"].(types.ValidationReport); ok {
		out.Coverage = report.Coverage
		out.Passed = report.Passed
	}
	if block, ok := a.Metadata["ace"].(map[string][]string); ok {
		if ids := block["deltas_proposed"]; ids != nil {
			out.DeltasProposed = ids
		}
		if ids := block["deltas_merged"]; ids != nil {
			out.DeltasMerged = ids
		}
	}
	return out
}
