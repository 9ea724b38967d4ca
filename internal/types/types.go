// Package types provides shared type definitions used across askace packages.
// It sits at the bottom of the import graph so the pipeline stages and the
// ACE loop can exchange values without depending on one another.
package types

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// SOURCES
// =============================================================================

// SourceType identifies the family of site a search result came from.
type SourceType string

const (
	SourceArxiv       SourceType = "arxiv"
	SourceGitHub      SourceType = "github"
	SourceHuggingFace SourceType = "huggingface"
	SourceNews        SourceType = "news"
	SourceBlogs       SourceType = "blogs"
	SourceTwitter     SourceType = "twitter"
	SourceReddit      SourceType = "reddit"
	SourceOther       SourceType = "other"
)

// AllSourceTypes lists every known source in canonical order.
var AllSourceTypes = []SourceType{
	SourceArxiv, SourceGitHub, SourceHuggingFace, SourceNews,
	SourceBlogs, SourceTwitter, SourceReddit, SourceOther,
}

// ParseSourceType maps a name to a SourceType. Unknown names map to SourceOther.
func ParseSourceType(s string) SourceType {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "blog" {
		return SourceBlogs
	}
	for _, st := range AllSourceTypes {
		if string(st) == s {
			return st
		}
	}
	return SourceOther
}

// IsSocial reports whether the source is a social feed.
func (s SourceType) IsSocial() bool {
	return s == SourceTwitter || s == SourceReddit
}

// =============================================================================
// REQUEST / PLANNING
// =============================================================================

const (
	DefaultMaxSources = 8
	MaxMaxSources     = 20
	MinQuestionLength = 4
)

// QueryRequest is a single question submitted to the pipeline.
type QueryRequest struct {
	Question        string `json:"question"`
	FreshOnly       bool   `json:"fresh_only"`
	MaxSources      int    `json:"max_sources"`
	IncludePlaybook *bool  `json:"include_playbook,omitempty"`
}

// NewQueryRequest returns a request with defaults applied.
func NewQueryRequest(question string) QueryRequest {
	return QueryRequest{Question: question, MaxSources: DefaultMaxSources}
}

// Normalize fills defaults for zero-valued fields.
func (r *QueryRequest) Normalize() {
	r.Question = strings.TrimSpace(r.Question)
	if r.MaxSources == 0 {
		r.MaxSources = DefaultMaxSources
	}
}

// Validate checks request bounds.
func (r QueryRequest) Validate() error {
	if len([]rune(strings.TrimSpace(r.Question))) < MinQuestionLength {
		return fmt.Errorf("%w: question must be at least %d characters", ErrInvalidRequest, MinQuestionLength)
	}
	if r.MaxSources < 1 || r.MaxSources > MaxMaxSources {
		return fmt.Errorf("%w: max_sources must be between 1 and %d, got %d", ErrInvalidRequest, MaxMaxSources, r.MaxSources)
	}
	return nil
}

// WantsPlaybook reports whether playbook hints should be retrieved (default true).
func (r QueryRequest) WantsPlaybook() bool {
	return r.IncludePlaybook == nil || *r.IncludePlaybook
}

// SearchQuery is a single provider query produced by the planner.
type SearchQuery struct {
	Query         string     `json:"query"`
	SourceType    SourceType `json:"source_type"`
	Rationale     string     `json:"rationale"`
	FreshnessDays int        `json:"freshness_days,omitempty"`
}

// PlannerStep is one decomposed sub-task and the queries that serve it.
type PlannerStep struct {
	Thought       string        `json:"thought"`
	SearchQueries []SearchQuery `json:"search_queries"`
	FollowUp      string        `json:"follow_up,omitempty"`
}

// =============================================================================
// EVIDENCE
// =============================================================================

// SearchResult is a single hit returned by a search provider.
type SearchResult struct {
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Snippet     string     `json:"snippet"`
	Score       float64    `json:"score"`
	SourceType  SourceType `json:"source_type"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// Document is the extracted text of one search result.
type Document struct {
	URL         string                 `json:"url"`
	Title       string                 `json:"title"`
	Text        string                 `json:"text"`
	SourceType  SourceType             `json:"source_type"`
	PublishedAt *time.Time             `json:"published_at,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// IsFallback reports whether the document was synthesized from a search snippet.
func (d Document) IsFallback() bool {
	v, _ := d.Metadata["fallback"].(bool)
	return v
}

// Chunk is an overlapping word window of a document.
type Chunk struct {
	ID          string     `json:"id"`
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Text        string     `json:"text"`
	Score       float64    `json:"score"`
	SourceType  SourceType `json:"source_type"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	StartWord   int        `json:"start_word"`
	EndWord     int        `json:"end_word"`
}

// =============================================================================
// ANSWERS
// =============================================================================

// Citation links a dense label to a source URL.
type Citation struct {
	Label       string     `json:"label"`
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	SourceType  SourceType `json:"source_type"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// AnswerBullet is one claim with its citation labels.
type AnswerBullet struct {
	Text      string   `json:"text"`
	Citations []string `json:"citations"`
}

// AnswerResponse is the final answer returned to callers.
type AnswerResponse struct {
	Question string                 `json:"question"`
	Bullets  []AnswerBullet         `json:"bullets"`
	Sources  []Citation             `json:"sources"`
	RunID    string                 `json:"run_id"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Severity of a validation issue.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// ValidationIssue is a single finding about an answer.
type ValidationIssue struct {
	Message       string   `json:"message"`
	Severity      Severity `json:"severity"`
	BulletIndex   *int     `json:"bullet_index,omitempty"`
	CitationLabel string   `json:"citation_label,omitempty"`
}

// ValidationReport summarises citation coverage of an answer.
type ValidationReport struct {
	Passed   bool              `json:"passed"`
	Coverage float64           `json:"coverage"`
	Issues   []ValidationIssue `json:"issues"`
}

// =============================================================================
// TELEMETRY
// =============================================================================

// SynthTrace records the raw generation output of one synthesis.
type SynthTrace struct {
	Draft        string         `json:"draft"`
	Refined      string         `json:"refined"`
	BulletCount  int            `json:"bullet_count"`
	UsedFallback bool           `json:"used_fallback"`
	Usage        map[string]int `json:"usage,omitempty"`
}

// RunTelemetry is the trace of one pipeline run. It is appended to by the
// orchestrating goroutine only.
type RunTelemetry struct {
	RunID           string                   `json:"run_id"`
	Question        string                   `json:"question"`
	PlannerSteps    []PlannerStep            `json:"planner_steps"`
	SearchResults   []SearchResult           `json:"search_results"`
	Documents       []Document               `json:"documents"`
	SelectedChunks  []Chunk                  `json:"selected_chunks"`
	Citations       []Citation               `json:"citations"`
	ValidatorReport *ValidationReport        `json:"validator_report,omitempty"`
	Hints           []string                 `json:"hints,omitempty"`
	Synth           SynthTrace               `json:"synth"`
	Durations       map[string]time.Duration `json:"durations"`
}

// NewRunTelemetry creates an empty trace for a run.
func NewRunTelemetry(runID, question string) *RunTelemetry {
	return &RunTelemetry{
		RunID:     runID,
		Question:  question,
		Durations: make(map[string]time.Duration),
	}
}

// =============================================================================
// HEURISTICS
// =============================================================================

// HeuristicType tags what a playbook item is for.
type HeuristicType string

const (
	HeuristicQueryRewrite   HeuristicType = "query_rewrite"
	HeuristicSourceRule     HeuristicType = "source_rule"
	HeuristicTemplateRule   HeuristicType = "template_rule"
	HeuristicValidationRule HeuristicType = "validation_rule"
)

// HeuristicItem is a persisted playbook rule.
type HeuristicItem struct {
	ID        string        `json:"id"`
	Type      HeuristicType `json:"type"`
	Content   string        `json:"content"`
	Helpful   int           `json:"helpful"`
	Harmful   int           `json:"harmful"`
	Tags      []string      `json:"tags"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// HasTag reports whether the item carries tag (case-insensitive).
func (h HeuristicItem) HasTag(tag string) bool {
	for _, t := range h.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// HeuristicDelta is a proposed playbook addition.
type HeuristicDelta struct {
	Item      HeuristicItem `json:"item"`
	Rationale string        `json:"rationale"`
	RunID     string        `json:"run_id"`
}

// Counter is a named running total.
type Counter struct {
	Key       string    `json:"key"`
	Value     int64     `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
