// Package planner turns a question into sub-tasks and source-scoped search
// queries.
package planner

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"askace/internal/config"
	"askace/internal/llm"
	"askace/internal/logging"
	"askace/internal/metrics"
	"askace/internal/types"
)

const (
	DefaultMaxSteps = 3
	maxFocusTerms   = 6
	orGroupSize     = 8
	genericTask     = "Gather recent AI/ML updates relevant to the query."
	plannerSystem   = "You are a planning assistant that decomposes research questions " +
		"about AI/ML into focused search tasks. " +
		"Return 2-4 bullet points each describing a sub-task. " +
		"Keep bullets short."
)

// SourceLookup resolves per-source query settings. *config.SourceTable
// satisfies it.
type SourceLookup interface {
	Lookup(name string) (config.SourceConfig, bool)
}

// Planner decomposes questions. It holds its generation client for its
// whole lifetime.
type Planner struct {
	llm      llm.Client
	sources  SourceLookup
	maxSteps int
}

// New creates a planner. maxSteps <= 0 means DefaultMaxSteps.
func New(client llm.Client, sources SourceLookup, maxSteps int) *Planner {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	return &Planner{llm: client, sources: sources, maxSteps: maxSteps}
}

// Plan returns at most maxSteps steps. It never fails: generation errors fall
// back to focus-term tasks, and an empty decomposition to one generic task.
func (p *Planner) Plan(ctx context.Context, question string, hints []string) []types.PlannerStep {
	timer := logging.StartTimer(logging.CategoryPlanner, "Plan")
	defer timer.Stop()

	logging.Planner("Planning for question: %s", question)
	focus := FocusTerms(Tokenize(question))
	questionSources := MatchSourceTypes(question, true)

	tasks := p.subTasks(ctx, question, hints, focus)
	if len(tasks) > p.maxSteps {
		tasks = tasks[:p.maxSteps]
	}

	augmented := strings.Join(focus, " ")
	if augmented == "" {
		augmented = question
	}

	steps := make([]types.PlannerStep, 0, len(tasks))
	for idx, task := range tasks {
		var queries []types.SearchQuery
		for _, source := range effectiveSources(MatchSourceTypes(task, false), questionSources) {
			sc, ok := p.sources.Lookup(string(source))
			if !ok {
				continue
			}
			rewrite := ResolveRewrite(hints, task, question, source)
			for _, group := range orGroups(sc.QueryBase) {
				queries = append(queries, types.SearchQuery{
					Query:         joinNonEmpty(group, augmented, rewrite),
					SourceType:    source,
					Rationale:     fmt.Sprintf("Focus on %s sources for task: %s", source, task),
					FreshnessDays: sc.FreshnessDays,
				})
			}
		}
		steps = append(steps, types.PlannerStep{
			Thought:       fmt.Sprintf("Step %d: %s", idx+1, task),
			SearchQueries: queries,
		})
	}

	logging.PlannerDebug("Planned %d steps for %d sources", len(steps), len(questionSources))
	return steps
}

func (p *Planner) subTasks(ctx context.Context, question string, hints []string, focus []string) []string {
	var tasks []string

	user := "Question: " + question + "\n" + strings.Join(hints, "\n")
	resp, err := p.llm.Generate(ctx, []llm.Message{llm.System(plannerSystem), llm.User(user)}, llm.Options{Temperature: 0.2})
	if err != nil {
		logging.Get(logging.CategoryPlanner).Warn("Planner generation failed, falling back to focus terms: %v", err)
		for i, term := range focus {
			if i == 3 {
				break
			}
			tasks = append(tasks, "Investigate "+term)
		}
	} else {
		for k, v := range resp.Usage {
			metrics.LLMTokens.WithLabelValues(p.llm.Name(), k).Add(float64(v))
		}
		for _, line := range strings.Split(resp.Content, "\n") {
			if task := strings.TrimSpace(strings.Trim(line, "- ")); task != "" {
				tasks = append(tasks, task)
			}
		}
	}

	if len(tasks) == 0 {
		tasks = []string{genericTask}
	}
	return tasks
}

var tokenSplit = regexp.MustCompile(`[^a-z0-9]+`)

var focusStopwords = map[string]bool{
	"what": true, "whats": true, "new": true, "latest": true,
	"compare": true, "versus": true, "vs": true, "digest": true,
}

// Tokenize lowercases and splits on runs of non-alphanumerics.
func Tokenize(text string) []string {
	var tokens []string
	for _, t := range tokenSplit.Split(strings.ToLower(text), -1) {
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// FocusTerms keeps tokens longer than three characters that are not
// stopwords, in order, capped at six.
func FocusTerms(tokens []string) []string {
	var focus []string
	for _, t := range tokens {
		if len(t) <= 3 || focusStopwords[t] {
			continue
		}
		focus = append(focus, t)
		if len(focus) == maxFocusTerms {
			break
		}
	}
	return focus
}

// orGroups splits a base query on " OR " into groups of at most eight terms.
func orGroups(base string) []string {
	parts := strings.Split(base, " OR ")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	var groups []string
	for start := 0; start < len(parts); start += orGroupSize {
		end := start + orGroupSize
		if end > len(parts) {
			end = len(parts)
		}
		groups = append(groups, strings.Join(parts[start:end], " OR "))
	}
	return groups
}

func joinNonEmpty(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.TrimSpace(strings.Join(kept, " "))
}
