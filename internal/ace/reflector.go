// Package ace implements the heuristic learning loop around the answer
// pipeline: the reflector critiques a finished run, the curator merges the
// resulting deltas into the playbook, and the service feeds stored
// heuristics back to the planner as hints.
package ace

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"askace/internal/logging"
	"askace/internal/types"
	"askace/internal/validate"

	"github.com/google/uuid"
)

// DefaultFreshnessBuffer is added to every per-source freshness limit.
const DefaultFreshnessBuffer = 2

// Freshness limits in days before the buffer is applied.
const (
	socialFreshnessDays  = 5
	newsFreshnessDays    = 10
	defaultFreshnessDays = 14
)

// coverageTokens maps a source to question words that imply it should
// appear in the results. Iterated in order so deltas come out stable.
var coverageTokens = []struct {
	source types.SourceType
	tokens []string
}{
	{types.SourceGitHub, []string{"git", "github", "repo"}},
	{types.SourceHuggingFace, []string{"huggingface", "model", "checkpoint"}},
	{types.SourceArxiv, []string{"paper", "arxiv", "research"}},
	{types.SourceNews, []string{"news", "launch", "latest"}},
	{types.SourceTwitter, []string{"twitter", "tweet", "x"}},
	{types.SourceReddit, []string{"reddit", "discussion", "thread"}},
}

var questionToken = regexp.MustCompile(`[a-z0-9]+`)

// Reflector turns one run's telemetry into proposed playbook deltas.
// It never touches the store.
type Reflector struct {
	bufferDays int
	now        func() time.Time
	suffix     func(n int) string
}

// NewReflector creates a reflector. A negative buffer means the default.
func NewReflector(bufferDays int) *Reflector {
	if bufferDays < 0 {
		bufferDays = DefaultFreshnessBuffer
	}
	return &Reflector{bufferDays: bufferDays, now: time.Now, suffix: randomHex}
}

// Critique runs the validation, freshness and coverage checks in that order.
func (r *Reflector) Critique(tel *types.RunTelemetry) []types.HeuristicDelta {
	if tel == nil {
		return nil
	}
	timer := logging.StartTimer(logging.CategoryACE, "Reflector.Critique")
	defer timer.Stop()

	var deltas []types.HeuristicDelta
	deltas = append(deltas, r.checkValidation(tel)...)
	deltas = append(deltas, r.checkFreshness(tel)...)
	deltas = append(deltas, r.checkCoverage(tel)...)

	logging.ACEDebug("Reflector proposed %d deltas for run %s", len(deltas), tel.RunID)
	return deltas
}

func (r *Reflector) checkValidation(tel *types.RunTelemetry) []types.HeuristicDelta {
	report := tel.ValidatorReport
	if report == nil || report.Passed || !validate.HasMissingCitation(*report) {
		return nil
	}
	item := types.HeuristicItem{
		ID:   "validation:" + r.suffix(8),
		Type: types.HeuristicValidationRule,
		Content: "Ensure every bullet references at least one snippet; " +
			"if evidence is weak, rerun retrieval with broader filters.",
		Helpful: 1,
		Tags:    []string{"validation", "citations"},
	}
	return []types.HeuristicDelta{{Item: item, Rationale: "Validation coverage below threshold.", RunID: tel.RunID}}
}

// FreshnessLimit returns the allowed citation age in days for source,
// excluding the buffer.
func FreshnessLimit(source types.SourceType) int {
	switch {
	case source.IsSocial():
		return socialFreshnessDays
	case source == types.SourceNews:
		return newsFreshnessDays
	default:
		return defaultFreshnessDays
	}
}

func (r *Reflector) checkFreshness(tel *types.RunTelemetry) []types.HeuristicDelta {
	now := r.now()
	stale := make(map[types.SourceType]int)
	for _, c := range tel.Citations {
		if c.PublishedAt == nil {
			continue
		}
		ageDays := int(now.Sub(*c.PublishedAt).Hours() / 24)
		if ageDays > FreshnessLimit(c.SourceType)+r.bufferDays {
			stale[c.SourceType]++
		}
	}

	var deltas []types.HeuristicDelta
	for _, source := range types.AllSourceTypes {
		count := stale[source]
		if count == 0 {
			continue
		}
		item := types.HeuristicItem{
			ID:   fmt.Sprintf("freshness:%s:%s", source, r.suffix(6)),
			Type: types.HeuristicQueryRewrite,
			Content: fmt.Sprintf("For %s sources, add 'sort:recent' or date filters when "+
				"question includes 'new' or 'latest'.", source),
			Helpful: count,
			Tags:    []string{string(source), "fresh"},
		}
		deltas = append(deltas, types.HeuristicDelta{
			Item:      item,
			Rationale: fmt.Sprintf("%d citation(s) exceeded freshness window.", count),
			RunID:     tel.RunID,
		})
	}
	return deltas
}

func (r *Reflector) checkCoverage(tel *types.RunTelemetry) []types.HeuristicDelta {
	present := make(map[types.SourceType]bool)
	for _, res := range tel.SearchResults {
		present[res.SourceType] = true
	}

	var deltas []types.HeuristicDelta
	for _, source := range ExpectedSources(tel.Question) {
		if present[source] {
			continue
		}
		item := types.HeuristicItem{
			ID:   fmt.Sprintf("coverage:%s:%s", source, r.suffix(6)),
			Type: types.HeuristicQueryRewrite,
			Content: fmt.Sprintf("When question mentions %s, add explicit site filter "+
				"for %s in the planner search queries.", source, source),
			Helpful: 1,
			Tags:    []string{string(source), "coverage"},
		}
		deltas = append(deltas, types.HeuristicDelta{
			Item:      item,
			Rationale: fmt.Sprintf("Planner missed %s coverage.", source),
			RunID:     tel.RunID,
		})
	}
	return deltas
}

// ExpectedSources lists the sources a question names through whole-word
// keywords, in a fixed order.
func ExpectedSources(question string) []types.SourceType {
	words := make(map[string]bool)
	for _, w := range questionToken.FindAllString(strings.ToLower(question), -1) {
		words[w] = true
	}
	var expected []types.SourceType
	for _, entry := range coverageTokens {
		for _, tok := range entry.tokens {
			if words[tok] {
				expected = append(expected, entry.source)
				break
			}
		}
	}
	return expected
}

func randomHex(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}
