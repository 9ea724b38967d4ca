package ace

import (
	"context"
	"sort"
	"strings"
	"sync"

	"askace/internal/logging"
	"askace/internal/types"
)

// HintLimit is the default number of playbook items handed to the planner.
const HintLimit = 5

// Runner executes one question. *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, req types.QueryRequest, hints []string) (*types.AnswerResponse, *types.RunTelemetry, error)
}

// Service wires generation, reflection and curation into one answer call.
type Service struct {
	runner    Runner
	store     Store
	reflector *Reflector
	curator   *Curator
	hintLimit int

	// writeMu keeps curation of concurrent runs from interleaving.
	writeMu sync.Mutex
}

// NewService creates the loop around runner and store.
func NewService(runner Runner, store Store, reflector *Reflector) *Service {
	if reflector == nil {
		reflector = NewReflector(DefaultFreshnessBuffer)
	}
	return &Service{
		runner:    runner,
		store:     store,
		reflector: reflector,
		curator:   NewCurator(store),
		hintLimit: HintLimit,
	}
}

// SetHintLimit changes how many hints are retrieved per question.
func (s *Service) SetHintLimit(n int) {
	if n > 0 {
		s.hintLimit = n
	}
}

// Generate retrieves hints for the question and runs the pipeline with them.
func (s *Service) Generate(ctx context.Context, req types.QueryRequest) (*types.AnswerResponse, *types.RunTelemetry, error) {
	var hints []string
	if req.WantsPlaybook() {
		hints = s.Hints(ctx, req.Question)
	}
	return s.runner.Run(ctx, req, hints)
}

// Hints returns the content of the stored heuristics matching the
// question's keywords. Store errors yield no hints.
func (s *Service) Hints(ctx context.Context, question string) []string {
	items, err := s.store.SearchByKeywords(ctx, Keywords(question), s.hintLimit)
	if err != nil {
		logging.Get(logging.CategoryACE).Warn("Playbook lookup failed: %v", err)
		return nil
	}
	hints := make([]string, 0, len(items))
	for _, item := range items {
		hints = append(hints, item.Content)
	}
	logging.ACEDebug("Retrieved %d playbook hints for question", len(hints))
	return hints
}

// Answer runs the question and feeds the run back into the playbook. The
// answer's metadata gains an "ace" entry listing proposed and merged delta
// ids. Curation failures are logged and never fail the answer.
func (s *Service) Answer(ctx context.Context, req types.QueryRequest) (*types.AnswerResponse, error) {
	timer := logging.StartTimer(logging.CategoryACE, "Service.Answer")
	defer timer.Stop()

	answer, tel, err := s.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	deltas := s.reflector.Critique(tel)

	s.writeMu.Lock()
	merged, err := s.curator.Merge(ctx, deltas)
	s.writeMu.Unlock()
	if err != nil {
		logging.Get(logging.CategoryACE).Error("Curation failed for run %s: %v", tel.RunID, err)
	}

	if answer.Metadata == nil {
		answer.Metadata = make(map[string]interface{})
	}
	answer.Metadata["ace"] = map[string][]string{
		"deltas_proposed": deltaIDs(deltas),
		"deltas_merged":   itemIDs(merged),
	}
	return answer, nil
}

// ListHeuristics returns stored items, most helpful first, optionally
// filtered by tag.
func (s *Service) ListHeuristics(ctx context.Context, tag string) ([]types.HeuristicItem, error) {
	return s.store.List(ctx, tag)
}

// Keywords returns the distinct lowercase words of question longer than
// three characters, sorted.
func Keywords(question string) []string {
	seen := make(map[string]bool)
	var words []string
	for _, w := range strings.Fields(strings.ToLower(question)) {
		if len(w) <= 3 || seen[w] {
			continue
		}
		seen[w] = true
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

func deltaIDs(deltas []types.HeuristicDelta) []string {
	ids := make([]string, 0, len(deltas))
	for _, d := range deltas {
		ids = append(ids, d.Item.ID)
	}
	return ids
}

func itemIDs(items []types.HeuristicItem) []string {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	return ids
}
