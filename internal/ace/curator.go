package ace

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"askace/internal/logging"
	"askace/internal/metrics"
	"askace/internal/types"
)

// DuplicateThreshold is the word-set similarity above which two items of
// the same type are considered the same heuristic.
const DuplicateThreshold = 0.8

// Counter keys maintained by the curator.
const (
	CounterProposed = "deltas_proposed"
	CounterMerged   = "deltas_merged"
)

// Store is the persistence the loop needs. *store.PlaybookStore satisfies it.
type Store interface {
	Upsert(ctx context.Context, item types.HeuristicItem) error
	List(ctx context.Context, tag string) ([]types.HeuristicItem, error)
	SearchByKeywords(ctx context.Context, keywords []string, limit int) ([]types.HeuristicItem, error)
	RecordCounter(ctx context.Context, key string, value int64) error
}

// counterReader lets the curator resume running totals from a store that
// can read counters back.
type counterReader interface {
	Counter(ctx context.Context, key string) (types.Counter, error)
}

// Curator merges deltas into the store, dropping duplicates.
type Curator struct {
	store Store

	mu       sync.Mutex
	loaded   bool
	proposed int64
	merged   int64
}

// NewCurator creates a curator over store.
func NewCurator(store Store) *Curator {
	return &Curator{store: store}
}

// Merge persists every non-duplicate delta and returns the accepted items in
// input order. A delta is a duplicate of an existing item with the same id,
// or of one with the same type whose content is too similar. Items accepted
// earlier in the batch count as existing.
func (c *Curator) Merge(ctx context.Context, deltas []types.HeuristicDelta) ([]types.HeuristicItem, error) {
	if len(deltas) == 0 {
		return nil, nil
	}
	timer := logging.StartTimer(logging.CategoryACE, "Curator.Merge")
	defer timer.Stop()

	existing, err := c.store.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("load playbook: %w", err)
	}

	var merged []types.HeuristicItem
	for _, delta := range deltas {
		if dup, ok := findDuplicate(delta.Item, existing); ok {
			logging.ACEDebug("Skipping duplicate delta %s (matches %s)", delta.Item.ID, dup.ID)
			continue
		}
		if err := c.store.Upsert(ctx, delta.Item); err != nil {
			c.recordCounters(ctx, len(deltas), len(merged))
			return merged, fmt.Errorf("merge delta %s: %w", delta.Item.ID, err)
		}
		merged = append(merged, delta.Item)
		existing = append(existing, delta.Item)
	}

	c.recordCounters(ctx, len(deltas), len(merged))
	logging.ACE("Curator merged %d of %d playbook deltas", len(merged), len(deltas))
	return merged, nil
}

func (c *Curator) recordCounters(ctx context.Context, proposed, merged int) {
	metrics.DeltasProposed.Add(float64(proposed))
	metrics.DeltasMerged.Add(float64(merged))

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		c.loadCounters(ctx)
	}
	c.proposed += int64(proposed)
	c.merged += int64(merged)

	if err := c.store.RecordCounter(ctx, CounterProposed, c.proposed); err != nil {
		logging.Get(logging.CategoryACE).Warn("Failed to record %s: %v", CounterProposed, err)
	}
	if err := c.store.RecordCounter(ctx, CounterMerged, c.merged); err != nil {
		logging.Get(logging.CategoryACE).Warn("Failed to record %s: %v", CounterMerged, err)
	}
}

// loadCounters must be called with mu held.
func (c *Curator) loadCounters(ctx context.Context) {
	c.loaded = true
	reader, ok := c.store.(counterReader)
	if !ok {
		return
	}
	if p, err := reader.Counter(ctx, CounterProposed); err == nil {
		c.proposed = p.Value
	}
	if m, err := reader.Counter(ctx, CounterMerged); err == nil {
		c.merged = m.Value
	}
}

func findDuplicate(candidate types.HeuristicItem, existing []types.HeuristicItem) (types.HeuristicItem, bool) {
	for _, item := range existing {
		if item.ID == candidate.ID {
			return item, true
		}
		if item.Type == candidate.Type && ContentSimilarity(item.Content, candidate.Content) > DuplicateThreshold {
			return item, true
		}
	}
	return types.HeuristicItem{}, false
}

var contentWord = regexp.MustCompile(`[a-z0-9]+`)

// ContentSimilarity is the Jaccard index of the two texts' word sets.
// Words are lowercase alphanumeric runs with a plural "s" folded away, so
// "sort:recent" and "sort: recent" or "model" and "models" compare equal.
func ContentSimilarity(a, b string) float64 {
	setA, setB := wordSet(a), wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for w := range setA {
		if setB[w] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func wordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range contentWord.FindAllString(strings.ToLower(text), -1) {
		if len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") {
			w = w[:len(w)-1]
		}
		set[w] = true
	}
	return set
}
