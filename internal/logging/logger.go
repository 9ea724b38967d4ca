// Package logging provides categorized logging for askace.
// Every pipeline stage logs under its own category so a single stage can be
// silenced or turned up without touching the others. Records are emitted
// through a shared zap logger; when nothing is installed the loggers are no-ops.
package logging

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot      Category = "boot"      // Startup and configuration
	CategoryPlanner   Category = "planner"   // Query planning
	CategorySearch    Category = "search"    // Search providers and aggregation
	CategoryFetch     Category = "fetch"     // Document acquisition
	CategoryExtract   Category = "extract"   // HTML to text extraction
	CategoryRank      Category = "rank"      // Retrieval ranking
	CategorySynth     Category = "synth"     // Answer synthesis
	CategoryValidate  Category = "validate"  // Citation validation
	CategoryPipeline  Category = "pipeline"  // Stage orchestration
	CategoryACE       Category = "ace"       // Reflector / curator loop
	CategoryStore     Category = "store"     // Heuristic store
	CategoryAPI       Category = "api"       // HTTP and MCP surfaces
	CategoryLLM       Category = "llm"       // Text generation clients
	CategoryEmbedding Category = "embedding" // Embedding and rerank engines
	CategoryScheduler Category = "scheduler" // Cron jobs
)

// Config controls the zap backend built by Initialize.
type Config struct {
	Level      string          `yaml:"level"`  // debug, info, warn, error
	Format     string          `yaml:"format"` // json, console
	Categories map[string]bool `yaml:"categories"`
}

// Logger is a category-scoped printf-style logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu         sync.RWMutex
	base       = zap.NewNop()
	categories map[string]bool
	loggers    = make(map[Category]*Logger)
)

// Initialize builds a zap production logger from cfg and installs it as the
// backend. Output goes to stderr so stdout stays free for answers and the
// MCP stdio channel.
func Initialize(cfg Config) error {
	zc, err := productionConfig(cfg)
	if err != nil {
		return err
	}
	l, err := zc.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	Install(l, cfg.Categories)
	return nil
}

func productionConfig(cfg Config) (zap.Config, error) {
	zc := zap.NewProductionConfig()
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.Format != "json" {
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return zc, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		zc.Level = zap.NewAtomicLevelAt(level)
	}
	return zc, nil
}

// Install replaces the backend logger. A nil logger disables output.
// categories optionally disables individual categories (missing = enabled).
func Install(l *zap.Logger, cats map[string]bool) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	defer mu.Unlock()
	base = l
	categories = cats
	loggers = make(map[Category]*Logger)
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	if categories == nil {
		return true
	}
	enabled, exists := categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if the category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category, sugar: zap.NewNop().Sugar()}
	}

	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	l := &Logger{category: category, sugar: base.Named(string(category)).Sugar()}
	loggers[category] = l
	return l
}

// Sync flushes the backend.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = base.Sync()
}

func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// WithContext returns a logger that attaches the given fields to every entry.
func (l *Logger) WithContext(fields map[string]interface{}) *Logger {
	kv := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	return &Logger{category: l.category, sugar: l.sugar.With(kv...)}
}

// =============================================================================
// CONVENIENCE FUNCTIONS
// =============================================================================

func Boot(format string, args ...interface{})          { Get(CategoryBoot).Info(format, args...) }
func Planner(format string, args ...interface{})       { Get(CategoryPlanner).Info(format, args...) }
func PlannerDebug(format string, args ...interface{})  { Get(CategoryPlanner).Debug(format, args...) }
func Search(format string, args ...interface{})        { Get(CategorySearch).Info(format, args...) }
func SearchDebug(format string, args ...interface{})   { Get(CategorySearch).Debug(format, args...) }
func FetchDebug(format string, args ...interface{})    { Get(CategoryFetch).Debug(format, args...) }
func RankDebug(format string, args ...interface{})     { Get(CategoryRank).Debug(format, args...) }
func Synth(format string, args ...interface{})         { Get(CategorySynth).Info(format, args...) }
func Pipeline(format string, args ...interface{})      { Get(CategoryPipeline).Info(format, args...) }
func PipelineDebug(format string, args ...interface{}) { Get(CategoryPipeline).Debug(format, args...) }
func ACE(format string, args ...interface{})           { Get(CategoryACE).Info(format, args...) }
func ACEDebug(format string, args ...interface{})      { Get(CategoryACE).Debug(format, args...) }
func Store(format string, args ...interface{})         { Get(CategoryStore).Info(format, args...) }
func StoreDebug(format string, args ...interface{})    { Get(CategoryStore).Debug(format, args...) }
func Embedding(format string, args ...interface{})     { Get(CategoryEmbedding).Info(format, args...) }
func EmbeddingDebug(format string, args ...interface{}) {
	Get(CategoryEmbedding).Debug(format, args...)
}

// =============================================================================
// TIMING HELPERS
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
