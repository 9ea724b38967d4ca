package logging

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func installObserver(t *testing.T, cats map[string]bool) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	Install(zap.New(core), cats)
	t.Cleanup(func() { Install(nil, nil) })
	return logs
}

func TestGetNamesLoggerAfterCategory(t *testing.T) {
	logs := installObserver(t, nil)

	Get(CategoryPlanner).Info("planned %d steps", 3)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].LoggerName != "planner" {
		t.Errorf("LoggerName = %q, want planner", entries[0].LoggerName)
	}
	if entries[0].Message != "planned 3 steps" {
		t.Errorf("Message = %q", entries[0].Message)
	}
}

func TestDisabledCategoryIsSilent(t *testing.T) {
	logs := installObserver(t, map[string]bool{"search": false})

	Search("dropped")
	Planner("kept")

	if logs.Len() != 1 {
		t.Fatalf("entries = %d, want 1", logs.Len())
	}
	if logs.All()[0].LoggerName != "planner" {
		t.Errorf("unexpected entry from %q", logs.All()[0].LoggerName)
	}
}

func TestWithContextAttachesFields(t *testing.T) {
	logs := installObserver(t, nil)

	Get(CategoryPipeline).WithContext(map[string]interface{}{"run_id": "r1"}).Warn("slow")

	entry := logs.All()[0]
	if entry.Level != zapcore.WarnLevel {
		t.Errorf("Level = %v, want warn", entry.Level)
	}
	if got := entry.ContextMap()["run_id"]; got != "r1" {
		t.Errorf("run_id = %v, want r1", got)
	}
}

func TestTimerStopWithThresholdWarns(t *testing.T) {
	logs := installObserver(t, nil)

	timer := StartTimer(CategoryRank, "Rank")
	timer.start = timer.start.Add(-time.Second)
	timer.StopWithThreshold(10 * time.Millisecond)

	if logs.FilterLevelExact(zapcore.WarnLevel).Len() != 1 {
		t.Fatalf("expected one warning, got %v", logs.All())
	}
}

func TestInitializeRejectsUnknownLevel(t *testing.T) {
	if err := Initialize(Config{Level: "chatty"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestProductionConfigHonoursFormatAndLevel(t *testing.T) {
	zc, err := productionConfig(Config{Level: "DEBUG", Format: "console"})
	if err != nil {
		t.Fatalf("productionConfig: %v", err)
	}
	if zc.Encoding != "console" {
		t.Errorf("Encoding = %q, want console", zc.Encoding)
	}
	if zc.Level.Level() != zapcore.DebugLevel {
		t.Errorf("Level = %v, want debug", zc.Level.Level())
	}
	if len(zc.OutputPaths) != 1 || zc.OutputPaths[0] != "stderr" {
		t.Errorf("OutputPaths = %v, want [stderr]", zc.OutputPaths)
	}

	zc, err = productionConfig(Config{Format: "json"})
	if err != nil {
		t.Fatalf("productionConfig: %v", err)
	}
	if zc.Encoding != "json" || zc.Level.Level() != zapcore.InfoLevel {
		t.Errorf("json defaults = %q/%v", zc.Encoding, zc.Level.Level())
	}
}

func TestInitializeInstallsBackend(t *testing.T) {
	t.Cleanup(func() { Install(nil, nil) })
	if err := Initialize(Config{Level: "warn", Format: "json", Categories: map[string]bool{"rank": false}}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if IsCategoryEnabled(CategoryRank) {
		t.Error("rank should be disabled")
	}
	if !IsCategoryEnabled(CategorySynth) {
		t.Error("synth should stay enabled")
	}
	Sync()
}
