package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"askace/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// SourcesWatcher reloads a SourceTable when its backing file changes.
// It watches the parent directory so editors that replace the file on save
// are still picked up.
type SourcesWatcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	path        string
	table       *SourceTable
	debounceDur time.Duration
	pending     time.Time
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	reloads     int
}

// NewSourcesWatcher creates a watcher for path feeding table.
func NewSourcesWatcher(path string, table *SourceTable) (*SourcesWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &SourcesWatcher{
		watcher:     w,
		path:        abs,
		table:       table,
		debounceDur: 250 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking.
func (sw *SourcesWatcher) Start(ctx context.Context) error {
	sw.mu.Lock()
	if sw.running {
		sw.mu.Unlock()
		return nil
	}
	sw.running = true
	sw.mu.Unlock()

	if err := sw.watcher.Add(filepath.Dir(sw.path)); err != nil {
		logging.Get(logging.CategoryBoot).Warn("SourcesWatcher: watch %s failed: %v", sw.path, err)
		sw.mu.Lock()
		sw.running = false
		sw.mu.Unlock()
		return err
	}
	logging.Boot("SourcesWatcher: watching %s", sw.path)

	go sw.run(ctx)
	return nil
}

// Stop stops the watcher and waits for its loop to exit.
func (sw *SourcesWatcher) Stop() {
	sw.mu.Lock()
	if !sw.running {
		sw.mu.Unlock()
		_ = sw.watcher.Close()
		return
	}
	sw.running = false
	sw.mu.Unlock()

	close(sw.stopCh)
	<-sw.doneCh
	if err := sw.watcher.Close(); err != nil {
		logging.Get(logging.CategoryBoot).Error("SourcesWatcher: close: %v", err)
	}
}

// Reloads returns how many successful reloads happened.
func (sw *SourcesWatcher) Reloads() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.reloads
}

func (sw *SourcesWatcher) run(ctx context.Context) {
	defer close(sw.doneCh)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sw.stopCh:
			return
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != sw.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			sw.mu.Lock()
			sw.pending = time.Now()
			sw.mu.Unlock()
		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryBoot).Error("SourcesWatcher error: %v", err)
		case <-ticker.C:
			sw.reloadIfSettled()
		}
	}
}

func (sw *SourcesWatcher) reloadIfSettled() {
	sw.mu.Lock()
	if sw.pending.IsZero() || time.Since(sw.pending) < sw.debounceDur {
		sw.mu.Unlock()
		return
	}
	sw.pending = time.Time{}
	sw.mu.Unlock()

	sources, err := LoadSources(sw.path)
	if err != nil {
		logging.Get(logging.CategoryBoot).Warn("SourcesWatcher: reload failed, keeping previous table: %v", err)
		return
	}
	sw.table.Replace(sources)

	sw.mu.Lock()
	sw.reloads++
	sw.mu.Unlock()
}
