// Package store persists ACE playbook items and loop counters in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"askace/internal/logging"
	"askace/internal/types"

	_ "modernc.org/sqlite"
)

// PlaybookStore is the SQLite-backed heuristic store.
// Writes are serialized by mu inside one process only; separate processes
// sharing a database file are last-write-wins.
type PlaybookStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
	now    func() time.Time
}

// NewPlaybookStore opens (creating if needed) the database at path.
// ":memory:" gives a private in-memory store.
func NewPlaybookStore(path string) (*PlaybookStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewPlaybookStore")
	defer timer.Stop()

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}

	s := &PlaybookStore{db: db, dbPath: path, now: time.Now}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	logging.Store("Playbook store ready at %s", path)
	return s, nil
}

func (s *PlaybookStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS playbook_items (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		content TEXT NOT NULL,
		helpful INTEGER DEFAULT 0,
		harmful INTEGER DEFAULT 0,
		tags TEXT DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_playbook_helpful ON playbook_items(helpful);
	CREATE TABLE IF NOT EXISTS counters (
		key TEXT PRIMARY KEY,
		value INTEGER NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *PlaybookStore) Close() error {
	return s.db.Close()
}

// Upsert inserts or replaces an item by id. created_at is kept on update.
func (s *PlaybookStore) Upsert(ctx context.Context, item types.HeuristicItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO playbook_items (id, type, content, helpful, harmful, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type=excluded.type,
			content=excluded.content,
			helpful=excluded.helpful,
			harmful=excluded.harmful,
			tags=excluded.tags,
			updated_at=excluded.updated_at`,
		item.ID, string(item.Type), item.Content, item.Helpful, item.Harmful,
		strings.Join(item.Tags, ","),
		item.CreatedAt.Format(time.RFC3339Nano), item.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", item.ID, err)
	}
	logging.StoreDebug("Upserted playbook item %s", item.ID)
	return nil
}

// List returns items sorted by helpful desc, optionally filtered by a tag
// substring. Ties keep insertion order.
func (s *PlaybookStore) List(ctx context.Context, tag string) ([]types.HeuristicItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows *sql.Rows
	var err error
	if tag != "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, type, content, helpful, harmful, tags, created_at, updated_at
			 FROM playbook_items WHERE tags LIKE ? ORDER BY helpful DESC, rowid ASC`, "%"+tag+"%")
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, type, content, helpful, harmful, tags, created_at, updated_at
			 FROM playbook_items ORDER BY helpful DESC, rowid ASC`)
	}
	if err != nil {
		return nil, fmt.Errorf("list playbook: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

// SearchByKeywords returns up to limit items whose content contains any
// keyword. No keywords falls back to the top of List.
func (s *PlaybookStore) SearchByKeywords(ctx context.Context, keywords []string, limit int) ([]types.HeuristicItem, error) {
	if len(keywords) == 0 {
		items, err := s.List(ctx, "")
		if err != nil {
			return nil, err
		}
		if len(items) > limit {
			items = items[:limit]
		}
		return items, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	clauses := make([]string, len(keywords))
	args := make([]interface{}, 0, len(keywords)+1)
	for i, kw := range keywords {
		clauses[i] = "content LIKE ?"
		args = append(args, "%"+kw+"%")
	}
	args = append(args, limit)

	query := fmt.Sprintf(
		`SELECT id, type, content, helpful, harmful, tags, created_at, updated_at
		 FROM playbook_items WHERE %s ORDER BY helpful DESC, rowid ASC LIMIT ?`,
		strings.Join(clauses, " OR "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search playbook: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

// RecordCounter sets a named counter to value.
func (s *PlaybookStore) RecordCounter(ctx context.Context, key string, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO counters (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		key, value, s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record counter %s: %w", key, err)
	}
	return nil
}

// Counter returns a counter; a missing key reads as zero.
func (s *PlaybookStore) Counter(ctx context.Context, key string) (types.Counter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value int64
	var updated string
	err := s.db.QueryRowContext(ctx, `SELECT value, updated_at FROM counters WHERE key = ?`, key).Scan(&value, &updated)
	if err == sql.ErrNoRows {
		return types.Counter{Key: key}, nil
	}
	if err != nil {
		return types.Counter{}, fmt.Errorf("read counter %s: %w", key, err)
	}
	ts, _ := time.Parse(time.RFC3339Nano, updated)
	return types.Counter{Key: key, Value: value, UpdatedAt: ts}, nil
}

// Stats returns row counts per table.
func (s *PlaybookStore) Stats(ctx context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]int64)
	for _, table := range []string{"playbook_items", "counters"} {
		var n int64
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		stats[table] = n
	}
	return stats, nil
}

func scanItems(rows *sql.Rows) ([]types.HeuristicItem, error) {
	var items []types.HeuristicItem
	for rows.Next() {
		var (
			item             types.HeuristicItem
			typ, tags        string
			created, updated string
		)
		if err := rows.Scan(&item.ID, &typ, &item.Content, &item.Helpful, &item.Harmful, &tags, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan playbook item: %w", err)
		}
		item.Type = types.HeuristicType(typ)
		item.Tags = splitTags(tags)
		item.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		item.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		items = append(items, item)
	}
	return items, rows.Err()
}

func splitTags(csv string) []string {
	tags := []string{}
	for _, t := range strings.Split(csv, ",") {
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
