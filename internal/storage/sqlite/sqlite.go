// Package sqlite stores records in a SQLite database, one table per source.
//
// Each table has the shape (key TEXT PRIMARY KEY, payload TEXT) where payload is the
// record encoded as JSON.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	dberrors "github.com/maruel/recdb/internal/errors"
	"github.com/maruel/recdb/internal/record"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Store is a SQLite-backed record adapter.
type Store struct {
	db     *sql.DB
	path   string
	known  map[string]bool
	logger *slog.Logger

	mu    sync.Mutex
	ready bool
	locks map[string]*sync.Mutex
}

// Open opens or creates the database at path. Tables are created by Initialize.
func Open(ctx context.Context, path string, sources []string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := applyPragmas(ctx, db, path); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	s := &Store{
		db:     db,
		path:   path,
		known:  make(map[string]bool, len(sources)),
		logger: logger,
		locks:  make(map[string]*sync.Mutex, len(sources)),
	}
	for _, src := range sources {
		s.known[src] = true
		s.locks[src] = &sync.Mutex{}
	}
	return s, nil
}

func applyPragmas(ctx context.Context, db *sql.DB, path string) error {
	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	if path != ":memory:" {
		pragmas = append([]string{"PRAGMA journal_mode = WAL"}, pragmas...)
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// tableName quotes the table identifier of a source.
func tableName(source string) string {
	return `"records_` + strings.ReplaceAll(source, `"`, `""`) + `"`
}

// Path returns the database path.
func (s *Store) Path() string { return s.path }

// DB exposes the underlying sql.DB.
func (s *Store) DB() *sql.DB { return s.db }

// Initialize creates the table of every source. It is idempotent.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	for src := range s.known {
		q := `CREATE TABLE IF NOT EXISTS ` + tableName(src) + ` (
			key TEXT PRIMARY KEY,
			payload TEXT NOT NULL
		)`
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table %s: %w", src, err)
		}
	}
	s.ready = true
	s.logger.DebugContext(ctx, "SQLite store ready", "path", s.path, "sources", len(s.known))
	return nil
}

// lock serializes operations on one source and checks preconditions.
func (s *Store) lock(ctx context.Context, source string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.known[source] {
		return nil, dberrors.StoreNotFound(source)
	}
	s.mu.Lock()
	ready := s.ready
	s.mu.Unlock()
	if !ready {
		return nil, dberrors.NotInitialized()
	}
	m := s.locks[source]
	m.Lock()
	return m.Unlock, nil
}

// Get returns the record stored under key.
func (s *Store) Get(ctx context.Context, source, key string) (record.Record, bool, error) {
	unlock, err := s.lock(ctx, source)
	if err != nil {
		return nil, false, err
	}
	defer unlock()
	var payload string
	err = s.db.QueryRowContext(ctx, `SELECT payload FROM `+tableName(source)+` WHERE key = ?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, dberrors.Storage(source, err)
	}
	rec, err := decode(payload)
	if err != nil {
		return nil, false, dberrors.Storage(source, err)
	}
	return rec, true, nil
}

// GetAll returns every record of a source in insertion order.
func (s *Store) GetAll(ctx context.Context, source string) ([]record.Record, error) {
	unlock, err := s.lock(ctx, source)
	if err != nil {
		return nil, err
	}
	defer unlock()
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM `+tableName(source)+` ORDER BY rowid`)
	if err != nil {
		return nil, dberrors.Storage(source, err)
	}
	defer func() { _ = rows.Close() }()
	var out []record.Record
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, dberrors.Storage(source, fmt.Errorf("scan: %w", err))
		}
		rec, err := decode(payload)
		if err != nil {
			return nil, dberrors.Storage(source, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, dberrors.Storage(source, err)
	}
	return out, nil
}

// Set upserts rec under key.
func (s *Store) Set(ctx context.Context, source, key string, rec record.Record) error {
	unlock, err := s.lock(ctx, source)
	if err != nil {
		return err
	}
	defer unlock()
	data, err := json.Marshal(rec)
	if err != nil {
		return dberrors.Storage(source, fmt.Errorf("encode: %w", err))
	}
	q := `INSERT INTO ` + tableName(source) + `(key, payload) VALUES(?, ?) ON CONFLICT(key) DO UPDATE SET payload = excluded.payload`
	if _, err := s.db.ExecContext(ctx, q, key, string(data)); err != nil {
		return dberrors.Storage(source, fmt.Errorf("upsert %s: %w", key, err))
	}
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, source, key string) error {
	unlock, err := s.lock(ctx, source)
	if err != nil {
		return err
	}
	defer unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM `+tableName(source)+` WHERE key = ?`, key); err != nil {
		return dberrors.Storage(source, err)
	}
	return nil
}

// Clear removes every record of a source.
func (s *Store) Clear(ctx context.Context, source string) error {
	unlock, err := s.lock(ctx, source)
	if err != nil {
		return err
	}
	defer unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM `+tableName(source)); err != nil {
		return dberrors.Storage(source, err)
	}
	return nil
}

// Len returns the number of records of a source.
func (s *Store) Len(ctx context.Context, source string) (int, error) {
	unlock, err := s.lock(ctx, source)
	if err != nil {
		return 0, err
	}
	defer unlock()
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+tableName(source)).Scan(&n); err != nil {
		return 0, dberrors.Storage(source, err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = false
	return s.db.Close()
}

func decode(payload string) (record.Record, error) {
	var rec record.Record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return rec, nil
}
