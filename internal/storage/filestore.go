package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	dberrors "github.com/maruel/recdb/internal/errors"
	"github.com/maruel/recdb/internal/jsonldb"
	"github.com/maruel/recdb/internal/record"
)

// row is the on-disk form of one record.
type row struct {
	Key   string        `json:"key"`
	Value record.Record `json:"value"`
}

func rowKey(r row) string { return r.Key }

// FileStore keeps one JSONL file per source under a data directory:
//
//	<dir>/<source>.jsonl
//
// Files survive restarts; the whole table is held in memory.
type FileStore struct {
	dir    string
	known  map[string]bool
	logger *slog.Logger

	mu     sync.Mutex
	tables map[string]*jsonldb.Table[row]
}

// NewFileStore returns an uninitialized FileStore rooted at dir.
func NewFileStore(dir string, sources []string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{dir: dir, known: sourceSet(sources), logger: logger}
}

// Dir returns the data directory.
func (fs *FileStore) Dir() string {
	return fs.dir
}

// Path returns the file backing a source.
func (fs *FileStore) Path(source string) string {
	return filepath.Join(fs.dir, source+".jsonl")
}

// Initialize loads or creates the table of every source.
func (fs *FileStore) Initialize(ctx context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.tables != nil {
		return nil
	}
	if err := os.MkdirAll(fs.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	tables := make(map[string]*jsonldb.Table[row], len(fs.known))
	for source := range fs.known {
		if err := ctx.Err(); err != nil {
			return err
		}
		t, err := jsonldb.NewTable(fs.Path(source), rowKey)
		if err != nil {
			return fmt.Errorf("failed to open table %s: %w", source, err)
		}
		tables[source] = t
		fs.logger.DebugContext(ctx, "Loaded table", "source", source, "rows", t.Len())
	}
	fs.tables = tables
	return nil
}

func (fs *FileStore) table(ctx context.Context, source string) (*jsonldb.Table[row], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkSource(fs.known, source); err != nil {
		return nil, err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.tables == nil {
		return nil, dberrors.NotInitialized()
	}
	return fs.tables[source], nil
}

// Get returns the record stored under key.
func (fs *FileStore) Get(ctx context.Context, source, key string) (record.Record, bool, error) {
	t, err := fs.table(ctx, source)
	if err != nil {
		return nil, false, err
	}
	r, ok := t.Get(key)
	if !ok {
		return nil, false, nil
	}
	return r.Value.Clone(), true, nil
}

// GetAll returns every record of a source.
func (fs *FileStore) GetAll(ctx context.Context, source string) ([]record.Record, error) {
	t, err := fs.table(ctx, source)
	if err != nil {
		return nil, err
	}
	rows := t.All()
	out := make([]record.Record, len(rows))
	for i, r := range rows {
		out[i] = r.Value.Clone()
	}
	return out, nil
}

// Set stores rec under key.
func (fs *FileStore) Set(ctx context.Context, source, key string, rec record.Record) error {
	t, err := fs.table(ctx, source)
	if err != nil {
		return err
	}
	if err := t.Set(row{Key: key, Value: rec.Clone()}); err != nil {
		return dberrors.Storage(source, err)
	}
	return nil
}

// Delete removes key. A missing key is not an error.
func (fs *FileStore) Delete(ctx context.Context, source, key string) error {
	t, err := fs.table(ctx, source)
	if err != nil {
		return err
	}
	if _, err := t.Delete(key); err != nil {
		return dberrors.Storage(source, err)
	}
	return nil
}

// Clear removes every record of a source.
func (fs *FileStore) Clear(ctx context.Context, source string) error {
	t, err := fs.table(ctx, source)
	if err != nil {
		return err
	}
	if err := t.Clear(); err != nil {
		return dberrors.Storage(source, err)
	}
	return nil
}

// Len returns the number of records of a source.
func (fs *FileStore) Len(ctx context.Context, source string) (int, error) {
	t, err := fs.table(ctx, source)
	if err != nil {
		return 0, err
	}
	return t.Len(), nil
}

// Close releases the tables. Every write is already on disk.
func (fs *FileStore) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.tables = nil
	return nil
}
