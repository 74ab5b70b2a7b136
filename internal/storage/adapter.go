// Package storage provides the durable key-value persistence behind the record store.
//
// Each declared source gets one physical sub-store holding records keyed by primary key.
// Three drivers exist: JSONL files (default), SQLite and in-process memory.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	dberrors "github.com/maruel/recdb/internal/errors"
	"github.com/maruel/recdb/internal/record"
	"github.com/maruel/recdb/internal/storage/sqlite"
)

// Adapter is a per-source key-value store. Record order returned by GetAll is not
// significant.
//
// Operations on an undeclared source fail with dberrors.ErrStoreNotFound; operations
// before Initialize fail with dberrors.ErrNotInitialized.
type Adapter interface {
	// Initialize creates one sub-store per source. It is idempotent.
	Initialize(ctx context.Context) error
	Get(ctx context.Context, source, key string) (record.Record, bool, error)
	GetAll(ctx context.Context, source string) ([]record.Record, error)
	Set(ctx context.Context, source, key string, rec record.Record) error
	Delete(ctx context.Context, source, key string) error
	Clear(ctx context.Context, source string) error
	Len(ctx context.Context, source string) (int, error)
	Close() error
}

// Driver identifies a storage backend.
type Driver string

// Storage drivers.
const (
	DriverJSONL  Driver = "jsonl"
	DriverSQLite Driver = "sqlite"
	DriverMemory Driver = "memory"
)

// ParseDriver validates a driver name. "" selects DriverJSONL.
func ParseDriver(s string) (Driver, error) {
	switch d := Driver(strings.ToLower(strings.TrimSpace(s))); d {
	case "":
		return DriverJSONL, nil
	case DriverJSONL, DriverSQLite, DriverMemory:
		return d, nil
	default:
		return "", fmt.Errorf("unknown storage driver %q", s)
	}
}

// Config selects and configures a driver.
type Config struct {
	Driver Driver
	// Dir is the data directory for the jsonl and sqlite drivers.
	Dir string
	// Sources lists the declared source identifiers.
	Sources []string
	Logger  *slog.Logger
}

// Open returns an uninitialized adapter for cfg.
func Open(ctx context.Context, cfg Config) (Adapter, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	driver, err := ParseDriver(string(cfg.Driver))
	if err != nil {
		return nil, err
	}
	switch driver {
	case DriverMemory:
		return NewMemory(cfg.Sources), nil
	case DriverSQLite:
		if cfg.Dir == "" {
			return nil, fmt.Errorf("sqlite driver requires a data directory")
		}
		s, err := sqlite.Open(ctx, filepath.Join(cfg.Dir, "recdb.sqlite"), cfg.Sources, cfg.Logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		if cfg.Dir == "" {
			return nil, fmt.Errorf("jsonl driver requires a data directory")
		}
		return NewFileStore(cfg.Dir, cfg.Sources, cfg.Logger), nil
	}
}

// checkSource returns the canonical error for an undeclared source.
func checkSource(known map[string]bool, source string) error {
	if !known[source] {
		return dberrors.StoreNotFound(source)
	}
	return nil
}

func sourceSet(sources []string) map[string]bool {
	m := make(map[string]bool, len(sources))
	for _, s := range sources {
		m[s] = true
	}
	return m
}
