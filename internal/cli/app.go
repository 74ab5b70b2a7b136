// Opens the store described by the global flags.

package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maruel/recdb/internal/history"
	"github.com/maruel/recdb/internal/metrics"
	"github.com/maruel/recdb/internal/schema"
	"github.com/maruel/recdb/internal/storage"
	"github.com/maruel/recdb/internal/store"
)

// app bundles an initialized store and its collaborators for one command.
type app struct {
	reg     *schema.Registry
	store   *store.Store
	metrics *metrics.Metrics
	journal *history.Journal
	driver  storage.Driver
	path    string
}

func loadRegistry(opts *RootOptions) (*schema.Registry, string, error) {
	var cfg *schema.Config
	var path string
	var err error
	if opts.Config != "" {
		cfg, path, err = schema.LoadFromPath(opts.Config)
	} else {
		cfg, path, err = schema.Load()
	}
	if err != nil {
		return nil, path, err
	}
	reg, err := schema.NewRegistry(cfg)
	if err != nil {
		return nil, path, err
	}
	return reg, path, nil
}

// openApp loads the registry, opens the adapter and initializes the store.
func openApp(ctx context.Context, opts *RootOptions) (*app, error) {
	reg, path, err := loadRegistry(opts)
	if err != nil {
		return nil, err
	}
	name := opts.Driver
	if name == "" {
		name = reg.Config().Storage.Driver
	}
	driver, err := storage.ParseDriver(name)
	if err != nil {
		return nil, err
	}
	var seeds schema.Seeds
	if opts.SeedDir != "" {
		seeds, err = schema.LoadSeedDir(opts.SeedDir, reg)
	} else {
		seeds, err = schema.DefaultSeeds(reg)
	}
	if err != nil {
		return nil, err
	}
	adapter, err := storage.Open(ctx, storage.Config{Driver: driver, Dir: opts.DataDir, Sources: reg.IDs(), Logger: slog.Default()})
	if err != nil {
		return nil, err
	}
	a := &app{reg: reg, metrics: metrics.New(), driver: driver, path: path}
	sopts := store.Options{Seeds: seeds, Logger: slog.Default(), Metrics: a.metrics}
	if opts.Journal {
		if driver != storage.DriverJSONL {
			_ = adapter.Close()
			return nil, fmt.Errorf("--journal requires the jsonl driver, got %s", driver)
		}
		if a.journal, err = history.Open(opts.DataDir, "recdb", "recdb@localhost", slog.Default()); err != nil {
			_ = adapter.Close()
			return nil, err
		}
		sopts.Journal = a.journal.Listener()
	}
	a.store = store.New(reg, adapter, sopts)
	if err := a.store.Initialize(ctx); err != nil {
		_ = adapter.Close()
		return nil, err
	}
	if a.journal != nil {
		if err := a.journal.Snapshot(ctx, "initialize"); err != nil {
			_ = a.store.Close()
			return nil, err
		}
	}
	slog.DebugContext(ctx, "Opened store", "config", path, "driver", string(driver), "dir", opts.DataDir)
	return a, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// withApp runs fn against an opened store and closes it afterwards.
func withApp(ctx context.Context, opts *RootOptions, fn func(a *app) error) error {
	a, err := openApp(ctx, opts)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	return fn(a)
}
