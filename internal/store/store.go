// Package store is the entity store: an in-memory cache per source kept in sync with a
// durable storage.Adapter, with validation, search, references, change notification and
// bulk transfer.
//
// Every mutation follows the same path: validate, write the adapter, update the cache,
// notify listeners. Nothing reaches the cache before the durable write succeeded.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/maruel/ksid"
	dberrors "github.com/maruel/recdb/internal/errors"
	"github.com/maruel/recdb/internal/metrics"
	"github.com/maruel/recdb/internal/record"
	"github.com/maruel/recdb/internal/schema"
	"github.com/maruel/recdb/internal/storage"
)

var errStoreClosed = errors.New("store is closed")

// Options configures a Store.
type Options struct {
	// Seeds populates sources that are empty at initialization.
	Seeds schema.Seeds
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Metrics is optional.
	Metrics *metrics.Metrics
	// Journal, when set, is registered as the first listener.
	Journal Listener
}

// Store is safe for concurrent use.
type Store struct {
	reg     *schema.Registry
	adapter storage.Adapter
	seeds   schema.Seeds
	logger  *slog.Logger
	metrics *metrics.Metrics

	initMu      sync.Mutex
	initialized bool
	closed      bool
	ready       chan struct{}
	readyOnce   sync.Once

	// writers serializes validate, write, cache update and notify per source.
	writers   map[string]*sync.Mutex
	cache     *cache
	listeners listenerSet
}

// New returns an uninitialized store over adapter. Call Initialize before use.
func New(reg *schema.Registry, adapter storage.Adapter, opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	pk := map[string]string{}
	writers := map[string]*sync.Mutex{}
	for _, id := range reg.IDs() {
		src, _ := reg.Source(id)
		pk[id] = src.PrimaryKey
		writers[id] = &sync.Mutex{}
	}
	s := &Store{
		reg:     reg,
		adapter: adapter,
		seeds:   opts.Seeds,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		ready:   make(chan struct{}),
		writers: writers,
		cache:   newCache(pk),
	}
	if opts.Journal != nil {
		s.AddListener(opts.Journal)
	}
	return s
}

// Registry returns the schema registry.
func (s *Store) Registry() *schema.Registry {
	return s.reg
}

// Ready is closed once Initialize succeeded. It stays closed after Close; operations on a
// closed store fail with dberrors.ErrNotInitialized.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Initialize opens the adapter, seeds empty sources and loads every cache. Calling it
// again after success is a no-op. On failure the store stays unusable and the error
// matches dberrors.ErrInitialization.
func (s *Store) Initialize(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.closed {
		return dberrors.Initialization(errStoreClosed)
	}
	if s.initialized {
		return nil
	}
	start := time.Now()
	if err := s.adapter.Initialize(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Failed to initialize storage", "err", err)
		return dberrors.Initialization(err)
	}
	for _, id := range s.reg.IDs() {
		if err := s.seed(ctx, id); err != nil {
			return dberrors.Initialization(err)
		}
		if err := s.load(ctx, id); err != nil {
			return dberrors.Initialization(err)
		}
	}
	s.initialized = true
	s.readyOnce.Do(func() { close(s.ready) })
	s.logger.InfoContext(ctx, "Store ready", "sources", len(s.reg.IDs()), "dur", time.Since(start).Round(time.Millisecond))
	return nil
}

// seed writes the seed records of an empty source.
func (s *Store) seed(ctx context.Context, id string) error {
	recs := s.seeds[id]
	if len(recs) == 0 {
		return nil
	}
	n, err := s.adapter.Len(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to count %s: %w", id, err)
	}
	if n != 0 {
		return nil
	}
	src, _ := s.reg.Source(id)
	written := 0
	for _, rec := range recs {
		key, ok := rec.Key(src.PrimaryKey)
		if !ok {
			s.logger.WarnContext(ctx, "Skipping seed without primary key", "source", id)
			continue
		}
		if err := s.adapter.Set(ctx, id, key, rec.Clone().Normalize()); err != nil {
			return fmt.Errorf("failed to seed %s: %w", id, err)
		}
		written++
	}
	s.logger.InfoContext(ctx, "Seeded source", "source", id, "records", written)
	return nil
}

// load fills the cache of a source from the adapter.
func (s *Store) load(ctx context.Context, id string) error {
	recs, err := s.adapter.GetAll(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", id, err)
	}
	for _, r := range recs {
		r.Normalize()
	}
	s.cache.set(id, recs)
	s.metrics.SetRecords(id, len(recs))
	return nil
}

// source resolves a declared source and checks the store is initialized.
func (s *Store) source(id string) (*schema.Source, error) {
	src, ok := s.reg.Source(id)
	if !ok {
		return nil, dberrors.StoreNotFound(id)
	}
	s.initMu.Lock()
	initialized := s.initialized
	s.initMu.Unlock()
	if !initialized {
		return nil, dberrors.NotInitialized()
	}
	return src, nil
}

func (s *Store) lock(id string) func() {
	m := s.writers[id]
	m.Lock()
	return m.Unlock
}

// observe records metrics for one operation.
func (s *Store) observe(ctx context.Context, id, op string, start time.Time, err error) {
	s.metrics.Observe(ctx, id, op, err, time.Since(start))
	var verr *dberrors.ValidationError
	if errors.As(err, &verr) {
		s.metrics.ValidationFailed(id)
	}
}

// SourceConfig returns the declaration of a source.
func (s *Store) SourceConfig(id string) (*schema.Source, error) {
	src, ok := s.reg.Source(id)
	if !ok {
		return nil, dberrors.StoreNotFound(id)
	}
	return src, nil
}

// FieldType returns the formatting tag of a field, "text" when undeclared or when the
// source is unknown.
func (s *Store) FieldType(id, field string) string {
	src, ok := s.reg.Source(id)
	if !ok {
		return record.FormatText
	}
	return src.FieldType(field)
}

// FieldValidation returns the declared rule of a field, or the zero rule.
func (s *Store) FieldValidation(id, field string) schema.Rule {
	src, ok := s.reg.Source(id)
	if !ok {
		return schema.Rule{}
	}
	return src.Rule(field)
}

// NewKey generates a fresh primary key for a source: its idPrefix followed by a
// time-sortable identifier.
func (s *Store) NewKey(id string) (string, error) {
	src, err := s.SourceConfig(id)
	if err != nil {
		return "", err
	}
	return src.IDPrefix + ksid.NewID().String(), nil
}

// GetAll returns copies of every record of a source in cache order.
func (s *Store) GetAll(ctx context.Context, id string) ([]record.Record, error) {
	if _, err := s.source(id); err != nil {
		return nil, err
	}
	if recs, ok := s.cache.all(id); ok {
		return recs, nil
	}
	unlock := s.lock(id)
	defer unlock()
	if !s.cache.loaded(id) {
		if err := s.load(ctx, id); err != nil {
			return nil, err
		}
	}
	recs, _ := s.cache.all(id)
	return recs, nil
}

// GetRecord returns the record with the given primary key. A cache miss falls back to
// the adapter and repairs the cache.
func (s *Store) GetRecord(ctx context.Context, id, key string) (record.Record, error) {
	if _, err := s.source(id); err != nil {
		return nil, err
	}
	if rec, ok := s.cache.find(id, key); ok {
		return rec, nil
	}
	rec, ok, err := s.adapter.Get(ctx, id, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, dberrors.NotFound(id, key)
	}
	rec.Normalize()
	s.logger.DebugContext(ctx, "Repaired cache from storage", "source", id, "key", key)
	s.cache.put(id, rec)
	return rec.Clone(), nil
}

// lookup finds a record in the cache, then in the adapter. Must be called with the
// source writer lock held.
func (s *Store) lookup(ctx context.Context, id, key string) (record.Record, bool, error) {
	if rec, ok := s.cache.find(id, key); ok {
		return rec, true, nil
	}
	rec, ok, err := s.adapter.Get(ctx, id, key)
	if err != nil || !ok {
		return nil, false, err
	}
	return rec.Normalize(), true, nil
}

// AddRecord validates and stores a new record. An existing key fails with
// dberrors.ErrDuplicateKey.
func (s *Store) AddRecord(ctx context.Context, id string, rec record.Record) (_ record.Record, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, id, "add", start, err) }()
	src, err := s.source(id)
	if err != nil {
		return nil, err
	}
	rec = rec.Clone().Normalize()
	if err := Validate(src, rec); err != nil {
		return nil, err
	}
	key, _ := rec.Key(src.PrimaryKey)

	unlock := s.lock(id)
	defer unlock()
	if _, exists, err := s.lookup(ctx, id, key); err != nil {
		return nil, err
	} else if exists {
		return nil, dberrors.DuplicateKey(id, key)
	}
	if err := s.adapter.Set(ctx, id, key, rec); err != nil {
		return nil, fmt.Errorf("failed to add %s %q: %w", id, key, err)
	}
	s.cache.put(id, rec)
	s.metrics.SetRecords(id, s.cache.len(id))
	s.logger.DebugContext(ctx, "Added record", "source", id, "key", key)
	s.notify(ctx, Change{Source: id, Action: ActionAdd, Record: rec, Key: key})
	return rec.Clone(), nil
}

// UpdateRecord merges patch over the existing record with the same primary key,
// validates the result and stores it in place. A missing key fails with
// dberrors.ErrNotFound.
func (s *Store) UpdateRecord(ctx context.Context, id string, patch record.Record) (_ record.Record, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, id, "update", start, err) }()
	src, err := s.source(id)
	if err != nil {
		return nil, err
	}
	key, ok := patch.Key(src.PrimaryKey)
	if !ok {
		verr := &dberrors.ValidationError{Source: id}
		verr.Add(src.PrimaryKey, fmt.Sprintf("%s is required", src.PrimaryKey))
		return nil, verr
	}
	patch = patch.Clone().Normalize()

	unlock := s.lock(id)
	defer unlock()
	existing, exists, err := s.lookup(ctx, id, key)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, dberrors.NotFound(id, key)
	}
	merged := existing.Merge(patch)
	if err := Validate(src, merged); err != nil {
		return nil, err
	}
	if err := s.adapter.Set(ctx, id, key, merged); err != nil {
		return nil, fmt.Errorf("failed to update %s %q: %w", id, key, err)
	}
	s.cache.put(id, merged)
	s.logger.DebugContext(ctx, "Updated record", "source", id, "key", key)
	s.notify(ctx, Change{Source: id, Action: ActionUpdate, Record: merged, Key: key})
	return merged.Clone(), nil
}

// DeleteRecord removes the record with the given key. Deleting a missing key is a no-op
// and notifies nobody.
func (s *Store) DeleteRecord(ctx context.Context, id, key string) (err error) {
	start := time.Now()
	defer func() { s.observe(ctx, id, "delete", start, err) }()
	if _, err := s.source(id); err != nil {
		return err
	}
	unlock := s.lock(id)
	defer unlock()
	existing, exists, err := s.lookup(ctx, id, key)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	if err := s.adapter.Delete(ctx, id, key); err != nil {
		return fmt.Errorf("failed to delete %s %q: %w", id, key, err)
	}
	s.cache.remove(id, key)
	s.metrics.SetRecords(id, s.cache.len(id))
	s.logger.DebugContext(ctx, "Deleted record", "source", id, "key", key)
	s.notify(ctx, Change{Source: id, Action: ActionDelete, Record: existing, Key: key})
	return nil
}

// Clear removes every record of a source.
func (s *Store) Clear(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { s.observe(ctx, id, "clear", start, err) }()
	if _, err := s.source(id); err != nil {
		return err
	}
	unlock := s.lock(id)
	defer unlock()
	if err := s.adapter.Clear(ctx, id); err != nil {
		return fmt.Errorf("failed to clear %s: %w", id, err)
	}
	s.cache.set(id, nil)
	s.metrics.SetRecords(id, 0)
	s.logger.InfoContext(ctx, "Cleared source", "source", id)
	s.notify(ctx, Change{Source: id, Action: ActionClear})
	return nil
}

// ClearAll clears every source, stopping at the first failure.
func (s *Store) ClearAll(ctx context.Context) error {
	for _, id := range s.reg.IDs() {
		if err := s.Clear(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Close drops every listener and closes the adapter. It is terminal: Initialize fails
// afterwards. Calling it again is a no-op.
func (s *Store) Close() error {
	s.initMu.Lock()
	if s.closed {
		s.initMu.Unlock()
		return nil
	}
	s.closed = true
	s.initialized = false
	s.initMu.Unlock()
	s.listeners.clear()
	s.cache.reset()
	return s.adapter.Close()
}
