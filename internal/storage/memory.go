package storage

import (
	"context"
	"sync"

	dberrors "github.com/maruel/recdb/internal/errors"
	"github.com/maruel/recdb/internal/record"
)

// Memory is an in-process Adapter. Contents are lost on Close.
type Memory struct {
	known map[string]bool

	mu     sync.RWMutex
	init   bool
	bucket map[string]map[string]record.Record

	// failures injects errors per operation name ("set", "delete", "clear", "init").
	failures map[string]error
}

// NewMemory returns an uninitialized in-memory adapter.
func NewMemory(sources []string) *Memory {
	return &Memory{known: sourceSet(sources)}
}

// FailOn makes the named operation return err until called again with nil.
func (m *Memory) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures == nil {
		m.failures = map[string]error{}
	}
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

// Initialize creates one bucket per source.
func (m *Memory) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures["init"]; err != nil {
		return err
	}
	if m.init {
		return nil
	}
	m.bucket = make(map[string]map[string]record.Record, len(m.known))
	for s := range m.known {
		m.bucket[s] = map[string]record.Record{}
	}
	m.init = true
	return nil
}

func (m *Memory) check(ctx context.Context, source string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkSource(m.known, source); err != nil {
		return err
	}
	if !m.init {
		return dberrors.NotInitialized()
	}
	return nil
}

// Get returns the record stored under key.
func (m *Memory) Get(ctx context.Context, source, key string) (record.Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(ctx, source); err != nil {
		return nil, false, err
	}
	r, ok := m.bucket[source][key]
	return r.Clone(), ok, nil
}

// GetAll returns every record of a source.
func (m *Memory) GetAll(ctx context.Context, source string) ([]record.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(ctx, source); err != nil {
		return nil, err
	}
	out := make([]record.Record, 0, len(m.bucket[source]))
	for _, r := range m.bucket[source] {
		out = append(out, r.Clone())
	}
	return out, nil
}

// Set stores rec under key.
func (m *Memory) Set(ctx context.Context, source, key string, rec record.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx, source); err != nil {
		return err
	}
	if err := m.failures["set"]; err != nil {
		return dberrors.Storage(source, err)
	}
	m.bucket[source][key] = rec.Clone()
	return nil
}

// Delete removes key.
func (m *Memory) Delete(ctx context.Context, source, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx, source); err != nil {
		return err
	}
	if err := m.failures["delete"]; err != nil {
		return dberrors.Storage(source, err)
	}
	delete(m.bucket[source], key)
	return nil
}

// Clear empties a source.
func (m *Memory) Clear(ctx context.Context, source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx, source); err != nil {
		return err
	}
	if err := m.failures["clear"]; err != nil {
		return dberrors.Storage(source, err)
	}
	m.bucket[source] = map[string]record.Record{}
	return nil
}

// Len returns the number of records of a source.
func (m *Memory) Len(ctx context.Context, source string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(ctx, source); err != nil {
		return 0, err
	}
	return len(m.bucket[source]), nil
}

// Close drops every bucket.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bucket = nil
	m.init = false
	return nil
}
