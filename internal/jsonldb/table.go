// Package jsonldb stores rows as one JSON document per line.
//
// A Table keeps every row in memory, indexed by key. New rows are appended to the file;
// updates and deletions rewrite it.
package jsonldb

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// KeyFunc extracts the key of a row. Rows with an empty key are rejected.
type KeyFunc[T any] func(T) string

// Table handles storage and in-memory caching for a single table in JSONL format.
type Table[T any] struct {
	path  string
	keyOf KeyFunc[T]

	mu    sync.RWMutex
	rows  []T
	index map[string]int
}

// NewTable creates a new Table and loads all data from the file.
func NewTable[T any](path string, keyOf KeyFunc[T]) (*Table[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	table := &Table[T]{path: path, keyOf: keyOf}
	if err := table.load(); err != nil {
		return nil, err
	}
	return table, nil
}

// Path returns the file backing the table.
func (t *Table[T]) Path() string {
	return t.path
}

func (t *Table[T]) load() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = nil
	t.index = map[string]int{}

	f, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open table file %s: %w", t.path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var row T
		if err := json.Unmarshal(line, &row); err != nil {
			return fmt.Errorf("failed to unmarshal row %d in %s: %w", lineNo, t.path, err)
		}
		key := t.keyOf(row)
		if key == "" {
			return fmt.Errorf("row %d in %s has no key", lineNo, t.path)
		}
		// A later line for the same key supersedes the earlier one.
		if i, ok := t.index[key]; ok {
			t.rows[i] = row
			continue
		}
		t.index[key] = len(t.rows)
		t.rows = append(t.rows, row)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read table file %s: %w", t.path, err)
	}
	return nil
}

// Len returns the number of rows.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// All returns a copy of all rows in insertion order.
func (t *Table[T]) All() []T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rows := make([]T, len(t.rows))
	copy(rows, t.rows)
	return rows
}

// Get returns the row stored under key.
func (t *Table[T]) Get(key string) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	i, ok := t.index[key]
	if !ok {
		var zero T
		return zero, false
	}
	return t.rows[i], true
}

// Set inserts or replaces the row with the same key and persists it.
func (t *Table[T]) Set(row T) error {
	key := t.keyOf(row)
	if key == "" {
		return fmt.Errorf("failed to set row in %s: empty key", t.path)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if i, ok := t.index[key]; ok {
		rows := make([]T, len(t.rows))
		copy(rows, t.rows)
		rows[i] = row
		return t.write(rows)
	}
	if err := t.append(row); err != nil {
		return err
	}
	t.index[key] = len(t.rows)
	t.rows = append(t.rows, row)
	return nil
}

// Delete removes the row stored under key. It reports whether a row was removed.
func (t *Table[T]) Delete(key string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, ok := t.index[key]
	if !ok {
		return false, nil
	}
	rows := make([]T, 0, len(t.rows)-1)
	rows = append(rows, t.rows[:i]...)
	rows = append(rows, t.rows[i+1:]...)
	if err := t.write(rows); err != nil {
		return false, err
	}
	return true, nil
}

// Replace replaces all rows with the provided slice and persists it.
func (t *Table[T]) Replace(rows []T) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.write(rows)
}

// Clear removes every row.
func (t *Table[T]) Clear() error {
	return t.Replace(nil)
}

func (t *Table[T]) append(row T) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to marshal row: %w", err)
	}
	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open table file for append: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	return nil
}

// write rewrites the file atomically then swaps the in-memory rows. Must be called with
// t.mu held.
func (t *Table[T]) write(rows []T) error {
	index := make(map[string]int, len(rows))
	deduped := make([]T, 0, len(rows))
	for _, row := range rows {
		key := t.keyOf(row)
		if key == "" {
			return fmt.Errorf("failed to write %s: row without key", t.path)
		}
		if i, ok := index[key]; ok {
			deduped[i] = row
			continue
		}
		index[key] = len(deduped)
		deduped = append(deduped, row)
	}

	tmp := t.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create table file: %w", err)
	}
	defer func() {
		_ = f.Close()
		_ = os.Remove(tmp)
	}()
	writer := bufio.NewWriter(f)
	for _, row := range deduped {
		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("failed to marshal row: %w", err)
		}
		if _, err := writer.Write(data); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("failed to write newline: %w", err)
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close table file: %w", err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		return fmt.Errorf("failed to replace table file: %w", err)
	}
	t.rows = deduped
	t.index = index
	return nil
}
