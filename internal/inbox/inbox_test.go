package inbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/maruel/recdb/internal/codec"
	"github.com/maruel/recdb/internal/store"
)

type fakeImporter struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeImporter) ImportData(_ context.Context, id string, data []byte, format codec.Format) (store.ImportResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, id+"."+string(format))
	f.mu.Unlock()
	recs, err := codec.Decode(format, data)
	if err != nil {
		return store.ImportResult{}, err
	}
	return store.ImportResult{Source: id, Imported: len(recs)}, nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0
	}
	if err != nil {
		t.Fatal(err)
	}
	return len(entries)
}

func TestRoute(t *testing.T) {
	in := New(&fakeImporter{}, Config{Dir: t.TempDir(), Sources: []string{"users", "relations"}})
	tests := []struct {
		name   string
		source string
		format codec.Format
		ok     bool
	}{
		{"users.csv", "users", codec.CSV, true},
		{"relations.JSON", "relations", codec.JSON, true},
		{"users.yml", "users", codec.YAML, true},
		{"users.json.tmp", "", "", false},
		{"ghosts.json", "", "", false},
		{".json", "", "", false},
		{"users", "", "", false},
	}
	for _, tt := range tests {
		source, format, ok := in.Route(tt.name)
		if source != tt.source || format != tt.format || ok != tt.ok {
			t.Errorf("Route(%q) = %q, %q, %v", tt.name, source, format, ok)
		}
	}
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	imp := &fakeImporter{}
	in := New(imp, Config{Dir: dir, Sources: []string{"users", "relations"}, Interval: time.Millisecond})
	writeFile(t, filepath.Join(dir, "users.csv"), "userId,userName\nU1,Ann\nU2,Ben\n")
	writeFile(t, filepath.Join(dir, "relations.json"), "[{")
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")

	results, err := in.Scan(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("Scan() = %+v", results)
	}
	// ReadDir sorts by name.
	if results[0].Source != "relations" || results[0].Err == nil {
		t.Errorf("relations result = %+v", results[0])
	}
	if results[1].Source != "users" || results[1].Err != nil || results[1].Import.Imported != 2 {
		t.Errorf("users result = %+v", results[1])
	}
	if n := countFiles(t, filepath.Join(dir, ProcessedDir)); n != 1 {
		t.Errorf("processed = %d", n)
	}
	if n := countFiles(t, filepath.Join(dir, FailedDir)); n != 1 {
		t.Errorf("failed = %d", n)
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Errorf("unrelated file touched: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "users.csv")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("users.csv not moved: %v", err)
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	staging := t.TempDir()
	results := make(chan Result, 10)
	in := New(&fakeImporter{}, Config{
		Dir:      dir,
		Sources:  []string{"users"},
		Debounce: 20 * time.Millisecond,
		Interval: time.Millisecond,
		OnResult: func(r Result) { results <- r },
	})
	writeFile(t, filepath.Join(dir, "users.json"), `[{"userId":"U1"}]`)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- in.Run(ctx) }()

	wait := func() Result {
		t.Helper()
		select {
		case r := <-results:
			return r
		case err := <-done:
			t.Fatalf("Run() returned early: %v", err)
		case <-time.After(10 * time.Second):
			t.Fatal("timed out waiting for import")
		}
		return Result{}
	}
	if r := wait(); r.Err != nil || r.Import.Imported != 1 {
		t.Fatalf("existing file = %+v", r)
	}

	src := filepath.Join(staging, "users.yaml")
	writeFile(t, src, "- userId: U1\n- userId: U2\n")
	if err := os.Rename(src, filepath.Join(dir, "users.yaml")); err != nil {
		t.Fatal(err)
	}
	if r := wait(); r.Err != nil || r.Format != codec.YAML || r.Import.Imported != 2 {
		t.Fatalf("dropped file = %+v", r)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v", err)
	}
	if n := countFiles(t, filepath.Join(dir, ProcessedDir)); n != 2 {
		t.Errorf("processed = %d", n)
	}
}
