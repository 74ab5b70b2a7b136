// Package inbox imports files dropped into a watched directory.
//
// A file named <source>.<format> (users.csv, relations.json, ...) replaces the content of
// that source. Imported files move to processed/, files that fail to parse move to
// failed/. Other files are left alone.
package inbox

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/maruel/recdb/internal/codec"
	"github.com/maruel/recdb/internal/store"
)

// Sub-directories receiving handled files.
const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// Importer replaces a source with decoded data. *store.Store implements it.
type Importer interface {
	ImportData(ctx context.Context, id string, data []byte, format codec.Format) (store.ImportResult, error)
}

// Config configures an Inbox.
type Config struct {
	// Dir is the watched directory.
	Dir string
	// Sources lists the source identifiers accepted as file names.
	Sources []string
	// Debounce delays an import until writes to a file stop. Defaults to 500ms.
	Debounce time.Duration
	// Interval is the minimum delay between two imports. Defaults to 250ms.
	Interval time.Duration
	Logger   *slog.Logger
	// OnResult, when set, is called after every handled file.
	OnResult func(Result)
}

// Result describes one handled file.
type Result struct {
	Path   string
	Source string
	Format codec.Format
	Import store.ImportResult
	// Err is set when the file could not be read or imported.
	Err error
	// Moved is where the file ended up.
	Moved string
}

// Inbox watches a directory and feeds its files to an Importer.
type Inbox struct {
	imp      Importer
	cfg      Config
	limiter  *rate.Limiter
	logger   *slog.Logger
	debounce time.Duration
}

// New returns an Inbox. Call Run to start watching.
func New(imp Importer, cfg Config) *Inbox {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 250 * time.Millisecond
	}
	return &Inbox{
		imp:      imp,
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Every(cfg.Interval), 1),
		logger:   cfg.Logger,
		debounce: cfg.Debounce,
	}
}

// Route maps a file name to its source and format.
func (in *Inbox) Route(name string) (string, codec.Format, bool) {
	ext := filepath.Ext(name)
	if ext == "" || strings.HasPrefix(name, ".") {
		return "", "", false
	}
	format, err := codec.ParseFormat(ext[1:])
	if err != nil {
		return "", "", false
	}
	source := strings.TrimSuffix(name, ext)
	if !slices.Contains(in.cfg.Sources, source) {
		return "", "", false
	}
	return source, format, true
}

// ProcessFile imports one file. It returns false when the file is not an inbox file or
// no longer exists.
func (in *Inbox) ProcessFile(ctx context.Context, path string) (Result, bool) {
	source, format, ok := in.Route(filepath.Base(path))
	if !ok {
		return Result{}, false
	}
	fi, err := os.Stat(path)
	if err != nil || !fi.Mode().IsRegular() {
		return Result{}, false
	}
	if err := in.limiter.Wait(ctx); err != nil {
		return Result{}, false
	}
	res := Result{Path: path, Source: source, Format: format}
	data, err := os.ReadFile(path)
	if err != nil {
		res.Err = fmt.Errorf("failed to read %s: %w", path, err)
		return res, true
	}
	res.Import, res.Err = in.imp.ImportData(ctx, source, data, format)
	dest := ProcessedDir
	if res.Err != nil {
		dest = FailedDir
		in.logger.WarnContext(ctx, "Inbox import failed", "file", path, "err", res.Err)
	} else {
		in.logger.InfoContext(ctx, "Inbox import", "file", path, "source", source, "imported", res.Import.Imported, "skipped", len(res.Import.Skipped))
	}
	moved, err := in.move(path, dest)
	if err != nil {
		in.logger.ErrorContext(ctx, "Failed to move inbox file", "file", path, "err", err)
		if res.Err == nil {
			res.Err = err
		}
	}
	res.Moved = moved
	if in.cfg.OnResult != nil {
		in.cfg.OnResult(res)
	}
	return res, true
}

// move renames path into a sub-directory, prefixing the name with a timestamp so
// repeated drops of the same file do not collide.
func (in *Inbox) move(path, sub string) (string, error) {
	dir := filepath.Join(in.cfg.Dir, sub)
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: inbox directory
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	dest := filepath.Join(dir, time.Now().UTC().Format("20060102-150405.000000")+"-"+filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		return "", fmt.Errorf("failed to move %s: %w", path, err)
	}
	return dest, nil
}

// Scan processes the files already present in the directory, in name order.
func (in *Inbox) Scan(ctx context.Context) ([]Result, error) {
	entries, err := os.ReadDir(in.cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read inbox: %w", err)
	}
	var out []Result
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if res, ok := in.ProcessFile(ctx, filepath.Join(in.cfg.Dir, e.Name())); ok {
			out = append(out, res)
		}
	}
	return out, nil
}

// Run processes existing files then watches the directory until ctx is canceled.
func (in *Inbox) Run(ctx context.Context) error {
	if err := os.MkdirAll(in.cfg.Dir, 0o755); err != nil { //nolint:gosec // G301: inbox directory
		return fmt.Errorf("failed to create inbox: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()
	if err := watcher.Add(in.cfg.Dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", in.cfg.Dir, err)
	}
	in.logger.InfoContext(ctx, "Watching inbox", "dir", in.cfg.Dir, "sources", in.cfg.Sources)
	if _, err := in.Scan(ctx); err != nil {
		return err
	}

	ready := make(chan string)
	timers := map[string]*time.Timer{}
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if _, _, ok := in.Route(filepath.Base(event.Name)); !ok {
				continue
			}
			path := event.Name
			if t, ok := timers[path]; ok {
				t.Stop()
			}
			timers[path] = time.AfterFunc(in.debounce, func() {
				select {
				case ready <- path:
				case <-ctx.Done():
				}
			})
		case path := <-ready:
			delete(timers, path)
			in.ProcessFile(ctx, path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			in.logger.WarnContext(ctx, "Watcher error", "err", err)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
