// Package history keeps a git journal of a JSONL data directory.
//
// Every store change becomes one commit, so the content of any source can be traced
// back through `recdb history` or plain git tooling.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/maruel/recdb/internal/store"
)

// Commit is one journal entry.
type Commit struct {
	Hash    string    `json:"hash"`
	Message string    `json:"message"`
	Author  string    `json:"author"`
	When    time.Time `json:"when"`
}

// Journal commits the data directory of a file store.
type Journal struct {
	dir    string
	name   string
	email  string
	logger *slog.Logger

	mu   sync.Mutex
	repo *gogit.Repository
}

// Open opens the git repository at dir, creating it when needed.
func Open(dir, name, email string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: data directory
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		if repo, err = gogit.PlainInit(dir, false); err != nil {
			return nil, fmt.Errorf("failed to initialize git repo: %w", err)
		}
		cfg, err := repo.Config()
		if err != nil {
			return nil, fmt.Errorf("failed to read git config: %w", err)
		}
		cfg.User.Name = name
		cfg.User.Email = email
		if err := repo.SetConfig(cfg); err != nil {
			return nil, fmt.Errorf("failed to write git config: %w", err)
		}
	}
	return &Journal{dir: dir, name: name, email: email, logger: logger, repo: repo}, nil
}

// Dir returns the journaled directory.
func (j *Journal) Dir() string {
	return j.dir
}

// Listener returns a store listener committing after every change.
func (j *Journal) Listener() store.Listener {
	return func(c store.Change) error {
		return j.Snapshot(context.Background(), Message(c))
	}
}

// Snapshot stages every change of the directory and commits it with msg. A clean tree
// creates no commit.
func (j *Journal) Snapshot(ctx context.Context, msg string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	w, err := j.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	if err := w.AddWithOptions(&gogit.AddOptions{All: true}); err != nil {
		return fmt.Errorf("failed to stage files: %w", err)
	}
	status, err := w.Status()
	if err != nil {
		return fmt.Errorf("failed to get worktree status: %w", err)
	}
	if status.IsClean() {
		return nil
	}
	sig := &object.Signature{Name: j.name, Email: j.email, When: time.Now()}
	hash, err := w.Commit(msg, &gogit.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	j.logger.DebugContext(ctx, "Committed", "hash", hash.String()[:12], "msg", msg)
	return nil
}

// History returns the most recent commits touching a source, newest first. n <= 0
// means 100. An empty repository has no history.
func (j *Journal) History(_ context.Context, source string, n int) ([]Commit, error) {
	if n <= 0 {
		n = 100
	}
	opts := &gogit.LogOptions{}
	if source != "" {
		name := source + ".jsonl"
		opts.FileName = &name
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.repo.Head(); err != nil {
		return nil, nil
	}
	iter, err := j.repo.Log(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	defer iter.Close()
	var out []Commit
	for range n {
		c, err := iter.Next()
		if err != nil {
			break
		}
		subject, _, _ := strings.Cut(c.Message, "\n")
		out = append(out, Commit{
			Hash:    c.Hash.String(),
			Message: subject,
			Author:  c.Author.Name,
			When:    c.Author.When,
		})
	}
	return out, nil
}

// Message describes a change as a one-line commit subject.
func Message(c store.Change) string {
	switch c.Action {
	case store.ActionImport:
		return fmt.Sprintf("%s: import %d records", c.Source, len(c.Records))
	case store.ActionClear:
		return fmt.Sprintf("%s: clear", c.Source)
	default:
		return fmt.Sprintf("%s: %s %s", c.Source, c.Action, c.Key)
	}
}
