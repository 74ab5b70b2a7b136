package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/maruel/recdb/internal/record"
)

// Action names the kind of change delivered to listeners.
type Action string

// Change actions.
const (
	ActionAdd    Action = "add"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionImport Action = "import"
	ActionClear  Action = "clear"
)

// Change describes one completed mutation.
type Change struct {
	Source string
	Action Action
	// Record is the stored record for add and update, the removed one for delete.
	Record record.Record
	// Key is the primary key of the affected record; empty for import and clear.
	Key string
	// Records is the new content of the source after an import.
	Records []record.Record
}

// Listener receives changes. A returned error is logged and otherwise ignored.
//
// Listeners run synchronously while the source that changed is locked for writing: they
// may read any source but must not mutate the source that notified them.
type Listener func(Change) error

// Subscription is the handle of a registered listener.
type Subscription struct {
	set *listenerSet
	id  uint64
}

// Close unregisters the listener. It is safe to call more than once.
func (s *Subscription) Close() {
	if s == nil || s.set == nil {
		return
	}
	s.set.remove(s.id)
}

type listenerEntry struct {
	id uint64
	fn Listener
}

type listenerSet struct {
	mu      sync.Mutex
	nextID  uint64
	entries []listenerEntry
}

func (l *listenerSet) add(fn Listener) *Subscription {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	l.entries = append(l.entries, listenerEntry{id: l.nextID, fn: fn})
	return &Subscription{set: l, id: l.nextID}
}

func (l *listenerSet) remove(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range l.entries {
		if e.id == id {
			l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
			return
		}
	}
}

func (l *listenerSet) snapshot() []listenerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]listenerEntry(nil), l.entries...)
}

func (l *listenerSet) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *listenerSet) clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// AddListener registers fn for every subsequent change of any source.
func (s *Store) AddListener(fn Listener) *Subscription {
	return s.listeners.add(fn)
}

// RemoveListener unregisters a listener. Unknown or closed subscriptions are ignored.
func (s *Store) RemoveListener(sub *Subscription) {
	sub.Close()
}

// notify delivers c to every listener in registration order. Failures are isolated.
func (s *Store) notify(ctx context.Context, c Change) {
	for _, e := range s.listeners.snapshot() {
		if err := s.deliver(e.fn, c); err != nil {
			s.metrics.ListenerFailed(c.Source)
			s.logger.WarnContext(ctx, "Listener failed", "source", c.Source, "action", string(c.Action), "err", err)
		}
	}
}

func (s *Store) deliver(fn Listener, c Change) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panicked: %v", r)
		}
	}()
	c.Record = c.Record.Clone()
	if c.Records != nil {
		recs := make([]record.Record, len(c.Records))
		for i, r := range c.Records {
			recs[i] = r.Clone()
		}
		c.Records = recs
	}
	return fn(c)
}
