package store

import (
	"sync"

	"github.com/maruel/recdb/internal/record"
)

// cache holds the ordered records of every source. It is the single read path for
// queries and mirrors the adapter once a source is loaded.
type cache struct {
	mu      sync.RWMutex
	records map[string][]record.Record
	// pk maps a source to its primary key field.
	pk map[string]string
}

func newCache(pk map[string]string) *cache {
	return &cache{records: map[string][]record.Record{}, pk: pk}
}

// loaded reports whether source has been populated.
func (c *cache) loaded(source string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.records[source]
	return ok
}

// all returns clones of the records of a source.
func (c *cache) all(source string) ([]record.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	recs, ok := c.records[source]
	if !ok {
		return nil, false
	}
	out := make([]record.Record, len(recs))
	for i, r := range recs {
		out[i] = r.Clone()
	}
	return out, true
}

// view calls fn with the records of a source without copying. fn must not retain or
// mutate them.
func (c *cache) view(source string, fn func([]record.Record)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn(c.records[source])
}

// len returns the number of cached records of a source.
func (c *cache) len(source string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records[source])
}

// find returns a clone of the record with the given key.
func (c *cache) find(source, key string) (record.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i := c.index(source, key)
	if i < 0 {
		return nil, false
	}
	return c.records[source][i].Clone(), true
}

// index must be called with c.mu held.
func (c *cache) index(source, key string) int {
	pk := c.pk[source]
	for i, r := range c.records[source] {
		if k, ok := r.Key(pk); ok && k == key {
			return i
		}
	}
	return -1
}

// set replaces the whole sequence of a source.
func (c *cache) set(source string, recs []record.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]record.Record, len(recs))
	for i, r := range recs {
		out[i] = r.Clone()
	}
	c.records[source] = out
}

// put replaces the record with the same key in place, or appends it.
func (c *cache) put(source string, rec record.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key, _ := rec.Key(c.pk[source])
	if i := c.index(source, key); i >= 0 {
		c.records[source][i] = rec.Clone()
		return
	}
	c.records[source] = append(c.records[source], rec.Clone())
}

// remove drops the record with the given key.
func (c *cache) remove(source, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.index(source, key)
	if i < 0 {
		return
	}
	recs := c.records[source]
	c.records[source] = append(recs[:i:i], recs[i+1:]...)
}

// reset forgets every source.
func (c *cache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = map[string][]record.Record{}
}
