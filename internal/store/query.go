// Provides search, filtering and option listing over the cached records of a source.

package store

import (
	"context"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/maruel/recdb/internal/record"
	"github.com/maruel/recdb/internal/schema"
)

// Query selects records of a source.
type Query struct {
	// SearchTerm matches, case-insensitively, a substring of any searchable field.
	SearchTerm string
	// Filters maps a field to the value its canonical token must equal. Empty values are
	// ignored.
	Filters map[string]string
}

// SearchAndFilter returns the records matching both the search term and every filter,
// in cache order. The cache is not modified.
func (s *Store) SearchAndFilter(ctx context.Context, id string, q Query) ([]record.Record, error) {
	src, err := s.source(id)
	if err != nil {
		return nil, err
	}
	fold := cases.Fold()
	term := fold.String(strings.TrimSpace(q.SearchTerm))
	var out []record.Record
	s.cache.view(id, func(recs []record.Record) {
		out = make([]record.Record, 0, len(recs))
		for _, r := range recs {
			if matchesSearch(fold, src, r, term) && matchesFilters(r, q.Filters) {
				out = append(out, r.Clone())
			}
		}
	})
	return out, nil
}

// matchesSearch checks if any searchable field contains term. An empty term matches
// everything.
func matchesSearch(fold cases.Caser, src *schema.Source, r record.Record, term string) bool {
	if term == "" {
		return true
	}
	for _, field := range src.SearchableFields {
		if strings.Contains(fold.String(record.Text(r[field])), term) {
			return true
		}
	}
	return false
}

// matchesFilters checks if a record matches all filter conditions. Multi-value fields
// compare their canonical token; other values compare by text form.
func matchesFilters(r record.Record, filters map[string]string) bool {
	for field, want := range filters {
		want = strings.TrimSpace(want)
		if want == "" {
			continue
		}
		if record.Canonical(r[field]) != want {
			return false
		}
	}
	return true
}

// FieldOptions returns the distinct values of a field across a source. Multi-value
// strings contribute each token. Numbers sort before strings.
func (s *Store) FieldOptions(ctx context.Context, id, field string) ([]any, error) {
	if _, err := s.source(id); err != nil {
		return nil, err
	}
	var out []any
	s.cache.view(id, func(recs []record.Record) {
		for _, r := range recs {
			out = append(out, record.Tokens(r[field])...)
		}
	})
	slices.SortFunc(out, record.Compare)
	out = slices.CompactFunc(out, func(a, b any) bool { return record.Compare(a, b) == 0 })
	if out == nil {
		out = []any{}
	}
	return out, nil
}
