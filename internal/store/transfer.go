// Bulk import and export of a source.

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/maruel/recdb/internal/codec"
	dberrors "github.com/maruel/recdb/internal/errors"
	"github.com/maruel/recdb/internal/record"
)

// ImportResult summarizes an import.
type ImportResult struct {
	Source   string
	Imported int
	Skipped  []dberrors.ImportWarning
}

// Err returns a *dberrors.ImportPartialFailure when rows were skipped, nil otherwise.
func (r ImportResult) Err() error {
	if len(r.Skipped) == 0 {
		return nil
	}
	return &dberrors.ImportPartialFailure{Source: r.Source, Imported: r.Imported, Warnings: r.Skipped}
}

// ImportData replaces the content of a source with the records encoded in data.
//
// data is parsed first: a parse error leaves the source untouched. Rows without a primary
// key or failing validation are skipped and reported in the result. When a key repeats,
// the last row wins.
func (s *Store) ImportData(ctx context.Context, id string, data []byte, format codec.Format) (_ ImportResult, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, id, "import", start, err) }()
	src, err := s.source(id)
	if err != nil {
		return ImportResult{}, err
	}
	recs, err := codec.Decode(format, data)
	if err != nil {
		return ImportResult{}, fmt.Errorf("failed to import %s: %w", id, err)
	}

	res := ImportResult{Source: id}
	var accepted []record.Record
	index := map[string]int{}
	for i, rec := range recs {
		row := i + 1
		key, ok := rec.Key(src.PrimaryKey)
		if !ok {
			res.Skipped = append(res.Skipped, dberrors.ImportWarning{Row: row, Reason: fmt.Sprintf("missing primary key %s", src.PrimaryKey)})
			continue
		}
		if err := Validate(src, rec); err != nil {
			res.Skipped = append(res.Skipped, dberrors.ImportWarning{Row: row, Key: key, Reason: err.Error()})
			continue
		}
		if j, ok := index[key]; ok {
			accepted[j] = rec
			continue
		}
		index[key] = len(accepted)
		accepted = append(accepted, rec)
	}

	unlock := s.lock(id)
	defer unlock()
	if err := s.adapter.Clear(ctx, id); err != nil {
		return ImportResult{}, fmt.Errorf("failed to import %s: %w", id, err)
	}
	for _, rec := range accepted {
		key, _ := rec.Key(src.PrimaryKey)
		if err := s.adapter.Set(ctx, id, key, rec); err != nil {
			// Keep the cache equal to whatever reached the adapter.
			if lerr := s.load(ctx, id); lerr != nil {
				s.logger.ErrorContext(ctx, "Failed to reload after import failure", "source", id, "err", lerr)
			}
			return ImportResult{}, fmt.Errorf("failed to import %s %q: %w", id, key, err)
		}
	}
	s.cache.set(id, accepted)
	s.metrics.SetRecords(id, len(accepted))
	s.metrics.ImportSkipped(id, len(res.Skipped))
	res.Imported = len(accepted)
	for _, w := range res.Skipped {
		s.logger.WarnContext(ctx, "Skipped import row", "source", id, "row", w.Row, "key", w.Key, "reason", w.Reason)
	}
	s.logger.InfoContext(ctx, "Imported data", "source", id, "format", string(format), "imported", res.Imported, "skipped", len(res.Skipped))
	s.notify(ctx, Change{Source: id, Action: ActionImport, Records: accepted})
	return res, nil
}

// ExportData encodes every record of a source. Tabular formats start with the primary
// key and the visible columns.
func (s *Store) ExportData(ctx context.Context, id string, format codec.Format) ([]byte, error) {
	src, err := s.source(id)
	if err != nil {
		return nil, err
	}
	recs, err := s.GetAll(ctx, id)
	if err != nil {
		return nil, err
	}
	cols := append([]string{src.PrimaryKey}, src.VisibleColumns...)
	out, err := codec.Encode(format, recs, codec.Options{Columns: cols})
	if err != nil {
		return nil, fmt.Errorf("failed to export %s: %w", id, err)
	}
	return out, nil
}
