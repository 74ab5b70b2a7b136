package store

import (
	"context"
	"errors"

	dberrors "github.com/maruel/recdb/internal/errors"
	"github.com/maruel/recdb/internal/record"
)

// ResolveReference maps a raw reference value to the display value of the record it
// points to. The raw value is returned unchanged when field declares no reference, when
// the target record does not exist, or when its display value is empty.
func (s *Store) ResolveReference(ctx context.Context, id string, raw any, field string) (any, error) {
	if _, err := s.source(id); err != nil {
		return nil, err
	}
	target, ok := s.reg.Reference(id, field)
	if !ok {
		return raw, nil
	}
	tsrc, ok := s.reg.Source(target)
	if !ok {
		return raw, nil
	}
	key := record.Canonical(raw)
	if key == "" {
		return raw, nil
	}
	rec, err := s.GetRecord(ctx, target, key)
	if errors.Is(err, dberrors.ErrNotFound) {
		return raw, nil
	}
	if err != nil {
		return nil, err
	}
	v := rec[tsrc.Display()]
	if record.IsEmpty(v) {
		return raw, nil
	}
	return v, nil
}
