// Checks records against the validation rules of their source.

package store

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"unicode/utf8"

	dberrors "github.com/maruel/recdb/internal/errors"
	"github.com/maruel/recdb/internal/record"
	"github.com/maruel/recdb/internal/schema"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Validate checks rec against every rule declared by src and returns all violations at
// once as a *dberrors.ValidationError, or nil.
//
// The primary key is always required.
func Validate(src *schema.Source, rec record.Record) error {
	verr := &dberrors.ValidationError{Source: src.ID}
	for _, field := range slices.Sorted(maps.Keys(src.Validation)) {
		checkRule(verr, field, src.Validation[field], rec[field])
	}
	if _, ok := rec.Key(src.PrimaryKey); !ok {
		if _, reported := verr.Fields[src.PrimaryKey]; !reported {
			verr.Add(src.PrimaryKey, fmt.Sprintf("%s is required", src.PrimaryKey))
		}
	}
	if verr.Empty() {
		return nil
	}
	return verr
}

func checkRule(verr *dberrors.ValidationError, field string, r schema.Rule, v any) {
	if record.IsEmpty(v) {
		if r.Required {
			verr.Add(field, fmt.Sprintf("%s is required", field))
		}
		return
	}
	text := record.Text(v)
	if r.MinLength > 0 && utf8.RuneCountInString(text) < r.MinLength {
		verr.Add(field, fmt.Sprintf("%s must be at least %d characters", field, r.MinLength))
	}
	switch r.Type {
	case schema.RuleTypeEmail:
		if !emailPattern.MatchString(text) {
			verr.Add(field, fmt.Sprintf("%s must be a valid email address", field))
		}
	case schema.RuleTypeNumber:
		n, ok := record.Number(v)
		if !ok {
			verr.Add(field, fmt.Sprintf("%s must be a number", field))
			return
		}
		if r.Min != nil && n < *r.Min {
			verr.Add(field, fmt.Sprintf("%s must be at least %s", field, record.Text(*r.Min)))
		}
	}
}
