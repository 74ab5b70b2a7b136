// Package record defines the generic record type shared by every source, its scalar values
// and multi-value fields.
package record

import (
	"fmt"
	"maps"
	"math"
	"strconv"
	"strings"
)

// Record is one entity instance: a mapping from field name to a scalar value.
//
// Values are string, float64 or bool, matching what encoding/json produces. A string
// containing commas is a multi-value field; see MultiValue.
type Record map[string]any

// Clone returns a shallow copy. Values are scalars so a shallow copy is independent.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	return maps.Clone(r)
}

// Key returns the primary key of the record as a string, or false if the field is missing
// or empty.
func (r Record) Key(field string) (string, bool) {
	v, ok := r[field]
	if !ok {
		return "", false
	}
	s := Text(v)
	return s, s != ""
}

// Merge returns a new record with the fields of patch applied over r.
func (r Record) Merge(patch Record) Record {
	out := make(Record, len(r)+len(patch))
	maps.Copy(out, r)
	maps.Copy(out, patch)
	return out
}

// Normalize converts numeric Go types to float64 so records compare the same way whether
// they came from JSON, CSV or code.
func (r Record) Normalize() Record {
	for k, v := range r {
		r[k] = normalizeValue(v)
	}
	return r
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case int32:
		return float64(t)
	case float32:
		return float64(t)
	case uint:
		return float64(t)
	case uint64:
		return float64(t)
	default:
		return v
	}
}

// Text returns the string form of a scalar value. nil yields "".
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == math.Trunc(t) && !math.IsInf(t, 0) && !math.IsNaN(t) && math.Abs(t) < 1e15 {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		if f, ok := normalizeValue(v).(float64); ok {
			return Text(f)
		}
		return fmt.Sprint(v)
	}
}

// Number returns the numeric form of a value, parsing numeric strings. NaN and Go-only
// literal forms such as "1_0" are not numbers.
func Number(v any) (float64, bool) {
	switch t := normalizeValue(v).(type) {
	case float64:
		if math.IsNaN(t) {
			return 0, false
		}
		return t, true
	case string:
		if strings.Contains(t, "_") {
			return 0, false
		}
		f, err := strconv.ParseFloat(t, 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// IsEmpty reports whether a value counts as absent for required checks.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	default:
		return false
	}
}
