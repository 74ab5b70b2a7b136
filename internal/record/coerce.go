package record

import (
	"cmp"
	"math"
	"strconv"
	"strings"
)

// Type coercion for text input (CSV cells, CLI arguments) into record scalars:
//
//	""            → nil (field dropped)
//	"true"/"false" → bool
//	"42", "3.14"  → float64
//	anything else → string
//
// Values with a leading zero such as "007" or phone numbers stay as text so identifiers
// survive a round trip.

// ParseScalar converts a text cell into the best matching scalar.
func ParseScalar(s string) any {
	if s == "" {
		return nil
	}
	switch s {
	case "true", "TRUE", "True":
		return true
	case "false", "FALSE", "False":
		return false
	}
	if !looksNumeric(s) {
		return s
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return s
	}
	return f
}

// looksNumeric rejects inputs strconv accepts but that are better kept as text.
func looksNumeric(s string) bool {
	t := strings.TrimPrefix(s, "-")
	if t == "" {
		return false
	}
	if len(t) > 1 && t[0] == '0' && t[1] != '.' {
		return false
	}
	for _, c := range t {
		if (c < '0' || c > '9') && c != '.' && c != 'e' && c != 'E' && c != '+' && c != '-' {
			return false
		}
	}
	return true
}

// Compare orders two scalar values: numbers before strings, numbers numerically, strings
// lexicographically, bools false before true.
func Compare(a, b any) int {
	a, b = normalizeValue(a), normalizeValue(b)
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch va := a.(type) {
	case float64:
		return cmp.Compare(va, b.(float64))
	case bool:
		vb := b.(bool)
		switch {
		case va == vb:
			return 0
		case !va:
			return -1
		default:
			return 1
		}
	case string:
		return cmp.Compare(va, b.(string))
	}
	return cmp.Compare(Text(a), Text(b))
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	default:
		return 4
	}
}
