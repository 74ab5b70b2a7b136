// Models comma-joined fields as ordered lists with a canonical first token.

package record

import "strings"

// Separator joins the tokens of a multi-value field.
const Separator = ","

// MultiValue is an ordered list of candidate values. The first element is canonical: it
// is the one displayed and compared by filters.
type MultiValue []string

// ParseMultiValue splits a comma-joined string into trimmed tokens. Empty tokens are
// dropped. A string without a comma yields a single token.
func ParseMultiValue(s string) MultiValue {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, Separator)
	out := make(MultiValue, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Canonical returns the first token, or "" when empty.
func (m MultiValue) Canonical() string {
	if len(m) == 0 {
		return ""
	}
	return m[0]
}

// String joins the tokens back into the stored form.
func (m MultiValue) String() string {
	return strings.Join(m, Separator)
}

// IsMulti reports whether a value is a string holding more than one token.
func IsMulti(v any) bool {
	s, ok := v.(string)
	return ok && strings.Contains(s, Separator)
}

// Canonical returns the comparable form of a value: the canonical token for strings,
// the text form otherwise.
func Canonical(v any) string {
	if s, ok := v.(string); ok {
		if !strings.Contains(s, Separator) {
			return s
		}
		return ParseMultiValue(s).Canonical()
	}
	return Text(v)
}

// Tokens returns the individual values held by v: every token of a multi-value string,
// or v itself. nil and empty strings yield nothing.
func Tokens(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if t == "" {
			return nil
		}
		if !strings.Contains(t, Separator) {
			return []any{t}
		}
		m := ParseMultiValue(t)
		out := make([]any, len(m))
		for i, s := range m {
			out[i] = s
		}
		return out
	default:
		return []any{normalizeValue(v)}
	}
}
