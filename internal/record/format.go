// Renders field values for display according to a source's formatting tags.

package record

import (
	"math"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Formatting tags understood by FormatValue.
const (
	FormatText       = "text"
	FormatCurrency   = "currency"
	FormatPercentage = "percentage"
	FormatDate       = "date"
	FormatBoolean    = "boolean"
	FormatSelect     = "select"
	FormatTags       = "tags"
	FormatEmail      = "email"
	FormatPhone      = "phone"
	FormatYear       = "year"
)

var (
	printer      = message.NewPrinter(language.AmericanEnglish)
	phonePattern = regexp.MustCompile(`(\d{3})(\d{3})(\d{4})`)
)

// FormatValue renders v for display using the formatting tag. Unknown tags render the
// plain text form.
func FormatValue(v any, tag string) string {
	if v == nil {
		return ""
	}
	switch tag {
	case FormatCurrency:
		f, ok := Number(v)
		if !ok {
			return Text(v)
		}
		f = math.Round(f)
		if f < 0 {
			return "-$" + printer.Sprintf("%d", int64(-f))
		}
		return "$" + printer.Sprintf("%d", int64(f))
	case FormatPercentage:
		return Text(v) + "%"
	case FormatDate:
		return formatDate(Text(v))
	case FormatBoolean:
		if truthy(v) {
			return "Yes"
		}
		return "No"
	case FormatSelect:
		return Canonical(v)
	case FormatTags:
		if s, ok := v.(string); ok {
			return strings.Join(ParseMultiValue(s), ", ")
		}
		return Text(v)
	case FormatPhone:
		s := Text(v)
		loc := phonePattern.FindStringSubmatchIndex(s)
		if loc == nil {
			return s
		}
		formatted := "(" + s[loc[2]:loc[3]] + ") " + s[loc[4]:loc[5]] + "-" + s[loc[6]:loc[7]]
		return s[:loc[0]] + formatted + s[loc[1]:]
	default:
		return Text(v)
	}
}

func formatDate(s string) string {
	for _, layout := range []string{time.DateOnly, time.RFC3339, time.DateTime} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("1/2/2006")
		}
	}
	return s
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != "" && t != "false" && t != "0"
	case float64:
		return t != 0
	default:
		return v != nil
	}
}
