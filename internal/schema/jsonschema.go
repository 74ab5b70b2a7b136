// Renders source declarations as JSON Schema documents.

package schema

import (
	"encoding/json"
	"maps"
	"slices"
	"strconv"

	"github.com/invopop/jsonschema"
)

// JSONSchema returns the JSON Schema describing one record of the source.
//
// Every field named by the declaration (columns, search, filters, formatting and
// validation) becomes a property. Records may carry additional fields.
func (s *Source) JSONSchema() *jsonschema.Schema {
	out := &jsonschema.Schema{
		Version:     jsonschema.Version,
		Title:       s.DisplayName,
		Description: s.EditorTitle,
		Type:        "object",
		Properties:  jsonschema.NewProperties(),
	}
	for _, field := range s.fields() {
		prop := &jsonschema.Schema{Description: "format: " + s.FieldType(field)}
		r := s.Rule(field)
		switch r.Type {
		case RuleTypeNumber:
			prop.Type = "number"
			if r.Min != nil {
				prop.Minimum = json.Number(strconv.FormatFloat(*r.Min, 'f', -1, 64))
			}
		case RuleTypeEmail:
			prop.Type = "string"
			prop.Format = "email"
		}
		if r.MinLength > 0 {
			n := uint64(r.MinLength)
			prop.MinLength = &n
		}
		if r.Required || field == s.PrimaryKey {
			out.Required = append(out.Required, field)
		}
		out.Properties.Set(field, prop)
	}
	return out
}

// fields lists every field named by the declaration, primary key first, then visible
// columns in order, then the rest sorted.
func (s *Source) fields() []string {
	seen := map[string]bool{}
	var out []string
	add := func(f string) {
		if f != "" && !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	add(s.PrimaryKey)
	add(s.DisplayField)
	for _, f := range s.VisibleColumns {
		add(f)
	}
	var rest []string
	rest = append(rest, s.SearchableFields...)
	rest = append(rest, s.FilterableFields...)
	rest = slices.AppendSeq(rest, maps.Keys(s.ColumnFormatting))
	rest = slices.AppendSeq(rest, maps.Keys(s.Validation))
	slices.Sort(rest)
	for _, f := range rest {
		add(f)
	}
	return out
}

// ConfigSchema returns the JSON Schema of the configuration file format.
func ConfigSchema() *jsonschema.Schema {
	r := jsonschema.Reflector{Anonymous: true, DoNotReference: true, FieldNameTag: "yaml"}
	return r.Reflect(&Config{})
}
