// Package schema holds the declarative description of every source: primary key, display
// field, searchable and filterable fields, formatting tags, validation rules and the
// references between sources.
//
// The schema is loaded once at startup (from YAML or the embedded default) and is
// read-only afterwards.
package schema

import (
	"errors"
	"fmt"
	"slices"
)

// Rule types understood by the validator.
const (
	RuleTypeEmail  = "email"
	RuleTypeNumber = "number"
)

// Rule is the validation rule declared for one field.
type Rule struct {
	Required  bool     `yaml:"required,omitempty" json:"required,omitempty" jsonschema:"description=Field must be present and non-empty"`
	MinLength int      `yaml:"minLength,omitempty" json:"minLength,omitempty" jsonschema:"description=Minimum number of characters"`
	Type      string   `yaml:"type,omitempty" json:"type,omitempty" jsonschema:"enum=email,enum=number,description=Value type constraint"`
	Min       *float64 `yaml:"min,omitempty" json:"min,omitempty" jsonschema:"description=Minimum numeric value"`
}

// IsZero reports whether the rule declares nothing.
func (r Rule) IsZero() bool {
	return !r.Required && r.MinLength == 0 && r.Type == "" && r.Min == nil
}

// Source describes one named collection of records.
type Source struct {
	// ID is the source identifier; filled from the configuration map key.
	ID               string            `yaml:"-" json:"-"`
	DisplayName      string            `yaml:"displayName,omitempty" json:"displayName,omitempty" jsonschema:"description=Human readable name"`
	EditorTitle      string            `yaml:"editorTitle,omitempty" json:"editorTitle,omitempty"`
	PrimaryKey       string            `yaml:"primaryKey" json:"primaryKey" jsonschema:"description=Field uniquely identifying a record"`
	DisplayField     string            `yaml:"displayField,omitempty" json:"displayField,omitempty" jsonschema:"description=Field shown when the source is referenced"`
	IDPrefix         string            `yaml:"idPrefix,omitempty" json:"idPrefix,omitempty" jsonschema:"description=Prefix of generated primary keys"`
	VisibleColumns   []string          `yaml:"visibleColumns,omitempty" json:"visibleColumns,omitempty"`
	SearchableFields []string          `yaml:"searchableFields,omitempty" json:"searchableFields,omitempty"`
	FilterableFields []string          `yaml:"filterableFields,omitempty" json:"filterableFields,omitempty"`
	ColumnFormatting map[string]string `yaml:"columnFormatting,omitempty" json:"columnFormatting,omitempty"`
	Validation       map[string]Rule   `yaml:"validation,omitempty" json:"validation,omitempty"`
}

// Display returns the display field, falling back to the primary key.
func (s *Source) Display() string {
	if s.DisplayField != "" {
		return s.DisplayField
	}
	return s.PrimaryKey
}

// FieldType returns the formatting tag of a field, "text" when undeclared.
func (s *Source) FieldType(field string) string {
	if t := s.ColumnFormatting[field]; t != "" {
		return t
	}
	return "text"
}

// Rule returns the validation rule of a field, the zero Rule when undeclared.
func (s *Source) Rule(field string) Rule {
	return s.Validation[field]
}

// IsSearchable reports whether field takes part in free-text search.
func (s *Source) IsSearchable(field string) bool {
	return slices.Contains(s.SearchableFields, field)
}

// Validate checks that the source declaration is well-formed.
func (s *Source) Validate() error {
	if s.PrimaryKey == "" {
		return errors.New("primaryKey is required")
	}
	for field, r := range s.Validation {
		switch r.Type {
		case "", RuleTypeEmail, RuleTypeNumber:
		default:
			return fmt.Errorf("validation.%s: unknown type %q", field, r.Type)
		}
		if r.MinLength < 0 {
			return fmt.Errorf("validation.%s: minLength must be non-negative", field)
		}
	}
	return nil
}

// Relationship lists the reference fields of a source.
type Relationship struct {
	PrimaryKey   string            `yaml:"primaryKey,omitempty" json:"primaryKey,omitempty"`
	DisplayField string            `yaml:"displayField,omitempty" json:"displayField,omitempty"`
	References   map[string]string `yaml:"references,omitempty" json:"references,omitempty" jsonschema:"description=Field name to target source identifier"`
}

// Metric types for dashboard aggregates.
const (
	MetricCount   = "count"
	MetricSum     = "sum"
	MetricAverage = "average"
)

// Metric is a dashboard aggregate over one source.
type Metric struct {
	ID     string `yaml:"id" json:"id"`
	Type   string `yaml:"type" json:"type" jsonschema:"enum=count,enum=sum,enum=average"`
	Label  string `yaml:"label,omitempty" json:"label,omitempty"`
	Source string `yaml:"sourceId" json:"sourceId"`
	Field  string `yaml:"field,omitempty" json:"field,omitempty"`
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
}

// Validate checks that the metric is well-formed.
func (m *Metric) Validate() error {
	if m.ID == "" {
		return errors.New("id is required")
	}
	switch m.Type {
	case MetricCount:
	case MetricSum, MetricAverage:
		if m.Field == "" {
			return fmt.Errorf("metric %s: field is required for %s", m.ID, m.Type)
		}
	default:
		return fmt.Errorf("metric %s: unknown type %q", m.ID, m.Type)
	}
	if m.Source == "" {
		return fmt.Errorf("metric %s: sourceId is required", m.ID)
	}
	return nil
}
