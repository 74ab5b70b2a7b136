// Package codec converts record sequences to and from transfer formats.
package codec

import (
	"bytes"
	"io"
	"path/filepath"
	"slices"
	"strings"

	dberrors "github.com/maruel/recdb/internal/errors"
	"github.com/maruel/recdb/internal/record"
)

// Format identifies a transfer format.
type Format string

// Supported formats.
const (
	JSON Format = "json"
	CSV  Format = "csv"
	YAML Format = "yaml"
)

// Formats lists every supported format.
var Formats = []Format{JSON, CSV, YAML}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "yml" {
		f = YAML
	}
	if !slices.Contains(Formats, f) {
		return "", dberrors.UnsupportedFormat(s)
	}
	return f, nil
}

// FormatFromPath guesses the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Options tunes an export.
type Options struct {
	// Columns lists fields to emit first, in order, for tabular formats.
	Columns []string
}

// Importer parses records from a format.
type Importer interface {
	Parse(r io.Reader) ([]record.Record, error)
	Format() Format
}

// Exporter writes records in a format.
type Exporter interface {
	Export(w io.Writer, recs []record.Record, opts Options) error
	Format() Format
}

// Codec is both an Importer and an Exporter.
type Codec interface {
	Importer
	Exporter
}

// New returns the codec of a format.
func New(f Format) (Codec, error) {
	switch f {
	case JSON:
		return NewJSONCodec(), nil
	case CSV:
		return NewCSVCodec(), nil
	case YAML:
		return NewYAMLCodec(), nil
	default:
		return nil, dberrors.UnsupportedFormat(string(f))
	}
}

// Decode parses data in format f. Numeric values are normalized to float64.
func Decode(f Format, data []byte) ([]record.Record, error) {
	c, err := New(f)
	if err != nil {
		return nil, err
	}
	recs, err := c.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	for _, r := range recs {
		r.Normalize()
	}
	return recs, nil
}

// Encode renders recs in format f.
func Encode(f Format, recs []record.Record, opts Options) ([]byte, error) {
	c, err := New(f)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := c.Export(&buf, recs, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
