package codec

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/maruel/recdb/internal/record"
)

// CSVCodec handles comma-separated tables with a header row.
//
// Cells are typed best-effort on import (see record.ParseScalar); empty cells leave the
// field unset.
type CSVCodec struct{}

// NewCSVCodec creates a new CSV codec
func NewCSVCodec() *CSVCodec {
	return &CSVCodec{}
}

// Format returns the codec format identifier
func (c *CSVCodec) Format() Format {
	return CSV
}

// Parse reads a header line then one record per line.
func (c *CSVCodec) Parse(r io.Reader) ([]record.Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}
	var recs []record.Record
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV: %w", err)
		}
		rec := make(record.Record, len(header))
		for i, name := range header {
			if name == "" || i >= len(row) {
				continue
			}
			if v := record.ParseScalar(strings.TrimSpace(row[i])); v != nil {
				rec[name] = v
			}
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// Export writes a header then one line per record. Values containing a comma, a quote or
// a newline are quoted.
func (c *CSVCodec) Export(w io.Writer, recs []record.Record, opts Options) error {
	if len(recs) == 0 {
		return nil
	}
	header := Columns(recs, opts.Columns)
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	line := make([]string, len(header))
	for _, rec := range recs {
		for i, name := range header {
			line[i] = record.Text(rec[name])
		}
		if err := writer.Write(line); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// Columns returns the header of a table: preferred columns present in any record, in
// order, then the remaining keys in the order records introduce them, sorted within each
// record.
func Columns(recs []record.Record, preferred []string) []string {
	seen := map[string]bool{}
	present := map[string]bool{}
	for _, rec := range recs {
		for k := range rec {
			present[k] = true
		}
	}
	var out []string
	for _, col := range preferred {
		if present[col] && !seen[col] {
			seen[col] = true
			out = append(out, col)
		}
	}
	for _, rec := range recs {
		for _, k := range slices.Sorted(maps.Keys(rec)) {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out
}
