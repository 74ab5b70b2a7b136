package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/maruel/recdb/internal/codec"
	"github.com/maruel/recdb/internal/record"
	"github.com/maruel/recdb/internal/schema"
)

// output writes command results in the selected format.
type output struct {
	w      io.Writer
	format string
}

func newOutput(cmd *cobra.Command, opts *RootOptions) *output {
	return &output{w: cmd.OutOrStdout(), format: opts.Output}
}

// records prints records. The text format renders a table of the visible columns with
// references resolved and values formatted.
func (o *output) records(ctx context.Context, a *app, src *schema.Source, recs []record.Record) error {
	cols := append([]string{src.PrimaryKey}, src.VisibleColumns...)
	if o.format != "text" {
		data, err := codec.Encode(codec.Format(o.format), recs, codec.Options{Columns: cols})
		if err != nil {
			return err
		}
		_, err = o.w.Write(data)
		return err
	}
	if len(src.VisibleColumns) == 0 {
		cols = codec.Columns(recs, cols)
	} else {
		cols = dedup(cols)
	}
	tw := tabwriter.NewWriter(o.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(cols, "\t"))
	cells := make([]string, len(cols))
	for _, r := range recs {
		for i, col := range cols {
			v, err := a.store.ResolveReference(ctx, src.ID, r[col], col)
			if err != nil {
				return err
			}
			cells[i] = record.FormatValue(v, src.FieldType(col))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

// value prints v as JSON or YAML, or calls text for the other formats.
func (o *output) value(v any, text func(w io.Writer) error) error {
	switch o.format {
	case "json":
		enc := json.NewEncoder(o.w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(o.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return text(o.w)
	}
}

func dedup(s []string) []string {
	seen := map[string]bool{}
	out := s[:0]
	for _, v := range s {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// parseAssignments turns field=value pairs into a record, typing values like CSV cells.
func parseAssignments(pairs []string) (record.Record, error) {
	rec := record.Record{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid assignment %q: want field=value", p)
		}
		rec[k] = record.ParseScalar(v)
	}
	return rec, nil
}

// parseRecordArgs merges a JSON object and field=value pairs, the pairs winning.
func parseRecordArgs(raw string, pairs []string) (record.Record, error) {
	rec := record.Record{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("invalid --json: %w", err)
		}
	}
	set, err := parseAssignments(pairs)
	if err != nil {
		return nil, err
	}
	return rec.Merge(set).Normalize(), nil
}
