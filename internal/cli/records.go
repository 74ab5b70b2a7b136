// Record level commands.

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/maruel/recdb/internal/record"
	"github.com/maruel/recdb/internal/store"
)

func newInitCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the data directory and seed empty sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(a *app) error {
				counts := map[string]int{}
				for _, id := range a.reg.IDs() {
					recs, err := a.store.GetAll(cmd.Context(), id)
					if err != nil {
						return err
					}
					counts[id] = len(recs)
				}
				return newOutput(cmd, opts).value(counts, func(w io.Writer) error {
					for _, id := range a.reg.IDs() {
						fmt.Fprintf(w, "%s: %d records\n", id, counts[id])
					}
					return nil
				})
			})
		},
	}
}

func newListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list [source]",
		Short: "List the records of a source",
		Long:  "List the records of a source. Without argument, lists the default view.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(a *app) error {
				id := a.reg.DefaultView()
				if len(args) == 1 {
					id = args[0]
				}
				src, err := a.store.SourceConfig(id)
				if err != nil {
					return err
				}
				recs, err := a.store.GetAll(cmd.Context(), id)
				if err != nil {
					return err
				}
				return newOutput(cmd, opts).records(cmd.Context(), a, src, recs)
			})
		},
	}
}

func newGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <source> <key>",
		Short: "Print one record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(a *app) error {
				src, err := a.store.SourceConfig(args[0])
				if err != nil {
					return err
				}
				rec, err := a.store.GetRecord(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				return newOutput(cmd, opts).records(cmd.Context(), a, src, []record.Record{rec})
			})
		},
	}
}

func newAddCommand(opts *RootOptions) *cobra.Command {
	var raw string
	var set []string
	cmd := &cobra.Command{
		Use:   "add <source>",
		Short: "Add a record",
		Long: `Add a record built from --json and --set field=value pairs.

A primary key is generated from the source idPrefix when none is given.`,
		Example: "  recdb add users --set userName='Ann Lee' --set email=ann@example.com --set department=Ops --set role=Lead",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := parseRecordArgs(raw, set)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), opts, func(a *app) error {
				src, err := a.store.SourceConfig(args[0])
				if err != nil {
					return err
				}
				if _, ok := rec.Key(src.PrimaryKey); !ok {
					key, err := a.store.NewKey(args[0])
					if err != nil {
						return err
					}
					rec[src.PrimaryKey] = key
				}
				added, err := a.store.AddRecord(cmd.Context(), args[0], rec)
				if err != nil {
					return err
				}
				return newOutput(cmd, opts).records(cmd.Context(), a, src, []record.Record{added})
			})
		},
	}
	cmd.Flags().StringVar(&raw, "json", "", "record as a JSON object")
	cmd.Flags().StringArrayVar(&set, "set", nil, "field=value assignment (repeatable)")
	return cmd
}

func newUpdateCommand(opts *RootOptions) *cobra.Command {
	var raw string
	var set []string
	cmd := &cobra.Command{
		Use:   "update <source> <key>",
		Short: "Merge fields into an existing record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := parseRecordArgs(raw, set)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), opts, func(a *app) error {
				src, err := a.store.SourceConfig(args[0])
				if err != nil {
					return err
				}
				patch[src.PrimaryKey] = args[1]
				updated, err := a.store.UpdateRecord(cmd.Context(), args[0], patch)
				if err != nil {
					return err
				}
				return newOutput(cmd, opts).records(cmd.Context(), a, src, []record.Record{updated})
			})
		},
	}
	cmd.Flags().StringVar(&raw, "json", "", "fields as a JSON object")
	cmd.Flags().StringArrayVar(&set, "set", nil, "field=value assignment (repeatable)")
	return cmd
}

func newDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <source> <key>...",
		Short: "Delete records",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(a *app) error {
				for _, key := range args[1:] {
					if err := a.store.DeleteRecord(cmd.Context(), args[0], key); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newSearchCommand(opts *RootOptions) *cobra.Command {
	var filters []string
	cmd := &cobra.Command{
		Use:     "search <source> [term]",
		Short:   "Search and filter the records of a source",
		Example: "  recdb search acquisitions tech --filter stage=Series_A",
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := store.Query{Filters: map[string]string{}}
			if len(args) == 2 {
				q.SearchTerm = args[1]
			}
			for _, f := range filters {
				k, v, ok := strings.Cut(f, "=")
				if !ok {
					return fmt.Errorf("invalid filter %q: want field=value", f)
				}
				q.Filters[strings.TrimSpace(k)] = v
			}
			return withApp(cmd.Context(), opts, func(a *app) error {
				src, err := a.store.SourceConfig(args[0])
				if err != nil {
					return err
				}
				recs, err := a.store.SearchAndFilter(cmd.Context(), args[0], q)
				if err != nil {
					return err
				}
				return newOutput(cmd, opts).records(cmd.Context(), a, src, recs)
			})
		},
	}
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "field=value equality filter on the canonical value (repeatable)")
	return cmd
}

func newOptionsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "options <source> <field>",
		Short: "List the distinct values of a field",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(a *app) error {
				values, err := a.store.FieldOptions(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				return newOutput(cmd, opts).value(values, func(w io.Writer) error {
					for _, v := range values {
						fmt.Fprintln(w, record.Text(v))
					}
					return nil
				})
			})
		},
	}
}

func newResolveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <source> <field> <value>",
		Short: "Print the display value a reference points to",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(a *app) error {
				v, err := a.store.ResolveReference(cmd.Context(), args[0], args[2], args[1])
				if err != nil {
					return err
				}
				return newOutput(cmd, opts).value(v, func(w io.Writer) error {
					_, err := fmt.Fprintln(w, record.Text(v))
					return err
				})
			})
		},
	}
}
