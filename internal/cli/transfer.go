// Bulk commands.

package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/maruel/recdb/internal/codec"
)

func newImportCommand(opts *RootOptions) *cobra.Command {
	var as string
	var strict bool
	cmd := &cobra.Command{
		Use:   "import <source> <file>",
		Short: "Replace the records of a source with the content of a file",
		Long: `Replace the records of a source with the content of a JSON, CSV or YAML file.

Rows without a primary key or failing validation are skipped with a warning. Use - to
read standard input, with --as to name the format.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, data, err := readInput(cmd, args[1], as)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), opts, func(a *app) error {
				res, err := a.store.ImportData(cmd.Context(), args[0], data, format)
				if err != nil {
					return err
				}
				for _, w := range res.Skipped {
					fmt.Fprintf(cmd.ErrOrStderr(), "row %d %s: %s\n", w.Row, w.Key, w.Reason)
				}
				if err := newOutput(cmd, opts).value(res, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "%s: imported %d, skipped %d\n", res.Source, res.Imported, len(res.Skipped))
					return err
				}); err != nil {
					return err
				}
				if strict {
					return res.Err()
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&as, "as", "", "input format (json|csv|yaml); default from the file extension")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when any row was skipped")
	return cmd
}

func readInput(cmd *cobra.Command, path, as string) (codec.Format, []byte, error) {
	var format codec.Format
	var err error
	switch {
	case as != "":
		format, err = codec.ParseFormat(as)
	case path == "-":
		err = fmt.Errorf("--as is required when reading standard input")
	default:
		format, err = codec.FormatFromPath(path)
	}
	if err != nil {
		return "", nil, err
	}
	var data []byte
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path) //nolint:gosec // G304: path is a command line argument
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return format, data, nil
}

func newExportCommand(opts *RootOptions) *cobra.Command {
	var as, out string
	cmd := &cobra.Command{
		Use:   "export <source>",
		Short: "Write every record of a source as JSON, CSV or YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var format codec.Format
			var err error
			switch {
			case as != "":
				format, err = codec.ParseFormat(as)
			case out != "":
				format, err = codec.FormatFromPath(out)
			default:
				format = codec.JSON
			}
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), opts, func(a *app) error {
				data, err := a.store.ExportData(cmd.Context(), args[0], format)
				if err != nil {
					return err
				}
				if out == "" {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				if err := os.WriteFile(out, data, 0o644); err != nil { //nolint:gosec // G306: exported data is not secret
					return fmt.Errorf("failed to write %s: %w", out, err)
				}
				slog.InfoContext(cmd.Context(), "Exported", "source", args[0], "file", out, "bytes", len(data))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&as, "as", "", "output format (json|csv|yaml); default from --out, else json")
	cmd.Flags().StringVar(&out, "out", "", "output file (default: standard output)")
	return cmd
}

func newClearCommand(opts *RootOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "clear [source]",
		Short: "Remove every record of a source",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return fmt.Errorf("specify either a source or --all")
			}
			return withApp(cmd.Context(), opts, func(a *app) error {
				if all {
					return a.store.ClearAll(cmd.Context())
				}
				return a.store.Clear(cmd.Context(), args[0])
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "clear every source")
	return cmd
}
