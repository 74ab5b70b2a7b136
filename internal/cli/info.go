// Introspection commands.

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"text/tabwriter"

	"github.com/spf13/cobra"

	dberrors "github.com/maruel/recdb/internal/errors"
	"github.com/maruel/recdb/internal/history"
	"github.com/maruel/recdb/internal/schema"
)

func newSchemaCommand(opts *RootOptions) *cobra.Command {
	var config bool
	cmd := &cobra.Command{
		Use:   "schema [source]",
		Short: "Print the registry, or the JSON Schema of a source's records",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if config {
				return writeJSON(cmd.OutOrStdout(), schema.ConfigSchema())
			}
			reg, _, err := loadRegistry(opts)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				data, err := reg.Config().Marshal()
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			src, ok := reg.Source(args[0])
			if !ok {
				return dberrors.StoreNotFound(args[0])
			}
			return writeJSON(cmd.OutOrStdout(), src.JSONSchema())
		},
	}
	cmd.Flags().BoolVar(&config, "config-schema", false, "print the JSON Schema of the registry file format")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newMetricsCommand(opts *RootOptions) *cobra.Command {
	var prom bool
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Compute the dashboard metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(a *app) error {
				values, err := a.store.Dashboard(cmd.Context())
				if err != nil {
					return err
				}
				if prom {
					return a.metrics.WriteText(cmd.OutOrStdout())
				}
				return newOutput(cmd, opts).value(values, func(w io.Writer) error {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					for _, v := range values {
						fmt.Fprintf(tw, "%s\t%s\n", v.Label, v.Formatted)
					}
					return tw.Flush()
				})
			})
		},
	}
	cmd.Flags().BoolVar(&prom, "prom", false, "print the operation counters in Prometheus text format")
	return cmd
}

func newHistoryCommand(opts *RootOptions) *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "history [source]",
		Short: "List the journal commits of a jsonl data directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(filepath.Join(opts.DataDir, ".git")); err != nil {
				return fmt.Errorf("%s has no journal; run commands with --journal first", opts.DataDir)
			}
			j, err := history.Open(opts.DataDir, "recdb", "recdb@localhost", nil)
			if err != nil {
				return err
			}
			source := ""
			if len(args) == 1 {
				source = args[0]
			}
			commits, err := j.History(cmd.Context(), source, n)
			if err != nil {
				return err
			}
			return newOutput(cmd, opts).value(commits, func(w io.Writer) error {
				for _, c := range commits {
					fmt.Fprintf(w, "%s %s %s\n", c.Hash[:12], c.When.Format("2006-01-02 15:04:05"), c.Message)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&n, "limit", "n", 20, "maximum number of commits")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			version, goVersion, revision, dirty := getBuildInfo()
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "recdb %s\n", version)
			fmt.Fprintf(w, "  Go version: %s\n", goVersion)
			fmt.Fprintf(w, "  Revision:   %s\n", revision)
			if dirty {
				fmt.Fprintf(w, "  Modified:   true\n")
			}
		},
	}
}

func getBuildInfo() (version, goVersion, revision string, dirty bool) {
	version = "unknown"
	goVersion = "unknown"
	revision = "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	version = info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	goVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return
}
