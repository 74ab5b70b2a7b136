// Package cli implements the recdb command line.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DataDir  string
	Config   string
	Driver   string
	SeedDir  string
	LogLevel string
	Output   string
	Journal  bool

	level *slog.LevelVar
}

// ValidOutputs defines the allowed output formats.
var ValidOutputs = []string{"text", "json", "yaml", "csv"}

// EnvPrefix prefixes the environment variables overriding global flags.
const EnvPrefix = "RECDB_"

// NewRootCommand creates the root command. level, when not nil, is adjusted from
// --log-level.
func NewRootCommand(level *slog.LevelVar) *cobra.Command {
	if level == nil {
		level = &slog.LevelVar{}
	}
	opts := &RootOptions{level: level}

	cmd := &cobra.Command{
		Use:           "recdb",
		Short:         "recdb - schema-driven record store",
		Long:          "Manage records of declared sources stored in JSONL files or SQLite, with validation, references, search and bulk import/export.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := applyEnv(cmd.Root().PersistentFlags()); err != nil {
				return err
			}
			if !slices.Contains(ValidOutputs, opts.Output) {
				return fmt.Errorf("invalid output %q: must be one of %v", opts.Output, ValidOutputs)
			}
			l, err := parseLevel(opts.LogLevel)
			if err != nil {
				return err
			}
			opts.level.Set(l)
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.DataDir, "data-dir", "./data", "data directory")
	pf.StringVar(&opts.Config, "config", "", "registry file (default: $RECDB_CONFIG, ./recdb.yaml, ~/.config/recdb/config.yaml, then built-in)")
	pf.StringVar(&opts.Driver, "driver", "", "storage driver (jsonl|sqlite|memory); overrides the registry file")
	pf.StringVar(&opts.SeedDir, "seed-dir", "", "directory of <source>.json seed files (default: built-in)")
	pf.StringVar(&opts.LogLevel, "log-level", "info", "log level (debug|info|warn|error)")
	pf.StringVarP(&opts.Output, "output", "o", "text", "output format (text|json|yaml|csv)")
	pf.BoolVar(&opts.Journal, "journal", false, "commit every change of a jsonl data directory to git")

	cmd.AddCommand(
		newInitCommand(opts),
		newListCommand(opts),
		newGetCommand(opts),
		newAddCommand(opts),
		newUpdateCommand(opts),
		newDeleteCommand(opts),
		newSearchCommand(opts),
		newOptionsCommand(opts),
		newResolveCommand(opts),
		newImportCommand(opts),
		newExportCommand(opts),
		newClearCommand(opts),
		newSchemaCommand(opts),
		newMetricsCommand(opts),
		newHistoryCommand(opts),
		newWatchCommand(opts),
		newVersionCommand(),
	)
	return cmd
}

// applyEnv sets every flag left unset on the command line from RECDB_<FLAG>.
func applyEnv(fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Changed {
			return
		}
		name := EnvPrefix + strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
		v, ok := os.LookupEnv(name)
		if !ok {
			return
		}
		if serr := f.Value.Set(v); serr != nil {
			err = fmt.Errorf("invalid %s: %w", name, serr)
		}
	})
	return err
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q", s)
	}
}
