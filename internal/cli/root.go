// Package cli implements the tablekit command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/tablekit/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	// Overrides for the dataset section of the config.
	Dataset    string
	DB         string
	NoSimulate bool

	cfg *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the tablekit CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "tablekit",
		Short: "tablekit - tabular data pipeline",
		Long: `Filter, sort and paginate a row dataset through a simulated remote backend.

Rows come from a SQLite database (--db), a JSON file (--dataset) or the
embedded sample catalog.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default ./"+config.DefaultFileName+" if present)")
	cmd.PersistentFlags().StringVar(&opts.Dataset, "dataset", "", "JSON rows file (overrides dataset.path)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "SQLite database (overrides dataset.db)")
	cmd.PersistentFlags().BoolVar(&opts.NoSimulate, "no-simulate", false, "disable simulated latency and errors")

	cmd.AddCommand(NewPageCommand(opts))
	cmd.AddCommand(NewRowCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))

	return cmd
}

// Config loads the configuration once and applies flag overrides.
func (o *RootOptions) Config() (config.Config, error) {
	if o.cfg != nil {
		return *o.cfg, nil
	}

	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if o.Dataset != "" {
		cfg.Dataset.Path = o.Dataset
	}
	if o.DB != "" {
		cfg.Dataset.DB = o.DB
	}
	if o.NoSimulate {
		cfg.Simulation.Enabled = false
	}

	o.cfg = &cfg
	return cfg, nil
}

// Logger builds the slog logger described by cfg. --verbose forces debug.
func (o *RootOptions) Logger(cfg config.Config, w io.Writer) *slog.Logger {
	level, err := cfg.LogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	if o.Verbose {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
