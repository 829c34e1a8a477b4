package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tablekit/internal/dataset"
	"github.com/roach88/tablekit/internal/fetch"
	"github.com/roach88/tablekit/internal/schema"
	"github.com/roach88/tablekit/internal/store"
)

// ImportResult is the outcome of an import.
type ImportResult struct {
	DB     string `json:"db"`
	Source string `json:"source"`
	Rows   int    `json:"rows"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [rows.json]",
		Short: "Load rows into a SQLite database",
		Long: `Validate a JSON rows file and replace the contents of a SQLite database
with it. Without a file the embedded sample dataset is imported.

The database comes from --db or dataset.db in the config. Row order is
kept: pages without a sort list rows in file order.

Examples:
  tablekit import --db rows.db
  tablekit import catalog.json --db rows.db`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runImport(rootOpts, path, cmd)
		},
	}

	return cmd
}

func runImport(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	cfg, err := opts.Config()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}
	if cfg.Dataset.DB == "" {
		return f.Fail(ExitCommandError, ErrCodeBadArgs, "no database: use --db or set dataset.db", nil)
	}

	var source fetch.Source = dataset.SampleSource{}
	label := "sample"
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("file not found: %s", path), nil)
		}
		source = dataset.FileSource{Path: path}
		label = path
	}

	rows, err := source.Load(cmd.Context())
	if err != nil {
		var errs schema.Errors
		if errors.As(err, &errs) {
			return outputValidationErrors(f, label, errs)
		}
		return f.Fail(ExitFailure, ErrCodeInvalidData, err.Error(), nil)
	}

	st, err := store.Open(cfg.Dataset.DB)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeSource, fmt.Sprintf("open database: %v", err), nil)
	}
	defer st.Close()

	if err := st.ReplaceAll(cmd.Context(), rows); err != nil {
		return f.Fail(ExitFailure, ErrCodeWriteFailed, err.Error(), nil)
	}
	f.VerboseLog("Wrote %d rows to %s", len(rows), cfg.Dataset.DB)

	result := ImportResult{DB: cfg.Dataset.DB, Source: label, Rows: len(rows)}
	return f.Render(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Imported %d rows from %s into %s\n", result.Rows, label, result.DB)
	})
}
