package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tablekit/internal/dataset"
	"github.com/roach88/tablekit/internal/row"
	"github.com/roach88/tablekit/internal/schema"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                     `json:"valid"`
	Rows   int                      `json:"rows"`
	Errors []schema.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <rows.json>",
		Short: "Check a rows file against the row schema",
		Long: `Check a JSON rows file against the row schema.

Every problem is reported, not just the first: missing or mistyped
fields, unknown statuses, negative values, malformed dates and
duplicate ids.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("file not found: %s", path), nil)
		}
		return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	f.VerboseLog("Validating %s (%d bytes)", path, len(data))

	rows, err := dataset.Decode(data)
	if err != nil {
		var errs schema.Errors
		if !errors.As(err, &errs) {
			return f.Fail(ExitFailure, ErrCodeInvalidData, err.Error(), nil)
		}
		return outputValidationErrors(f, path, errs)
	}

	result := ValidationResult{Valid: true, Rows: len(rows)}
	return f.Render(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ %s: %d rows valid\n", path, len(rows))
		if f.Verbose {
			writeStatusCounts(w, rows)
		}
	})
}

func outputValidationErrors(f *OutputFormatter, path string, errs schema.Errors) error {
	if f.JSON() {
		if err := f.Error(ErrCodeInvalidData, fmt.Sprintf("%d schema error(s)", len(errs)), ValidationResult{Errors: errs}); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(f.Writer, "✗ %s: %d schema error(s)\n", path, len(errs))
		for _, e := range errs {
			fmt.Fprintf(f.Writer, "  %s\n", e.Error())
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%s: %d schema error(s)", path, len(errs)))
}

func writeStatusCounts(w io.Writer, rows []row.Row) {
	counts := make(map[row.Status]int)
	for _, r := range rows {
		counts[r.Status]++
	}
	for _, s := range []row.Status{row.StatusActive, row.StatusInactive, row.StatusPending, row.StatusArchived} {
		fmt.Fprintf(w, "  %-9s %d\n", s, counts[s])
	}
}
