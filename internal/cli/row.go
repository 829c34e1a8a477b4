package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tablekit/internal/row"
)

// RowUpdateOptions holds flags for the row update command.
type RowUpdateOptions struct {
	*RootOptions
	Set   []string // field=value
	Patch string   // JSON object
}

// NewRowCommand creates the row command group.
func NewRowCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "row",
		Short: "Read, update or delete a single row",
		Long: `Read, update or delete a single row by id.

Changes are saved only when the rows come from a database (--db).`,
	}

	cmd.AddCommand(newRowGetCommand(rootOpts))
	cmd.AddCommand(newRowUpdateCommand(rootOpts))
	cmd.AddCommand(newRowDeleteCommand(rootOpts))
	return cmd
}

func newRowGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "get <id>",
		Short:         "Show one row",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(opts, cmd)
			p, err := openPipeline(opts, cmd, f)
			if err != nil {
				return err
			}
			defer p.Close()

			r, err := p.client.Row(cmd.Context(), args[0])
			if err != nil {
				return f.FailFetch(err)
			}
			return f.Render(r, func(w io.Writer) { writeRow(w, r) })
		},
	}
}

func newRowUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RowUpdateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Merge fields into a row",
		Long: `Merge fields into a row and print the result.

Values given with --set are parsed as JSON when possible, so numbers and
lists keep their type; anything else is a string. Fields outside the core
set are stored as metadata, and a null value removes a metadata key.

Examples:
  tablekit row update cmp-001 --set status=archived --set value=12.5
  tablekit row update cmp-001 --set 'tags=["ui","form"]'
  tablekit row update cmp-001 --patch '{"owner": null}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRowUpdate(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "field=value to change (repeatable)")
	cmd.Flags().StringVar(&opts.Patch, "patch", "", "JSON object of fields to change")
	return cmd
}

func runRowUpdate(opts *RowUpdateOptions, cmd *cobra.Command, id string) error {
	f := newFormatter(opts.RootOptions, cmd)

	patch, err := buildPatch(opts.Patch, opts.Set)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeBadArgs, err.Error(), nil)
	}

	p, err := openPipeline(opts.RootOptions, cmd, f)
	if err != nil {
		return err
	}
	defer p.Close()

	merged, err := p.client.UpdateRow(cmd.Context(), id, patch)
	if err != nil {
		return f.FailFetch(err)
	}
	return f.Render(merged, func(w io.Writer) { writeRow(w, merged) })
}

// buildPatch merges the --patch object with --set pairs; --set wins.
func buildPatch(raw string, sets []string) (row.Patch, error) {
	patch := row.Patch{}
	if raw != "" {
		dec := json.NewDecoder(strings.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&patch); err != nil {
			return nil, fmt.Errorf("--patch: %w", err)
		}
	}
	for _, s := range sets {
		field, value, ok := strings.Cut(s, "=")
		if !ok || field == "" {
			return nil, fmt.Errorf("--set %q: expected field=value", s)
		}
		patch[field] = parseSetValue(value)
	}
	if len(patch) == 0 {
		return nil, fmt.Errorf("nothing to update: use --set or --patch")
	}
	return patch, nil
}

func parseSetValue(s string) any {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return s
	}
	return v
}

func newRowDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <id>",
		Short:         "Delete a row",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(opts, cmd)
			p, err := openPipeline(opts, cmd, f)
			if err != nil {
				return err
			}
			defer p.Close()

			id := args[0]
			if err := p.client.DeleteRow(cmd.Context(), id); err != nil {
				return f.FailFetch(err)
			}
			return f.Render(map[string]string{"deleted": id}, func(w io.Writer) {
				fmt.Fprintf(w, "Deleted %s\n", id)
			})
		},
	}
}
