package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/tablekit/internal/queryir"
	"github.com/roach88/tablekit/internal/resolver"
	"github.com/roach88/tablekit/internal/row"
)

// PageOptions holds flags for the page command.
type PageOptions struct {
	*RootOptions
	Page     int
	PageSize int
	Sort     string   // field:direction
	Search   string
	Filters  []string // field:operator:value
}

// NewPageCommand creates the page command.
func NewPageCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PageOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "page",
		Short: "Fetch one page of rows",
		Long: `Fetch one page of rows after filtering, searching and sorting.

Filters take the form field:operator:value and may be repeated; all must
match. Operators: equals, contains, gt, lt, gte, lte, in (comma separated
values).

Examples:
  tablekit page --page-size 5 --sort value:desc
  tablekit page --filter status:equals:active --filter value:gt:100
  tablekit page --search button --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPage(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Page, "page", queryir.DefaultPage, "page number (1-based)")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", queryir.DefaultPageSize, "rows per page")
	cmd.Flags().StringVar(&opts.Sort, "sort", "", "sort as field:asc|desc")
	cmd.Flags().StringVar(&opts.Search, "search", "", "case-insensitive text search")
	cmd.Flags().StringArrayVar(&opts.Filters, "filter", nil, "filter as field:operator:value (repeatable)")

	return cmd
}

func (o *PageOptions) query() (queryir.Query, error) {
	q := queryir.Default()
	q.Page = o.Page
	q.PageSize = o.PageSize
	q.Search = o.Search

	if o.Sort != "" {
		sort, err := queryir.ParseSort(o.Sort)
		if err != nil {
			return q, err
		}
		q.Sort = &sort
	}
	for _, raw := range o.Filters {
		f, err := queryir.ParseFilter(raw)
		if err != nil {
			return q, err
		}
		q.Filters = append(q.Filters, f)
	}
	return q, nil
}

func runPage(opts *PageOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	q, err := opts.query()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeBadArgs, err.Error(), nil)
	}

	p, err := openPipeline(opts.RootOptions, cmd, f)
	if err != nil {
		return err
	}
	defer p.Close()

	page, err := p.client.Page(cmd.Context(), q)
	if err != nil {
		return f.FailFetch(err)
	}

	return f.Render(page, func(w io.Writer) {
		writePage(w, page)
	})
}

func writePage(w io.Writer, page resolver.Page) {
	if len(page.Rows) == 0 {
		fmt.Fprintln(w, "No rows.")
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tCATEGORY\tVALUE\tDATE\tTAGS")
		for _, r := range page.Rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				r.ID, r.Name, r.Status, r.Category, formatValue(r.Value),
				r.Date.Format("2006-01-02"), strings.Join(r.Tags, ","))
		}
		tw.Flush()
	}
	fmt.Fprintf(w, "Page %d of %d (%d rows)\n", page.Page, page.TotalPages, page.Total)
}

func writeRow(w io.Writer, r row.Row) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "id:\t%s\n", r.ID)
	fmt.Fprintf(tw, "name:\t%s\n", r.Name)
	fmt.Fprintf(tw, "status:\t%s\n", r.Status)
	fmt.Fprintf(tw, "category:\t%s\n", r.Category)
	fmt.Fprintf(tw, "value:\t%s\n", formatValue(r.Value))
	fmt.Fprintf(tw, "date:\t%s\n", row.FormatDate(r.Date))
	if len(r.Tags) > 0 {
		fmt.Fprintf(tw, "tags:\t%s\n", strings.Join(r.Tags, ", "))
	}
	for _, k := range slices.Sorted(maps.Keys(r.Metadata)) {
		fmt.Fprintf(tw, "%s:\t%s\n", k, row.Stringify(r.Metadata[k]))
	}
	tw.Flush()
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
