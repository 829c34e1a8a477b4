package harness

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/tablekit/internal/queryir"
	"github.com/roach88/tablekit/internal/querystate"
	"github.com/roach88/tablekit/internal/row"
)

// RowLookup reads persisted rows. *store.Store implements it.
type RowLookup interface {
	Get(ctx context.Context, id string) (row.Row, bool, error)
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s", event.Seq, event.Label())
			if event.ID != "" {
				fmt.Fprintf(&buf, " %s", event.ID)
			}
			if event.Code != "" {
				fmt.Fprintf(&buf, " -> %s", event.Code)
			}
			buf.WriteByte('\n')
		}
	}

	return buf.String()
}

// EvaluateAssertions runs every assertion and records failures on result.
// The returned error is reserved for lookups that could not run.
func EvaluateAssertions(ctx context.Context, rows RowLookup, assertions []Assertion, result *Result) error {
	for _, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertFinalQuery:
			err = assertFinalQuery(result.State, a)
		case AssertFinalSelection:
			err = assertFinalSelection(result.State, a)
		case AssertFinalRow:
			err = assertFinalRow(ctx, rows, a)
		default:
			return fmt.Errorf("unknown assertion type %q", a.Type)
		}

		var ae *AssertionError
		switch {
		case err == nil:
		case errors.As(err, &ae):
			result.AddError(ae.Error())
		default:
			return err
		}
	}
	return nil
}

// assertTraceContains checks that a step with the given label was executed.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if event.Label() == a.Step {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("step %s", a.Step),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that steps first appear in the given order.
// Intervening steps are allowed.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		label := event.Label()
		if slices.Contains(a.Steps, label) && positions[label] == 0 {
			positions[label] = i + 1
		}
	}

	for _, step := range a.Steps {
		if positions[step] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all steps present: %v", a.Steps),
				Actual:   fmt.Sprintf("missing step: %s", step),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Steps); i++ {
		prev, curr := a.Steps[i-1], a.Steps[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("steps in order: %v", a.Steps),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that a step appears exactly Count times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Label() == a.Step {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, a.Step),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

var queryFieldNames = []string{"page", "page_size", "search", "sort", "filters"}

func isQueryField(name string) bool {
	return slices.Contains(queryFieldNames, name)
}

// queryFields flattens q for comparison. Sort renders as "field:direction"
// (empty when unsorted); filters as their count.
func queryFields(q queryir.Query) map[string]any {
	sort := ""
	if q.Sort != nil {
		sort = q.Sort.Field + ":" + string(q.Sort.Direction)
	}
	return map[string]any{
		"page":      q.Page,
		"page_size": q.PageSize,
		"search":    q.Search,
		"sort":      sort,
		"filters":   len(q.Filters),
	}
}

// assertFinalQuery checks fields of the final query (subset match).
func assertFinalQuery(state querystate.State, a Assertion) error {
	actual := queryFields(state.Query)
	for _, key := range slices.Sorted(maps.Keys(a.Expect)) {
		if !sameValue(a.Expect[key], actual[key]) {
			return &AssertionError{
				Type:     AssertFinalQuery,
				Expected: fmt.Sprintf("%s = %v", key, a.Expect[key]),
				Actual:   fmt.Sprintf("%s = %v", key, actual[key]),
			}
		}
	}
	return nil
}

// assertFinalSelection checks the final selection, order included.
func assertFinalSelection(state querystate.State, a Assertion) error {
	if !slices.Equal(state.SelectedRows, a.IDs) {
		return &AssertionError{
			Type:     AssertFinalSelection,
			Expected: fmt.Sprintf("selection %v", a.IDs),
			Actual:   fmt.Sprintf("selection %v", state.SelectedRows),
		}
	}
	return nil
}

// assertFinalRow checks the persisted row, or that it is gone.
func assertFinalRow(ctx context.Context, rows RowLookup, a Assertion) error {
	r, ok, err := rows.Get(ctx, a.ID)
	if err != nil {
		return fmt.Errorf("final_row %s: %w", a.ID, err)
	}

	if a.Absent {
		if ok {
			return &AssertionError{
				Type:     AssertFinalRow,
				Expected: fmt.Sprintf("row %s absent", a.ID),
				Actual:   "row present",
			}
		}
		return nil
	}

	if !ok {
		return &AssertionError{
			Type:     AssertFinalRow,
			Expected: fmt.Sprintf("row %s", a.ID),
			Actual:   "row not found",
		}
	}
	if msg := matchRow(r, a.Expect); msg != "" {
		return &AssertionError{
			Type:     AssertFinalRow,
			Expected: fmt.Sprintf("row %s matching %v", a.ID, a.Expect),
			Actual:   msg,
		}
	}
	return nil
}

// matchRow checks expected fields against r (subset match) and describes
// the first mismatch, or returns "".
func matchRow(r row.Row, expected map[string]any) string {
	for _, key := range slices.Sorted(maps.Keys(expected)) {
		actual, ok := r.Field(key)
		if !ok {
			return fmt.Sprintf("row %s has no field %q", r.ID, key)
		}
		if !sameValue(expected[key], actual) {
			return fmt.Sprintf("row %s field %q = %s, want %s", r.ID, key, row.Stringify(actual), row.Stringify(expected[key]))
		}
	}
	return ""
}

// sameValue compares values by their rendered form, so YAML ints match
// float fields and date strings match timestamps.
func sameValue(expected, actual any) bool {
	return row.Stringify(expected) == row.Stringify(actual)
}
