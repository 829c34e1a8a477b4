package harness

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tablekit/internal/queryir"
	"github.com/roach88/tablekit/internal/querystate"
	"github.com/roach88/tablekit/internal/row"
	"github.com/roach88/tablekit/internal/testutil"
)

type lookupFunc func(ctx context.Context, id string) (row.Row, bool, error)

func (f lookupFunc) Get(ctx context.Context, id string) (row.Row, bool, error) { return f(ctx, id) }

func fixtureLookup() RowLookup {
	rows := testutil.Rows()
	return lookupFunc(func(_ context.Context, id string) (row.Row, bool, error) {
		i := row.IndexOf(rows, id)
		if i < 0 {
			return row.Row{}, false, nil
		}
		return rows[i], true, nil
	})
}

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Seq: 1, Step: StepIntent, Name: querystate.NameSetSearch},
		{Seq: 2, Step: StepFetchPage},
		{Seq: 3, Step: StepFetchRow, ID: "r9", Code: "NOT_FOUND"},
		{Seq: 4, Step: StepFetchPage},
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()
	assert.NoError(t, assertTraceContains(trace, Assertion{Step: querystate.NameSetSearch}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Step: StepFetchRow}))

	err := assertTraceContains(trace, Assertion{Step: StepDeleteRow})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertTraceContains, ae.Type)
	assert.Equal(t, "not found in trace", ae.Actual)
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()
	assert.NoError(t, assertTraceOrder(trace, Assertion{Steps: []string{querystate.NameSetSearch, StepFetchPage, StepFetchRow}}))

	err := assertTraceOrder(trace, Assertion{Steps: []string{StepFetchRow, StepFetchPage}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch_row (pos 3) should be before fetch_page (pos 2)")

	err = assertTraceOrder(trace, Assertion{Steps: []string{StepFetchPage, StepUpdateRow}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing step: update_row")
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()
	assert.NoError(t, assertTraceCount(trace, Assertion{Step: StepFetchPage, Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Step: StepDeleteRow, Count: 0}))

	err := assertTraceCount(trace, Assertion{Step: StepFetchPage, Count: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Expected: 1 occurrences of fetch_page")
	assert.Contains(t, err.Error(), "Actual: 2 occurrences")
}

func TestAssertionError_ListsTrace(t *testing.T) {
	err := &AssertionError{Type: "trace_count", Expected: "x", Actual: "y", Trace: sampleTrace()}
	msg := err.Error()
	assert.Contains(t, msg, "Full trace:")
	assert.Contains(t, msg, "[1] SET_SEARCH\n")
	assert.Contains(t, msg, "[3] fetch_row r9 -> NOT_FOUND\n")

	bare := (&AssertionError{Type: "final_row", Expected: "x", Actual: "y"}).Error()
	assert.NotContains(t, bare, "Full trace")
}

func TestAssertFinalQuery(t *testing.T) {
	q := queryir.Default()
	q.Page = 3
	q.Sort = &queryir.Sort{Field: "name", Direction: queryir.Desc}
	q.Search = "button"
	q.Filters = []queryir.Filter{{Field: "status", Operator: queryir.OpEquals, Value: "active"}}
	state := querystate.State{Query: q}

	assert.NoError(t, assertFinalQuery(state, Assertion{Expect: map[string]any{
		"page": 3, "page_size": 10, "sort": "name:desc", "search": "button", "filters": 1,
	}}))

	err := assertFinalQuery(state, Assertion{Expect: map[string]any{"page": 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Expected: page = 1")
	assert.Contains(t, err.Error(), "Actual: page = 3")

	assert.NoError(t, assertFinalQuery(querystate.Initial(), Assertion{Expect: map[string]any{"sort": "", "filters": 0}}))
}

func TestAssertFinalSelection(t *testing.T) {
	state := querystate.State{SelectedRows: []string{"r2", "r1"}}
	assert.NoError(t, assertFinalSelection(state, Assertion{IDs: []string{"r2", "r1"}}))
	assert.Error(t, assertFinalSelection(state, Assertion{IDs: []string{"r1", "r2"}}))

	assert.NoError(t, assertFinalSelection(querystate.Initial(), Assertion{}))
}

func TestAssertFinalRow(t *testing.T) {
	ctx := context.Background()
	rows := fixtureLookup()

	assert.NoError(t, assertFinalRow(ctx, rows, Assertion{ID: "r3", Expect: map[string]any{
		"status": "archived", "value": 75.5, "owner": "design", "date": "2024-01-07T00:00:00Z",
	}}))
	assert.NoError(t, assertFinalRow(ctx, rows, Assertion{ID: "r1", Expect: map[string]any{"tags": []any{"primary", "ui"}}}))
	assert.NoError(t, assertFinalRow(ctx, rows, Assertion{ID: "gone", Absent: true}))

	err := assertFinalRow(ctx, rows, Assertion{ID: "r1", Absent: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row present")

	err = assertFinalRow(ctx, rows, Assertion{ID: "gone", Expect: map[string]any{"name": "x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row not found")

	err = assertFinalRow(ctx, rows, Assertion{ID: "r5", Expect: map[string]any{"owner": "design"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `row r5 has no field "owner"`)
}

func TestEvaluateAssertions(t *testing.T) {
	ctx := context.Background()

	result := NewResult()
	result.Trace = sampleTrace()
	err := EvaluateAssertions(ctx, fixtureLookup(), []Assertion{
		{Type: AssertTraceCount, Step: StepFetchPage, Count: 2},
		{Type: AssertTraceContains, Step: StepUpdateRow},
		{Type: AssertFinalRow, ID: "r1", Expect: map[string]any{"name": "Primary Button"}},
	}, result)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "trace_contains")

	boom := errors.New("disk gone")
	failing := lookupFunc(func(context.Context, string) (row.Row, bool, error) { return row.Row{}, false, boom })
	err = EvaluateAssertions(ctx, failing, []Assertion{{Type: AssertFinalRow, ID: "r1", Absent: true}}, NewResult())
	assert.ErrorIs(t, err, boom)

	err = EvaluateAssertions(ctx, failing, []Assertion{{Type: "final_state"}}, NewResult())
	assert.ErrorContains(t, err, "unknown assertion type")
}

func TestMarshalSnapshot_Stable(t *testing.T) {
	trace := []TraceEvent{
		{Seq: 1, Step: StepIntent, Name: querystate.NameSetSort, Args: map[string]any{"field": "value", "direction": "desc"}},
		{Seq: 2, Step: StepFetchPage, IDs: []string{"r1"}, Total: ptr(1)},
	}
	data, err := MarshalSnapshot("stable", trace)
	require.NoError(t, err)

	want := `{
  "scenario_name": "stable",
  "trace": [
    {
      "seq": 1,
      "step": "intent",
      "name": "SET_SORT",
      "args": {
        "direction": "desc",
        "field": "value"
      }
    },
    {
      "seq": 2,
      "step": "fetch_page",
      "ids": [
        "r1"
      ],
      "total": 1
    }
  ]
}`
	assert.Equal(t, want, string(data))
}
