package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/tablekit/internal/dataset"
	"github.com/roach88/tablekit/internal/fetch"
	"github.com/roach88/tablekit/internal/querystate"
	"github.com/roach88/tablekit/internal/resolver"
	"github.com/roach88/tablekit/internal/row"
	"github.com/roach88/tablekit/internal/store"
	"github.com/roach88/tablekit/internal/testutil"
)

// codeUnknown marks a failed step whose error carries no code.
const codeUnknown = "ERROR"

// Harness executes one scenario against a fresh pipeline.
type Harness struct {
	adapter *fetch.Adapter
	state   *querystate.Store
}

// RunOption configures Run.
type RunOption func(*runOptions)

type runOptions struct {
	logger *slog.Logger
}

// WithLogger sets the logger handed to the adapter. Default: discard.
func WithLogger(l *slog.Logger) RunOption {
	return func(o *runOptions) { o.logger = l }
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory store seeded with its
// dataset. The adapter has no simulated latency or failures and request
// ids come from a sequence, so repeated runs produce identical traces.
//
// A returned error means the scenario could not be executed (bad dataset,
// unknown intent). Step and assertion failures are reported in the Result.
func Run(ctx context.Context, s *Scenario, opts ...RunOption) (*Result, error) {
	o := runOptions{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	rows, err := loadDataset(ctx, s.Dataset)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if err := st.ReplaceAll(ctx, rows); err != nil {
		return nil, fmt.Errorf("seed store: %w", err)
	}

	adapter := fetch.New(st,
		fetch.WithPersister(st),
		fetch.WithSimulation(fetch.NoSimulation()),
		fetch.WithStrictQueries(s.Strict),
		fetch.WithIDGenerator(testutil.NewSequenceIDGenerator("req")),
		fetch.WithLogger(o.logger),
	)
	defer adapter.Close()

	h := &Harness{
		adapter: adapter,
		state:   querystate.NewStore(),
	}

	result := NewResult()
	for i, step := range s.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, err
		}
	}
	result.State = h.state.State()

	if err := EvaluateAssertions(ctx, st, s.Assertions, result); err != nil {
		return nil, err
	}
	return result, nil
}

func loadDataset(ctx context.Context, name string) ([]row.Row, error) {
	switch name {
	case "", DatasetFixture:
		return testutil.Rows(), nil
	case DatasetSample:
		return dataset.Sample(), nil
	}
	return dataset.FileSource{Path: name}.Load(ctx)
}

func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) error {
	switch step.Kind() {
	case StepIntent:
		in, err := querystate.ParseIntent(step.Intent, step.Args)
		if err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		h.state.Dispatch(in)
		result.record(TraceEvent{Step: StepIntent, Name: in.Name(), Args: step.Args})

	case StepFetchPage:
		page, err := h.adapter.FetchPage(ctx, h.state.State().Query)
		ev := TraceEvent{Step: StepFetchPage}
		if err == nil {
			ev.IDs = row.IDs(page.Rows)
			ev.Total = &page.Total
		}
		result.record(withCode(ev, err))
		checkPage(i, step.Expect, page, err, result)

	case StepFetchRow:
		r, err := h.adapter.FetchRow(ctx, step.FetchRow)
		result.record(withCode(TraceEvent{Step: StepFetchRow, ID: step.FetchRow}, err))
		checkRow(i, step.Expect, r, err, result)

	case StepUpdateRow:
		r, err := h.adapter.UpdateRow(ctx, step.UpdateRow, row.Patch(step.Patch))
		result.record(withCode(TraceEvent{Step: StepUpdateRow, ID: step.UpdateRow, Args: step.Patch}, err))
		checkRow(i, step.Expect, r, err, result)

	case StepDeleteRow:
		err := h.adapter.DeleteRow(ctx, step.DeleteRow)
		result.record(withCode(TraceEvent{Step: StepDeleteRow, ID: step.DeleteRow}, err))
		checkOutcome(i, step.Expect, err, result)

	default:
		return fmt.Errorf("steps[%d]: no action", i)
	}
	return nil
}

func withCode(ev TraceEvent, err error) TraceEvent {
	if err == nil {
		return ev
	}
	ev.Code = codeOf(err)
	return ev
}

func codeOf(err error) string {
	if c := fetch.CodeOf(err); c != "" {
		return string(c)
	}
	return codeUnknown
}

// checkOutcome compares err against the expected code. It reports whether
// the step succeeded as expected, so callers can go on to check the value.
func checkOutcome(i int, e *Expect, err error, result *Result) bool {
	want := ""
	if e != nil {
		want = e.Code
	}

	switch {
	case want == "" && err != nil:
		result.AddError(fmt.Sprintf("steps[%d]: unexpected error: %v", i, err))
	case want != "" && err == nil:
		result.AddError(fmt.Sprintf("steps[%d]: expected code %s, got success", i, want))
	case want != "" && codeOf(err) != want:
		result.AddError(fmt.Sprintf("steps[%d]: expected code %s, got %s (%v)", i, want, codeOf(err), err))
	}
	return want == "" && err == nil
}

func checkPage(i int, e *Expect, page resolver.Page, err error, result *Result) {
	if !checkOutcome(i, e, err, result) || e == nil {
		return
	}
	if e.IDs != nil {
		if got := row.IDs(page.Rows); !slices.Equal(got, e.IDs) {
			result.AddError(fmt.Sprintf("steps[%d]: expected ids %v, got %v", i, e.IDs, got))
		}
	}
	if e.Total != nil && *e.Total != page.Total {
		result.AddError(fmt.Sprintf("steps[%d]: expected total %d, got %d", i, *e.Total, page.Total))
	}
	if e.TotalPages != nil && *e.TotalPages != page.TotalPages {
		result.AddError(fmt.Sprintf("steps[%d]: expected total_pages %d, got %d", i, *e.TotalPages, page.TotalPages))
	}
}

func checkRow(i int, e *Expect, r row.Row, err error, result *Result) {
	if !checkOutcome(i, e, err, result) || e == nil {
		return
	}
	if msg := matchRow(r, e.Row); msg != "" {
		result.AddError(fmt.Sprintf("steps[%d]: %s", i, msg))
	}
}
