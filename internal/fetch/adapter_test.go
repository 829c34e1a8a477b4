package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/tablekit/internal/metrics"
	"github.com/roach88/tablekit/internal/queryir"
	"github.com/roach88/tablekit/internal/row"
	"github.com/roach88/tablekit/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestAdapter creates an adapter with no latency or errors over the
// fixture rows. It is closed when the test ends.
func newTestAdapter(t *testing.T, source Source, opts ...Option) *Adapter {
	t.Helper()
	if source == nil {
		source = StaticSource(testutil.Rows())
	}
	base := []Option{
		WithSimulation(NoSimulation()),
		WithSleeper(testutil.NewRecordingSleeper()),
		WithLogger(quietLogger()),
		WithIDGenerator(testutil.NewSequenceIDGenerator("req")),
	}
	a := New(source, append(base, opts...)...)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestAdapter_FetchPage(t *testing.T) {
	a := newTestAdapter(t, nil)

	q := queryir.Default()
	q.PageSize = 2
	q.Sort = &queryir.Sort{Field: "value", Direction: queryir.Desc}
	q.Filters = []queryir.Filter{{Field: "status", Operator: queryir.OpEquals, Value: "active"}}

	page, err := a.FetchPage(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r4"}, row.IDs(page.Rows))
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages)
}

func TestAdapter_FetchRow(t *testing.T) {
	a := newTestAdapter(t, nil)

	r, err := a.FetchRow(context.Background(), "r3")
	require.NoError(t, err)
	assert.Equal(t, "Alert Banner", r.Name)
}

func TestAdapter_FetchRowNotFoundIsDeterministic(t *testing.T) {
	a := newTestAdapter(t, nil)

	for range 3 {
		_, err := a.FetchRow(context.Background(), "nope")
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
		assert.False(t, IsRetryable(err))

		fe, ok := AsError(err)
		require.True(t, ok)
		assert.False(t, fe.Simulated)
		assert.Equal(t, 404, fe.Status)
	}
}

func TestAdapter_ReadYourWrites(t *testing.T) {
	a := newTestAdapter(t, nil)
	ctx := context.Background()

	merged, err := a.UpdateRow(ctx, "r2", row.Patch{"status": "active", "value": 55, "reviewer": "kim"})
	require.NoError(t, err)
	assert.Equal(t, row.StatusActive, merged.Status)
	assert.Equal(t, 55.0, merged.Value)
	assert.Equal(t, "kim", merged.Metadata["reviewer"])

	got, err := a.FetchRow(ctx, "r2")
	require.NoError(t, err)
	assert.Equal(t, merged, got)

	q := queryir.Default()
	q.Filters = []queryir.Filter{{Field: "status", Operator: queryir.OpEquals, Value: "active"}}
	page, err := a.FetchPage(ctx, q)
	require.NoError(t, err)
	assert.Contains(t, row.IDs(page.Rows), "r2")
}

func TestAdapter_UpdateErrors(t *testing.T) {
	a := newTestAdapter(t, nil)
	ctx := context.Background()

	_, err := a.UpdateRow(ctx, "missing", row.Patch{"name": "x"})
	assert.True(t, IsNotFound(err))

	_, err = a.UpdateRow(ctx, "r1", row.Patch{"value": "lots"})
	assert.Equal(t, CodeBadRequest, CodeOf(err))
	var pe *row.PatchError
	assert.ErrorAs(t, err, &pe)

	_, err = a.UpdateRow(ctx, "r1", row.Patch{"id": "r99"})
	assert.Equal(t, CodeBadRequest, CodeOf(err))

	// failed patches leave the row untouched
	r, err := a.FetchRow(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 120.0, r.Value)
}

func TestAdapter_DeleteRow(t *testing.T) {
	a := newTestAdapter(t, nil)
	ctx := context.Background()

	require.NoError(t, a.DeleteRow(ctx, "r4"))

	_, err := a.FetchRow(ctx, "r4")
	assert.True(t, IsNotFound(err))

	page, err := a.FetchPage(ctx, queryir.Default())
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)

	assert.True(t, IsNotFound(a.DeleteRow(ctx, "r4")))
}

func TestAdapter_UpdateAfterDeleteFails(t *testing.T) {
	a := newTestAdapter(t, nil)
	ctx := context.Background()

	require.NoError(t, a.DeleteRow(ctx, "r1"))
	_, err := a.UpdateRow(ctx, "r1", row.Patch{"name": "Resurrected"})
	assert.True(t, IsNotFound(err))

	_, err = a.FetchRow(ctx, "r1")
	assert.True(t, IsNotFound(err))
}

func TestAdapter_ConcurrentMutationsAllApply(t *testing.T) {
	a := newTestAdapter(t, nil)
	ctx := context.Background()

	var g errgroup.Group
	for i := range 20 {
		g.Go(func() error {
			_, err := a.UpdateRow(ctx, "r1", row.Patch{fmt.Sprintf("k%d", i): i})
			return err
		})
	}
	require.NoError(t, g.Wait())

	r, err := a.FetchRow(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, r.Metadata, 20)
}

func TestAdapter_ConcurrentReadsLoadOnce(t *testing.T) {
	src := &countingSource{rows: testutil.Rows()}
	a := newTestAdapter(t, src)

	var g errgroup.Group
	for range 10 {
		g.Go(func() error {
			_, err := a.FetchPage(context.Background(), queryir.Default())
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), src.loads.Load())
}

func TestAdapter_InvalidateReloadsFromSource(t *testing.T) {
	src := &countingSource{rows: testutil.Rows()}
	a := newTestAdapter(t, src)
	ctx := context.Background()

	_, err := a.UpdateRow(ctx, "r1", row.Patch{"name": "Changed"})
	require.NoError(t, err)

	a.Invalidate()

	// StaticSource still holds the original, so the change is gone
	r, err := a.FetchRow(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Primary Button", r.Name)
	assert.Equal(t, int32(2), src.loads.Load())
}

func TestAdapter_SourceFailureIsNetworkError(t *testing.T) {
	boom := errors.New("connection refused")
	a := newTestAdapter(t, SourceFunc(func(context.Context) ([]row.Row, error) { return nil, boom }))

	_, err := a.FetchPage(context.Background(), queryir.Default())
	assert.Equal(t, CodeNetwork, CodeOf(err))
	assert.ErrorIs(t, err, boom)
	assert.True(t, IsRetryable(err))
}

func TestAdapter_SimulatedErrors(t *testing.T) {
	// Zero-width latency ranges draw nothing, so each call consumes
	// exactly two values: the error roll and the code pick.
	tests := []struct {
		pick float64
		code Code
	}{
		{0.0, CodeNetwork},
		{0.2, CodeNotFound},
		{0.4, CodeUnauthorized},
		{0.6, CodeBadRequest},
		{0.8, CodeRateLimit},
		{0.9999, CodeRateLimit},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			a := newTestAdapter(t, nil,
				WithSimulation(Simulation{ErrorRate: 0.05}),
				WithChance(testutil.NewSequenceChance(0.01, tt.pick)),
			)

			_, err := a.FetchRow(context.Background(), "r1")
			require.Error(t, err)
			fe, ok := AsError(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, fe.Code)
			assert.Equal(t, tt.code.Status(), fe.Status)
			assert.True(t, fe.Simulated)
			assert.True(t, IsRetryable(err))
			if tt.code == CodeRateLimit {
				assert.Equal(t, 60*time.Second, fe.RetryAfter)
			}
		})
	}
}

func TestAdapter_ErrorRollAboveRatePasses(t *testing.T) {
	a := newTestAdapter(t, nil,
		WithSimulation(Simulation{ErrorRate: 0.05}),
		WithChance(testutil.ConstantChance(0.05)),
	)
	_, err := a.FetchRow(context.Background(), "r1")
	assert.NoError(t, err)
}

func TestAdapter_SimulatedMutationErrorDoesNotApply(t *testing.T) {
	a := newTestAdapter(t, nil,
		WithSimulation(Simulation{ErrorRate: 0.5}),
		WithChance(testutil.NewSequenceChance(0.1, 0.0, 0.9)),
	)
	ctx := context.Background()

	_, err := a.UpdateRow(ctx, "r1", row.Patch{"name": "Never"})
	require.Error(t, err)

	r, err := a.FetchRow(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Primary Button", r.Name)
}

func TestAdapter_LatencyRanges(t *testing.T) {
	sleeper := testutil.NewRecordingSleeper()
	a := newTestAdapter(t, nil,
		WithSimulation(DefaultSimulation()),
		WithChance(testutil.ConstantChance(0.5)),
		WithSleeper(sleeper),
	)
	ctx := context.Background()

	_, err := a.FetchPage(ctx, queryir.Default())
	require.NoError(t, err)
	_, err = a.UpdateRow(ctx, "r1", row.Patch{"name": "x"})
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{350 * time.Millisecond, 450 * time.Millisecond}, sleeper.Slept())
}

func TestAdapter_CancellationDuringLatency(t *testing.T) {
	a := newTestAdapter(t, nil,
		WithSimulation(DefaultSimulation()),
		WithSleeper(testutil.BlockingSleeper{}),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := a.FetchPage(ctx, queryir.Default())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAdapter_StrictQueries(t *testing.T) {
	sleeper := testutil.NewRecordingSleeper()
	a := newTestAdapter(t, nil, WithStrictQueries(true), WithSleeper(sleeper))

	q := queryir.Default()
	q.Filters = []queryir.Filter{{Field: "status", Operator: "like", Value: "x"}}
	_, err := a.FetchPage(context.Background(), q)
	assert.Equal(t, CodeBadRequest, CodeOf(err))
	assert.Empty(t, sleeper.Slept())

	// permissive by default
	b := newTestAdapter(t, nil)
	page, err := b.FetchPage(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 6, page.Total)
}

type recordingPersister struct {
	mu      sync.Mutex
	saved   []row.Row
	deleted []string
	err     error
}

func (p *recordingPersister) SaveRow(_ context.Context, r row.Row) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.saved = append(p.saved, r)
	return nil
}

func (p *recordingPersister) DeleteRow(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.deleted = append(p.deleted, id)
	return nil
}

func TestAdapter_Persister(t *testing.T) {
	p := &recordingPersister{}
	a := newTestAdapter(t, nil, WithPersister(p))
	ctx := context.Background()

	_, err := a.UpdateRow(ctx, "r5", row.Patch{"status": "active"})
	require.NoError(t, err)
	require.NoError(t, a.DeleteRow(ctx, "r6"))

	require.Len(t, p.saved, 1)
	assert.Equal(t, row.StatusActive, p.saved[0].Status)
	assert.Equal(t, []string{"r6"}, p.deleted)
}

func TestAdapter_PersisterFailureLeavesCache(t *testing.T) {
	p := &recordingPersister{err: errors.New("disk full")}
	a := newTestAdapter(t, nil, WithPersister(p))
	ctx := context.Background()

	_, err := a.UpdateRow(ctx, "r5", row.Patch{"status": "active"})
	assert.ErrorIs(t, err, p.err)
	assert.Equal(t, CodeNetwork, CodeOf(err))
	assert.Equal(t, CodeNetwork, CodeOf(a.DeleteRow(ctx, "r5")))

	r, err := a.FetchRow(ctx, "r5")
	require.NoError(t, err)
	assert.Equal(t, row.StatusInactive, r.Status)
}

func TestAdapter_Close(t *testing.T) {
	a := New(StaticSource(testutil.Rows()),
		WithSimulation(NoSimulation()),
		WithLogger(quietLogger()),
	)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	_, err := a.UpdateRow(context.Background(), "r1", row.Patch{"name": "x"})
	assert.ErrorIs(t, err, ErrClosed)

	// reads do not need the writer
	_, err = a.FetchRow(context.Background(), "r1")
	assert.NoError(t, err)
}

func TestAdapter_Metrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	a := newTestAdapter(t, nil, WithMetrics(m))
	ctx := context.Background()

	_, err := a.FetchPage(ctx, queryir.Default())
	require.NoError(t, err)
	_, err = a.FetchRow(ctx, "missing")
	require.Error(t, err)

	assert.Equal(t, 1.0, promtest.ToFloat64(m.Operations.WithLabelValues(OpFetchPage, "ok")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Operations.WithLabelValues(OpFetchRow, "NOT_FOUND")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.CacheLoads))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.CacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.CacheLookups.WithLabelValues("hit")))
}
