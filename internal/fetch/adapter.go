package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/tablekit/internal/metrics"
	"github.com/roach88/tablekit/internal/queryir"
	"github.com/roach88/tablekit/internal/resolver"
	"github.com/roach88/tablekit/internal/row"
)

// Operation names used in errors, logs and metrics.
const (
	OpFetchPage = "FetchPage"
	OpFetchRow  = "FetchRow"
	OpUpdateRow = "UpdateRow"
	OpDeleteRow = "DeleteRow"
)

// Adapter presents the resolver as a slow, fallible, cacheable backend.
//
// Reads resolve against a snapshot of the cached dataset. Mutations are
// applied by a single writer goroutine in arrival order, so an update that
// arrives after a delete of the same row fails with NOT_FOUND.
//
// Close must be called to stop the writer.
type Adapter struct {
	cache     *Cache
	resolver  *resolver.Resolver
	sim       *simulator
	strict    bool
	persister Persister
	metrics   *metrics.Metrics
	logger    *slog.Logger
	ids       IDGenerator
	writer    *writer
	closeOnce sync.Once
}

// Option configures an Adapter.
type Option func(*options)

type options struct {
	sim       Simulation
	chance    Chance
	sleeper   Sleeper
	resolver  *resolver.Resolver
	strict    bool
	persister Persister
	metrics   *metrics.Metrics
	logger    *slog.Logger
	ids       IDGenerator
}

// WithSimulation sets latency ranges and error rate. Default: DefaultSimulation.
func WithSimulation(s Simulation) Option {
	return func(o *options) { o.sim = s }
}

// WithChance sets the random source for latency and error injection.
func WithChance(c Chance) Option {
	return func(o *options) { o.chance = c }
}

// WithSleeper sets how simulated latency is waited out.
func WithSleeper(s Sleeper) Option {
	return func(o *options) { o.sleeper = s }
}

// WithResolver sets the resolver. Default: English collation.
func WithResolver(r *resolver.Resolver) Option {
	return func(o *options) { o.resolver = r }
}

// WithStrictQueries rejects queries that fail queryir.Validate with
// BAD_REQUEST instead of resolving them permissively.
func WithStrictQueries(strict bool) Option {
	return func(o *options) { o.strict = strict }
}

// WithPersister writes every mutation through to p.
func WithPersister(p Persister) Option {
	return func(o *options) { o.persister = p }
}

// WithMetrics records operations on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithIDGenerator sets the request id generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(o *options) { o.ids = g }
}

// New creates an adapter over source and starts its writer.
func New(source Source, opts ...Option) *Adapter {
	o := options{
		sim:     DefaultSimulation(),
		chance:  RandomChance{},
		sleeper: TimerSleeper{},
		ids:     UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.resolver == nil {
		o.resolver = resolver.New()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	m := o.metrics
	counted := SourceFunc(func(ctx context.Context) ([]row.Row, error) {
		m.CacheLoad()
		return source.Load(ctx)
	})

	return &Adapter{
		cache:     NewCache(counted),
		resolver:  o.resolver,
		sim:       &simulator{sim: o.sim, chance: o.chance, sleeper: o.sleeper},
		strict:    o.strict,
		persister: o.persister,
		metrics:   o.metrics,
		logger:    o.logger,
		ids:       o.ids,
		writer:    startWriter(o.logger),
	}
}

// FetchPage resolves q against the dataset.
func (a *Adapter) FetchPage(ctx context.Context, q queryir.Query) (resolver.Page, error) {
	start, reqID := time.Now(), a.ids.Generate()
	page, err := a.fetchPage(ctx, q)
	a.observe(OpFetchPage, reqID, start, err, "page", q.Page, "total", page.Total)
	return page, err
}

func (a *Adapter) fetchPage(ctx context.Context, q queryir.Query) (resolver.Page, error) {
	if a.strict {
		if res := queryir.Validate(q); !res.Valid {
			return resolver.Page{}, BadRequestError(OpFetchPage, res.Err())
		}
	}
	if err := a.sim.read(ctx, OpFetchPage); err != nil {
		return resolver.Page{}, err
	}
	rows, err := a.dataset(ctx, OpFetchPage)
	if err != nil {
		return resolver.Page{}, err
	}
	return a.resolver.Resolve(rows, q), nil
}

// FetchRow returns the row with id.
func (a *Adapter) FetchRow(ctx context.Context, id string) (row.Row, error) {
	start, reqID := time.Now(), a.ids.Generate()
	r, err := a.fetchRow(ctx, id)
	a.observe(OpFetchRow, reqID, start, err, "id", id)
	return r, err
}

func (a *Adapter) fetchRow(ctx context.Context, id string) (row.Row, error) {
	if err := a.sim.read(ctx, OpFetchRow); err != nil {
		return row.Row{}, err
	}
	rows, err := a.dataset(ctx, OpFetchRow)
	if err != nil {
		return row.Row{}, err
	}
	i := row.IndexOf(rows, id)
	if i < 0 {
		return row.Row{}, NotFoundError(OpFetchRow, id)
	}
	return rows[i].Clone(), nil
}

// UpdateRow merges patch into the row with id and returns the merged row.
// A later FetchRow or FetchPage observes the change.
func (a *Adapter) UpdateRow(ctx context.Context, id string, patch row.Patch) (row.Row, error) {
	start, reqID := time.Now(), a.ids.Generate()
	r, err := a.updateRow(ctx, id, patch)
	a.observe(OpUpdateRow, reqID, start, err, "id", id, "fields", patch.Fields())
	return r, err
}

func (a *Adapter) updateRow(ctx context.Context, id string, patch row.Patch) (row.Row, error) {
	if err := a.sim.write(ctx, OpUpdateRow); err != nil {
		return row.Row{}, err
	}
	return a.writer.submit(ctx, OpUpdateRow, id, func(ctx context.Context) (row.Row, error) {
		rows, err := a.dataset(ctx, OpUpdateRow)
		if err != nil {
			return row.Row{}, err
		}
		i := row.IndexOf(rows, id)
		if i < 0 {
			return row.Row{}, NotFoundError(OpUpdateRow, id)
		}
		merged, err := patch.Apply(rows[i])
		if err != nil {
			return row.Row{}, BadRequestError(OpUpdateRow, err)
		}
		if a.persister != nil {
			if err := a.persister.SaveRow(ctx, merged); err != nil {
				return row.Row{}, SourceError(OpUpdateRow, fmt.Errorf("persist row %q: %w", id, err))
			}
		}
		a.cache.Put(merged)
		return merged.Clone(), nil
	})
}

// DeleteRow removes the row with id.
func (a *Adapter) DeleteRow(ctx context.Context, id string) error {
	start, reqID := time.Now(), a.ids.Generate()
	err := a.deleteRow(ctx, id)
	a.observe(OpDeleteRow, reqID, start, err, "id", id)
	return err
}

func (a *Adapter) deleteRow(ctx context.Context, id string) error {
	if err := a.sim.write(ctx, OpDeleteRow); err != nil {
		return err
	}
	_, err := a.writer.submit(ctx, OpDeleteRow, id, func(ctx context.Context) (row.Row, error) {
		rows, err := a.dataset(ctx, OpDeleteRow)
		if err != nil {
			return row.Row{}, err
		}
		if row.IndexOf(rows, id) < 0 {
			return row.Row{}, NotFoundError(OpDeleteRow, id)
		}
		if a.persister != nil {
			if err := a.persister.DeleteRow(ctx, id); err != nil {
				return row.Row{}, SourceError(OpDeleteRow, fmt.Errorf("persist delete %q: %w", id, err))
			}
		}
		a.cache.Remove(id)
		return row.Row{}, nil
	})
	return err
}

// Invalidate drops the cached dataset; the next read reloads from the source.
func (a *Adapter) Invalidate() {
	a.cache.Invalidate()
	a.logger.Debug("dataset cache invalidated")
}

// Close stops the writer after applying queued mutations. Mutations
// submitted afterwards fail with ErrClosed. Close is idempotent.
func (a *Adapter) Close() error {
	a.closeOnce.Do(a.writer.close)
	return nil
}

// dataset returns the cached rows, loading them on a miss.
func (a *Adapter) dataset(ctx context.Context, op string) ([]row.Row, error) {
	a.metrics.CacheLookup(a.cache.Loaded())
	rows, err := a.cache.GetOrLoad(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, SourceError(op, err)
	}
	return rows, nil
}

func (a *Adapter) observe(op, reqID string, start time.Time, err error, attrs ...any) {
	d := time.Since(start)
	a.metrics.ObserveOperation(op, string(codeLabel(err)), d)

	attrs = append([]any{"op", op, "request_id", reqID, "duration", d}, attrs...)
	if err != nil {
		attrs = append(attrs, "error", err)
		a.logger.Warn("operation failed", attrs...)
		return
	}
	a.logger.Debug("operation completed", attrs...)
}

func codeLabel(err error) Code {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "CANCELED"
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	}
	if c := CodeOf(err); c != "" {
		return c
	}
	return "INTERNAL"
}
