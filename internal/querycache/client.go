// Package querycache layers a stale-time result cache and a retry policy
// over the fetch adapter, the way a UI query hook consumes a backend.
//
// Reads (Page, Row) are cached per query key for StaleTime and retried
// with exponential backoff on transient errors; identical concurrent reads
// share one fetch. Mutations run once, then drop every cached page and
// refresh or drop the cached row.
package querycache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/tablekit/internal/fetch"
	"github.com/roach88/tablekit/internal/metrics"
	"github.com/roach88/tablekit/internal/queryir"
	"github.com/roach88/tablekit/internal/resolver"
	"github.com/roach88/tablekit/internal/retry"
	"github.com/roach88/tablekit/internal/row"
)

// DefaultStaleTime is how long a cached read is served without refetching.
const DefaultStaleTime = 5 * time.Minute

// Fetcher is the backend the client reads through. *fetch.Adapter implements it.
type Fetcher interface {
	FetchPage(ctx context.Context, q queryir.Query) (resolver.Page, error)
	FetchRow(ctx context.Context, id string) (row.Row, error)
	UpdateRow(ctx context.Context, id string, patch row.Patch) (row.Row, error)
	DeleteRow(ctx context.Context, id string) error
}

var _ Fetcher = (*fetch.Adapter)(nil)

type entry[T any] struct {
	val T
	at  time.Time
}

// Client caches reads and invalidates them on writes. Safe for concurrent use.
type Client struct {
	fetcher   Fetcher
	staleTime time.Duration
	retry     retry.Config
	timeout   time.Duration
	now       func() time.Time
	metrics   *metrics.Metrics
	logger    *slog.Logger

	mu    sync.Mutex
	pages map[string]entry[resolver.Page]
	rows  map[string]entry[row.Row]
	gen   uint64 // bumped on invalidation; in-flight results from older generations are not stored

	group singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithStaleTime sets how long results are served from cache.
// Zero disables caching (every read fetches).
func WithStaleTime(d time.Duration) Option {
	return func(c *Client) { c.staleTime = d }
}

// WithRetry sets the read retry policy. ShouldRetry defaults to
// fetch.IsRetryable when left nil.
func WithRetry(cfg retry.Config) Option {
	return func(c *Client) { c.retry = cfg }
}

// WithTimeout bounds every attempt with fetch.WithTimeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithClock sets the time source for staleness checks.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithMetrics records cache lookups and retries on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client over f.
func New(f Fetcher, opts ...Option) *Client {
	c := &Client{
		fetcher:   f,
		staleTime: DefaultStaleTime,
		retry:     retry.DefaultConfig(),
		now:       time.Now,
		pages:     make(map[string]entry[resolver.Page]),
		rows:      make(map[string]entry[row.Row]),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.ShouldRetry == nil {
		c.retry.ShouldRetry = fetch.IsRetryable
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Page returns the resolved page for q, from cache when fresh.
func (c *Client) Page(ctx context.Context, q queryir.Query) (resolver.Page, error) {
	key, err := queryir.Key(q)
	if err != nil {
		return resolver.Page{}, fetch.BadRequestError(fetch.OpFetchPage, err)
	}

	c.mu.Lock()
	e, ok := c.pages[key]
	fresh := ok && c.fresh(e.at)
	gen := c.gen
	c.mu.Unlock()
	c.metrics.QueryCacheLookup("page", fresh)
	if fresh {
		return e.val.Clone(), nil
	}

	v, err, _ := c.group.Do("page:"+key, func() (any, error) {
		page, err := read(ctx, c, fetch.OpFetchPage, func(ctx context.Context) (resolver.Page, error) {
			return c.fetcher.FetchPage(ctx, q)
		})
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.gen == gen {
			c.pages[key] = entry[resolver.Page]{val: page, at: c.now()}
		}
		c.mu.Unlock()
		return page, nil
	})
	if err != nil {
		return resolver.Page{}, err
	}
	return v.(resolver.Page).Clone(), nil
}

// Row returns the row with id, from cache when fresh.
func (c *Client) Row(ctx context.Context, id string) (row.Row, error) {
	c.mu.Lock()
	e, ok := c.rows[id]
	fresh := ok && c.fresh(e.at)
	gen := c.gen
	c.mu.Unlock()
	c.metrics.QueryCacheLookup("row", fresh)
	if fresh {
		return e.val.Clone(), nil
	}

	v, err, _ := c.group.Do("row:"+id, func() (any, error) {
		r, err := read(ctx, c, fetch.OpFetchRow, func(ctx context.Context) (row.Row, error) {
			return c.fetcher.FetchRow(ctx, id)
		})
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.gen == gen {
			c.rows[id] = entry[row.Row]{val: r, at: c.now()}
		}
		c.mu.Unlock()
		return r, nil
	})
	if err != nil {
		return row.Row{}, err
	}
	return v.(row.Row).Clone(), nil
}

// UpdateRow applies patch once, without retry. On success every cached page
// is dropped and the cached row is replaced by the merged row.
func (c *Client) UpdateRow(ctx context.Context, id string, patch row.Patch) (row.Row, error) {
	merged, err := once(ctx, c, fetch.OpUpdateRow, func(ctx context.Context) (row.Row, error) {
		return c.fetcher.UpdateRow(ctx, id, patch)
	})
	if err != nil {
		return row.Row{}, err
	}

	c.mu.Lock()
	c.invalidatePagesLocked()
	c.rows[id] = entry[row.Row]{val: merged, at: c.now()}
	c.mu.Unlock()
	return merged.Clone(), nil
}

// DeleteRow removes the row once, without retry. On success every cached
// page and the cached row are dropped.
func (c *Client) DeleteRow(ctx context.Context, id string) error {
	_, err := once(ctx, c, fetch.OpDeleteRow, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.fetcher.DeleteRow(ctx, id)
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.invalidatePagesLocked()
	delete(c.rows, id)
	c.mu.Unlock()
	return nil
}

// Invalidate drops every cached page and row.
func (c *Client) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidatePagesLocked()
	clear(c.rows)
}

func (c *Client) invalidatePagesLocked() {
	clear(c.pages)
	c.gen++
}

func (c *Client) fresh(at time.Time) bool {
	return c.staleTime > 0 && c.now().Sub(at) < c.staleTime
}

// read runs fn under the retry policy and optional timeout.
func read[T any](ctx context.Context, c *Client, op string, fn func(context.Context) (T, error)) (T, error) {
	cfg := c.retry
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		c.metrics.Retry(op)
		c.logger.Debug("retrying", "op", op, "attempt", attempt+1, "delay", delay, "error", err)
	}
	return retry.DoWithResult(ctx, cfg, func(ctx context.Context) (T, error) {
		return once(ctx, c, op, fn)
	})
}

// once runs fn a single time under the optional timeout.
func once[T any](ctx context.Context, c *Client, op string, fn func(context.Context) (T, error)) (T, error) {
	if c.timeout <= 0 {
		return fn(ctx)
	}
	return fetch.WithTimeout(ctx, c.timeout, op, fn)
}
