package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tablekit/internal/fetch"
	"github.com/roach88/tablekit/internal/metrics"
	"github.com/roach88/tablekit/internal/querycache"
	"github.com/roach88/tablekit/internal/resolver"
	"github.com/roach88/tablekit/internal/retry"
	"github.com/roach88/tablekit/internal/row"
	"github.com/roach88/tablekit/internal/testutil"
)

type fixture struct {
	handler http.Handler
	metrics *metrics.Metrics
	reg     *prometheus.Registry
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	adapter := fetch.New(
		fetch.StaticSource(testutil.Rows()),
		fetch.WithSimulation(fetch.NoSimulation()),
		fetch.WithLogger(logger),
		fetch.WithMetrics(m),
	)
	t.Cleanup(func() { _ = adapter.Close() })

	client := querycache.New(adapter,
		querycache.WithRetry(retry.Config{}),
		querycache.WithLogger(logger),
	)

	base := []Option{
		WithLogger(logger),
		WithMetrics(m, reg),
		WithIDGenerator(testutil.NewSequenceIDGenerator("req")),
	}
	s := New(client, append(base, opts...)...)
	return &fixture{handler: s.Handler(), metrics: m, reg: reg}
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListRows(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/rows?pageSize=2&sort=value:desc&filter=status:equals:active", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	page := decode[resolver.Page](t, rec)
	assert.Equal(t, []string{"r1", "r4"}, row.IDs(page.Rows))
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 2, page.PageSize)
	assert.Equal(t, 2, page.TotalPages)
}

func TestListRows_SearchAndRepeatedFilters(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/rows?search=button&filter=value:gt:100&filter=category:in:Button,Input", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	page := decode[resolver.Page](t, rec)
	assert.Equal(t, []string{"r1"}, row.IDs(page.Rows))
}

func TestListRows_NumericFilterText(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		filter string
		want   []string
	}{
		{"value:equals:120", []string{"r1"}},
		{"value:equals:75.50", []string{"r3"}},
		{"value:in:120,40", []string{"r1", "r2"}},
		{"value:equals:abc", []string{}},
		{"name:equals:120", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, "/v1/rows?filter="+tt.filter, "")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			page := decode[resolver.Page](t, rec)
			assert.Equal(t, tt.want, row.IDs(page.Rows))
			assert.Equal(t, len(tt.want), page.Total)
		})
	}
}

func TestListRows_PagePastEnd(t *testing.T) {
	f := newFixture(t)

	for _, target := range []string{
		"/v1/rows?page=2",
		"/v1/rows?page=922337203685477582",
		"/v1/rows?page=9223372036854775807&pageSize=100",
	} {
		rec := f.do(t, http.MethodGet, target, "")
		require.Equal(t, http.StatusOK, rec.Code, target)
		page := decode[resolver.Page](t, rec)
		assert.Empty(t, page.Rows, target)
		assert.Equal(t, 6, page.Total, target)
	}
}

func TestListRows_BadParameters(t *testing.T) {
	f := newFixture(t)

	for _, target := range []string{
		"/v1/rows?page=abc",
		"/v1/rows?pageSize=1.5",
		"/v1/rows?sort=name:sideways",
		"/v1/rows?filter=status",
		"/v1/rows?filter=status:like:x",
	} {
		rec := f.do(t, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Equal(t, "BAD_REQUEST", decode[ErrorResponse](t, rec).Code, target)
	}
}

func TestQueryRows(t *testing.T) {
	f := newFixture(t)

	body := `{"pageSize": 3, "sort": {"field": "date", "direction": "asc"},
		"filters": [{"field": "tags", "operator": "in", "value": ["form", "ui"]}]}`
	rec := f.do(t, http.MethodPost, "/v1/rows/query", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	page := decode[resolver.Page](t, rec)
	assert.Equal(t, []string{"r2", "r1", "r4"}, row.IDs(page.Rows))
	assert.Equal(t, 4, page.Total)
	// page defaults to 1 when omitted
	assert.Equal(t, 1, page.Page)
}

func TestQueryRows_MalformedBody(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/v1/rows/query", `{"page": "one"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRow(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/rows/r3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	r := decode[row.Row](t, rec)
	assert.Equal(t, "Alert Banner", r.Name)
	assert.Equal(t, "design", r.Metadata["owner"])

	rec = f.do(t, http.MethodGet, "/v1/rows/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	e := decode[ErrorResponse](t, rec)
	assert.Equal(t, "NOT_FOUND", e.Code)
	assert.Equal(t, "nope", e.Details["id"])
}

func TestUpdateRow(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPatch, "/v1/rows/r2", `{"status": "active", "value": 55, "owner": "forms"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	r := decode[row.Row](t, rec)
	assert.Equal(t, row.StatusActive, r.Status)
	assert.Equal(t, 55.0, r.Value)
	assert.Equal(t, "forms", r.Metadata["owner"])

	// read-your-writes through the list endpoint
	rec = f.do(t, http.MethodGet, "/v1/rows?filter=status:equals:active&pageSize=10", "")
	page := decode[resolver.Page](t, rec)
	assert.Contains(t, row.IDs(page.Rows), "r2")
}

func TestUpdateRow_Errors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name, target, body string
		status             int
		code               string
	}{
		{"missing row", "/v1/rows/nope", `{"name": "x"}`, http.StatusNotFound, "NOT_FOUND"},
		{"bad value", "/v1/rows/r1", `{"status": "gone"}`, http.StatusBadRequest, "BAD_REQUEST"},
		{"empty patch", "/v1/rows/r1", `{}`, http.StatusBadRequest, "BAD_REQUEST"},
		{"not json", "/v1/rows/r1", `name=x`, http.StatusBadRequest, "BAD_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPatch, tt.target, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestDeleteRow(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodDelete, "/v1/rows/r5", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/rows/r5", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// update after delete
	rec = f.do(t, http.MethodPatch, "/v1/rows/r5", `{"name": "back"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodDelete, "/v1/rows/r5", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestID(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, "req-1", rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "caller-id")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, "caller-id", rec.Header().Get(RequestIDHeader))
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/v2/nothing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decode[ErrorResponse](t, rec).Code)
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, WithRateLimit(0.5, 2))

	for range 2 {
		rec := f.do(t, http.MethodGet, "/v1/rows/r1", "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := f.do(t, http.MethodGet, "/v1/rows/r1", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Equal(t, "RATE_LIMIT", decode[ErrorResponse](t, rec).Code)
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.RateLimited))

	// health checks are not limited
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", "").Code)
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodGet, "/v1/rows/r1", "")
	f.do(t, http.MethodGet, "/v1/rows/nope", "")

	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.HTTPRequests.WithLabelValues("GET", "/v1/rows/:id", "200")))
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.HTTPRequests.WithLabelValues("GET", "/v1/rows/:id", "404")))

	rec := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tablekit_http_requests_total")
	assert.Contains(t, rec.Body.String(), "tablekit_operations_total")
}

func TestListenAndServe_ShutsDownOnCancel(t *testing.T) {
	s := New(nil, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	cancel()
	assert.NoError(t, <-done)
}
