// Package server exposes the query pipeline over HTTP with gin.
//
// Routes:
//
//	GET    /healthz
//	GET    /metrics
//	GET    /v1/rows            ?page=&pageSize=&sort=field:dir&search=&filter=field:op:value
//	POST   /v1/rows/query      JSON query body
//	GET    /v1/rows/:id
//	PATCH  /v1/rows/:id        JSON patch body
//	DELETE /v1/rows/:id
//
// Errors are returned as {"code", "message", "details"} with the status of
// their fetch.Code.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/roach88/tablekit/internal/fetch"
	"github.com/roach88/tablekit/internal/metrics"
	"github.com/roach88/tablekit/internal/queryir"
	"github.com/roach88/tablekit/internal/resolver"
	"github.com/roach88/tablekit/internal/row"
)

// Backend serves the row operations. *querycache.Client implements it.
type Backend interface {
	Page(ctx context.Context, q queryir.Query) (resolver.Page, error)
	Row(ctx context.Context, id string) (row.Row, error)
	UpdateRow(ctx context.Context, id string, patch row.Patch) (row.Row, error)
	DeleteRow(ctx context.Context, id string) error
}

// ShutdownTimeout bounds graceful shutdown in ListenAndServe.
const ShutdownTimeout = 10 * time.Second

// Server is the HTTP facade over a Backend.
type Server struct {
	backend  Backend
	engine   *gin.Engine
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	ids      fetch.IDGenerator
	limit    rate.Limit
	burst    int
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics records HTTP metrics on m and serves g at /metrics.
func WithMetrics(m *metrics.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

// WithLogger sets the request logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithRateLimit allows rps requests per second per client with the given
// burst. rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		s.limit = rate.Limit(rps)
		s.burst = burst
	}
}

// WithIDGenerator sets how request ids are minted when the caller sends no
// X-Request-ID header.
func WithIDGenerator(g fetch.IDGenerator) Option {
	return func(s *Server) { s.ids = g }
}

// New builds the router.
func New(b Backend, opts ...Option) *Server {
	s := &Server{
		backend: b,
		ids:     fetch.UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestID(), s.observe())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(s.gatherer)))
	}

	v1 := r.Group("/v1")
	if s.limit > 0 {
		v1.Use(s.rateLimit(newClientLimiters(s.limit, s.burst)))
	}
	v1.GET("/rows", s.listRows)
	v1.POST("/rows/query", s.queryRows)
	v1.GET("/rows/:id", s.getRow)
	v1.PATCH("/rows/:id", s.updateRow)
	v1.DELETE("/rows/:id", s.deleteRow)

	r.NoRoute(func(c *gin.Context) {
		writeError(c, fetch.NewError(fetch.CodeNotFound, "route", "no route for "+c.Request.Method+" "+c.Request.URL.Path))
	})

	s.engine = r
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
