package server

import (
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/roach88/tablekit/internal/fetch"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// requestID reuses the caller's X-Request-ID or mints one.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = s.ids.Generate()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// observe records HTTP metrics and logs each request after it completes.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		d := time.Since(start)
		route := c.FullPath()
		status := c.Writer.Status()
		s.metrics.ObserveHTTP(c.Request.Method, route, status, d)

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", d,
			"request_id", c.GetString(requestIDKey),
		}
		if status >= http.StatusInternalServerError {
			s.logger.Warn("request failed", attrs...)
			return
		}
		s.logger.Debug("request", attrs...)
	}
}

// clientLimiters holds one token bucket per client IP.
type clientLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newClientLimiters(limit rate.Limit, burst int) *clientLimiters {
	return &clientLimiters{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

// get returns the limiter for ip, creating one if needed.
func (l *clientLimiters) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[ip] = limiter
	}
	return limiter
}

// retryAfter is how long until one token is available again.
func (l *clientLimiters) retryAfter() time.Duration {
	secs := math.Ceil(1 / float64(l.limit))
	return time.Duration(max(secs, 1)) * time.Second
}

// rateLimit rejects requests over the per-client rate with 429 RATE_LIMIT.
func (s *Server) rateLimit(l *clientLimiters) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = c.RemoteIP()
		}

		if !l.get(ip).Allow() {
			s.metrics.RateLimit()
			e := fetch.NewError(fetch.CodeRateLimit, "http", "rate limit exceeded")
			e.RetryAfter = l.retryAfter()
			writeError(c, e)
			return
		}
		c.Next()
	}
}
