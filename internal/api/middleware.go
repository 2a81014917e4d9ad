package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dws-network/dws-cache/internal/cache"
)

// exemptPaths are never rate limited so probes and scrapes stay reliable
// under caller abuse.
var exemptPaths = map[string]bool{
	"/cache/health":  true,
	"/cache/metrics": true,
}

// callerKey identifies the caller for rate accounting: owner address first,
// then the usual proxy headers, then the transport address.
func callerKey(c *gin.Context) string {
	if owner := c.GetHeader("x-owner-address"); owner != "" {
		return owner
	}
	if fwd := c.GetHeader("x-forwarded-for"); fwd != "" {
		return fwd
	}
	if real := c.GetHeader("x-real-ip"); real != "" {
		return real
	}
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}

// rateLimitMiddleware enforces the process-wide RPS guard and the per-caller
// fixed window, attaching the X-RateLimit-* contract headers.
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if exemptPaths[c.FullPath()] || exemptPaths[c.Request.URL.Path] {
			c.Next()
			return
		}
		if !s.limiter.AllowGlobal() {
			s.metrics.RateLimited.Inc()
			writeError(c, cache.NewError(cache.CodeRateLimited, "service is over capacity"))
			return
		}

		d := s.limiter.Allow(callerKey(c))
		c.Header("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
		if !d.Allowed {
			s.metrics.RateLimited.Inc()
			c.Header("Retry-After", strconv.FormatInt(d.RetryAfter, 10))
			err := cache.NewError(cache.CodeRateLimited, "rate limit exceeded")
			err.RetryAfter = d.RetryAfter
			writeError(c, err)
			return
		}
		c.Next()
	}
}

// metricsMiddleware records the request counter and latency histogram.
func (s *Server) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.ObserveRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// tracingMiddleware opens one span per request against the global tracer
// provider. Without an exporter configured the spans are no-ops.
func tracingMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("dws-cache/api")
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.route", route),
			),
		)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		span.SetAttributes(attribute.Int("http.status_code", c.Writer.Status()))
		span.End()
	}
}
