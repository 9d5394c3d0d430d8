package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/logfold/logfold/internal/telemetry"
)

// Metrics records request count and latency for every request that passes
// through the router.
//
// The path label comes from c.FullPath(), the matched route template rather
// than the raw URL, so /v1/logs/:id yields one label value. Requests that
// match no route use "<no-route>" to keep label cardinality bounded.
//
// Register after gin.Recovery() and RequestID so the status set by error
// handlers is captured.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "<no-route>"
		}

		duration := time.Since(start).Seconds()
		method := c.Request.Method
		status := fmt.Sprintf("%d", c.Writer.Status())

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}
