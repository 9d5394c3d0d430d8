// Package middleware provides the Gin HTTP middleware for Logfold. Everything
// here is registered in internal/api/router.go before the route handlers so
// every request is covered regardless of handler.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader is the HTTP header used to propagate the request id.
	RequestIDHeader = "X-Request-ID"

	// RequestIDKey is the gin.Context key under which the request id is
	// stored for handlers and other middleware.
	RequestIDKey = "request_id"
)

// RequestID ensures every request carries a unique identifier. An inbound
// X-Request-ID set by an upstream proxy is reused unchanged; otherwise a new
// UUID v4 is generated. The id is stored in the gin context and echoed back in
// the response header so clients can correlate with server-side logs.
//
// Register this as early as possible so all downstream logging includes the id.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}

		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)

		c.Next()
	}
}
