package server

import (
	"time"

	"github.com/saravananbs/genchargephase2/internal/logger"

	"github.com/gin-gonic/gin"
)

// Probe and scrape traffic arrives every few seconds and would drown
// out real requests, so successful hits on these paths stay quiet.
var quietPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// RequestLoggingMiddleware emits one structured log line per request.
func RequestLoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		if _, quiet := quietPaths[path]; quiet && status < 400 {
			return
		}

		if raw != "" {
			path = path + "?" + raw
		}

		fields := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}
		logger.Info("HTTP request", fields...)
	}
}
