package telemetry

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// GinMiddleware logs every request and records its duration.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)

		HTTPRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).
			Observe(elapsed.Seconds())

		level := slog.LevelInfo
		if status >= 500 {
			level = slog.LevelError
		}
		slog.Log(c.Request.Context(), level, "http: request",
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration", elapsed,
			"client_ip", c.ClientIP(),
		)
	}
}
