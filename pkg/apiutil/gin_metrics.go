package apiutil

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mpalomaki/nick/pkg/metrics"
)

// MetricsMiddleware records HTTP request counts and durations for Prometheus
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		// Use full route path (e.g., /api/v1/documents/:id)
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		status := fmt.Sprintf("%d", c.Writer.Status())
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, path, status).Inc()
		metrics.HTTPLatency.WithLabelValues(path).Observe(time.Since(start).Seconds())
	}
}
