package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"rentals/internal/pkg/metrics"
)

// Metrics records request latency by route template, not raw path.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
