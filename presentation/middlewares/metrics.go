package middlewares

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hilthontt/lobby/infrastructure/metrics"
)

// MetricsMiddleware counts requests and records their latency, labelled by
// route template rather than raw path to keep cardinality bounded.
func MetricsMiddleware(m metrics.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		labels := []string{
			"method", c.Request.Method,
			"route", route,
			"status", strconv.Itoa(c.Writer.Status()),
		}

		ctx := c.Request.Context()
		m.IncrementCounter(ctx, metrics.HTTPRequestsTotal, labels...)
		m.RecordHistogram(ctx, metrics.HTTPRequestDuration, time.Since(start).Seconds(), labels...)
	}
}
