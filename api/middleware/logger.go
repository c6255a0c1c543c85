package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"example.com/mci/services/delivery/internal/metrics"
)

// RequestLogger logs every request after it completes and feeds the
// in-process HTTP counters. Statuses below 400 count as successes.
func RequestLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		elapsed := time.Since(start)
		status := c.Writer.Status()

		metrics.GetMetricsCollector().RecordHTTPRequest(c.FullPath(), status < 400, elapsed)

		entry := log.WithFields(logrus.Fields{
			"status":     status,
			"latency_ms": elapsed.Milliseconds(),
			"client_ip":  c.ClientIP(),
			"method":     c.Request.Method,
			"path":       path,
			"owner_id":   c.GetString(OwnerContextKey),
		})

		switch {
		case status >= 500:
			entry.Error("Request failed")
		case status >= 400:
			entry.Warn("Request rejected")
		default:
			entry.Info("Request completed")
		}
	}
}
