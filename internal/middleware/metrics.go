package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/reloved/flutter-openwrap-sdk/internal/metrics"
)

// Metrics records request count and latency by route template. m may be nil.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		m.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
