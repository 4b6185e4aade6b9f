package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/moyoez/snapshare/metrics"
	"github.com/moyoez/snapshare/tool"
)

// AccessLog logs each request on the shared logger and records its metrics.
// Streams are logged when they end.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		metrics.RecordHTTPRequest(c.Request.Method, route, status, elapsed)

		if status >= 500 {
			tool.DefaultLogger.Errorf("[HTTP] %s %s %d %s %s", c.Request.Method, c.Request.URL.Path, status, elapsed, c.ClientIP())
			return
		}
		tool.DefaultLogger.Debugf("[HTTP] %s %s %d %s %s", c.Request.Method, c.Request.URL.Path, status, elapsed, c.ClientIP())
	}
}
