package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moyoez/snapshare/tool"
)

// OnlyAllowLocal rejects requests that do not come from this machine.
// Guards /metrics.
func OnlyAllowLocal(c *gin.Context) {
	if ip := c.ClientIP(); ip == "127.0.0.1" || ip == "::1" {
		c.Next()
		return
	}
	tool.AbortWithError(c, http.StatusForbidden, "Forbidden")
}
