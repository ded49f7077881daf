package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moyoez/scangate/tool"
)

// OnlyAllowLocal rejects every request that does not come from loopback.
func OnlyAllowLocal(c *gin.Context) {
	if ip := c.RemoteIP(); ip == "127.0.0.1" || ip == "::1" {
		c.Next()
		return
	}
	c.AbortWithStatusJSON(http.StatusForbidden, tool.FastReturnError("Forbidden"))
}
