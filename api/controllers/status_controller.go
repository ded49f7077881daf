package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/moyoez/scangate/notify"
	"github.com/moyoez/scangate/sweeper"
	"github.com/moyoez/scangate/tool"
)

var startedAt = time.Now()

// UserStatus reports that the gateway is up.
// GET /api/self/v1/status
func UserStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"running":           true,
		"version":           tool.Version,
		"uptimeSeconds":     int64(time.Since(startedAt).Seconds()),
		"notify_ws_enabled": notify.NotifyWSEnabled(),
	})
}

// Sweeper runs every registered cleanup job once.
type Sweeper interface {
	SweepNow(ctx context.Context) ([]sweeper.Report, error)
}

// HandleSweep runs the cleanup jobs on demand.
// POST /api/self/v1/sweep
func HandleSweep(s Sweeper) gin.HandlerFunc {
	return func(c *gin.Context) {
		reports, err := s.SweepNow(c.Request.Context())
		if err != nil {
			tool.DefaultLogger.Errorf("[Sweep] On-demand sweep failed: %v", err)
			c.JSON(http.StatusInternalServerError, tool.FastReturnErrorKind(err.Error(), "sweep_failed", map[string]any{
				"jobs": reports,
			}))
			return
		}
		c.JSON(http.StatusOK, tool.FastReturnSuccessWithData(reports))
	}
}
