package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbforge/curator/pkg/database"
	"github.com/kbforge/curator/pkg/version"
)

// healthHandler handles GET /health. The database probe runs only on
// the postgres backend; the worker pool snapshot is always included.
func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	resp := gin.H{"status": "healthy", "version": version.Full()}
	healthy := true

	if s.pool != nil {
		poolHealth := s.pool.Health()
		resp["queue"] = poolHealth
		if !poolHealth.IsHealthy {
			healthy = false
		}
	}

	if s.db != nil {
		dbHealth, err := database.Health(ctx, s.db)
		resp["database"] = dbHealth
		if err != nil {
			healthy = false
			resp["error"] = err.Error()
		} else if dbHealth.Status == database.StatusDegraded {
			// Reachable but saturated: still serving, flagged for
			// operators.
			resp["status"] = database.StatusDegraded
		}
	}

	if !healthy {
		resp["status"] = database.StatusUnhealthy
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}
