package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbforge/curator/pkg/models"
)

// createRunHandler handles POST /api/v1/runs.
func (s *Server) createRunHandler(c *gin.Context) {
	var req models.CreateRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	run, err := s.research.CreateRun(c.Request.Context(), req)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, run)
}

// listRunsHandler handles GET /api/v1/runs.
func (s *Server) listRunsHandler(c *gin.Context) {
	filters := models.RunFilters{}

	if v := c.Query("status"); v != "" {
		status := models.RunStatus(v)
		switch status {
		case models.RunStatusPending, models.RunStatusRunning,
			models.RunStatusCompleted, models.RunStatusFailed, models.RunStatusCancelled:
			filters.Status = status
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status: " + v})
			return
		}
	}
	filters.CreatedBy = c.Query("created_by")
	if v := c.Query("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since: must be RFC3339"})
			return
		}
		filters.Since = &t
	}
	if v := c.Query("before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before: must be RFC3339"})
			return
		}
		filters.Before = &t
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filters.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filters.Offset = n
		}
	}

	resp, err := s.research.ListRuns(c.Request.Context(), filters)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// getRunHandler handles GET /api/v1/runs/:id.
func (s *Server) getRunHandler(c *gin.Context) {
	run, err := s.research.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

// startRunHandler handles POST /api/v1/runs/:id/start.
func (s *Server) startRunHandler(c *gin.Context) {
	run, err := s.research.StartRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, run)
}

// cancelRunHandler handles POST /api/v1/runs/:id/cancel.
func (s *Server) cancelRunHandler(c *gin.Context) {
	if err := s.research.CancelRun(c.Request.Context(), c.Param("id")); err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancellation requested"})
}

// runTimelineHandler handles GET /api/v1/runs/:id/timeline.
func (s *Server) runTimelineHandler(c *gin.Context) {
	runID := c.Param("id")
	if _, err := s.research.GetRun(c.Request.Context(), runID); err != nil {
		abortWithServiceError(c, err)
		return
	}
	events, err := s.auditLog.Timeline(c.Request.Context(), runID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"run_id": runID, "events": events})
}

// runReportHandler handles GET /api/v1/runs/:id/report.
func (s *Server) runReportHandler(c *gin.Context) {
	runID := c.Param("id")
	if _, err := s.research.GetRun(c.Request.Context(), runID); err != nil {
		abortWithServiceError(c, err)
		return
	}
	report, err := s.auditLog.Report(c.Request.Context(), runID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// runMetricsHandler handles GET /api/v1/runs/:id/metrics.
func (s *Server) runMetricsHandler(c *gin.Context) {
	m, err := s.metrics.Run(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// aggregateMetricsHandler handles GET /api/v1/metrics. Defaults to
// the trailing 30 days.
func (s *Server) aggregateMetricsHandler(c *gin.Context) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)

	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from: must be RFC3339"})
			return
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to: must be RFC3339"})
			return
		}
		to = t
	}
	if !from.Before(to) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from must be before to"})
		return
	}

	m, err := s.metrics.Aggregate(c.Request.Context(), from, to)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}
