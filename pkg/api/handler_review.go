package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kbforge/curator/pkg/models"
)

// assignRequest is the body for assign and reassign.
type assignRequest struct {
	Assignee string `json:"assignee" binding:"required"`
}

// decisionRequest is the body for a single review decision.
type decisionRequest struct {
	Decision models.ReviewDecision `json:"decision" binding:"required"`
	Notes    string                `json:"notes"`
}

// batchDecisionRequest is the body for a batch decision.
type batchDecisionRequest struct {
	EntryIDs []string              `json:"entry_ids" binding:"required"`
	Decision models.ReviewDecision `json:"decision" binding:"required"`
	Notes    string                `json:"notes"`
}

// listReviewsHandler handles GET /api/v1/reviews.
func (s *Server) listReviewsHandler(c *gin.Context) {
	filters := models.ReviewFilters{
		ResearchRunID: c.Query("run_id"),
		AssignedTo:    c.Query("assigned_to"),
	}

	if v := c.Query("status"); v != "" {
		status := models.ReviewStatus(v)
		switch status {
		case models.ReviewStatusPending, models.ReviewStatusAssigned,
			models.ReviewStatusApproved, models.ReviewStatusRejected, models.ReviewStatusEscalated:
			filters.Status = status
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status: " + v})
			return
		}
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

	entries, err := s.reviews.List(c.Request.Context(), filters)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// getReviewHandler handles GET /api/v1/reviews/:id.
func (s *Server) getReviewHandler(c *gin.Context) {
	entry, err := s.reviews.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// assignReviewHandler handles POST /api/v1/reviews/:id/assign.
func (s *Server) assignReviewHandler(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := s.reviews.Assign(c.Request.Context(), c.Param("id"), req.Assignee)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// reassignReviewHandler handles POST /api/v1/reviews/:id/reassign.
func (s *Server) reassignReviewHandler(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := s.reviews.Reassign(c.Request.Context(), c.Param("id"), req.Assignee)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// decideReviewHandler handles POST /api/v1/reviews/:id/decision.
func (s *Server) decideReviewHandler(c *gin.Context) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := s.reviews.Decide(c.Request.Context(), c.Param("id"), req.Decision, req.Notes)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// batchDecideHandler handles POST /api/v1/reviews/batch-decision.
func (s *Server) batchDecideHandler(c *gin.Context) {
	var req batchDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.reviews.BatchDecide(c.Request.Context(), req.EntryIDs, req.Decision, req.Notes)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
