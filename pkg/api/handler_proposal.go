package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// getProposalHandler handles GET /api/v1/sources/:id/proposal.
func (s *Server) getProposalHandler(c *gin.Context) {
	proposal, err := s.integrations.GetBySource(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, proposal)
}

// regenerateProposalHandler handles
// POST /api/v1/sources/:id/proposal/regenerate.
func (s *Server) regenerateProposalHandler(c *gin.Context) {
	proposal, err := s.integrations.Regenerate(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, proposal)
}
