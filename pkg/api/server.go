// Package api exposes the HTTP surface: run lifecycle, review queue
// operations, integration proposals, audit timelines, and metrics.
package api

import (
	"database/sql"

	"github.com/gin-gonic/gin"

	"github.com/kbforge/curator/pkg/audit"
	"github.com/kbforge/curator/pkg/metrics"
	"github.com/kbforge/curator/pkg/queue"
	"github.com/kbforge/curator/pkg/services"
)

// Server holds the handler dependencies.
type Server struct {
	research     *services.ResearchService
	reviews      *services.ReviewService
	integrations *services.IntegrationService
	auditLog     *audit.Logger
	metrics      *metrics.Collector
	pool         *queue.WorkerPool

	// db is nil when running on the memory backend; the health
	// endpoint then skips the database probe.
	db *sql.DB
}

// NewServer creates a new API server.
func NewServer(
	research *services.ResearchService,
	reviews *services.ReviewService,
	integrations *services.IntegrationService,
	auditLog *audit.Logger,
	collector *metrics.Collector,
	pool *queue.WorkerPool,
	db *sql.DB,
) *Server {
	return &Server{
		research:     research,
		reviews:      reviews,
		integrations: integrations,
		auditLog:     auditLog,
		metrics:      collector,
		pool:         pool,
		db:           db,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.healthHandler)

	v1 := r.Group("/api/v1")
	{
		runs := v1.Group("/runs")
		{
			runs.POST("", s.createRunHandler)
			runs.GET("", s.listRunsHandler)
			runs.GET("/:id", s.getRunHandler)
			runs.POST("/:id/start", s.startRunHandler)
			runs.POST("/:id/cancel", s.cancelRunHandler)
			runs.GET("/:id/timeline", s.runTimelineHandler)
			runs.GET("/:id/report", s.runReportHandler)
			runs.GET("/:id/metrics", s.runMetricsHandler)
		}

		reviews := v1.Group("/reviews")
		{
			reviews.GET("", s.listReviewsHandler)
			reviews.GET("/:id", s.getReviewHandler)
			reviews.POST("/:id/assign", s.assignReviewHandler)
			reviews.POST("/:id/reassign", s.reassignReviewHandler)
			reviews.POST("/:id/decision", s.decideReviewHandler)
			reviews.POST("/batch-decision", s.batchDecideHandler)
		}

		sources := v1.Group("/sources")
		{
			sources.GET("/:id/proposal", s.getProposalHandler)
			sources.POST("/:id/proposal/regenerate", s.regenerateProposalHandler)
		}

		v1.GET("/metrics", s.aggregateMetricsHandler)
	}

	return r
}
