package models

import "time"

// Audit event types. The ordered sequence of a run's events by
// timestamp is the run's canonical history.
const (
	EventResearchStart       = "research_start"
	EventResearchComplete    = "research_complete"
	EventContentDiscovery    = "content_discovery"
	EventQualityAssessment   = "quality_assessment"
	EventIntegrationProposal = "integration_proposal"
	EventReviewQueue         = "review_queue"
	EventReviewDecision      = "review_decision"
	EventSystemEvent         = "system_event"
	EventError               = "error"
	EventRecovery            = "recovery"
	EventPerformance         = "performance"
)

// AuditEvent is an immutable, timestamped, tagged record of something
// that happened during a run. Events are append-only.
type AuditEvent struct {
	ID            string     `json:"id"`
	ResearchRunID string     `json:"research_run_id"`
	EventType     string     `json:"event_type"`
	Level         EventLevel `json:"level"`
	Timestamp     time.Time  `json:"timestamp"`

	Payload map[string]any `json:"payload,omitempty"`

	// Optional foreign keys to related entities.
	ContentSourceID string `json:"content_source_id,omitempty"`
	ReviewEntryID   string `json:"review_entry_id,omitempty"`
}
