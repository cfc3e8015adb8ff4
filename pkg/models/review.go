package models

import "time"

// ReviewQueueEntry is the unit of human adjudication over proposals.
//
// Transitions: pending → assigned → {approved, rejected, escalated};
// escalated → assigned (with a new assignee).
type ReviewQueueEntry struct {
	ID              string `json:"id"`
	ContentSourceID string `json:"content_source_id"`
	ResearchRunID   string `json:"research_run_id"`

	AssignedTo string       `json:"assigned_to,omitempty"`
	Priority   int          `json:"priority"`
	Status     ReviewStatus `json:"status"`

	// ReviewNotes is append-only in effect: every transition appends a
	// line, never rewrites earlier ones.
	ReviewNotes string `json:"review_notes,omitempty"`

	// DecidedAt is set when a terminal decision (approve/reject) is
	// recorded. Review-time metrics derive from this, not UpdatedAt.
	DecidedAt *time.Time `json:"decided_at,omitempty"`

	Provenance map[string]any `json:"provenance,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// CanTransition reports whether moving from the entry's current status
// to next is a legal review-queue transition.
func (e *ReviewQueueEntry) CanTransition(next ReviewStatus) bool {
	switch e.Status {
	case ReviewStatusPending:
		return next == ReviewStatusAssigned
	case ReviewStatusAssigned:
		return next == ReviewStatusApproved || next == ReviewStatusRejected || next == ReviewStatusEscalated
	case ReviewStatusEscalated:
		return next == ReviewStatusAssigned
	}
	return false
}

// ReviewFilters contains filtering options for listing queue entries.
type ReviewFilters struct {
	Status        ReviewStatus `json:"status,omitempty"`
	ResearchRunID string       `json:"research_run_id,omitempty"`
	AssignedTo    string       `json:"assigned_to,omitempty"`
	Limit         int          `json:"limit,omitempty"`
	Offset        int          `json:"offset,omitempty"`
}
