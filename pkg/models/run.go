package models

import "time"

// ResearchRun is a single end-to-end research workflow over a topic.
// It owns its content sources and audit events; cascading deletion of a
// run removes everything it produced.
type ResearchRun struct {
	ID         string         `json:"id"`
	Topic      string         `json:"topic"`
	Parameters map[string]any `json:"parameters,omitempty"`
	CreatedBy  string         `json:"created_by"`
	Status     RunStatus      `json:"status"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Monotonic counters, never decremented.
	SourcesDiscovered int `json:"sources_discovered"`
	SourcesAssessed   int `json:"sources_assessed"`
	SourcesApproved   int `json:"sources_approved"`

	// ErrorDetails is set iff Status == RunStatusFailed.
	ErrorDetails string `json:"error_details,omitempty"`

	Provenance map[string]any `json:"provenance,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// CreateRunRequest contains fields for creating a new research run.
type CreateRunRequest struct {
	Topic      string         `json:"topic"`
	CreatedBy  string         `json:"created_by"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Provenance map[string]any `json:"provenance,omitempty"`
}

// RunFilters contains filtering options for listing research runs.
type RunFilters struct {
	Status    RunStatus  `json:"status,omitempty"`
	CreatedBy string     `json:"created_by,omitempty"`
	Since     *time.Time `json:"since,omitempty"`
	Before    *time.Time `json:"before,omitempty"`
	Limit     int        `json:"limit,omitempty"`
	Offset    int        `json:"offset,omitempty"`
}

// RunListResponse contains a paginated run list.
type RunListResponse struct {
	Runs       []*ResearchRun `json:"runs"`
	TotalCount int            `json:"total_count"`
	Limit      int            `json:"limit"`
	Offset     int            `json:"offset"`
}
