// Package storage defines the persistence contracts for the core
// entities. The orchestrator and services depend only on these
// interfaces; postgres (ent) and memory implementations live in
// subpackages. All operations are cancellable via context.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/kbforge/curator/pkg/models"
)

var (
	// ErrNotFound is returned when an entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrAlreadyExists is returned on unique-constraint violations:
	// duplicate content hash within a run, second assessment or
	// proposal for a source.
	ErrAlreadyExists = errors.New("entity already exists")

	// ErrConflict is returned when a conditional update loses a race,
	// e.g. the pending→running compare-and-set.
	ErrConflict = errors.New("conflicting state")
)

// RunRepository persists research runs.
type RunRepository interface {
	Create(ctx context.Context, run *models.ResearchRun) error
	Get(ctx context.Context, id string) (*models.ResearchRun, error)
	List(ctx context.Context, filters models.RunFilters) ([]*models.ResearchRun, int, error)

	// ClaimPending atomically transitions the run from pending to
	// running and sets StartedAt. Returns ErrConflict if the run is
	// not pending (a concurrent claim won, or the run is terminal).
	ClaimPending(ctx context.Context, id string, startedAt time.Time) (*models.ResearchRun, error)

	// Finish transitions the run to a terminal status and sets
	// CompletedAt. errorDetails must be non-empty iff status is
	// failed. A non-nil event is committed together with the status
	// change: either both are durable or neither is, so a terminal
	// run always carries its terminal audit event. Returns
	// ErrConflict if the run is already terminal.
	Finish(ctx context.Context, id string, status models.RunStatus, errorDetails string, completedAt time.Time, event *models.AuditEvent) error

	// AddCounters increments the monotonic counters by the given
	// non-negative deltas.
	AddCounters(ctx context.Context, id string, discovered, assessed, approved int) error

	// Delete removes the run and everything it owns (sources,
	// assessments, proposals, review entries, audit events).
	Delete(ctx context.Context, id string) error

	// ListTerminalBefore returns terminal runs completed before the
	// cutoff, for retention cleanup.
	ListTerminalBefore(ctx context.Context, cutoff time.Time, limit int) ([]*models.ResearchRun, error)
}

// SourceRepository persists content sources.
type SourceRepository interface {
	// Create persists the source. Returns ErrAlreadyExists if a
	// source with the same (research_run_id, content_hash) exists.
	Create(ctx context.Context, src *models.ContentSource) error
	Get(ctx context.Context, id string) (*models.ContentSource, error)
	ListByRun(ctx context.Context, runID string) ([]*models.ContentSource, error)
}

// AssessmentRepository persists quality assessments.
type AssessmentRepository interface {
	// Create persists the assessment. Returns ErrAlreadyExists if the
	// source already has one.
	Create(ctx context.Context, a *models.QualityAssessment) error
	GetBySource(ctx context.Context, contentSourceID string) (*models.QualityAssessment, error)
	ListByRun(ctx context.Context, runID string) ([]*models.QualityAssessment, error)
}

// ProposalRepository persists integration proposals.
type ProposalRepository interface {
	// Create persists the proposal. Returns ErrAlreadyExists if the
	// source already has one.
	Create(ctx context.Context, p *models.IntegrationProposal) error
	GetBySource(ctx context.Context, contentSourceID string) (*models.IntegrationProposal, error)
	ListByRun(ctx context.Context, runID string) ([]*models.IntegrationProposal, error)
	UpdateStatus(ctx context.Context, id string, status models.ProposalStatus) error
	DeleteBySource(ctx context.Context, contentSourceID string) error
}

// ReviewRepository persists review queue entries.
type ReviewRepository interface {
	Create(ctx context.Context, e *models.ReviewQueueEntry) error
	Get(ctx context.Context, id string) (*models.ReviewQueueEntry, error)
	Update(ctx context.Context, e *models.ReviewQueueEntry) error
	List(ctx context.Context, filters models.ReviewFilters) ([]*models.ReviewQueueEntry, error)
}

// AuditRepository persists audit events. Append-only: there is no
// update or single-event delete.
type AuditRepository interface {
	Append(ctx context.Context, e *models.AuditEvent) error
	// ListByRun returns the run's events ordered by timestamp.
	ListByRun(ctx context.Context, runID string) ([]*models.AuditEvent, error)
	// ListRange returns events across all runs within [from, to),
	// ordered by timestamp.
	ListRange(ctx context.Context, from, to time.Time) ([]*models.AuditEvent, error)
}

// Store aggregates the repositories behind a single composition point.
type Store interface {
	Runs() RunRepository
	Sources() SourceRepository
	Assessments() AssessmentRepository
	Proposals() ProposalRepository
	Reviews() ReviewRepository
	Audit() AuditRepository
}
