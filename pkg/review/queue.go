// Package review manages the human adjudication queue over discovered
// sources: enqueueing with assessment-derived priority, assignment,
// decisions, escalation, and the post-approval processing hook.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kbforge/curator/pkg/audit"
	"github.com/kbforge/curator/pkg/models"
	"github.com/kbforge/curator/pkg/storage"
)

// ErrIllegalTransition is returned when a requested status change
// violates the review state machine.
var ErrIllegalTransition = errors.New("illegal review transition")

// defaultPriority applies when a source has no quality assessment.
const defaultPriority = 5

// Queue manages review queue entries.
type Queue struct {
	reviews     storage.ReviewRepository
	assessments storage.AssessmentRepository
	auditLog    *audit.Logger
	processor   *Processor
	now         func() time.Time
	logger      *slog.Logger
}

// NewQueue creates a review queue. processor may be nil; approvals
// then skip post-processing.
func NewQueue(reviews storage.ReviewRepository, assessments storage.AssessmentRepository, auditLog *audit.Logger, processor *Processor) *Queue {
	return &Queue{
		reviews:     reviews,
		assessments: assessments,
		auditLog:    auditLog,
		processor:   processor,
		now:         time.Now,
		logger:      slog.Default().With("component", "review"),
	}
}

// Enqueue creates a pending entry for the source. Priority is derived
// from the source's quality assessment when one exists.
func (q *Queue) Enqueue(ctx context.Context, src *models.ContentSource) (*models.ReviewQueueEntry, error) {
	priority := defaultPriority
	assessment, err := q.assessments.GetBySource(ctx, src.ID)
	switch {
	case err == nil:
		priority = int(math.Round(10 * assessment.Overall))
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("look up assessment for %s: %w", src.ID, err)
	}

	entry := &models.ReviewQueueEntry{
		ID:              uuid.New().String(),
		ContentSourceID: src.ID,
		ResearchRunID:   src.ResearchRunID,
		Priority:        priority,
		Status:          models.ReviewStatusPending,
		CreatedAt:       q.now(),
		UpdatedAt:       q.now(),
	}
	if err := q.reviews.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("enqueue source %s for review: %w", src.ID, err)
	}

	q.auditLog.Info(ctx, src.ResearchRunID, models.EventReviewQueue, map[string]any{
		"entry_id":          entry.ID,
		"content_source_id": src.ID,
		"priority":          priority,
	})
	return entry, nil
}

// List returns queue entries matching the filters, highest priority
// first.
func (q *Queue) List(ctx context.Context, filters models.ReviewFilters) ([]*models.ReviewQueueEntry, error) {
	return q.reviews.List(ctx, filters)
}

// Get returns a single queue entry.
func (q *Queue) Get(ctx context.Context, id string) (*models.ReviewQueueEntry, error) {
	return q.reviews.Get(ctx, id)
}

// Assign moves a pending or escalated entry to assigned. Reassignment
// of an escalated entry records the handover in the notes.
func (q *Queue) Assign(ctx context.Context, entryID, assignee string) (*models.ReviewQueueEntry, error) {
	if assignee == "" {
		return nil, fmt.Errorf("assignee required")
	}
	entry, err := q.reviews.Get(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if !entry.CanTransition(models.ReviewStatusAssigned) {
		return nil, fmt.Errorf("%w: %s -> assigned", ErrIllegalTransition, entry.Status)
	}

	if entry.Status == models.ReviewStatusEscalated && entry.AssignedTo != "" {
		appendNote(entry, fmt.Sprintf("Reassigned from %s to %s", entry.AssignedTo, assignee))
	}
	entry.AssignedTo = assignee
	entry.Status = models.ReviewStatusAssigned
	entry.UpdatedAt = q.now()

	if err := q.reviews.Update(ctx, entry); err != nil {
		return nil, fmt.Errorf("assign entry %s: %w", entryID, err)
	}
	q.auditLog.Info(ctx, entry.ResearchRunID, models.EventReviewQueue, map[string]any{
		"entry_id": entry.ID,
		"action":   "assigned",
		"assignee": assignee,
	})
	return entry, nil
}

// Reassign moves an assigned entry to a different reviewer, recording
// the previous and new assignee in the notes.
func (q *Queue) Reassign(ctx context.Context, entryID, assignee string) (*models.ReviewQueueEntry, error) {
	if assignee == "" {
		return nil, fmt.Errorf("assignee required")
	}
	entry, err := q.reviews.Get(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Status != models.ReviewStatusAssigned {
		return nil, fmt.Errorf("%w: reassign requires assigned, got %s", ErrIllegalTransition, entry.Status)
	}

	appendNote(entry, fmt.Sprintf("Reassigned from %s to %s", entry.AssignedTo, assignee))
	entry.AssignedTo = assignee
	entry.UpdatedAt = q.now()

	if err := q.reviews.Update(ctx, entry); err != nil {
		return nil, fmt.Errorf("reassign entry %s: %w", entryID, err)
	}
	q.auditLog.Info(ctx, entry.ResearchRunID, models.EventReviewQueue, map[string]any{
		"entry_id": entry.ID,
		"action":   "reassigned",
		"assignee": assignee,
	})
	return entry, nil
}

// Decide records a reviewer's verdict on an assigned entry. Escalation
// requires a non-empty reason; approval triggers the processor.
func (q *Queue) Decide(ctx context.Context, entryID string, decision models.ReviewDecision, notes string) (*models.ReviewQueueEntry, error) {
	entry, err := q.reviews.Get(ctx, entryID)
	if err != nil {
		return nil, err
	}

	next, err := statusFor(decision)
	if err != nil {
		return nil, err
	}
	if !entry.CanTransition(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, entry.Status, next)
	}

	switch decision {
	case models.DecisionEscalate:
		reason := strings.TrimSpace(notes)
		if reason == "" {
			return nil, fmt.Errorf("escalation requires a reason")
		}
		appendNote(entry, "ESCALATED: "+reason)
	default:
		if notes = strings.TrimSpace(notes); notes != "" {
			appendNote(entry, notes)
		}
		decidedAt := q.now()
		entry.DecidedAt = &decidedAt
	}

	entry.Status = next
	entry.UpdatedAt = q.now()
	if err := q.reviews.Update(ctx, entry); err != nil {
		return nil, fmt.Errorf("record decision on entry %s: %w", entryID, err)
	}

	q.auditLog.Info(ctx, entry.ResearchRunID, models.EventReviewDecision, map[string]any{
		"entry_id":          entry.ID,
		"content_source_id": entry.ContentSourceID,
		"decision":          string(decision),
		"reviewer":          entry.AssignedTo,
	})

	if q.processor != nil {
		switch decision {
		case models.DecisionApprove:
			if err := q.processor.OnApproved(ctx, entry); err != nil {
				q.logger.Error("Post-approval processing failed", "entry_id", entry.ID, "error", err)
			}
		case models.DecisionReject:
			q.processor.OnRejected(ctx, entry)
		}
	}
	return entry, nil
}

// BatchDecide applies one decision to many entries. Entries that fail
// are reported individually; the rest still go through.
type BatchResult struct {
	Decided []string          `json:"decided"`
	Failed  map[string]string `json:"failed,omitempty"`
}

// BatchDecide decides each entry in turn with the same verdict and
// notes.
func (q *Queue) BatchDecide(ctx context.Context, entryIDs []string, decision models.ReviewDecision, notes string) (*BatchResult, error) {
	result := &BatchResult{Failed: make(map[string]string)}
	for _, id := range entryIDs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if _, err := q.Decide(ctx, id, decision, notes); err != nil {
			result.Failed[id] = err.Error()
			continue
		}
		result.Decided = append(result.Decided, id)
	}
	return result, nil
}

func statusFor(decision models.ReviewDecision) (models.ReviewStatus, error) {
	switch decision {
	case models.DecisionApprove:
		return models.ReviewStatusApproved, nil
	case models.DecisionReject:
		return models.ReviewStatusRejected, nil
	case models.DecisionEscalate:
		return models.ReviewStatusEscalated, nil
	default:
		return "", fmt.Errorf("unknown decision %q", decision)
	}
}

// appendNote adds a timestamped line to the entry's notes without
// rewriting earlier ones.
func appendNote(entry *models.ReviewQueueEntry, note string) {
	if entry.ReviewNotes != "" {
		entry.ReviewNotes += "\n"
	}
	entry.ReviewNotes += note
}
