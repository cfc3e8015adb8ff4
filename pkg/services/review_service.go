package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kbforge/curator/pkg/models"
	"github.com/kbforge/curator/pkg/review"
)

// ReviewService exposes review queue operations with input validation
// and service-level error mapping.
type ReviewService struct {
	queue *review.Queue
}

// NewReviewService creates a new ReviewService.
func NewReviewService(queue *review.Queue) *ReviewService {
	return &ReviewService{queue: queue}
}

// List returns queue entries matching the filters, highest priority
// first.
func (s *ReviewService) List(ctx context.Context, filters models.ReviewFilters) ([]*models.ReviewQueueEntry, error) {
	if filters.Limit > 100 {
		filters.Limit = 100
	}
	entries, err := s.queue.List(ctx, filters)
	if err != nil {
		return nil, mapReviewErr(err)
	}
	return entries, nil
}

// Get returns a single queue entry.
func (s *ReviewService) Get(ctx context.Context, entryID string) (*models.ReviewQueueEntry, error) {
	entry, err := s.queue.Get(ctx, entryID)
	if err != nil {
		return nil, mapReviewErr(err)
	}
	return entry, nil
}

// Assign assigns a pending or escalated entry to a reviewer.
func (s *ReviewService) Assign(ctx context.Context, entryID, assignee string) (*models.ReviewQueueEntry, error) {
	if strings.TrimSpace(assignee) == "" {
		return nil, NewValidationError("assignee", "required")
	}
	entry, err := s.queue.Assign(ctx, entryID, assignee)
	if err != nil {
		return nil, mapReviewErr(err)
	}
	return entry, nil
}

// Reassign hands an assigned entry to a different reviewer.
func (s *ReviewService) Reassign(ctx context.Context, entryID, assignee string) (*models.ReviewQueueEntry, error) {
	if strings.TrimSpace(assignee) == "" {
		return nil, NewValidationError("assignee", "required")
	}
	entry, err := s.queue.Reassign(ctx, entryID, assignee)
	if err != nil {
		return nil, mapReviewErr(err)
	}
	return entry, nil
}

// Decide records a reviewer decision on an assigned entry. Escalation
// requires a non-empty reason in notes.
func (s *ReviewService) Decide(ctx context.Context, entryID string, decision models.ReviewDecision, notes string) (*models.ReviewQueueEntry, error) {
	if !validDecision(decision) {
		return nil, NewValidationError("decision", fmt.Sprintf("unknown decision %q", decision))
	}
	if decision == models.DecisionEscalate && strings.TrimSpace(notes) == "" {
		return nil, NewValidationError("notes", "escalation requires a reason")
	}
	entry, err := s.queue.Decide(ctx, entryID, decision, notes)
	if err != nil {
		return nil, mapReviewErr(err)
	}
	return entry, nil
}

// BatchDecide applies one decision to many entries; failures are
// per-entry and do not abort the batch.
func (s *ReviewService) BatchDecide(ctx context.Context, entryIDs []string, decision models.ReviewDecision, notes string) (*review.BatchResult, error) {
	if len(entryIDs) == 0 {
		return nil, NewValidationError("entry_ids", "required")
	}
	if !validDecision(decision) {
		return nil, NewValidationError("decision", fmt.Sprintf("unknown decision %q", decision))
	}
	if decision == models.DecisionEscalate && strings.TrimSpace(notes) == "" {
		return nil, NewValidationError("notes", "escalation requires a reason")
	}
	return s.queue.BatchDecide(ctx, entryIDs, decision, notes)
}

func validDecision(d models.ReviewDecision) bool {
	switch d {
	case models.DecisionApprove, models.DecisionReject, models.DecisionEscalate:
		return true
	}
	return false
}

// mapReviewErr translates review queue errors into service errors.
func mapReviewErr(err error) error {
	if errors.Is(err, review.ErrIllegalTransition) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return mapStorageErr(err)
}
