package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kbforge/curator/pkg/audit"
	"github.com/kbforge/curator/pkg/models"
	"github.com/kbforge/curator/pkg/queue"
	"github.com/kbforge/curator/pkg/storage"
)

// maxTopicLength bounds the research topic.
const maxTopicLength = 500

// RunSubmitter is the subset of the worker pool the research service
// uses.
type RunSubmitter interface {
	Submit(runID string) error
	CancelRun(runID string) bool
}

// ResearchService manages research run lifecycle: creation,
// submission to the worker pool, listing, and cancellation.
type ResearchService struct {
	store    storage.Store
	pool     RunSubmitter
	auditLog *audit.Logger
	now      func() time.Time
	logger   *slog.Logger

	// submitted reserves run ids handed to the pool. Runs never
	// return to pending, so a reservation is permanent once the
	// submit succeeds.
	mu        sync.Mutex
	submitted map[string]struct{}
}

// NewResearchService creates a new ResearchService.
func NewResearchService(store storage.Store, pool RunSubmitter, auditLog *audit.Logger) *ResearchService {
	return &ResearchService{
		store:     store,
		pool:      pool,
		auditLog:  auditLog,
		now:       time.Now,
		logger:    slog.Default().With("component", "research_service"),
		submitted: make(map[string]struct{}),
	}
}

// CreateRun creates a new pending research run. The run does not
// execute until StartRun submits it to the worker pool.
func (s *ResearchService) CreateRun(ctx context.Context, req models.CreateRunRequest) (*models.ResearchRun, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return nil, NewValidationError("topic", "required")
	}
	if len(topic) > maxTopicLength {
		return nil, NewValidationError("topic", fmt.Sprintf("must be at most %d characters", maxTopicLength))
	}

	now := s.now().UTC()
	run := &models.ResearchRun{
		ID:         uuid.New().String(),
		Topic:      topic,
		Parameters: req.Parameters,
		CreatedBy:  req.CreatedBy,
		Status:     models.RunStatusPending,
		Provenance: req.Provenance,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.store.Runs().Create(ctx, run); err != nil {
		return nil, mapStorageErr(err)
	}

	s.logger.Info("Research run created", "run_id", run.ID, "topic", topic)
	return run, nil
}

// StartRun submits a pending run to the worker pool. Submission is
// at-most-once: a concurrent second start loses the reservation and
// returns ErrConflict here rather than queueing a duplicate for the
// worker's claim to reject later.
func (s *ResearchService) StartRun(ctx context.Context, runID string) (*models.ResearchRun, error) {
	run, err := s.store.Runs().Get(ctx, runID)
	if err != nil {
		return nil, mapStorageErr(err)
	}
	if run.Status != models.RunStatusPending {
		return nil, fmt.Errorf("%w: run is %s", ErrConflict, run.Status)
	}

	if !s.reserve(runID) {
		return nil, fmt.Errorf("%w: run already submitted", ErrConflict)
	}
	if err := s.pool.Submit(runID); err != nil {
		s.release(runID)
		if errors.Is(err, queue.ErrQueueFull) {
			return nil, fmt.Errorf("%w: run queue is full", ErrUnavailable)
		}
		return nil, err
	}

	s.logger.Info("Research run submitted", "run_id", runID)
	return run, nil
}

func (s *ResearchService) reserve(runID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.submitted[runID]; ok {
		return false
	}
	s.submitted[runID] = struct{}{}
	return true
}

func (s *ResearchService) release(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.submitted, runID)
}

// GetRun returns a run by ID.
func (s *ResearchService) GetRun(ctx context.Context, runID string) (*models.ResearchRun, error) {
	run, err := s.store.Runs().Get(ctx, runID)
	if err != nil {
		return nil, mapStorageErr(err)
	}
	return run, nil
}

// ListRuns returns a filtered, paginated run list.
func (s *ResearchService) ListRuns(ctx context.Context, filters models.RunFilters) (*models.RunListResponse, error) {
	if filters.Limit <= 0 {
		filters.Limit = 20
	}
	if filters.Limit > 100 {
		filters.Limit = 100
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}

	runs, total, err := s.store.Runs().List(ctx, filters)
	if err != nil {
		return nil, mapStorageErr(err)
	}

	return &models.RunListResponse{
		Runs:       runs,
		TotalCount: total,
		Limit:      filters.Limit,
		Offset:     filters.Offset,
	}, nil
}

// CancelRun cancels a pending or running run. Pending runs are
// finished directly; running runs are cancelled through the worker
// pool and finish through the orchestrator's interruption path.
// Terminal runs return ErrConflict.
func (s *ResearchService) CancelRun(ctx context.Context, runID string) error {
	run, err := s.store.Runs().Get(ctx, runID)
	if err != nil {
		return mapStorageErr(err)
	}

	switch run.Status {
	case models.RunStatusPending:
		return s.cancelPending(ctx, run)
	case models.RunStatusRunning:
		if s.pool.CancelRun(runID) {
			s.logger.Info("Cancellation signalled to active run", "run_id", runID)
			return nil
		}
		// Claimed but not active on this pool (e.g. the worker died).
		// Finish directly so the run does not hang in running forever.
		return s.finishCancelled(ctx, run)
	default:
		return fmt.Errorf("%w: run is %s", ErrConflict, run.Status)
	}
}

func (s *ResearchService) cancelPending(ctx context.Context, run *models.ResearchRun) error {
	if err := s.finishCancelled(ctx, run); err != nil {
		return err
	}
	s.logger.Info("Pending run cancelled", "run_id", run.ID)
	return nil
}

func (s *ResearchService) finishCancelled(ctx context.Context, run *models.ResearchRun) error {
	// The terminal event commits with the status change; neither can
	// land without the other.
	event := s.auditLog.Event(audit.Entry{
		RunID:     run.ID,
		EventType: models.EventResearchComplete,
		Payload: map[string]any{
			"final_status": string(models.RunStatusCancelled),
			"summary": map[string]any{
				"sources_discovered": run.SourcesDiscovered,
				"sources_assessed":   run.SourcesAssessed,
				"sources_approved":   run.SourcesApproved,
			},
		},
	})
	if err := s.store.Runs().Finish(ctx, run.ID, models.RunStatusCancelled, "", s.now().UTC(), event); err != nil {
		return mapStorageErr(err)
	}
	return nil
}

// PendingRuns returns runs still waiting for execution.
func (s *ResearchService) PendingRuns(ctx context.Context, limit int) ([]*models.ResearchRun, error) {
	resp, err := s.ListRuns(ctx, models.RunFilters{Status: models.RunStatusPending, Limit: limit})
	if err != nil {
		return nil, err
	}
	return resp.Runs, nil
}

// RunningRuns returns runs currently executing.
func (s *ResearchService) RunningRuns(ctx context.Context, limit int) ([]*models.ResearchRun, error) {
	resp, err := s.ListRuns(ctx, models.RunFilters{Status: models.RunStatusRunning, Limit: limit})
	if err != nil {
		return nil, err
	}
	return resp.Runs, nil
}
