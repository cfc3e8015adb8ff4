// Package orchestrator drives a research run through its fixed stage
// graph: DISCOVER, ASSESS, PROPOSE, ENQUEUE_REVIEW. The later review
// and integration steps are asynchronous, triggered by review
// decisions rather than by this loop.
package orchestrator

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
	"github.com/kbforge/curator/pkg/breaker"
	"github.com/kbforge/curator/pkg/discovery"
	"github.com/kbforge/curator/pkg/integration"
	"github.com/kbforge/curator/pkg/models"
	"github.com/kbforge/curator/pkg/review"
	"github.com/kbforge/curator/pkg/scoring"
	"github.com/kbforge/curator/pkg/storage"
)

// Stage names, used in audit payloads and error details.
const (
	StageDiscover      = "discover"
	StageAssess        = "assess"
	StagePropose       = "propose"
	StageEnqueueReview = "enqueue_review"
)

// simplifiedTopicTokens is how many leading tokens the DISCOVER
// recovery keeps when retrying with a simplified topic.
const simplifiedTopicTokens = 3

// Config tunes orchestrator execution.
type Config struct {
	// StageConcurrency caps parallel per-source work within a stage.
	StageConcurrency int `yaml:"stage_concurrency"`
	// RunTimeout bounds one full run execution. Zero disables it.
	RunTimeout time.Duration `yaml:"run_timeout"`
}

// DefaultConfig returns the orchestrator defaults.
func DefaultConfig() Config {
	return Config{
		StageConcurrency: 5,
		RunTimeout:       10 * time.Minute,
	}
}

// Orchestrator executes research runs. All collaborators are injected;
// the orchestrator holds no global state.
type Orchestrator struct {
	store     storage.Store
	discovery *discovery.Service
	scorer    *scoring.Scorer
	analyzer  *integration.Analyzer
	queue     *review.Queue
	registry  *breaker.Registry
	auditLog  *audit.Logger
	cfg       Config
	now       func() time.Time
	logger    *slog.Logger
}

// New creates an orchestrator.
func New(store storage.Store, disc *discovery.Service, scorer *scoring.Scorer, analyzer *integration.Analyzer, queue *review.Queue, registry *breaker.Registry, auditLog *audit.Logger, cfg Config) *Orchestrator {
	if cfg.StageConcurrency <= 0 {
		cfg.StageConcurrency = DefaultConfig().StageConcurrency
	}
	return &Orchestrator{
		store:     store,
		discovery: disc,
		scorer:    scorer,
		analyzer:  analyzer,
		queue:     queue,
		registry:  registry,
		auditLog:  auditLog,
		cfg:       cfg,
		now:       time.Now,
		logger:    slog.Default().With("component", "orchestrator"),
	}
}

// Execute runs the stage graph for the given run. The run must be
// pending; a concurrent or repeated execution loses the atomic claim
// and returns storage.ErrConflict. The returned run reflects the
// terminal state.
func (o *Orchestrator) Execute(ctx context.Context, runID string) (*models.ResearchRun, error) {
	run, err := o.store.Runs().ClaimPending(ctx, runID, o.now())
	if err != nil {
		return nil, err
	}
	o.logger.Info("Run started", "run_id", runID, "topic", run.Topic)

	if o.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.RunTimeout)
		defer cancel()
	}

	// The start event gates stage execution: if it cannot be written
	// durably the run fails rather than running unrecorded.
	if err := o.auditLog.Append(ctx, audit.Entry{
		RunID:     runID,
		EventType: models.EventResearchStart,
		Payload:   map[string]any{"topic": run.Topic},
	}); err != nil {
		return o.finish(ctx, run, models.RunStatusFailed, fmt.Sprintf("record start event: %v", err))
	}

	stages := []struct {
		name string
		fn   func(context.Context, *models.ResearchRun) error
	}{
		{StageDiscover, o.discover},
		{StageAssess, o.assess},
		{StagePropose, o.propose},
		{StageEnqueueReview, o.enqueueReview},
	}

	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return o.finishInterrupted(ctx, run, err)
		}

		stageErr := stage.fn(ctx, run)
		if stageErr == nil {
			continue
		}
		if interrupted(ctx, stageErr) {
			return o.finishInterrupted(ctx, run, ctx.Err())
		}

		o.logger.Warn("Stage failed, attempting recovery", "run_id", runID, "stage", stage.name, "error", stageErr)
		recErr := o.recover(ctx, run, stage.name, stageErr)
		if recErr == nil {
			continue
		}
		if interrupted(ctx, recErr) {
			return o.finishInterrupted(ctx, run, ctx.Err())
		}

		details := fmt.Sprintf("stage %s failed: %v (recovery: %v)", stage.name, stageErr, recErr)
		o.auditLog.Error(ctx, runID, models.EventError, map[string]any{
			"stage": stage.name,
			"error": stageErr.Error(),
		})
		return o.finish(ctx, run, models.RunStatusFailed, details)
	}

	return o.finish(ctx, run, models.RunStatusCompleted, "")
}

// interrupted reports whether a stage error reflects cancellation or
// the run deadline rather than a stage-level failure.
func interrupted(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// finishInterrupted maps context errors to a terminal status:
// cancellation ends the run CANCELLED, the run deadline ends it
// FAILED.
func (o *Orchestrator) finishInterrupted(ctx context.Context, run *models.ResearchRun, cause error) (*models.ResearchRun, error) {
	if errors.Is(cause, context.DeadlineExceeded) {
		return o.finish(ctx, run, models.RunStatusFailed, "run deadline exceeded")
	}
	return o.finish(ctx, run, models.RunStatusCancelled, "")
}

// terminalWriteTimeout bounds the terminal status write. It runs on a
// detached context so a cancelled run still records its ending.
const terminalWriteTimeout = 5 * time.Second

// finish moves the run to a terminal status exactly once. The status
// change and the terminal event commit together through the
// repository, so a terminal run without its ending event cannot
// exist; a failed write leaves the run non-terminal and surfaces the
// error to the caller.
func (o *Orchestrator) finish(ctx context.Context, run *models.ResearchRun, status models.RunStatus, errorDetails string) (*models.ResearchRun, error) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), terminalWriteTimeout)
	defer cancel()

	current, err := o.store.Runs().Get(writeCtx, run.ID)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"final_status": string(status),
		"summary": map[string]any{
			"sources_discovered": current.SourcesDiscovered,
			"sources_assessed":   current.SourcesAssessed,
			"sources_approved":   current.SourcesApproved,
		},
	}
	if errorDetails != "" {
		payload["error_details"] = errorDetails
	}
	level := models.LevelInfo
	if status == models.RunStatusFailed {
		level = models.LevelError
	}
	event := o.auditLog.Event(audit.Entry{
		RunID:     run.ID,
		EventType: models.EventResearchComplete,
		Level:     level,
		Payload:   payload,
	})

	completedAt := o.now()
	if err := o.store.Runs().Finish(writeCtx, run.ID, status, errorDetails, completedAt, event); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			// Already terminal; return the stored state.
			return o.store.Runs().Get(writeCtx, run.ID)
		}
		return nil, fmt.Errorf("finish run %s: %w", run.ID, err)
	}

	final, err := o.store.Runs().Get(writeCtx, run.ID)
	if err != nil {
		return nil, err
	}

	o.logger.Info("Run finished", "run_id", run.ID, "status", status)
	return final, nil
}

// discover runs the DISCOVER stage: fan out to external clients,
// deduplicate, persist sources.
func (o *Orchestrator) discover(ctx context.Context, run *models.ResearchRun) error {
	items, err := o.discovery.Discover(ctx, run.ID, run.Topic)
	if err != nil {
		return err
	}
	return o.persistDiscovered(ctx, run, items)
}

// persistDiscovered stores raw items as content sources and records
// the stage-complete event. Duplicate hashes are skipped silently;
// discovery already deduplicated within this batch, so collisions here
// come from earlier executions of the same run.
func (o *Orchestrator) persistDiscovered(ctx context.Context, run *models.ResearchRun, items []discovery.RawItem) error {
	byType := make(map[string]int)
	created := 0
	for _, item := range items {
		src := &models.ContentSource{
			ID:              uuid.New().String(),
			ResearchRunID:   run.ID,
			SourceType:      item.SourceType,
			URL:             item.URL,
			Title:           item.Title,
			Description:     item.Description,
			SourceMetadata:  item.Metadata,
			RetrievalMethod: "api_search",
			RetrievedAt:     o.now(),
			ContentHash:     discovery.ContentHash(item.Identifier),
			CreatedAt:       o.now(),
			UpdatedAt:       o.now(),
		}
		if src.SourceMetadata == nil {
			src.SourceMetadata = map[string]any{}
		}
		if item.PublishedAt != "" {
			src.SourceMetadata["published_at"] = item.PublishedAt
		}

		if err := o.store.Sources().Create(ctx, src); err != nil {
			if errors.Is(err, storage.ErrAlreadyExists) {
				continue
			}
			return fmt.Errorf("persist source %q: %w", item.Title, err)
		}
		created++
		byType[string(item.SourceType)]++
	}

	if err := o.store.Runs().AddCounters(ctx, run.ID, created, 0, 0); err != nil {
		return fmt.Errorf("update discovery counters: %w", err)
	}

	return o.auditLog.Append(ctx, audit.Entry{
		RunID:     run.ID,
		EventType: models.EventContentDiscovery,
		Payload: map[string]any{
			"count":          created,
			"by_type":        byType,
			"breaker_status": o.registry.States(),
		},
	})
}

// assess runs the ASSESS stage with the AI path allowed.
func (o *Orchestrator) assess(ctx context.Context, run *models.ResearchRun) error {
	return o.assessWith(ctx, run, o.scorer.Assess)
}

// assessWith scores every source lacking an assessment. Per-source
// failures are isolated; the stage fails only when sources exist and
// none assessed successfully.
func (o *Orchestrator) assessWith(ctx context.Context, run *models.ResearchRun, assessFn func(context.Context, string, *models.ContentSource) (*models.QualityAssessment, error)) error {
	sources, err := o.store.Sources().ListByRun(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("list sources: %w", err)
	}

	var pending []*models.ContentSource
	for _, src := range sources {
		if _, err := o.store.Assessments().GetBySource(ctx, src.ID); errors.Is(err, storage.ErrNotFound) {
			pending = append(pending, src)
		}
	}

	completed, failed := o.forEachSource(ctx, pending, func(taskCtx context.Context, src *models.ContentSource) error {
		assessment, err := assessFn(taskCtx, run.Topic, src)
		if err != nil {
			return err
		}
		if err := o.store.Assessments().Create(taskCtx, assessment); err != nil && !errors.Is(err, storage.ErrAlreadyExists) {
			return err
		}
		return nil
	})

	if err := o.store.Runs().AddCounters(ctx, run.ID, 0, completed, 0); err != nil {
		return fmt.Errorf("update assessment counters: %w", err)
	}
	if err := o.auditLog.Append(ctx, audit.Entry{
		RunID:     run.ID,
		EventType: models.EventQualityAssessment,
		Payload:   map[string]any{"completed": completed, "failed": failed},
	}); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if completed == 0 && len(pending) > 0 {
		return fmt.Errorf("all %d assessments failed", len(pending))
	}
	return nil
}

// propose runs the PROPOSE stage: generate an integration proposal for
// every assessed source. Isolation matches ASSESS.
func (o *Orchestrator) propose(ctx context.Context, run *models.ResearchRun) error {
	assessed, err := o.assessedSources(ctx, run.ID)
	if err != nil {
		return err
	}

	generated, failed := o.forEachSource(ctx, assessed, func(taskCtx context.Context, src *models.ContentSource) error {
		_, err := o.analyzer.Propose(taskCtx, src)
		return err
	})

	if err := o.auditLog.Append(ctx, audit.Entry{
		RunID:     run.ID,
		EventType: models.EventIntegrationProposal,
		Payload:   map[string]any{"generated": generated, "failed": failed},
	}); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if generated == 0 && len(assessed) > 0 {
		return fmt.Errorf("all %d proposals failed", len(assessed))
	}
	return nil
}

// enqueueReview creates a review entry for every source holding both
// an assessment and a proposal.
func (o *Orchestrator) enqueueReview(ctx context.Context, run *models.ResearchRun) error {
	assessed, err := o.assessedSources(ctx, run.ID)
	if err != nil {
		return err
	}

	created := 0
	for _, src := range assessed {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := o.store.Proposals().GetBySource(ctx, src.ID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return fmt.Errorf("check proposal for %s: %w", src.ID, err)
		}
		if _, err := o.queue.Enqueue(ctx, src); err != nil {
			return fmt.Errorf("enqueue source %s: %w", src.ID, err)
		}
		created++
	}

	return o.auditLog.Append(ctx, audit.Entry{
		RunID:     run.ID,
		EventType: models.EventReviewQueue,
		Payload:   map[string]any{"created": created},
	})
}

// assessedSources returns the run's sources that have an assessment.
func (o *Orchestrator) assessedSources(ctx context.Context, runID string) ([]*models.ContentSource, error) {
	sources, err := o.store.Sources().ListByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	var out []*models.ContentSource
	for _, src := range sources {
		if _, err := o.store.Assessments().GetBySource(ctx, src.ID); err == nil {
			out = append(out, src)
		}
	}
	return out, nil
}

// forEachSource fans per-source work out under the stage concurrency
// cap and waits for all of it. Returns success and failure counts;
// individual errors are logged, not propagated.
func (o *Orchestrator) forEachSource(ctx context.Context, sources []*models.ContentSource, fn func(context.Context, *models.ContentSource) error) (succeeded, failed int) {
	sem := make(chan struct{}, o.cfg.StageConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, src := range sources {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(src *models.ContentSource) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := fn(ctx, src); err != nil {
				o.logger.Warn("Per-source task failed", "source_id", src.ID, "error", err)
				mu.Lock()
				failed++
				mu.Unlock()
				return
			}
			mu.Lock()
			succeeded++
			mu.Unlock()
		}(src)
	}
	wg.Wait()
	return succeeded, failed
}

// recover dispatches the stage-specific recovery strategy. Only
// DISCOVER and ASSESS have one; other stages fail outright.
func (o *Orchestrator) recover(ctx context.Context, run *models.ResearchRun, stage string, stageErr error) error {
	switch stage {
	case StageDiscover:
		return o.recoverDiscover(ctx, run)
	case StageAssess:
		return o.recoverAssess(ctx, run)
	default:
		return fmt.Errorf("no recovery strategy for stage %s", stage)
	}
}

// recoverDiscover retries with a simplified topic, then falls back to
// asking clients one at a time.
func (o *Orchestrator) recoverDiscover(ctx context.Context, run *models.ResearchRun) error {
	simplified := simplifyTopic(run.Topic)

	if simplified != run.Topic {
		items, err := o.discovery.Discover(ctx, run.ID, simplified)
		o.recordRecovery(ctx, run.ID, StageDiscover, "simplified_topic", err == nil, map[string]any{"topic": simplified})
		if err == nil {
			return o.persistDiscovered(ctx, run, items)
		}
		if interrupted(ctx, err) {
			return err
		}
	}

	items, err := o.discovery.DiscoverSingle(ctx, run.ID, simplified)
	o.recordRecovery(ctx, run.ID, StageDiscover, "single_client", err == nil, nil)
	if err != nil {
		return err
	}
	return o.persistDiscovered(ctx, run, items)
}

// recoverAssess reruns the assessment stage with the deterministic
// fallback scorer for every source still lacking an assessment.
func (o *Orchestrator) recoverAssess(ctx context.Context, run *models.ResearchRun) error {
	err := o.assessWith(ctx, run, o.scorer.AssessFallback)
	o.recordRecovery(ctx, run.ID, StageAssess, "fallback_scorer", err == nil, nil)
	return err
}

func (o *Orchestrator) recordRecovery(ctx context.Context, runID, stage, strategy string, success bool, extra map[string]any) {
	payload := map[string]any{
		"stage":    stage,
		"strategy": strategy,
		"success":  success,
	}
	for k, v := range extra {
		payload[k] = v
	}
	level := models.LevelWarning
	if success {
		level = models.LevelInfo
	}
	if err := o.auditLog.Append(ctx, audit.Entry{
		RunID:     runID,
		EventType: models.EventRecovery,
		Level:     level,
		Payload:   payload,
	}); err != nil {
		o.logger.Error("Failed to record recovery event", "run_id", runID, "error", err)
	}
}

// simplifyTopic keeps the first few whitespace-separated tokens.
func simplifyTopic(topic string) string {
	fields := strings.Fields(topic)
	if len(fields) <= simplifiedTopicTokens {
		return strings.Join(fields, " ")
	}
	return strings.Join(fields[:simplifiedTopicTokens], " ")
}
