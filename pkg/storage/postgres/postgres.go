// Package postgres implements the storage repositories on top of the
// generated ent client. Error mapping: ent.IsNotFound becomes
// storage.ErrNotFound, unique-constraint violations become
// storage.ErrAlreadyExists, and lost conditional updates become
// storage.ErrConflict.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/kbforge/curator/ent"
	"github.com/kbforge/curator/ent/auditevent"
	"github.com/kbforge/curator/ent/contentsource"
	"github.com/kbforge/curator/ent/integrationproposal"
	"github.com/kbforge/curator/ent/qualityassessment"
	"github.com/kbforge/curator/ent/researchrun"
	"github.com/kbforge/curator/ent/reviewqueueentry"
	"github.com/kbforge/curator/pkg/models"
	"github.com/kbforge/curator/pkg/storage"
)

const defaultListLimit = 20

// Store is a postgres-backed storage.Store.
type Store struct {
	client *ent.Client
}

// NewStore wraps an ent client in the storage.Store interface.
func NewStore(client *ent.Client) *Store {
	return &Store{client: client}
}

// Runs implements storage.Store.
func (s *Store) Runs() storage.RunRepository { return &runRepo{client: s.client} }

// Sources implements storage.Store.
func (s *Store) Sources() storage.SourceRepository { return &sourceRepo{client: s.client} }

// Assessments implements storage.Store.
func (s *Store) Assessments() storage.AssessmentRepository {
	return &assessmentRepo{client: s.client}
}

// Proposals implements storage.Store.
func (s *Store) Proposals() storage.ProposalRepository { return &proposalRepo{client: s.client} }

// Reviews implements storage.Store.
func (s *Store) Reviews() storage.ReviewRepository { return &reviewRepo{client: s.client} }

// Audit implements storage.Store.
func (s *Store) Audit() storage.AuditRepository { return &auditRepo{client: s.client} }

type runRepo struct {
	client *ent.Client
}

func (r *runRepo) Create(ctx context.Context, run *models.ResearchRun) error {
	builder := r.client.ResearchRun.Create().
		SetID(run.ID).
		SetTopic(run.Topic).
		SetCreatedBy(run.CreatedBy).
		SetStatus(researchrun.Status(run.Status)).
		SetSourcesDiscovered(run.SourcesDiscovered).
		SetSourcesAssessed(run.SourcesAssessed).
		SetSourcesApproved(run.SourcesApproved).
		SetErrorDetails(run.ErrorDetails)
	if run.Parameters != nil {
		builder = builder.SetParameters(run.Parameters)
	}
	if run.Provenance != nil {
		builder = builder.SetProvenance(run.Provenance)
	}
	if run.StartedAt != nil {
		builder = builder.SetStartedAt(*run.StartedAt)
	}
	if run.CompletedAt != nil {
		builder = builder.SetCompletedAt(*run.CompletedAt)
	}
	if !run.CreatedAt.IsZero() {
		builder = builder.SetCreatedAt(run.CreatedAt).SetUpdatedAt(run.CreatedAt)
	}

	if _, err := builder.Save(ctx); err != nil {
		if ent.IsConstraintError(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create research run: %w", err)
	}
	return nil
}

func (r *runRepo) Get(ctx context.Context, id string) (*models.ResearchRun, error) {
	row, err := r.client.ResearchRun.Get(ctx, id)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get research run: %w", err)
	}
	return runFromEnt(row), nil
}

func (r *runRepo) List(ctx context.Context, filters models.RunFilters) ([]*models.ResearchRun, int, error) {
	query := r.client.ResearchRun.Query()
	if filters.Status != "" {
		query = query.Where(researchrun.StatusEQ(researchrun.Status(filters.Status)))
	}
	if filters.CreatedBy != "" {
		query = query.Where(researchrun.CreatedByEQ(filters.CreatedBy))
	}
	if filters.Since != nil {
		query = query.Where(researchrun.CreatedAtGTE(*filters.Since))
	}
	if filters.Before != nil {
		query = query.Where(researchrun.CreatedAtLT(*filters.Before))
	}

	total, err := query.Clone().Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count research runs: %w", err)
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	offset := filters.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := query.
		Order(ent.Desc(researchrun.FieldCreatedAt)).
		Limit(limit).
		Offset(offset).
		All(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list research runs: %w", err)
	}

	runs := make([]*models.ResearchRun, 0, len(rows))
	for _, row := range rows {
		runs = append(runs, runFromEnt(row))
	}
	return runs, total, nil
}

func (r *runRepo) ClaimPending(ctx context.Context, id string, startedAt time.Time) (*models.ResearchRun, error) {
	// Conditional update: only pending runs can be claimed. A zero
	// affected-row count means another claimant won or the run is not
	// pending.
	count, err := r.client.ResearchRun.Update().
		Where(
			researchrun.IDEQ(id),
			researchrun.StatusEQ(researchrun.StatusPending),
		).
		SetStatus(researchrun.StatusRunning).
		SetStartedAt(startedAt).
		SetUpdatedAt(startedAt).
		Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to claim research run: %w", err)
	}
	if count == 0 {
		if exists, err := r.client.ResearchRun.Query().Where(researchrun.IDEQ(id)).Exist(ctx); err != nil {
			return nil, fmt.Errorf("failed to check research run: %w", err)
		} else if !exists {
			return nil, storage.ErrNotFound
		}
		return nil, storage.ErrConflict
	}
	return r.Get(ctx, id)
}

func (r *runRepo) Finish(ctx context.Context, id string, status models.RunStatus, errorDetails string, completedAt time.Time, event *models.AuditEvent) error {
	// The status change and the terminal event commit in one
	// transaction: a failed event write rolls the run back to its
	// non-terminal state.
	tx, err := r.client.Tx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin finish transaction: %w", err)
	}

	count, err := tx.ResearchRun.Update().
		Where(
			researchrun.IDEQ(id),
			researchrun.StatusIn(researchrun.StatusPending, researchrun.StatusRunning),
		).
		SetStatus(researchrun.Status(status)).
		SetErrorDetails(errorDetails).
		SetCompletedAt(completedAt).
		SetUpdatedAt(completedAt).
		Save(ctx)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to finish research run: %w", err)
	}
	if count == 0 {
		exists, qerr := tx.ResearchRun.Query().Where(researchrun.IDEQ(id)).Exist(ctx)
		_ = tx.Rollback()
		if qerr != nil {
			return fmt.Errorf("failed to check research run: %w", qerr)
		}
		if !exists {
			return storage.ErrNotFound
		}
		return storage.ErrConflict
	}

	if event != nil {
		builder := tx.AuditEvent.Create().
			SetID(event.ID).
			SetResearchRunID(event.ResearchRunID).
			SetEventType(event.EventType).
			SetLevel(auditevent.Level(event.Level)).
			SetTimestamp(event.Timestamp).
			SetContentSourceID(event.ContentSourceID).
			SetReviewEntryID(event.ReviewEntryID)
		if event.Payload != nil {
			builder = builder.SetPayload(event.Payload)
		}
		if _, err := builder.Save(ctx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to append terminal event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit finish transaction: %w", err)
	}
	return nil
}

func (r *runRepo) AddCounters(ctx context.Context, id string, discovered, assessed, approved int) error {
	err := r.client.ResearchRun.UpdateOneID(id).
		AddSourcesDiscovered(discovered).
		AddSourcesAssessed(assessed).
		AddSourcesApproved(approved).
		Exec(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("failed to update run counters: %w", err)
	}
	return nil
}

func (r *runRepo) Delete(ctx context.Context, id string) error {
	// Owned rows (sources, assessments, proposals, review entries,
	// audit events) go with the run via ON DELETE CASCADE.
	err := r.client.ResearchRun.DeleteOneID(id).Exec(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("failed to delete research run: %w", err)
	}
	return nil
}

func (r *runRepo) ListTerminalBefore(ctx context.Context, cutoff time.Time, limit int) ([]*models.ResearchRun, error) {
	rows, err := r.client.ResearchRun.Query().
		Where(
			researchrun.StatusIn(
				researchrun.StatusCompleted,
				researchrun.StatusFailed,
				researchrun.StatusCancelled,
			),
			researchrun.CompletedAtNotNil(),
			researchrun.CompletedAtLT(cutoff),
		).
		Order(ent.Asc(researchrun.FieldCompletedAt)).
		Limit(limit).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list terminal runs: %w", err)
	}
	runs := make([]*models.ResearchRun, 0, len(rows))
	for _, row := range rows {
		runs = append(runs, runFromEnt(row))
	}
	return runs, nil
}

type sourceRepo struct {
	client *ent.Client
}

func (r *sourceRepo) Create(ctx context.Context, src *models.ContentSource) error {
	builder := r.client.ContentSource.Create().
		SetID(src.ID).
		SetResearchRunID(src.ResearchRunID).
		SetSourceType(contentsource.SourceType(src.SourceType)).
		SetURL(src.URL).
		SetTitle(src.Title).
		SetDescription(src.Description).
		SetRetrievalMethod(src.RetrievalMethod).
		SetRetrievedAt(src.RetrievedAt).
		SetContentHash(src.ContentHash)
	if src.SourceMetadata != nil {
		builder = builder.SetSourceMetadata(src.SourceMetadata)
	}
	if src.Provenance != nil {
		builder = builder.SetProvenance(src.Provenance)
	}
	if !src.CreatedAt.IsZero() {
		builder = builder.SetCreatedAt(src.CreatedAt).SetUpdatedAt(src.CreatedAt)
	}

	if _, err := builder.Save(ctx); err != nil {
		if ent.IsConstraintError(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create content source: %w", err)
	}
	return nil
}

func (r *sourceRepo) Get(ctx context.Context, id string) (*models.ContentSource, error) {
	row, err := r.client.ContentSource.Get(ctx, id)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get content source: %w", err)
	}
	return sourceFromEnt(row), nil
}

func (r *sourceRepo) ListByRun(ctx context.Context, runID string) ([]*models.ContentSource, error) {
	rows, err := r.client.ContentSource.Query().
		Where(contentsource.ResearchRunIDEQ(runID)).
		Order(ent.Asc(contentsource.FieldCreatedAt)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list content sources: %w", err)
	}
	sources := make([]*models.ContentSource, 0, len(rows))
	for _, row := range rows {
		sources = append(sources, sourceFromEnt(row))
	}
	return sources, nil
}

type assessmentRepo struct {
	client *ent.Client
}

func (r *assessmentRepo) Create(ctx context.Context, a *models.QualityAssessment) error {
	builder := r.client.QualityAssessment.Create().
		SetID(a.ID).
		SetContentSourceID(a.ContentSourceID).
		SetResearchRunID(a.ResearchRunID).
		SetCredibility(a.Credibility).
		SetRelevance(a.Relevance).
		SetFreshness(a.Freshness).
		SetCompleteness(a.Completeness).
		SetOverall(a.Overall).
		SetSummary(a.Summary).
		SetClassification(a.Classification).
		SetRationale(a.Rationale)
	if a.Metadata != nil {
		builder = builder.SetAssessmentMetadata(a.Metadata)
	}
	if !a.CreatedAt.IsZero() {
		builder = builder.SetCreatedAt(a.CreatedAt).SetUpdatedAt(a.CreatedAt)
	}

	if _, err := builder.Save(ctx); err != nil {
		if ent.IsConstraintError(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create quality assessment: %w", err)
	}
	return nil
}

func (r *assessmentRepo) GetBySource(ctx context.Context, contentSourceID string) (*models.QualityAssessment, error) {
	row, err := r.client.QualityAssessment.Query().
		Where(qualityassessment.ContentSourceIDEQ(contentSourceID)).
		Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get quality assessment: %w", err)
	}
	return assessmentFromEnt(row), nil
}

func (r *assessmentRepo) ListByRun(ctx context.Context, runID string) ([]*models.QualityAssessment, error) {
	rows, err := r.client.QualityAssessment.Query().
		Where(qualityassessment.ResearchRunIDEQ(runID)).
		Order(ent.Asc(qualityassessment.FieldCreatedAt)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list quality assessments: %w", err)
	}
	assessments := make([]*models.QualityAssessment, 0, len(rows))
	for _, row := range rows {
		assessments = append(assessments, assessmentFromEnt(row))
	}
	return assessments, nil
}

type proposalRepo struct {
	client *ent.Client
}

func (r *proposalRepo) Create(ctx context.Context, p *models.IntegrationProposal) error {
	builder := r.client.IntegrationProposal.Create().
		SetID(p.ID).
		SetContentSourceID(p.ContentSourceID).
		SetResearchRunID(p.ResearchRunID).
		SetStrategy(integrationproposal.Strategy(p.Strategy)).
		SetEstimatedEffort(integrationproposal.EstimatedEffort(p.EstimatedEffort)).
		SetConfidence(p.Confidence).
		SetStatus(integrationproposal.Status(p.Status))
	if p.ProposedActions != nil {
		builder = builder.SetProposedActions(p.ProposedActions)
	}
	if len(p.Connections) > 0 {
		builder = builder.SetSuggestedConnections(connectionsToJSON(p.Connections))
	}
	if len(p.Tags) > 0 {
		builder = builder.SetSuggestedTags(tagsToJSON(p.Tags))
	}
	if p.Provenance != nil {
		builder = builder.SetProvenance(p.Provenance)
	}
	if !p.CreatedAt.IsZero() {
		builder = builder.SetCreatedAt(p.CreatedAt).SetUpdatedAt(p.CreatedAt)
	}

	if _, err := builder.Save(ctx); err != nil {
		if ent.IsConstraintError(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create integration proposal: %w", err)
	}
	return nil
}

func (r *proposalRepo) GetBySource(ctx context.Context, contentSourceID string) (*models.IntegrationProposal, error) {
	row, err := r.client.IntegrationProposal.Query().
		Where(integrationproposal.ContentSourceIDEQ(contentSourceID)).
		Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get integration proposal: %w", err)
	}
	return proposalFromEnt(row), nil
}

func (r *proposalRepo) ListByRun(ctx context.Context, runID string) ([]*models.IntegrationProposal, error) {
	rows, err := r.client.IntegrationProposal.Query().
		Where(integrationproposal.ResearchRunIDEQ(runID)).
		Order(ent.Asc(integrationproposal.FieldCreatedAt)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list integration proposals: %w", err)
	}
	proposals := make([]*models.IntegrationProposal, 0, len(rows))
	for _, row := range rows {
		proposals = append(proposals, proposalFromEnt(row))
	}
	return proposals, nil
}

func (r *proposalRepo) UpdateStatus(ctx context.Context, id string, status models.ProposalStatus) error {
	err := r.client.IntegrationProposal.UpdateOneID(id).
		SetStatus(integrationproposal.Status(status)).
		Exec(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("failed to update proposal status: %w", err)
	}
	return nil
}

func (r *proposalRepo) DeleteBySource(ctx context.Context, contentSourceID string) error {
	count, err := r.client.IntegrationProposal.Delete().
		Where(integrationproposal.ContentSourceIDEQ(contentSourceID)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete integration proposal: %w", err)
	}
	if count == 0 {
		return storage.ErrNotFound
	}
	return nil
}

type reviewRepo struct {
	client *ent.Client
}

func (r *reviewRepo) Create(ctx context.Context, e *models.ReviewQueueEntry) error {
	builder := r.client.ReviewQueueEntry.Create().
		SetID(e.ID).
		SetContentSourceID(e.ContentSourceID).
		SetResearchRunID(e.ResearchRunID).
		SetAssignedTo(e.AssignedTo).
		SetPriority(e.Priority).
		SetStatus(reviewqueueentry.Status(e.Status)).
		SetReviewNotes(e.ReviewNotes).
		SetNillableDecidedAt(e.DecidedAt)
	if e.Provenance != nil {
		builder = builder.SetProvenance(e.Provenance)
	}
	if !e.CreatedAt.IsZero() {
		builder = builder.SetCreatedAt(e.CreatedAt).SetUpdatedAt(e.CreatedAt)
	}

	if _, err := builder.Save(ctx); err != nil {
		if ent.IsConstraintError(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create review queue entry: %w", err)
	}
	return nil
}

func (r *reviewRepo) Get(ctx context.Context, id string) (*models.ReviewQueueEntry, error) {
	row, err := r.client.ReviewQueueEntry.Get(ctx, id)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get review queue entry: %w", err)
	}
	return reviewFromEnt(row), nil
}

func (r *reviewRepo) Update(ctx context.Context, e *models.ReviewQueueEntry) error {
	update := r.client.ReviewQueueEntry.UpdateOneID(e.ID).
		SetAssignedTo(e.AssignedTo).
		SetPriority(e.Priority).
		SetStatus(reviewqueueentry.Status(e.Status)).
		SetReviewNotes(e.ReviewNotes)
	if e.DecidedAt != nil {
		update = update.SetDecidedAt(*e.DecidedAt)
	} else {
		update = update.ClearDecidedAt()
	}
	if e.Provenance != nil {
		update = update.SetProvenance(e.Provenance)
	}

	if err := update.Exec(ctx); err != nil {
		if ent.IsNotFound(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("failed to update review queue entry: %w", err)
	}
	return nil
}

func (r *reviewRepo) List(ctx context.Context, filters models.ReviewFilters) ([]*models.ReviewQueueEntry, error) {
	query := r.client.ReviewQueueEntry.Query()
	if filters.Status != "" {
		query = query.Where(reviewqueueentry.StatusEQ(reviewqueueentry.Status(filters.Status)))
	}
	if filters.ResearchRunID != "" {
		query = query.Where(reviewqueueentry.ResearchRunIDEQ(filters.ResearchRunID))
	}
	if filters.AssignedTo != "" {
		query = query.Where(reviewqueueentry.AssignedToEQ(filters.AssignedTo))
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	offset := filters.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := query.
		Order(
			ent.Desc(reviewqueueentry.FieldPriority),
			ent.Asc(reviewqueueentry.FieldCreatedAt),
		).
		Limit(limit).
		Offset(offset).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list review queue entries: %w", err)
	}

	entries := make([]*models.ReviewQueueEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, reviewFromEnt(row))
	}
	return entries, nil
}

type auditRepo struct {
	client *ent.Client
}

func (r *auditRepo) Append(ctx context.Context, e *models.AuditEvent) error {
	builder := r.client.AuditEvent.Create().
		SetID(e.ID).
		SetResearchRunID(e.ResearchRunID).
		SetEventType(e.EventType).
		SetLevel(auditevent.Level(e.Level)).
		SetTimestamp(e.Timestamp).
		SetContentSourceID(e.ContentSourceID).
		SetReviewEntryID(e.ReviewEntryID)
	if e.Payload != nil {
		builder = builder.SetPayload(e.Payload)
	}

	if _, err := builder.Save(ctx); err != nil {
		if ent.IsConstraintError(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return nil
}

func (r *auditRepo) ListByRun(ctx context.Context, runID string) ([]*models.AuditEvent, error) {
	rows, err := r.client.AuditEvent.Query().
		Where(auditevent.ResearchRunIDEQ(runID)).
		Order(ent.Asc(auditevent.FieldTimestamp)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	events := make([]*models.AuditEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, auditFromEnt(row))
	}
	return events, nil
}

func (r *auditRepo) ListRange(ctx context.Context, from, to time.Time) ([]*models.AuditEvent, error) {
	rows, err := r.client.AuditEvent.Query().
		Where(
			auditevent.TimestampGTE(from),
			auditevent.TimestampLT(to),
		).
		Order(ent.Asc(auditevent.FieldTimestamp)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	events := make([]*models.AuditEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, auditFromEnt(row))
	}
	return events, nil
}

func runFromEnt(row *ent.ResearchRun) *models.ResearchRun {
	return &models.ResearchRun{
		ID:                row.ID,
		Topic:             row.Topic,
		Parameters:        row.Parameters,
		CreatedBy:         row.CreatedBy,
		Status:            models.RunStatus(row.Status),
		StartedAt:         row.StartedAt,
		CompletedAt:       row.CompletedAt,
		SourcesDiscovered: row.SourcesDiscovered,
		SourcesAssessed:   row.SourcesAssessed,
		SourcesApproved:   row.SourcesApproved,
		ErrorDetails:      row.ErrorDetails,
		Provenance:        row.Provenance,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
}

func sourceFromEnt(row *ent.ContentSource) *models.ContentSource {
	src := &models.ContentSource{
		ID:              row.ID,
		ResearchRunID:   row.ResearchRunID,
		SourceType:      models.SourceType(row.SourceType),
		URL:             row.URL,
		Title:           row.Title,
		Description:     row.Description,
		SourceMetadata:  row.SourceMetadata,
		RetrievalMethod: row.RetrievalMethod,
		ContentHash:     row.ContentHash,
		Provenance:      row.Provenance,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
	if row.RetrievedAt != nil {
		src.RetrievedAt = *row.RetrievedAt
	}
	return src
}

func assessmentFromEnt(row *ent.QualityAssessment) *models.QualityAssessment {
	return &models.QualityAssessment{
		ID:              row.ID,
		ContentSourceID: row.ContentSourceID,
		ResearchRunID:   row.ResearchRunID,
		Credibility:     row.Credibility,
		Relevance:       row.Relevance,
		Freshness:       row.Freshness,
		Completeness:    row.Completeness,
		Overall:         row.Overall,
		Summary:         row.Summary,
		Classification:  row.Classification,
		Rationale:       row.Rationale,
		Metadata:        row.AssessmentMetadata,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}

func proposalFromEnt(row *ent.IntegrationProposal) *models.IntegrationProposal {
	return &models.IntegrationProposal{
		ID:              row.ID,
		ContentSourceID: row.ContentSourceID,
		ResearchRunID:   row.ResearchRunID,
		Strategy:        models.IntegrationStrategy(row.Strategy),
		ProposedActions: row.ProposedActions,
		EstimatedEffort: models.EffortLevel(row.EstimatedEffort),
		Confidence:      row.Confidence,
		Connections:     connectionsFromJSON(row.SuggestedConnections),
		Tags:            tagsFromJSON(row.SuggestedTags),
		Status:          models.ProposalStatus(row.Status),
		Provenance:      row.Provenance,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}

func reviewFromEnt(row *ent.ReviewQueueEntry) *models.ReviewQueueEntry {
	return &models.ReviewQueueEntry{
		ID:              row.ID,
		ContentSourceID: row.ContentSourceID,
		ResearchRunID:   row.ResearchRunID,
		AssignedTo:      row.AssignedTo,
		Priority:        row.Priority,
		Status:          models.ReviewStatus(row.Status),
		ReviewNotes:     row.ReviewNotes,
		DecidedAt:       row.DecidedAt,
		Provenance:      row.Provenance,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}

func auditFromEnt(row *ent.AuditEvent) *models.AuditEvent {
	return &models.AuditEvent{
		ID:              row.ID,
		ResearchRunID:   row.ResearchRunID,
		EventType:       row.EventType,
		Level:           models.EventLevel(row.Level),
		Timestamp:       row.Timestamp,
		Payload:         row.Payload,
		ContentSourceID: row.ContentSourceID,
		ReviewEntryID:   row.ReviewEntryID,
	}
}

// Suggested connections and tags are stored as JSON arrays of objects,
// so round-tripping goes through generic maps.

func connectionsToJSON(conns []models.ConnectionSuggestion) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(conns))
	for _, c := range conns {
		out = append(out, map[string]interface{}{
			"target_id": c.TargetID,
			"kind":      string(c.Kind),
			"strength":  c.Strength,
			"rationale": c.Rationale,
		})
	}
	return out
}

func connectionsFromJSON(raw []map[string]interface{}) []models.ConnectionSuggestion {
	if len(raw) == 0 {
		return nil
	}
	out := make([]models.ConnectionSuggestion, 0, len(raw))
	for _, m := range raw {
		c := models.ConnectionSuggestion{}
		if v, ok := m["target_id"].(string); ok {
			c.TargetID = v
		}
		if v, ok := m["kind"].(string); ok {
			c.Kind = models.ConnectionKind(v)
		}
		if v, ok := m["strength"].(float64); ok {
			c.Strength = v
		}
		if v, ok := m["rationale"].(string); ok {
			c.Rationale = v
		}
		out = append(out, c)
	}
	return out
}

func tagsToJSON(tags []models.TagSuggestion) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(tags))
	for _, t := range tags {
		out = append(out, map[string]interface{}{
			"tag":        t.Tag,
			"confidence": t.Confidence,
			"category":   t.Category,
		})
	}
	return out
}

func tagsFromJSON(raw []map[string]interface{}) []models.TagSuggestion {
	if len(raw) == 0 {
		return nil
	}
	out := make([]models.TagSuggestion, 0, len(raw))
	for _, m := range raw {
		t := models.TagSuggestion{}
		if v, ok := m["tag"].(string); ok {
			t.Tag = v
		}
		if v, ok := m["confidence"].(float64); ok {
			t.Confidence = v
		}
		if v, ok := m["category"].(string); ok {
			t.Category = v
		}
		out = append(out, t)
	}
	return out
}
