// Package memory provides mutex-guarded in-memory implementations of
// the storage repositories. Used for tests and the dev-mode backend.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kbforge/curator/pkg/models"
	"github.com/kbforge/curator/pkg/storage"
)

// Store is an in-memory storage.Store.
type Store struct {
	mu sync.RWMutex

	runs        map[string]*models.ResearchRun
	sources     map[string]*models.ContentSource
	assessments map[string]*models.QualityAssessment // keyed by content_source_id
	proposals   map[string]*models.IntegrationProposal
	reviews     map[string]*models.ReviewQueueEntry
	events      []*models.AuditEvent
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		runs:        make(map[string]*models.ResearchRun),
		sources:     make(map[string]*models.ContentSource),
		assessments: make(map[string]*models.QualityAssessment),
		proposals:   make(map[string]*models.IntegrationProposal),
		reviews:     make(map[string]*models.ReviewQueueEntry),
	}
}

// Runs implements storage.Store.
func (s *Store) Runs() storage.RunRepository { return (*runRepo)(s) }

// Sources implements storage.Store.
func (s *Store) Sources() storage.SourceRepository { return (*sourceRepo)(s) }

// Assessments implements storage.Store.
func (s *Store) Assessments() storage.AssessmentRepository { return (*assessmentRepo)(s) }

// Proposals implements storage.Store.
func (s *Store) Proposals() storage.ProposalRepository { return (*proposalRepo)(s) }

// Reviews implements storage.Store.
func (s *Store) Reviews() storage.ReviewRepository { return (*reviewRepo)(s) }

// Audit implements storage.Store.
func (s *Store) Audit() storage.AuditRepository { return (*auditRepo)(s) }

type runRepo Store

func (r *runRepo) Create(_ context.Context, run *models.ResearchRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[run.ID]; ok {
		return storage.ErrAlreadyExists
	}
	cp := *run
	r.runs[run.ID] = &cp
	return nil
}

func (r *runRepo) Get(_ context.Context, id string) (*models.ResearchRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *run
	return &cp, nil
}

func (r *runRepo) List(_ context.Context, filters models.RunFilters) ([]*models.ResearchRun, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*models.ResearchRun
	for _, run := range r.runs {
		if filters.Status != "" && run.Status != filters.Status {
			continue
		}
		if filters.CreatedBy != "" && run.CreatedBy != filters.CreatedBy {
			continue
		}
		if filters.Since != nil && run.CreatedAt.Before(*filters.Since) {
			continue
		}
		if filters.Before != nil && !run.CreatedAt.Before(*filters.Before) {
			continue
		}
		cp := *run
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	offset := filters.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	limit := filters.Limit
	if limit <= 0 {
		limit = 20
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (r *runRepo) ClaimPending(_ context.Context, id string, startedAt time.Time) (*models.ResearchRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if run.Status != models.RunStatusPending {
		return nil, storage.ErrConflict
	}
	run.Status = models.RunStatusRunning
	run.StartedAt = &startedAt
	run.UpdatedAt = startedAt
	cp := *run
	return &cp, nil
}

func (r *runRepo) Finish(_ context.Context, id string, status models.RunStatus, errorDetails string, completedAt time.Time, event *models.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return storage.ErrNotFound
	}
	if run.Status.Terminal() {
		return storage.ErrConflict
	}
	run.Status = status
	run.ErrorDetails = errorDetails
	run.CompletedAt = &completedAt
	run.UpdatedAt = completedAt
	// Same lock scope as the status change, so readers never observe
	// a terminal run without its terminal event.
	if event != nil {
		cp := *event
		r.events = append(r.events, &cp)
	}
	return nil
}

func (r *runRepo) AddCounters(_ context.Context, id string, discovered, assessed, approved int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return storage.ErrNotFound
	}
	run.SourcesDiscovered += discovered
	run.SourcesAssessed += assessed
	run.SourcesApproved += approved
	run.UpdatedAt = time.Now()
	return nil
}

func (r *runRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[id]; !ok {
		return storage.ErrNotFound
	}
	delete(r.runs, id)
	for sid, src := range r.sources {
		if src.ResearchRunID == id {
			delete(r.sources, sid)
			delete(r.assessments, sid)
			delete(r.proposals, sid)
		}
	}
	for eid, entry := range r.reviews {
		if entry.ResearchRunID == id {
			delete(r.reviews, eid)
		}
	}
	kept := r.events[:0]
	for _, e := range r.events {
		if e.ResearchRunID != id {
			kept = append(kept, e)
		}
	}
	r.events = kept
	return nil
}

func (r *runRepo) ListTerminalBefore(_ context.Context, cutoff time.Time, limit int) ([]*models.ResearchRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.ResearchRun
	for _, run := range r.runs {
		if !run.Status.Terminal() || run.CompletedAt == nil || !run.CompletedAt.Before(cutoff) {
			continue
		}
		cp := *run
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

type sourceRepo Store

func (r *sourceRepo) Create(_ context.Context, src *models.ContentSource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sources[src.ID]; ok {
		return storage.ErrAlreadyExists
	}
	for _, existing := range r.sources {
		if existing.ResearchRunID == src.ResearchRunID && existing.ContentHash == src.ContentHash {
			return storage.ErrAlreadyExists
		}
	}
	cp := *src
	r.sources[src.ID] = &cp
	return nil
}

func (r *sourceRepo) Get(_ context.Context, id string) (*models.ContentSource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.sources[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *src
	return &cp, nil
}

func (r *sourceRepo) ListByRun(_ context.Context, runID string) ([]*models.ContentSource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.ContentSource
	for _, src := range r.sources {
		if src.ResearchRunID == runID {
			cp := *src
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type assessmentRepo Store

func (r *assessmentRepo) Create(_ context.Context, a *models.QualityAssessment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assessments[a.ContentSourceID]; ok {
		return storage.ErrAlreadyExists
	}
	cp := *a
	r.assessments[a.ContentSourceID] = &cp
	return nil
}

func (r *assessmentRepo) GetBySource(_ context.Context, contentSourceID string) (*models.QualityAssessment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assessments[contentSourceID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *assessmentRepo) ListByRun(_ context.Context, runID string) ([]*models.QualityAssessment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.QualityAssessment
	for _, a := range r.assessments {
		if a.ResearchRunID == runID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type proposalRepo Store

func (r *proposalRepo) Create(_ context.Context, p *models.IntegrationProposal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.proposals[p.ContentSourceID]; ok {
		return storage.ErrAlreadyExists
	}
	cp := *p
	r.proposals[p.ContentSourceID] = &cp
	return nil
}

func (r *proposalRepo) GetBySource(_ context.Context, contentSourceID string) (*models.IntegrationProposal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.proposals[contentSourceID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *proposalRepo) ListByRun(_ context.Context, runID string) ([]*models.IntegrationProposal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.IntegrationProposal
	for _, p := range r.proposals {
		if p.ResearchRunID == runID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *proposalRepo) UpdateStatus(_ context.Context, id string, status models.ProposalStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.proposals {
		if p.ID == id {
			p.Status = status
			p.UpdatedAt = time.Now()
			return nil
		}
	}
	return storage.ErrNotFound
}

func (r *proposalRepo) DeleteBySource(_ context.Context, contentSourceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.proposals[contentSourceID]; !ok {
		return storage.ErrNotFound
	}
	delete(r.proposals, contentSourceID)
	return nil
}

type reviewRepo Store

func (r *reviewRepo) Create(_ context.Context, e *models.ReviewQueueEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reviews[e.ID]; ok {
		return storage.ErrAlreadyExists
	}
	cp := *e
	r.reviews[e.ID] = &cp
	return nil
}

func (r *reviewRepo) Get(_ context.Context, id string) (*models.ReviewQueueEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.reviews[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *reviewRepo) Update(_ context.Context, e *models.ReviewQueueEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reviews[e.ID]; !ok {
		return storage.ErrNotFound
	}
	cp := *e
	cp.UpdatedAt = time.Now()
	r.reviews[e.ID] = &cp
	return nil
}

func (r *reviewRepo) List(_ context.Context, filters models.ReviewFilters) ([]*models.ReviewQueueEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.ReviewQueueEntry
	for _, e := range r.reviews {
		if filters.Status != "" && e.Status != filters.Status {
			continue
		}
		if filters.ResearchRunID != "" && e.ResearchRunID != filters.ResearchRunID {
			continue
		}
		if filters.AssignedTo != "" && e.AssignedTo != filters.AssignedTo {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	// Highest priority first, then oldest first.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	offset := filters.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, nil
}

type auditRepo Store

func (r *auditRepo) Append(_ context.Context, e *models.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	r.events = append(r.events, &cp)
	return nil
}

func (r *auditRepo) ListByRun(_ context.Context, runID string) ([]*models.AuditEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.AuditEvent
	for _, e := range r.events {
		if e.ResearchRunID == runID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (r *auditRepo) ListRange(_ context.Context, from, to time.Time) ([]*models.AuditEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.AuditEvent
	for _, e := range r.events {
		if !e.Timestamp.Before(from) && e.Timestamp.Before(to) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}
