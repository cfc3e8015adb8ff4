package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/kbforge/curator/pkg/integration"
	"github.com/kbforge/curator/pkg/models"
	"github.com/kbforge/curator/pkg/storage"
)

// IntegrationService exposes integration proposal reads and explicit
// regeneration.
type IntegrationService struct {
	analyzer  *integration.Analyzer
	sources   storage.SourceRepository
	proposals storage.ProposalRepository
	logger    *slog.Logger
}

// NewIntegrationService creates a new IntegrationService.
func NewIntegrationService(analyzer *integration.Analyzer, sources storage.SourceRepository, proposals storage.ProposalRepository) *IntegrationService {
	return &IntegrationService{
		analyzer:  analyzer,
		sources:   sources,
		proposals: proposals,
		logger:    slog.Default().With("component", "integration_service"),
	}
}

// GetBySource returns the proposal for a content source.
func (s *IntegrationService) GetBySource(ctx context.Context, contentSourceID string) (*models.IntegrationProposal, error) {
	p, err := s.proposals.GetBySource(ctx, contentSourceID)
	if err != nil {
		return nil, mapStorageErr(err)
	}
	return p, nil
}

// ListByRun returns all proposals generated for a run.
func (s *IntegrationService) ListByRun(ctx context.Context, runID string) ([]*models.IntegrationProposal, error) {
	proposals, err := s.proposals.ListByRun(ctx, runID)
	if err != nil {
		return nil, mapStorageErr(err)
	}
	return proposals, nil
}

// Regenerate deletes the source's existing proposal (if any) and
// produces a fresh one against the current knowledge graph.
func (s *IntegrationService) Regenerate(ctx context.Context, contentSourceID string) (*models.IntegrationProposal, error) {
	src, err := s.sources.Get(ctx, contentSourceID)
	if err != nil {
		return nil, mapStorageErr(err)
	}

	if err := s.proposals.DeleteBySource(ctx, contentSourceID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, mapStorageErr(err)
	}

	proposal, err := s.analyzer.Propose(ctx, src)
	if err != nil {
		return nil, mapStorageErr(err)
	}

	s.logger.Info("Integration proposal regenerated",
		"content_source_id", contentSourceID,
		"proposal_id", proposal.ID,
		"strategy", proposal.Strategy)
	return proposal, nil
}
