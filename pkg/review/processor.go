package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kbforge/curator/pkg/audit"
	"github.com/kbforge/curator/pkg/integration"
	"github.com/kbforge/curator/pkg/models"
	"github.com/kbforge/curator/pkg/storage"
)

// Processor reacts to terminal review decisions. Approval makes sure
// an integration proposal exists and marks it approved; rejection only
// leaves an audit trace.
type Processor struct {
	analyzer  *integration.Analyzer
	sources   storage.SourceRepository
	proposals storage.ProposalRepository
	runs      storage.RunRepository
	auditLog  *audit.Logger
	logger    *slog.Logger
}

// NewProcessor creates a review decision processor.
func NewProcessor(analyzer *integration.Analyzer, sources storage.SourceRepository, proposals storage.ProposalRepository, runs storage.RunRepository, auditLog *audit.Logger) *Processor {
	return &Processor{
		analyzer:  analyzer,
		sources:   sources,
		proposals: proposals,
		runs:      runs,
		auditLog:  auditLog,
		logger:    slog.Default().With("component", "review-processor"),
	}
}

// OnApproved runs after an entry is approved: it generates the
// source's integration proposal if none exists yet, transitions the
// proposal to approved, and bumps the run's approved counter.
func (p *Processor) OnApproved(ctx context.Context, entry *models.ReviewQueueEntry) error {
	proposal, err := p.proposals.GetBySource(ctx, entry.ContentSourceID)
	if errors.Is(err, storage.ErrNotFound) {
		src, srcErr := p.sources.Get(ctx, entry.ContentSourceID)
		if srcErr != nil {
			return fmt.Errorf("load approved source %s: %w", entry.ContentSourceID, srcErr)
		}
		proposal, err = p.analyzer.Propose(ctx, src)
	}
	if err != nil {
		return fmt.Errorf("resolve proposal for approved source %s: %w", entry.ContentSourceID, err)
	}

	if proposal.Status != models.ProposalStatusApproved {
		if err := p.proposals.UpdateStatus(ctx, proposal.ID, models.ProposalStatusApproved); err != nil {
			return fmt.Errorf("approve proposal %s: %w", proposal.ID, err)
		}
	}

	if err := p.runs.AddCounters(ctx, entry.ResearchRunID, 0, 0, 1); err != nil {
		// Counter drift is recoverable; the approval itself stands.
		p.logger.Error("Failed to bump approved counter", "run_id", entry.ResearchRunID, "error", err)
	}

	p.auditLog.Info(ctx, entry.ResearchRunID, models.EventIntegrationProposal, map[string]any{
		"proposal_id":       proposal.ID,
		"content_source_id": entry.ContentSourceID,
		"status":            string(models.ProposalStatusApproved),
		"strategy":          string(proposal.Strategy),
	})
	return nil
}

// OnRejected intentionally changes no state. The decision event
// written by the queue is the audit trace; the source simply never
// reaches integration.
func (p *Processor) OnRejected(ctx context.Context, entry *models.ReviewQueueEntry) {
	p.logger.Debug("Source rejected, skipping integration",
		"entry_id", entry.ID, "content_source_id", entry.ContentSourceID)
}
