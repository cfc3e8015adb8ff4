// Package cleanup provides data retention enforcement for research
// runs.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/kbforge/curator/pkg/config"
	"github.com/kbforge/curator/pkg/storage"
)

// Service periodically deletes terminal runs older than the retention
// window, together with everything they own (sources, assessments,
// proposals, review entries, audit events). Deletion is idempotent and
// safe to run from multiple replicas.
type Service struct {
	config *config.RetentionConfig
	runs   storage.RunRepository
	now    func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(cfg *config.RetentionConfig, runs storage.RunRepository) *Service {
	return &Service{
		config: cfg,
		runs:   runs,
		now:    time.Now,
	}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Cleanup service started",
		"run_retention_days", s.config.RunRetentionDays,
		"interval", s.config.CleanupInterval,
		"batch_size", s.config.BatchSize)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.purgeExpiredRuns(ctx)

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.purgeExpiredRuns(ctx)
		}
	}
}

// purgeExpiredRuns deletes one batch of expired terminal runs. Runs
// that are pending or running are never touched regardless of age.
func (s *Service) purgeExpiredRuns(ctx context.Context) {
	cutoff := s.now().UTC().AddDate(0, 0, -s.config.RunRetentionDays)

	expired, err := s.runs.ListTerminalBefore(ctx, cutoff, s.config.BatchSize)
	if err != nil {
		slog.Error("Retention: listing expired runs failed", "error", err)
		return
	}
	if len(expired) == 0 {
		return
	}

	deleted := 0
	for _, run := range expired {
		if ctx.Err() != nil {
			break
		}
		if err := s.runs.Delete(ctx, run.ID); err != nil {
			slog.Error("Retention: run deletion failed", "run_id", run.ID, "error", err)
			continue
		}
		deleted++
	}

	slog.Info("Retention: purged expired runs",
		"deleted", deleted,
		"cutoff", cutoff.Format(time.RFC3339))
}
