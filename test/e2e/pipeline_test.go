// Package e2e exercises the full research pipeline over the in-memory
// backend: service layer, worker pool, orchestrator stages, review
// queue, and audit trail together.
package e2e

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbforge/curator/pkg/audit"
	"github.com/kbforge/curator/pkg/breaker"
	"github.com/kbforge/curator/pkg/config"
	"github.com/kbforge/curator/pkg/discovery"
	"github.com/kbforge/curator/pkg/integration"
	"github.com/kbforge/curator/pkg/metrics"
	"github.com/kbforge/curator/pkg/models"
	"github.com/kbforge/curator/pkg/orchestrator"
	"github.com/kbforge/curator/pkg/queue"
	"github.com/kbforge/curator/pkg/review"
	"github.com/kbforge/curator/pkg/scoring"
	"github.com/kbforge/curator/pkg/services"
	"github.com/kbforge/curator/pkg/storage"
	"github.com/kbforge/curator/pkg/storage/memory"
)

// scriptedClient returns canned items for every query.
type scriptedClient struct {
	name  string
	items []discovery.RawItem
}

func (c *scriptedClient) Name() string { return c.name }

func (c *scriptedClient) Search(_ context.Context, _ string, _ int) ([]discovery.RawItem, error) {
	return c.items, nil
}

func searchResults(n int) []discovery.RawItem {
	out := make([]discovery.RawItem, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, discovery.RawItem{
			Identifier:  fmt.Sprintf("https://example.com/paper-%d", i),
			URL:         fmt.Sprintf("https://example.com/paper-%d", i),
			Title:       fmt.Sprintf("Study %d of container scheduling", i),
			Description: "A detailed empirical study of container scheduling with methodology, results, and analysis across several cluster sizes.",
			SourceType:  models.SourceTypeWeb,
			PublishedAt: time.Now().AddDate(0, 0, -5).Format(time.RFC3339),
		})
	}
	return out
}

type pipelineHarness struct {
	store    storage.Store
	auditLog *audit.Logger
	pool     *queue.WorkerPool
	research *services.ResearchService
	reviews  *services.ReviewService
	metrics  *metrics.Collector
}

func newPipelineHarness(t *testing.T, clients ...discovery.ExternalClient) *pipelineHarness {
	t.Helper()

	store := memory.NewStore()
	auditLog := audit.NewLogger(store.Audit())
	registry := breaker.NewRegistry(nil)

	disc := discovery.NewService(clients, registry, auditLog, discovery.Options{
		PerClientLimit:   10,
		PerClientTimeout: time.Second,
		Concurrency:      4,
	})
	scorer := scoring.NewScorer(nil, registry, scoring.DefaultFreshnessRequirements())
	analyzer := integration.NewAnalyzer(nil, nil, store.Proposals())
	processor := review.NewProcessor(analyzer, store.Sources(), store.Proposals(), store.Runs(), auditLog)
	reviewQueue := review.NewQueue(store.Reviews(), store.Assessments(), auditLog, processor)

	orch := orchestrator.New(store, disc, scorer, analyzer, reviewQueue, registry, auditLog,
		orchestrator.Config{StageConcurrency: 4, RunTimeout: 30 * time.Second})

	pool := queue.NewWorkerPool(&config.QueueConfig{
		WorkerCount:             2,
		QueueSize:               8,
		GracefulShutdownTimeout: 2 * time.Second,
	}, orch)
	pool.Start(context.Background())
	t.Cleanup(pool.Stop)

	return &pipelineHarness{
		store:    store,
		auditLog: auditLog,
		pool:     pool,
		research: services.NewResearchService(store, pool, auditLog),
		reviews:  services.NewReviewService(reviewQueue),
		metrics:  metrics.NewCollector(store.Runs(), store.Assessments(), store.Audit()),
	}
}

func (h *pipelineHarness) waitTerminal(t *testing.T, runID string) *models.ResearchRun {
	t.Helper()
	var final *models.ResearchRun
	require.Eventually(t, func() bool {
		run, err := h.research.GetRun(context.Background(), runID)
		if err != nil {
			return false
		}
		if !run.Status.Terminal() {
			return false
		}
		final = run
		return true
	}, 10*time.Second, 20*time.Millisecond, "run did not reach a terminal status")
	return final
}

func TestPipelineHappyPath(t *testing.T) {
	h := newPipelineHarness(t,
		&scriptedClient{name: "web-search", items: searchResults(4)},
	)
	ctx := context.Background()

	run, err := h.research.CreateRun(ctx, models.CreateRunRequest{
		Topic:     "container scheduling strategies",
		CreatedBy: "e2e",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusPending, run.Status)

	_, err = h.research.StartRun(ctx, run.ID)
	require.NoError(t, err)

	final := h.waitTerminal(t, run.ID)
	require.Equal(t, models.RunStatusCompleted, final.Status)
	assert.Equal(t, 4, final.SourcesDiscovered)
	assert.Equal(t, 4, final.SourcesAssessed)

	// Every source got an assessment and a proposal.
	sources, err := h.store.Sources().ListByRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, sources, 4)
	for _, src := range sources {
		a, err := h.store.Assessments().GetBySource(ctx, src.ID)
		require.NoError(t, err)
		assert.InDelta(t, models.ComputeOverall(a.Credibility, a.Relevance, a.Freshness, a.Completeness), a.Overall, 1e-9)
	}
	proposals, err := h.store.Proposals().ListByRun(ctx, run.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, proposals)

	// The audit trail brackets the run.
	events, err := h.auditLog.Timeline(ctx, run.ID)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, models.EventResearchStart, events[0].EventType)
	assert.Equal(t, models.EventResearchComplete, events[len(events)-1].EventType)

	// Run metrics derive cleanly from what was stored.
	m, err := h.metrics.Run(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, m.SourcesDiscovered)
}

func TestPipelineReviewDecision(t *testing.T) {
	h := newPipelineHarness(t,
		&scriptedClient{name: "web-search", items: searchResults(3)},
	)
	ctx := context.Background()

	run, err := h.research.CreateRun(ctx, models.CreateRunRequest{
		Topic:     "container scheduling strategies",
		CreatedBy: "e2e",
	})
	require.NoError(t, err)
	_, err = h.research.StartRun(ctx, run.ID)
	require.NoError(t, err)
	final := h.waitTerminal(t, run.ID)
	require.Equal(t, models.RunStatusCompleted, final.Status)

	entries, err := h.reviews.List(ctx, models.ReviewFilters{ResearchRunID: run.ID})
	require.NoError(t, err)
	require.NotEmpty(t, entries, "completed run should have enqueued review entries")

	entry := entries[0]
	assigned, err := h.reviews.Assign(ctx, entry.ID, "reviewer-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusAssigned, assigned.Status)

	decided, err := h.reviews.Decide(ctx, entry.ID, models.DecisionApprove, "solid methodology")
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusApproved, decided.Status)
	require.NotNil(t, decided.DecidedAt)

	// Approval flows through to the proposal.
	proposal, err := h.store.Proposals().GetBySource(ctx, entry.ContentSourceID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusApproved, proposal.Status)
}

func TestPipelineFailsWhenDiscoveryExhausted(t *testing.T) {
	h := newPipelineHarness(t) // no clients at all
	ctx := context.Background()

	run, err := h.research.CreateRun(ctx, models.CreateRunRequest{
		Topic:     "anything at all",
		CreatedBy: "e2e",
	})
	require.NoError(t, err)
	_, err = h.research.StartRun(ctx, run.ID)
	require.NoError(t, err)

	final := h.waitTerminal(t, run.ID)
	assert.Equal(t, models.RunStatusFailed, final.Status)
	assert.Contains(t, final.ErrorDetails, "discover")
}

func TestPipelineCancelPendingRun(t *testing.T) {
	h := newPipelineHarness(t,
		&scriptedClient{name: "web-search", items: searchResults(1)},
	)
	ctx := context.Background()

	run, err := h.research.CreateRun(ctx, models.CreateRunRequest{
		Topic:     "never started",
		CreatedBy: "e2e",
	})
	require.NoError(t, err)

	require.NoError(t, h.research.CancelRun(ctx, run.ID))

	got, err := h.research.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCancelled, got.Status)

	// Cancelling a terminal run is a conflict.
	err = h.research.CancelRun(ctx, run.ID)
	assert.ErrorIs(t, err, services.ErrConflict)
}
