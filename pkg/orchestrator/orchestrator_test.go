package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbforge/curator/pkg/audit"
	"github.com/kbforge/curator/pkg/breaker"
	"github.com/kbforge/curator/pkg/discovery"
	"github.com/kbforge/curator/pkg/integration"
	"github.com/kbforge/curator/pkg/models"
	"github.com/kbforge/curator/pkg/review"
	"github.com/kbforge/curator/pkg/scoring"
	"github.com/kbforge/curator/pkg/storage"
	"github.com/kbforge/curator/pkg/storage/memory"
)

// fakeClient is a scriptable external client.
type fakeClient struct {
	name string
	// respond maps a query to its items; a nil map means fail always.
	respond func(query string) ([]discovery.RawItem, error)

	mu    sync.Mutex
	calls int
}

func (c *fakeClient) Name() string { return c.name }

func (c *fakeClient) Search(_ context.Context, query string, _ int) ([]discovery.RawItem, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.respond == nil {
		return nil, fmt.Errorf("%w: scripted failure", discovery.ErrUnavailable)
	}
	return c.respond(query)
}

func items(ids ...string) []discovery.RawItem {
	out := make([]discovery.RawItem, 0, len(ids))
	for i, id := range ids {
		out = append(out, discovery.RawItem{
			Identifier:  id,
			URL:         id,
			Title:       fmt.Sprintf("Result %d about transformer architectures", i+1),
			Description: "A detailed study with methodology and empirical analysis of transformer architectures in several settings.",
			SourceType:  models.SourceTypeWeb,
			PublishedAt: time.Now().AddDate(0, 0, -3).Format(time.RFC3339),
		})
	}
	return out
}

type orchestratorFixture struct {
	store    storage.Store
	registry *breaker.Registry
	orch     *Orchestrator
}

func newFixture(t *testing.T, clients []discovery.ExternalClient, breakerConfigs map[string]breaker.Config, adapter scoring.AIAdapter) *orchestratorFixture {
	t.Helper()
	store := memory.NewStore()
	registry := breaker.NewRegistry(breakerConfigs)
	auditLog := audit.NewLogger(store.Audit())

	disc := discovery.NewService(clients, registry, auditLog, discovery.Options{
		PerClientLimit:   10,
		PerClientTimeout: time.Second,
		Concurrency:      4,
	})
	scorer := scoring.NewScorer(adapter, registry, scoring.DefaultFreshnessRequirements())
	analyzer := integration.NewAnalyzer(nil, nil, store.Proposals())
	processor := review.NewProcessor(analyzer, store.Sources(), store.Proposals(), store.Runs(), auditLog)
	queue := review.NewQueue(store.Reviews(), store.Assessments(), auditLog, processor)

	orch := New(store, disc, scorer, analyzer, queue, registry, auditLog, Config{StageConcurrency: 4})
	return &orchestratorFixture{store: store, registry: registry, orch: orch}
}

func (f *orchestratorFixture) createRun(t *testing.T, topic string) *models.ResearchRun {
	t.Helper()
	run := &models.ResearchRun{
		ID:        uuid.New().String(),
		Topic:     topic,
		Status:    models.RunStatusPending,
		CreatedBy: "tester",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, f.store.Runs().Create(context.Background(), run))
	return run
}

func eventTypes(t *testing.T, store storage.Store, runID string) []string {
	t.Helper()
	events, err := store.Audit().ListByRun(context.Background(), runID)
	require.NoError(t, err)
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.EventType)
	}
	return out
}

func countEvents(types []string, want string) int {
	n := 0
	for _, tp := range types {
		if tp == want {
			n++
		}
	}
	return n
}

func TestExecute_HappyPath(t *testing.T) {
	client := &fakeClient{name: "web-search", respond: func(string) ([]discovery.RawItem, error) {
		return items("https://example.org/a", "https://example.org/b", "https://example.org/c"), nil
	}}
	f := newFixture(t, []discovery.ExternalClient{client}, nil, nil)
	run := f.createRun(t, "transformer architectures")
	ctx := context.Background()

	final, err := f.orch.Execute(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, final.Status)
	require.NotNil(t, final.StartedAt)
	require.NotNil(t, final.CompletedAt)
	assert.False(t, final.CompletedAt.Before(*final.StartedAt))
	assert.Equal(t, 3, final.SourcesDiscovered)
	assert.Equal(t, 3, final.SourcesAssessed)

	sources, err := f.store.Sources().ListByRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, sources, 3)

	for _, src := range sources {
		a, err := f.store.Assessments().GetBySource(ctx, src.ID)
		require.NoError(t, err)
		assert.NoError(t, a.Validate())
		assert.Equal(t, models.ComputeOverall(a.Credibility, a.Relevance, a.Freshness, a.Completeness), a.Overall)

		p, err := f.store.Proposals().GetBySource(ctx, src.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ProposalStatusPendingReview, p.Status)
	}

	entries, err := f.store.Reviews().List(ctx, models.ReviewFilters{ResearchRunID: run.ID})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, models.ReviewStatusPending, e.Status)
	}

	types := eventTypes(t, f.store, run.ID)
	for _, want := range []string{
		models.EventResearchStart,
		models.EventContentDiscovery,
		models.EventQualityAssessment,
		models.EventIntegrationProposal,
		models.EventResearchComplete,
	} {
		assert.GreaterOrEqual(t, countEvents(types, want), 1, want)
	}
	assert.Equal(t, 1, countEvents(types, models.EventResearchStart))
	assert.Equal(t, 1, countEvents(types, models.EventResearchComplete))
}

func TestExecute_DedupAcrossClients(t *testing.T) {
	c1 := &fakeClient{name: "web-search", respond: func(string) ([]discovery.RawItem, error) {
		return items("https://example.org/x", "https://example.org/y"), nil
	}}
	c2 := &fakeClient{name: "news-search", respond: func(string) ([]discovery.RawItem, error) {
		// Trailing slash normalizes to the same hash as /x.
		return items("https://example.org/x/", "https://example.org/z"), nil
	}}
	f := newFixture(t, []discovery.ExternalClient{c1, c2}, nil, nil)
	run := f.createRun(t, "dedup topic")

	final, err := f.orch.Execute(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, final.Status)

	sources, err := f.store.Sources().ListByRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Len(t, sources, 3)

	hashes := map[string]struct{}{}
	for _, src := range sources {
		_, dup := hashes[src.ContentHash]
		assert.False(t, dup, "duplicate content hash %s", src.ContentHash)
		hashes[src.ContentHash] = struct{}{}
	}
}

func TestExecute_SingleClientDown(t *testing.T) {
	healthy := &fakeClient{name: "web-search", respond: func(string) ([]discovery.RawItem, error) {
		return items("https://example.org/ok"), nil
	}}
	broken := &fakeClient{name: "news-search"}
	configs := map[string]breaker.Config{
		"news-search": {FailureThreshold: 1, SuccessThreshold: 1, OpenTimeout: time.Minute, ResetTimeout: time.Minute, HalfOpenMaxRequests: 1},
	}
	f := newFixture(t, []discovery.ExternalClient{healthy, broken}, configs, nil)
	run := f.createRun(t, "resilient topic")
	ctx := context.Background()

	final, err := f.orch.Execute(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, final.Status)
	assert.Equal(t, 1, final.SourcesDiscovered)

	assert.Equal(t, breaker.StateOpen, f.registry.Get("news-search").State())

	events, err := f.store.Audit().ListByRun(ctx, run.ID)
	require.NoError(t, err)
	foundOpen := false
	for _, e := range events {
		if e.EventType == models.EventSystemEvent && e.Payload["circuit_state"] == "open" {
			foundOpen = true
			assert.Equal(t, models.LevelWarning, e.Level)
		}
	}
	assert.True(t, foundOpen, "expected a breaker-open system event")
}

func TestExecute_RecoveryViaSimplifiedTopic(t *testing.T) {
	fullTopic := "impact of generative ai in healthcare delivery"
	client := &fakeClient{name: "web-search", respond: func(query string) ([]discovery.RawItem, error) {
		if query == fullTopic {
			return nil, fmt.Errorf("%w: query too long", discovery.ErrUnavailable)
		}
		return items("https://example.org/recovered"), nil
	}}
	f := newFixture(t, []discovery.ExternalClient{client}, nil, nil)
	run := f.createRun(t, fullTopic)
	ctx := context.Background()

	final, err := f.orch.Execute(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, final.Status)
	assert.Equal(t, 1, final.SourcesDiscovered)

	events, err := f.store.Audit().ListByRun(ctx, run.ID)
	require.NoError(t, err)
	recovered := false
	for _, e := range events {
		if e.EventType == models.EventRecovery && e.Payload["success"] == true {
			recovered = true
			assert.Equal(t, "impact of generative", e.Payload["topic"])
		}
	}
	assert.True(t, recovered, "expected a successful recovery event")
}

func TestExecute_AllClientsDownFails(t *testing.T) {
	b1 := &fakeClient{name: "web-search"}
	b2 := &fakeClient{name: "news-search"}
	f := newFixture(t, []discovery.ExternalClient{b1, b2}, nil, nil)
	run := f.createRun(t, "doomed topic")

	final, err := f.orch.Execute(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, final.Status)
	assert.Contains(t, final.ErrorDetails, StageDiscover)
	require.NotNil(t, final.CompletedAt)

	types := eventTypes(t, f.store, run.ID)
	assert.GreaterOrEqual(t, countEvents(types, models.EventRecovery), 1)
	assert.Equal(t, 1, countEvents(types, models.EventResearchComplete))
}

type failingAdapter struct{}

func (failingAdapter) Summarize(context.Context, string) (string, error) {
	return "", scoring.ErrAIUnavailable
}
func (failingAdapter) Classify(context.Context, string) (string, error) {
	return "", scoring.ErrAIUnavailable
}
func (failingAdapter) Rationalize(context.Context, scoring.Scores, string) (string, error) {
	return "", scoring.ErrAIUnavailable
}

func TestExecute_AIDegradedUsesFallback(t *testing.T) {
	client := &fakeClient{name: "web-search", respond: func(string) ([]discovery.RawItem, error) {
		return items("https://example.org/1", "https://example.org/2"), nil
	}}
	f := newFixture(t, []discovery.ExternalClient{client}, nil, failingAdapter{})
	run := f.createRun(t, "ai degraded topic")
	ctx := context.Background()

	final, err := f.orch.Execute(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, final.Status)

	sources, err := f.store.Sources().ListByRun(ctx, run.ID)
	require.NoError(t, err)
	for _, src := range sources {
		a, err := f.store.Assessments().GetBySource(ctx, src.ID)
		require.NoError(t, err)
		assert.Equal(t, scoring.MethodFallback, a.Metadata["method"])
		assert.NotEmpty(t, a.Summary)
		assert.NoError(t, a.Validate())
	}
}

func TestExecute_DoubleStartConflicts(t *testing.T) {
	client := &fakeClient{name: "web-search", respond: func(string) ([]discovery.RawItem, error) {
		return items("https://example.org/a"), nil
	}}
	f := newFixture(t, []discovery.ExternalClient{client}, nil, nil)
	run := f.createRun(t, "contested topic")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.orch.Execute(context.Background(), run.ID)
		}(i)
	}
	wg.Wait()

	conflicts := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, storage.ErrConflict)
			conflicts++
		}
	}
	assert.Equal(t, 1, conflicts, "exactly one invocation must lose the claim")

	types := eventTypes(t, f.store, run.ID)
	assert.Equal(t, 1, countEvents(types, models.EventResearchStart))
}

func TestExecute_ZeroSourcesCompletes(t *testing.T) {
	client := &fakeClient{name: "web-search", respond: func(string) ([]discovery.RawItem, error) {
		return nil, nil
	}}
	f := newFixture(t, []discovery.ExternalClient{client}, nil, nil)
	run := f.createRun(t, "obscure topic")

	final, err := f.orch.Execute(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, final.Status)
	assert.Zero(t, final.SourcesDiscovered)
	assert.Zero(t, final.SourcesAssessed)
	assert.Zero(t, final.SourcesApproved)

	entries, err := f.store.Reviews().List(context.Background(), models.ReviewFilters{ResearchRunID: run.ID})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExecute_CancellationYieldsCancelled(t *testing.T) {
	started := make(chan struct{})
	client := &fakeClient{name: "web-search", respond: nil}
	client.respond = func(string) ([]discovery.RawItem, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		time.Sleep(50 * time.Millisecond)
		return items("https://example.org/slow"), nil
	}
	f := newFixture(t, []discovery.ExternalClient{client}, nil, nil)
	run := f.createRun(t, "cancelled topic")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var final *models.ResearchRun
	var execErr error
	go func() {
		final, execErr = f.orch.Execute(ctx, run.ID)
		close(done)
	}()

	<-started
	cancel()
	<-done

	require.NoError(t, execErr)
	assert.Equal(t, models.RunStatusCancelled, final.Status)
	require.NotNil(t, final.CompletedAt)

	// The terminal event is recorded despite the cancelled context.
	types := eventTypes(t, f.store, run.ID)
	assert.Equal(t, 1, countEvents(types, models.EventResearchComplete))
}

// newFixtureWithStore builds the fixture over a caller-supplied store,
// for tests that inject storage faults.
func newFixtureWithStore(t *testing.T, store storage.Store, clients []discovery.ExternalClient) *orchestratorFixture {
	t.Helper()
	registry := breaker.NewRegistry(nil)
	auditLog := audit.NewLogger(store.Audit())

	disc := discovery.NewService(clients, registry, auditLog, discovery.Options{
		PerClientLimit:   10,
		PerClientTimeout: time.Second,
		Concurrency:      4,
	})
	scorer := scoring.NewScorer(nil, registry, scoring.DefaultFreshnessRequirements())
	analyzer := integration.NewAnalyzer(nil, nil, store.Proposals())
	processor := review.NewProcessor(analyzer, store.Sources(), store.Proposals(), store.Runs(), auditLog)
	queue := review.NewQueue(store.Reviews(), store.Assessments(), auditLog, processor)

	orch := New(store, disc, scorer, analyzer, queue, registry, auditLog, Config{StageConcurrency: 4})
	return &orchestratorFixture{store: store, registry: registry, orch: orch}
}

// failingFinishStore rejects every terminal write, simulating a
// storage fault at the end of a run.
type failingFinishStore struct {
	storage.Store
}

func (s *failingFinishStore) Runs() storage.RunRepository {
	return &failingFinishRuns{RunRepository: s.Store.Runs()}
}

type failingFinishRuns struct {
	storage.RunRepository
}

func (r *failingFinishRuns) Finish(context.Context, string, models.RunStatus, string, time.Time, *models.AuditEvent) error {
	return fmt.Errorf("terminal write rejected")
}

func TestExecute_TerminalWriteFailureKeepsRunNonTerminal(t *testing.T) {
	client := &fakeClient{name: "web-search", respond: func(string) ([]discovery.RawItem, error) {
		return items("https://example.org/a"), nil
	}}
	base := memory.NewStore()
	f := newFixtureWithStore(t, &failingFinishStore{Store: base}, []discovery.ExternalClient{client})
	run := f.createRun(t, "terminal write failure")
	ctx := context.Background()

	_, err := f.orch.Execute(ctx, run.ID)
	require.Error(t, err)

	// The failed pair leaves neither half behind: the run stays
	// running and the timeline holds no ending event.
	stored, err := base.Runs().Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, stored.Status)
	types := eventTypes(t, base, run.ID)
	assert.Zero(t, countEvents(types, models.EventResearchComplete))
}

// deadAuditStore rejects every standalone audit append, simulating a
// failing audit backend.
type deadAuditStore struct {
	storage.Store
}

func (s *deadAuditStore) Audit() storage.AuditRepository {
	return &deadAuditRepo{AuditRepository: s.Store.Audit()}
}

type deadAuditRepo struct {
	storage.AuditRepository
}

func (r *deadAuditRepo) Append(context.Context, *models.AuditEvent) error {
	return fmt.Errorf("audit backend down")
}

func TestExecute_StartEventWriteFailureFailsRunWithTerminalEvent(t *testing.T) {
	client := &fakeClient{name: "web-search", respond: func(string) ([]discovery.RawItem, error) {
		return items("https://example.org/a"), nil
	}}
	base := memory.NewStore()
	f := newFixtureWithStore(t, &deadAuditStore{Store: base}, []discovery.ExternalClient{client})
	run := f.createRun(t, "audit backend down")
	ctx := context.Background()

	final, err := f.orch.Execute(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, final.Status)
	assert.Contains(t, final.ErrorDetails, "record start event")

	// The ending is still recorded: the terminal event travels with
	// the status change through the run repository, not the audit
	// append path.
	events, err := base.Audit().ListByRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventResearchComplete, events[0].EventType)
	assert.Equal(t, models.LevelError, events[0].Level)
}

func TestExecute_NotFound(t *testing.T) {
	f := newFixture(t, nil, nil, nil)
	_, err := f.orch.Execute(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSimplifyTopic(t *testing.T) {
	assert.Equal(t, "impact of generative", simplifyTopic("impact of generative ai in healthcare delivery"))
	assert.Equal(t, "short topic", simplifyTopic("short topic"))
	assert.Equal(t, "", simplifyTopic("   "))
	assert.Equal(t, strings.Join([]string{"a", "b", "c"}, " "), simplifyTopic("a  b\tc"))
}
