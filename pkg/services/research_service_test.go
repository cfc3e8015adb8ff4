package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbforge/curator/pkg/audit"
	"github.com/kbforge/curator/pkg/models"
	"github.com/kbforge/curator/pkg/queue"
	"github.com/kbforge/curator/pkg/storage/memory"
)

type fakePool struct {
	submitted  []string
	submitErr  error
	cancelable map[string]bool
	cancelled  []string
}

func (f *fakePool) Submit(runID string) error {
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted = append(f.submitted, runID)
	return nil
}

func (f *fakePool) CancelRun(runID string) bool {
	if f.cancelable[runID] {
		f.cancelled = append(f.cancelled, runID)
		return true
	}
	return false
}

func newResearchFixture(t *testing.T) (*ResearchService, *memory.Store, *fakePool) {
	t.Helper()
	store := memory.NewStore()
	pool := &fakePool{cancelable: make(map[string]bool)}
	svc := NewResearchService(store, pool, audit.NewLogger(store.Audit()))
	return svc, store, pool
}

func TestCreateRun(t *testing.T) {
	svc, store, _ := newResearchFixture(t)
	ctx := context.Background()

	t.Run("creates pending run", func(t *testing.T) {
		run, err := svc.CreateRun(ctx, models.CreateRunRequest{
			Topic:     "  vector databases in production  ",
			CreatedBy: "alice",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, run.ID)
		assert.Equal(t, "vector databases in production", run.Topic)
		assert.Equal(t, models.RunStatusPending, run.Status)
		assert.Nil(t, run.StartedAt)

		stored, err := store.Runs().Get(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", stored.CreatedBy)
	})

	t.Run("rejects empty topic", func(t *testing.T) {
		_, err := svc.CreateRun(ctx, models.CreateRunRequest{Topic: "   "})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.True(t, IsValidationError(err))
	})

	t.Run("rejects oversized topic", func(t *testing.T) {
		_, err := svc.CreateRun(ctx, models.CreateRunRequest{Topic: strings.Repeat("x", maxTopicLength+1)})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestStartRun(t *testing.T) {
	ctx := context.Background()

	t.Run("submits pending run", func(t *testing.T) {
		svc, _, pool := newResearchFixture(t)
		run, err := svc.CreateRun(ctx, models.CreateRunRequest{Topic: "graph databases"})
		require.NoError(t, err)

		_, err = svc.StartRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{run.ID}, pool.submitted)
	})

	t.Run("returns ErrNotFound for missing run", func(t *testing.T) {
		svc, _, _ := newResearchFixture(t)
		_, err := svc.StartRun(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("rejects non-pending run", func(t *testing.T) {
		svc, store, _ := newResearchFixture(t)
		run, err := svc.CreateRun(ctx, models.CreateRunRequest{Topic: "graph databases"})
		require.NoError(t, err)
		_, err = store.Runs().ClaimPending(ctx, run.ID, time.Now())
		require.NoError(t, err)

		_, err = svc.StartRun(ctx, run.ID)
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("maps full queue to ErrUnavailable", func(t *testing.T) {
		svc, _, pool := newResearchFixture(t)
		pool.submitErr = queue.ErrQueueFull
		run, err := svc.CreateRun(ctx, models.CreateRunRequest{Topic: "graph databases"})
		require.NoError(t, err)

		_, err = svc.StartRun(ctx, run.ID)
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("second start of the same run conflicts", func(t *testing.T) {
		svc, _, pool := newResearchFixture(t)
		run, err := svc.CreateRun(ctx, models.CreateRunRequest{Topic: "graph databases"})
		require.NoError(t, err)

		_, err = svc.StartRun(ctx, run.ID)
		require.NoError(t, err)

		// The run is still pending because no worker has claimed it,
		// yet the reservation makes the duplicate start visible here.
		_, err = svc.StartRun(ctx, run.ID)
		assert.ErrorIs(t, err, ErrConflict)
		assert.Equal(t, []string{run.ID}, pool.submitted)
	})

	t.Run("concurrent starts submit exactly once", func(t *testing.T) {
		svc, _, pool := newResearchFixture(t)
		run, err := svc.CreateRun(ctx, models.CreateRunRequest{Topic: "graph databases"})
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make([]error, 4)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = svc.StartRun(ctx, run.ID)
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
			} else {
				assert.ErrorIs(t, err, ErrConflict)
			}
		}
		assert.Equal(t, 1, succeeded, "exactly one start must win")
		assert.Equal(t, []string{run.ID}, pool.submitted)
	})

	t.Run("failed submit releases the reservation", func(t *testing.T) {
		svc, _, pool := newResearchFixture(t)
		pool.submitErr = queue.ErrQueueFull
		run, err := svc.CreateRun(ctx, models.CreateRunRequest{Topic: "graph databases"})
		require.NoError(t, err)

		_, err = svc.StartRun(ctx, run.ID)
		assert.ErrorIs(t, err, ErrUnavailable)

		pool.submitErr = nil
		_, err = svc.StartRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{run.ID}, pool.submitted)
	})
}

func TestCancelRun(t *testing.T) {
	ctx := context.Background()

	t.Run("pending run is finished cancelled with terminal event", func(t *testing.T) {
		svc, store, _ := newResearchFixture(t)
		run, err := svc.CreateRun(ctx, models.CreateRunRequest{Topic: "graph databases"})
		require.NoError(t, err)

		require.NoError(t, svc.CancelRun(ctx, run.ID))

		stored, err := store.Runs().Get(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RunStatusCancelled, stored.Status)
		require.NotNil(t, stored.CompletedAt)

		events, err := store.Audit().ListByRun(ctx, run.ID)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, models.EventResearchComplete, events[0].EventType)
		assert.Equal(t, "cancelled", events[0].Payload["final_status"])
	})

	t.Run("running run is cancelled through the pool", func(t *testing.T) {
		svc, store, pool := newResearchFixture(t)
		run, err := svc.CreateRun(ctx, models.CreateRunRequest{Topic: "graph databases"})
		require.NoError(t, err)
		_, err = store.Runs().ClaimPending(ctx, run.ID, time.Now())
		require.NoError(t, err)
		pool.cancelable[run.ID] = true

		require.NoError(t, svc.CancelRun(ctx, run.ID))
		assert.Equal(t, []string{run.ID}, pool.cancelled)

		// The orchestrator finishes the run; the service leaves it
		// running here.
		stored, err := store.Runs().Get(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RunStatusRunning, stored.Status)
	})

	t.Run("running run not on pool is finished directly", func(t *testing.T) {
		svc, store, _ := newResearchFixture(t)
		run, err := svc.CreateRun(ctx, models.CreateRunRequest{Topic: "graph databases"})
		require.NoError(t, err)
		_, err = store.Runs().ClaimPending(ctx, run.ID, time.Now())
		require.NoError(t, err)

		require.NoError(t, svc.CancelRun(ctx, run.ID))
		stored, err := store.Runs().Get(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RunStatusCancelled, stored.Status)
	})

	t.Run("terminal run returns ErrConflict", func(t *testing.T) {
		svc, store, _ := newResearchFixture(t)
		run, err := svc.CreateRun(ctx, models.CreateRunRequest{Topic: "graph databases"})
		require.NoError(t, err)
		_, err = store.Runs().ClaimPending(ctx, run.ID, time.Now())
		require.NoError(t, err)
		require.NoError(t, store.Runs().Finish(ctx, run.ID, models.RunStatusCompleted, "", time.Now(), nil))

		assert.ErrorIs(t, svc.CancelRun(ctx, run.ID), ErrConflict)
	})
}

func TestListRuns(t *testing.T) {
	svc, _, _ := newResearchFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.CreateRun(ctx, models.CreateRunRequest{Topic: "topic", CreatedBy: "alice"})
		require.NoError(t, err)
	}
	_, err := svc.CreateRun(ctx, models.CreateRunRequest{Topic: "topic", CreatedBy: "bob"})
	require.NoError(t, err)

	resp, err := svc.ListRuns(ctx, models.RunFilters{CreatedBy: "alice", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.TotalCount)
	assert.Len(t, resp.Runs, 2)
	assert.Equal(t, 2, resp.Limit)

	// Limit is capped.
	resp, err = svc.ListRuns(ctx, models.RunFilters{Limit: 5000})
	require.NoError(t, err)
	assert.Equal(t, 100, resp.Limit)
}
