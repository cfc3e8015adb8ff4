// Package queue provides the worker pool that executes research runs
// submitted through the API. Submissions are buffered on a channel;
// each worker takes one run at a time and drives it through the
// orchestrator.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kbforge/curator/pkg/config"
	"github.com/kbforge/curator/pkg/models"
)

// Sentinel errors for queue operations.
var (
	// ErrQueueFull indicates the submission buffer is at capacity.
	ErrQueueFull = errors.New("run queue is full")

	// ErrNotStarted indicates the pool has not been started.
	ErrNotStarted = errors.New("worker pool not started")
)

// RunExecutor executes one research run end to end. The orchestrator
// satisfies this; it owns all stage processing and writes results
// progressively, so the worker only handles context lifetime and
// cancellation registration.
type RunExecutor interface {
	Execute(ctx context.Context, runID string) (*models.ResearchRun, error)
}

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

// Worker status constants.
const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// WorkerHealth contains health information for a single worker.
type WorkerHealth struct {
	ID            string       `json:"id"`
	Status        WorkerStatus `json:"status"`
	CurrentRunID  string       `json:"current_run_id,omitempty"`
	RunsProcessed int          `json:"runs_processed"`
	LastActivity  time.Time    `json:"last_activity"`
}

// PoolHealth contains health information for the entire worker pool.
type PoolHealth struct {
	IsHealthy     bool           `json:"is_healthy"`
	ActiveWorkers int            `json:"active_workers"`
	TotalWorkers  int            `json:"total_workers"`
	QueueDepth    int            `json:"queue_depth"`
	QueueCapacity int            `json:"queue_capacity"`
	ActiveRuns    []string       `json:"active_runs,omitempty"`
	WorkerStats   []WorkerHealth `json:"worker_stats"`
}

// WorkerPool manages the run execution workers.
type WorkerPool struct {
	cfg      *config.QueueConfig
	executor RunExecutor
	submitCh chan string
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Run cancel registry: run_id → cancel function, for API-triggered
	// cancellation of in-flight runs.
	mu         sync.RWMutex
	activeRuns map[string]context.CancelFunc
	workers    []*worker
	started    bool
}

// NewWorkerPool creates a worker pool. Start must be called before
// Submit.
func NewWorkerPool(cfg *config.QueueConfig, executor RunExecutor) *WorkerPool {
	return &WorkerPool{
		cfg:        cfg,
		executor:   executor,
		submitCh:   make(chan string, cfg.QueueSize),
		stopCh:     make(chan struct{}),
		activeRuns: make(map[string]context.CancelFunc),
	}
}

// Start spawns the worker goroutines. Safe to call multiple times;
// subsequent calls are no-ops.
func (p *WorkerPool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		slog.Warn("Worker pool already started, ignoring duplicate Start call")
		return
	}
	p.started = true

	slog.Info("Starting worker pool", "worker_count", p.cfg.WorkerCount, "queue_size", p.cfg.QueueSize)

	for i := 0; i < p.cfg.WorkerCount; i++ {
		w := &worker{
			id:           fmt.Sprintf("worker-%d", i),
			pool:         p,
			status:       WorkerStatusIdle,
			lastActivity: time.Now(),
		}
		p.workers = append(p.workers, w)
		p.wg.Add(1)
		go w.run(ctx)
	}
}

// Submit enqueues a run for execution. Returns ErrQueueFull when the
// buffer is at capacity rather than blocking the caller.
func (p *WorkerPool) Submit(runID string) error {
	p.mu.RLock()
	started := p.started
	p.mu.RUnlock()
	if !started {
		return ErrNotStarted
	}

	select {
	case p.submitCh <- runID:
		return nil
	default:
		return ErrQueueFull
	}
}

// CancelRun triggers context cancellation for an in-flight run.
// Returns true if the run was active on this pool. Pending runs that
// have not been picked up yet are not affected; the caller cancels
// those directly in storage.
func (p *WorkerPool) CancelRun(runID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if cancel, ok := p.activeRuns[runID]; ok {
		cancel()
		return true
	}
	return false
}

// Stop performs a graceful shutdown: workers finish their current runs
// within GracefulShutdownTimeout, after which remaining runs are
// cancelled.
func (p *WorkerPool) Stop() {
	slog.Info("Stopping worker pool gracefully")
	p.stopOnce.Do(func() { close(p.stopCh) })

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(p.cfg.GracefulShutdownTimeout):
		slog.Warn("Graceful shutdown timed out, cancelling active runs",
			"active_runs", p.activeRunIDs())
		p.mu.RLock()
		for _, cancel := range p.activeRuns {
			cancel()
		}
		p.mu.RUnlock()
		<-done
	}

	slog.Info("Worker pool stopped")
}

// Health returns the current health status of the pool.
func (p *WorkerPool) Health() *PoolHealth {
	p.mu.RLock()
	workers := make([]*worker, len(p.workers))
	copy(workers, p.workers)
	p.mu.RUnlock()

	workerStats := make([]WorkerHealth, len(workers))
	activeWorkers := 0
	for i, w := range workers {
		stats := w.health()
		workerStats[i] = stats
		if stats.Status == WorkerStatusWorking {
			activeWorkers++
		}
	}

	return &PoolHealth{
		IsHealthy:     len(workers) > 0,
		ActiveWorkers: activeWorkers,
		TotalWorkers:  len(workers),
		QueueDepth:    len(p.submitCh),
		QueueCapacity: cap(p.submitCh),
		ActiveRuns:    p.activeRunIDs(),
		WorkerStats:   workerStats,
	}
}

func (p *WorkerPool) registerRun(runID string, cancel context.CancelFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activeRuns[runID] = cancel
}

func (p *WorkerPool) unregisterRun(runID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.activeRuns, runID)
}

func (p *WorkerPool) activeRunIDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.activeRuns))
	for id := range p.activeRuns {
		ids = append(ids, id)
	}
	return ids
}

// worker is a single pool goroutine processing submitted runs.
type worker struct {
	id   string
	pool *WorkerPool

	mu            sync.RWMutex
	status        WorkerStatus
	currentRunID  string
	runsProcessed int
	lastActivity  time.Time
}

func (w *worker) run(ctx context.Context) {
	defer w.pool.wg.Done()

	log := slog.With("worker_id", w.id)
	log.Info("Worker started")

	for {
		select {
		case <-w.pool.stopCh:
			log.Info("Worker shutting down")
			return
		case <-ctx.Done():
			log.Info("Context cancelled, worker shutting down")
			return
		case runID := <-w.pool.submitCh:
			w.process(ctx, runID)
		}
	}
}

func (w *worker) process(ctx context.Context, runID string) {
	log := slog.With("worker_id", w.id, "run_id", runID)
	log.Info("Run picked up")

	w.setStatus(WorkerStatusWorking, runID)
	defer w.setStatus(WorkerStatusIdle, "")

	// Run timeout is enforced by the orchestrator; this context exists
	// for API-triggered cancellation.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	w.pool.registerRun(runID, cancel)
	defer w.pool.unregisterRun(runID)

	run, err := w.executeRun(runCtx, runID)
	if err != nil {
		log.Error("Run execution failed", "error", err)
		return
	}
	log.Info("Run finished", "status", run.Status,
		"discovered", run.SourcesDiscovered,
		"assessed", run.SourcesAssessed)
}

// executeRun isolates executor panics so one bad run cannot take down
// the worker.
func (w *worker) executeRun(ctx context.Context, runID string) (run *models.ResearchRun, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("run executor panicked: %v", r)
		}
	}()
	return w.pool.executor.Execute(ctx, runID)
}

func (w *worker) setStatus(status WorkerStatus, runID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentRunID = runID
	w.lastActivity = time.Now()
	if status == WorkerStatusIdle {
		w.runsProcessed++
	}
}

func (w *worker) health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:            w.id,
		Status:        w.status,
		CurrentRunID:  w.currentRunID,
		RunsProcessed: w.runsProcessed,
		LastActivity:  w.lastActivity,
	}
}
