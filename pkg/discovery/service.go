package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kbforge/curator/pkg/audit"
	"github.com/kbforge/curator/pkg/breaker"
	"github.com/kbforge/curator/pkg/models"
)

// Options configures the discovery fan-out.
type Options struct {
	// PerClientLimit is the max items requested from each client.
	PerClientLimit int
	// PerClientTimeout bounds each client call.
	PerClientTimeout time.Duration
	// Concurrency caps parallel client calls within one discovery.
	Concurrency int
}

// DefaultOptions returns the fan-out defaults.
func DefaultOptions() Options {
	return Options{
		PerClientLimit:   10,
		PerClientTimeout: 30 * time.Second,
		Concurrency:      4,
	}
}

// Service fans a query out to all enabled external clients, gated by
// each client's circuit breaker, and returns deduplicated items.
type Service struct {
	clients  []ExternalClient
	registry *breaker.Registry
	auditLog *audit.Logger
	opts     Options
	logger   *slog.Logger
}

// NewService creates a discovery service.
func NewService(clients []ExternalClient, registry *breaker.Registry, auditLog *audit.Logger, opts Options) *Service {
	if opts.PerClientLimit <= 0 {
		opts.PerClientLimit = DefaultOptions().PerClientLimit
	}
	if opts.PerClientTimeout <= 0 {
		opts.PerClientTimeout = DefaultOptions().PerClientTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultOptions().Concurrency
	}
	return &Service{
		clients:  clients,
		registry: registry,
		auditLog: auditLog,
		opts:     opts,
		logger:   slog.Default().With("component", "discovery"),
	}
}

// Clients returns the configured external clients.
func (s *Service) Clients() []ExternalClient { return s.clients }

type clientResult struct {
	name  string
	items []RawItem
	err   error
}

// Discover consults all clients in parallel. It succeeds if at least
// one client returns; each per-client failure is recorded as a
// warning audit event and charged to that client's breaker. If every
// client is inadmissible or fails, ErrNoSourcesDiscovered is returned.
func (s *Service) Discover(ctx context.Context, runID, topic string) ([]RawItem, error) {
	results := make(chan clientResult, len(s.clients))
	sem := make(chan struct{}, s.opts.Concurrency)
	var wg sync.WaitGroup

	attempted := 0
	for _, client := range s.clients {
		br := s.registry.Get(client.Name())
		if !br.CanAdmit() {
			s.logger.Warn("Skipping client, breaker not admitting",
				"client", client.Name(), "state", br.State().String())
			s.auditLog.Warning(ctx, runID, models.EventSystemEvent, map[string]any{
				"service":       client.Name(),
				"circuit_state": br.State().String(),
				"action":        "skipped",
			})
			continue
		}
		attempted++
		wg.Add(1)
		go func(client ExternalClient, br *breaker.CircuitBreaker) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			callCtx, cancel := context.WithTimeout(ctx, s.opts.PerClientTimeout)
			defer cancel()

			items, err := client.Search(callCtx, topic, s.opts.PerClientLimit)
			s.charge(ctx, runID, br, err)
			results <- clientResult{name: client.Name(), items: items, err: err}
		}(client, br)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var collected []RawItem
	succeeded := 0
	for res := range results {
		if res.err != nil {
			s.logger.Warn("Discovery client failed", "client", res.name, "error", res.err)
			s.auditLog.Warning(ctx, runID, models.EventError, map[string]any{
				"service": res.name,
				"stage":   "discover",
				"error":   res.err.Error(),
			})
			continue
		}
		succeeded++
		collected = append(collected, res.items...)
	}

	if succeeded == 0 {
		return nil, fmt.Errorf("%w: %d clients attempted", ErrNoSourcesDiscovered, attempted)
	}
	return Dedupe(collected), nil
}

// DiscoverSingle iterates clients one at a time, skipping any whose
// breaker is open, and returns the first non-empty result. Used by
// DISCOVER stage recovery.
func (s *Service) DiscoverSingle(ctx context.Context, runID, topic string) ([]RawItem, error) {
	for _, client := range s.clients {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		br := s.registry.Get(client.Name())
		if br.State() == breaker.StateOpen {
			continue
		}
		if !br.CanAdmit() {
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, s.opts.PerClientTimeout)
		items, err := client.Search(callCtx, topic, s.opts.PerClientLimit)
		cancel()
		s.charge(ctx, runID, br, err)
		if err != nil {
			s.logger.Warn("Recovery client failed", "client", client.Name(), "error", err)
			continue
		}
		if len(items) > 0 {
			return Dedupe(items), nil
		}
	}
	return nil, fmt.Errorf("%w: recovery exhausted all clients", ErrNoSourcesDiscovered)
}

// charge reports a call outcome to the breaker, emitting a
// system_event audit record when the breaker changes state.
func (s *Service) charge(ctx context.Context, runID string, br *breaker.CircuitBreaker, callErr error) {
	before := br.State()
	if callErr != nil {
		br.RecordFailure()
	} else {
		br.RecordSuccess()
	}
	after := br.State()
	if before != after {
		level := models.LevelWarning
		if after == breaker.StateClosed {
			level = models.LevelInfo
		}
		s.auditLog.Append(ctx, audit.Entry{
			RunID:     runID,
			EventType: models.EventSystemEvent,
			Level:     level,
			Payload: map[string]any{
				"service":       br.Name(),
				"circuit_state": after.String(),
				"previous":      before.String(),
			},
		})
	}
}
