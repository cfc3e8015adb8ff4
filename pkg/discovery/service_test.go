package discovery

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbforge/curator/pkg/audit"
	"github.com/kbforge/curator/pkg/breaker"
	"github.com/kbforge/curator/pkg/models"
	"github.com/kbforge/curator/pkg/storage/memory"
)

type stubClient struct {
	name  string
	items []RawItem
	err   error
	calls atomic.Int32
}

func (c *stubClient) Name() string { return c.name }

func (c *stubClient) Search(ctx context.Context, query string, limit int) ([]RawItem, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.items, nil
}

func rawItem(identifier string) RawItem {
	return RawItem{Identifier: identifier, Title: identifier, URL: identifier, SourceType: models.SourceTypeWeb}
}

func newServiceFixture(t *testing.T, clients ...ExternalClient) (*Service, *breaker.Registry, *audit.Logger) {
	t.Helper()
	store := memory.NewStore()
	auditLog := audit.NewLogger(store.Audit())
	registry := breaker.NewRegistry(nil)
	svc := NewService(clients, registry, auditLog, Options{
		PerClientLimit:   5,
		PerClientTimeout: time.Second,
		Concurrency:      2,
	})
	return svc, registry, auditLog
}

func TestDiscoverFansOutAndDedupes(t *testing.T) {
	web := &stubClient{name: "web-search", items: []RawItem{
		rawItem("https://example.com/a"),
		rawItem("https://example.com/b"),
	}}
	news := &stubClient{name: "news-search", items: []RawItem{
		rawItem("https://example.com/B"), // dedup key collides with web's /b
		rawItem("https://example.com/c"),
	}}
	svc, _, _ := newServiceFixture(t, web, news)

	items, err := svc.Discover(context.Background(), "run-1", "topic")
	require.NoError(t, err)
	assert.Len(t, items, 3)
	assert.EqualValues(t, 1, web.calls.Load())
	assert.EqualValues(t, 1, news.calls.Load())
}

func TestDiscoverToleratesPartialFailure(t *testing.T) {
	healthy := &stubClient{name: "web-search", items: []RawItem{rawItem("https://example.com/a")}}
	broken := &stubClient{name: "news-search", err: errors.New("connection refused")}
	svc, registry, auditLog := newServiceFixture(t, healthy, broken)

	items, err := svc.Discover(context.Background(), "run-1", "topic")
	require.NoError(t, err)
	assert.Len(t, items, 1)

	// The failure is charged to the failing client's breaker only.
	assert.Equal(t, breaker.StateClosed, registry.Get("web-search").State())

	events, err := auditLog.Timeline(context.Background(), "run-1")
	require.NoError(t, err)
	var warned bool
	for _, e := range events {
		if e.EventType == models.EventError && e.Level == models.LevelWarning {
			warned = true
			assert.Equal(t, "news-search", e.Payload["service"])
		}
	}
	assert.True(t, warned, "expected a warning event for the failed client")
}

func TestDiscoverFailsWhenAllClientsFail(t *testing.T) {
	a := &stubClient{name: "web-search", err: errors.New("boom")}
	b := &stubClient{name: "news-search", err: errors.New("boom")}
	svc, _, _ := newServiceFixture(t, a, b)

	_, err := svc.Discover(context.Background(), "run-1", "topic")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoSourcesDiscovered)
}

func TestDiscoverSkipsOpenBreaker(t *testing.T) {
	skipped := &stubClient{name: "web-search", items: []RawItem{rawItem("https://example.com/a")}}
	healthy := &stubClient{name: "news-search", items: []RawItem{rawItem("https://example.com/b")}}
	svc, registry, _ := newServiceFixture(t, skipped, healthy)

	br := registry.Get("web-search")
	for i := 0; i < breaker.DefaultConfig().FailureThreshold; i++ {
		br.RecordFailure()
	}
	require.Equal(t, breaker.StateOpen, br.State())

	items, err := svc.Discover(context.Background(), "run-1", "topic")
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.EqualValues(t, 0, skipped.calls.Load())
	assert.EqualValues(t, 1, healthy.calls.Load())
}

func TestDiscoverSingleReturnsFirstNonEmpty(t *testing.T) {
	empty := &stubClient{name: "web-search"}
	failing := &stubClient{name: "academic-search", err: errors.New("boom")}
	productive := &stubClient{name: "news-search", items: []RawItem{
		rawItem("https://example.com/a"),
		rawItem("https://example.com/a/"),
	}}
	svc, _, _ := newServiceFixture(t, empty, failing, productive)

	items, err := svc.DiscoverSingle(context.Background(), "run-1", "topic")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.EqualValues(t, 1, empty.calls.Load())
	assert.EqualValues(t, 1, failing.calls.Load())
	assert.EqualValues(t, 1, productive.calls.Load())
}

func TestDiscoverSingleExhausted(t *testing.T) {
	a := &stubClient{name: "web-search"}
	b := &stubClient{name: "news-search", err: errors.New("boom")}
	svc, _, _ := newServiceFixture(t, a, b)

	_, err := svc.DiscoverSingle(context.Background(), "run-1", "topic")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoSourcesDiscovered)
}
