package scoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbforge/curator/pkg/breaker"
	"github.com/kbforge/curator/pkg/models"
)

func testSource(overrides func(*models.ContentSource)) *models.ContentSource {
	src := &models.ContentSource{
		ID:            "src-1",
		ResearchRunID: "run-1",
		SourceType:    models.SourceTypeAcademic,
		URL:           "https://arxiv.org/abs/2304.00001",
		Title:         "A Systematic Study of Transformer Architectures",
		Description:   "We present a comprehensive analysis of transformer architectures, including methodology, results, and discussion of empirical findings across several datasets [1].",
		SourceMetadata: map[string]any{
			"authors":      []string{"A. Researcher", "B. Scholar"},
			"venue":        "NeurIPS",
			"published_at": time.Now().AddDate(0, -1, 0).Format(time.RFC3339),
		},
	}
	if overrides != nil {
		overrides(src)
	}
	return src
}

type fakeAdapter struct {
	err   error
	calls int
}

func (f *fakeAdapter) Summarize(_ context.Context, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "ai summary", nil
}

func (f *fakeAdapter) Classify(_ context.Context, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "ai_class", nil
}

func (f *fakeAdapter) Rationalize(_ context.Context, _ Scores, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "ai rationale", nil
}

func newTestScorer(adapter AIAdapter) *Scorer {
	return NewScorer(adapter, breaker.NewRegistry(nil), DefaultFreshnessRequirements())
}

func TestScorer_CompositeInvariant(t *testing.T) {
	scorer := newTestScorer(nil)
	a, err := scorer.Assess(context.Background(), "transformer architectures", testSource(nil))
	require.NoError(t, err)

	want := models.ComputeOverall(a.Credibility, a.Relevance, a.Freshness, a.Completeness)
	assert.Equal(t, want, a.Overall)
	assert.NoError(t, a.Validate())

	for name, v := range map[string]float64{
		"credibility":  a.Credibility,
		"relevance":    a.Relevance,
		"freshness":    a.Freshness,
		"completeness": a.Completeness,
	} {
		assert.GreaterOrEqual(t, v, 0.0, name)
		assert.LessOrEqual(t, v, 1.0, name)
	}
}

func TestScorer_FallbackWithoutAdapter(t *testing.T) {
	scorer := newTestScorer(nil)
	a, err := scorer.Assess(context.Background(), "transformer architectures", testSource(nil))
	require.NoError(t, err)

	assert.Equal(t, MethodFallback, a.Metadata["method"])
	assert.NotEmpty(t, a.Summary)
	assert.NotEmpty(t, a.Classification)
	assert.NotEmpty(t, a.Rationale)
}

func TestScorer_AIEnhancedPath(t *testing.T) {
	adapter := &fakeAdapter{}
	scorer := newTestScorer(adapter)

	a, err := scorer.Assess(context.Background(), "transformer architectures", testSource(nil))
	require.NoError(t, err)

	assert.Equal(t, MethodAIEnhanced, a.Metadata["method"])
	assert.Equal(t, "ai summary", a.Summary)
	assert.Equal(t, "ai_class", a.Classification)
	assert.Equal(t, 3, adapter.calls)
}

func TestScorer_AIFailureFallsBack(t *testing.T) {
	adapter := &fakeAdapter{err: ErrAIUnavailable}
	registry := breaker.NewRegistry(nil)
	scorer := NewScorer(adapter, registry, DefaultFreshnessRequirements())

	a, err := scorer.Assess(context.Background(), "transformer architectures", testSource(nil))
	require.NoError(t, err)

	// Fallback still produces every textual field and the composite
	// invariant still holds.
	assert.Equal(t, MethodFallback, a.Metadata["method"])
	assert.NotEmpty(t, a.Summary)
	assert.NoError(t, a.Validate())

	// The failure was charged to the AI breaker.
	for i := 1; i < breaker.DefaultConfig().FailureThreshold; i++ {
		registry.Get(AIServiceName).RecordFailure()
	}
	assert.Equal(t, breaker.StateOpen, registry.Get(AIServiceName).State())
}

func TestScorer_OpenBreakerSkipsAdapter(t *testing.T) {
	adapter := &fakeAdapter{}
	registry := breaker.NewRegistry(nil)
	br := registry.Get(AIServiceName)
	for i := 0; i < breaker.DefaultConfig().FailureThreshold; i++ {
		br.RecordFailure()
	}
	scorer := NewScorer(adapter, registry, DefaultFreshnessRequirements())

	a, err := scorer.Assess(context.Background(), "topic", testSource(nil))
	require.NoError(t, err)
	assert.Equal(t, MethodFallback, a.Metadata["method"])
	assert.Zero(t, adapter.calls)
}

func TestScorer_AssessFallbackNeverCallsAdapter(t *testing.T) {
	adapter := &fakeAdapter{}
	scorer := newTestScorer(adapter)

	a, err := scorer.AssessFallback(context.Background(), "topic", testSource(nil))
	require.NoError(t, err)
	assert.Equal(t, MethodFallback, a.Metadata["method"])
	assert.Zero(t, adapter.calls)
}

func TestScorer_CancelledContext(t *testing.T) {
	scorer := newTestScorer(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := scorer.Assess(ctx, "topic", testSource(nil))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestCredibility_DomainReputation(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want float64
	}{
		{"known reputable", "https://arxiv.org/abs/1", 0.95},
		{"reputable subdomain", "https://export.arxiv.org/abs/1", 0.95},
		{"known low", "https://www.buzzfeed.com/post", 0.3},
		{"tld default gov", "https://unknown-agency.gov/report", 0.85},
		{"tld default com", "https://random-blog.com/post", 0.5},
		{"empty url", "", 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, domainReputation(tt.url), 0.001)
		})
	}
}

func TestCredibility_ClickbaitPenalty(t *testing.T) {
	serious := contentQualitySignals("An Empirical Study of Cache Behavior in Distributed Systems")
	clickbait := contentQualitySignals("You Won't Believe This One Trick for Faster Caches!!!")
	assert.Greater(t, serious, clickbait)
}

func TestFreshness_AgeBands(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	reqs := DefaultFreshnessRequirements()
	// "market" puts the topic in the news band (7 days).
	topic := "stock market movements"

	mkSource := func(ageDays int) *models.ContentSource {
		return testSource(func(s *models.ContentSource) {
			s.SourceMetadata = map[string]any{
				"published_at": now.AddDate(0, 0, -ageDays).Format(time.RFC3339),
			}
		})
	}

	assert.Equal(t, 1.0, scoreFreshness(topic, mkSource(3), reqs, now))
	// Linear band: between req and 2*req.
	mid := scoreFreshness(topic, mkSource(10), reqs, now)
	assert.Greater(t, mid, 0.5)
	assert.Less(t, mid, 1.0)
	// Deep decay floors at 0.1.
	old := scoreFreshness(topic, mkSource(1000), reqs, now)
	assert.Equal(t, 0.1, old)
}

func TestFreshness_MissingDateIsNeutral(t *testing.T) {
	src := testSource(func(s *models.ContentSource) {
		s.SourceMetadata = map[string]any{}
	})
	got := scoreFreshness("anything", src, DefaultFreshnessRequirements(), time.Now())
	assert.Equal(t, 0.5, got)
}

func TestFreshness_ToleratesDateFormats(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	for _, raw := range []string{
		"2026-05-30T10:00:00Z",
		"2026-05-30",
		"May 30, 2026",
	} {
		src := testSource(func(s *models.ContentSource) {
			s.SourceMetadata = map[string]any{"published_at": raw}
		})
		got := scoreFreshness("stock market", src, DefaultFreshnessRequirements(), now)
		assert.Equal(t, 1.0, got, raw)
	}
}

func TestRelevance_TopicMatchOrdering(t *testing.T) {
	onTopic := testSource(nil)
	offTopic := testSource(func(s *models.ContentSource) {
		s.Title = "Gardening Tips for Beginners"
		s.Description = "How to grow tomatoes in your backyard."
	})

	topic := "transformer architectures"
	assert.Greater(t, scoreRelevance(topic, onTopic), scoreRelevance(topic, offTopic))
}

func TestCompleteness_RicherTextScoresHigher(t *testing.T) {
	rich := testSource(nil)
	thin := testSource(func(s *models.ContentSource) {
		s.Title = "Note"
		s.Description = ""
		s.SourceMetadata = map[string]any{}
	})
	assert.Greater(t, scoreCompleteness(rich), scoreCompleteness(thin))
}

func TestFallbackSummary(t *testing.T) {
	t.Run("uses substantive description", func(t *testing.T) {
		src := testSource(nil)
		assert.Equal(t, src.Description, fallbackSummary(src))
	})
	t.Run("falls back to title", func(t *testing.T) {
		src := testSource(func(s *models.ContentSource) { s.Description = "short" })
		assert.Equal(t, fallbackSummaryPrefix+src.Title, fallbackSummary(src))
	})
}

func TestFallbackClassification(t *testing.T) {
	tests := []struct {
		title      string
		sourceType models.SourceType
		want       string
	}{
		{"Advances in Deep Learning", models.SourceTypeAcademic, "machine_learning"},
		{"Critical Vulnerability Found in Router Firmware", models.SourceTypeNews, "security"},
		{"Untitled Note", models.SourceTypeAcademic, "academic_general"},
		{"Untitled Note", models.SourceTypeWeb, "general"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, fallbackClassification(tt.title, tt.sourceType), tt.title)
	}
}
