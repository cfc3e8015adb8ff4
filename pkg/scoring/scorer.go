// Package scoring implements the four-dimension quality assessment of
// discovered content sources, with an optional AI augmentation path
// and deterministic fallbacks when the AI service degrades.
package scoring

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kbforge/curator/pkg/breaker"
	"github.com/kbforge/curator/pkg/models"
)

// Assessment method values recorded in assessment metadata.
const (
	MethodAIEnhanced = "ai_enhanced"
	MethodFallback   = "fallback"
)

// Scorer produces quality assessments. The numeric dimensions are
// always deterministic; the AI path only augments the textual fields
// (summary, classification, rationale).
type Scorer struct {
	adapter   AIAdapter // nil disables the AI path
	registry  *breaker.Registry
	freshness FreshnessRequirements
	now       func() time.Time
	logger    *slog.Logger
}

// NewScorer creates a scorer. adapter may be nil (fallback-only).
func NewScorer(adapter AIAdapter, registry *breaker.Registry, freshness FreshnessRequirements) *Scorer {
	return &Scorer{
		adapter:   adapter,
		registry:  registry,
		freshness: freshness,
		now:       time.Now,
		logger:    slog.Default().With("component", "scoring"),
	}
}

// Assess scores the source against the run topic, consulting the AI
// adapter when configured and admitted by its breaker.
func (s *Scorer) Assess(ctx context.Context, topic string, src *models.ContentSource) (*models.QualityAssessment, error) {
	return s.assess(ctx, topic, src, true)
}

// AssessFallback scores using only the deterministic path. The ASSESS
// stage recovery switches to this for all remaining sources.
func (s *Scorer) AssessFallback(ctx context.Context, topic string, src *models.ContentSource) (*models.QualityAssessment, error) {
	return s.assess(ctx, topic, src, false)
}

func (s *Scorer) assess(ctx context.Context, topic string, src *models.ContentSource, allowAI bool) (*models.QualityAssessment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	credibility := scoreCredibility(src)
	relevance := scoreRelevance(topic, src)
	freshness := scoreFreshness(topic, src, s.freshness, s.now())
	completeness := scoreCompleteness(src)
	overall := models.ComputeOverall(credibility, relevance, freshness, completeness)

	scores := Scores{
		Credibility:  credibility,
		Relevance:    relevance,
		Freshness:    freshness,
		Completeness: completeness,
		Overall:      overall,
	}

	method := MethodFallback
	var summary, classification, rationale string
	if allowAI && s.adapter != nil {
		if text, class, rat, ok := s.tryAI(ctx, src, scores); ok {
			summary, classification, rationale = text, class, rat
			method = MethodAIEnhanced
		}
	}
	if method == MethodFallback {
		summary = fallbackSummary(src)
		classification = fallbackClassification(src.Title, src.SourceType)
		rationale = fallbackRationale(scores)
	}

	assessment := &models.QualityAssessment{
		ID:              uuid.New().String(),
		ContentSourceID: src.ID,
		ResearchRunID:   src.ResearchRunID,
		Credibility:     credibility,
		Relevance:       relevance,
		Freshness:       freshness,
		Completeness:    completeness,
		Overall:         overall,
		Summary:         summary,
		Classification:  classification,
		Rationale:       rationale,
		Metadata: map[string]any{
			"method": method,
			"weights": map[string]float64{
				"credibility":  models.WeightCredibility,
				"relevance":    models.WeightRelevance,
				"freshness":    models.WeightFreshness,
				"completeness": models.WeightCompleteness,
			},
		},
		CreatedAt: s.now(),
		UpdatedAt: s.now(),
	}
	if err := assessment.Validate(); err != nil {
		return nil, err
	}
	return assessment, nil
}

// tryAI runs the AI augmentation path. Returns ok=false on breaker
// denial or any adapter failure; the failure is charged to the AI
// breaker and the caller falls back.
func (s *Scorer) tryAI(ctx context.Context, src *models.ContentSource, scores Scores) (summary, classification, rationale string, ok bool) {
	br := s.registry.Get(AIServiceName)
	if !br.CanAdmit() {
		s.logger.Debug("AI breaker not admitting, using fallback", "source_id", src.ID)
		return "", "", "", false
	}

	content := src.CombinedText()

	summary, err := s.adapter.Summarize(ctx, content)
	if err == nil {
		classification, err = s.adapter.Classify(ctx, content)
	}
	if err == nil {
		rationale, err = s.adapter.Rationalize(ctx, scores, content)
	}
	if err != nil {
		br.RecordFailure()
		s.logger.Warn("AI adapter failed, using fallback", "source_id", src.ID, "error", err)
		return "", "", "", false
	}
	br.RecordSuccess()
	return summary, classification, rationale, true
}
