package models

import (
	"fmt"
	"math"
	"time"
)

// Composite weights for the overall quality score. These are a closed
// contract: Overall must always be recomputable from the dimensions.
const (
	WeightCredibility  = 0.4
	WeightRelevance    = 0.3
	WeightFreshness    = 0.2
	WeightCompleteness = 0.1
)

// QualityAssessment is the four-dimension scored evaluation of a
// content source. At most one exists per source.
type QualityAssessment struct {
	ID              string `json:"id"`
	ContentSourceID string `json:"content_source_id"`
	ResearchRunID   string `json:"research_run_id"`

	// Per-dimension scores, each in [0,1].
	Credibility  float64 `json:"credibility"`
	Relevance    float64 `json:"relevance"`
	Freshness    float64 `json:"freshness"`
	Completeness float64 `json:"completeness"`

	// Overall is the weighted sum of the four dimensions, rounded to
	// two decimals. See ComputeOverall.
	Overall float64 `json:"overall"`

	Summary        string `json:"summary,omitempty"`
	Classification string `json:"classification,omitempty"`
	Rationale      string `json:"rationale,omitempty"`

	// Metadata records the weights used and whether the AI path or the
	// deterministic fallback produced the textual fields ("method").
	Metadata map[string]any `json:"assessment_metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ComputeOverall returns the weighted composite score rounded to two
// decimals.
func ComputeOverall(credibility, relevance, freshness, completeness float64) float64 {
	overall := WeightCredibility*credibility +
		WeightRelevance*relevance +
		WeightFreshness*freshness +
		WeightCompleteness*completeness
	return math.Round(overall*100) / 100
}

// Validate checks the assessment invariants: all dimensions in [0,1]
// and Overall equal to the recomputed composite.
func (a *QualityAssessment) Validate() error {
	for name, v := range map[string]float64{
		"credibility":  a.Credibility,
		"relevance":    a.Relevance,
		"freshness":    a.Freshness,
		"completeness": a.Completeness,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %s score %v out of range [0,1]", ErrInvalidModel, name, v)
		}
	}
	if want := ComputeOverall(a.Credibility, a.Relevance, a.Freshness, a.Completeness); a.Overall != want {
		return fmt.Errorf("%w: overall %v does not match composite %v", ErrInvalidModel, a.Overall, want)
	}
	return nil
}
