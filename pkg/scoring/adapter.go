package scoring

import (
	"context"
	"errors"
)

// AIServiceName is the breaker-registry name of the AI adapter.
const AIServiceName = "ai-adapter"

// ErrAIUnavailable marks an AI adapter failure that is eligible for
// the deterministic fallback path.
var ErrAIUnavailable = errors.New("ai adapter unavailable")

// Scores carries the numeric assessment dimensions for rationale
// generation.
type Scores struct {
	Credibility  float64
	Relevance    float64
	Freshness    float64
	Completeness float64
	Overall      float64
}

// AIAdapter is the optional augmentation service consulted for the
// textual parts of an assessment. Any method may return an error
// wrapping ErrAIUnavailable, in which case the deterministic
// fallbacks are used instead.
type AIAdapter interface {
	Summarize(ctx context.Context, content string) (string, error)
	Classify(ctx context.Context, content string) (string, error)
	Rationalize(ctx context.Context, scores Scores, content string) (string, error)
}
