package scoring

import (
	"fmt"
	"strings"

	"github.com/kbforge/curator/pkg/models"
)

// fallbackSummaryPrefix is prepended to the title when no substantive
// description exists.
const fallbackSummaryPrefix = "Discovered source: "

// minSubstantiveDescription is the shortest description considered a
// usable summary on its own.
const minSubstantiveDescription = 40

// fallbackSummary returns the source description when substantive,
// otherwise the title behind a stock phrase.
func fallbackSummary(src *models.ContentSource) string {
	desc := strings.TrimSpace(src.Description)
	if len(desc) >= minSubstantiveDescription {
		return desc
	}
	return fallbackSummaryPrefix + src.Title
}

// classificationRules pattern-matches title and source type to a
// topic classification, first match wins.
var classificationRules = []struct {
	markers []string
	label   string
}{
	{[]string{"machine learning", "neural", "deep learning", "transformer", "llm", "model"}, "machine_learning"},
	{[]string{"security", "vulnerability", "exploit", "breach"}, "security"},
	{[]string{"kubernetes", "cloud", "infrastructure", "devops"}, "infrastructure"},
	{[]string{"biology", "medicine", "clinical", "genome", "health"}, "life_sciences"},
	{[]string{"physics", "quantum", "astronomy"}, "physical_sciences"},
	{[]string{"economy", "market", "finance", "trade"}, "economics"},
	{[]string{"policy", "regulation", "law", "government"}, "policy"},
}

// fallbackClassification classifies from the title and source type.
func fallbackClassification(title string, sourceType models.SourceType) string {
	lower := strings.ToLower(title)
	for _, rule := range classificationRules {
		for _, marker := range rule.markers {
			if strings.Contains(lower, marker) {
				return rule.label
			}
		}
	}
	switch sourceType {
	case models.SourceTypeAcademic:
		return "academic_general"
	case models.SourceTypeNews:
		return "current_events"
	default:
		return "general"
	}
}

// fallbackRationale assembles a deterministic textual report of the
// dimension scores.
func fallbackRationale(s Scores) string {
	describe := func(v float64) string {
		switch {
		case v >= 0.8:
			return "high"
		case v >= 0.5:
			return "moderate"
		default:
			return "low"
		}
	}
	return fmt.Sprintf(
		"Overall quality %.2f: credibility is %s (%.2f), relevance to the topic is %s (%.2f), freshness is %s (%.2f), completeness is %s (%.2f).",
		s.Overall,
		describe(s.Credibility), s.Credibility,
		describe(s.Relevance), s.Relevance,
		describe(s.Freshness), s.Freshness,
		describe(s.Completeness), s.Completeness,
	)
}
