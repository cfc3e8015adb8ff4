package scoring

import (
	"strings"

	"github.com/kbforge/curator/pkg/models"
	"github.com/kbforge/curator/pkg/textanalysis"
)

// Relevance sub-weights: keyword overlap, crude string similarity,
// topic-indicator match, depth heuristics.
const (
	relWeightOverlap    = 0.4
	relWeightSimilarity = 0.3
	relWeightIndicator  = 0.2
	relWeightDepth      = 0.1
)

var depthMarkers = []string{
	"analysis", "detailed", "comprehensive", "in-depth", "deep dive",
	"systematic", "thorough", "review", "survey", "benchmark",
}

// scoreRelevance measures how well the source matches the run topic.
func scoreRelevance(topic string, src *models.ContentSource) float64 {
	text := src.Title
	if src.Description != "" {
		text += " " + src.Description
	}

	topicSet := textanalysis.TokenSet(topic)
	textSet := textanalysis.TokenSet(text)

	score := relWeightOverlap*textanalysis.OverlapRatio(topicSet, textSet) +
		relWeightSimilarity*textanalysis.Similarity(topic, src.Title) +
		relWeightIndicator*topicIndicatorMatch(topic, src.Title) +
		relWeightDepth*depthHeuristic(text)
	return clamp01(score)
}

// topicIndicatorMatch checks how much of the topic shows up directly
// in the title.
func topicIndicatorMatch(topic, title string) float64 {
	lowerTitle := strings.ToLower(title)
	if strings.Contains(lowerTitle, strings.ToLower(strings.TrimSpace(topic))) {
		return 1.0
	}
	tokens := textanalysis.ContentTokens(topic, 3)
	if len(tokens) == 0 {
		return 0
	}
	present := 0
	for _, tok := range tokens {
		if strings.Contains(lowerTitle, tok) {
			present++
		}
	}
	ratio := float64(present) / float64(len(tokens))
	switch {
	case ratio >= 0.5:
		return 0.7
	case present > 0:
		return 0.4
	}
	return 0
}

// depthHeuristic rewards text that signals substantive treatment.
func depthHeuristic(text string) float64 {
	lower := strings.ToLower(text)
	score := 0.0
	for _, marker := range depthMarkers {
		if strings.Contains(lower, marker) {
			score += 0.25
		}
	}
	// Longer descriptions suggest more substance.
	if len(lower) > 300 {
		score += 0.25
	}
	return clamp01(score)
}
