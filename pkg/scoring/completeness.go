package scoring

import (
	"regexp"
	"strings"

	"github.com/kbforge/curator/pkg/models"
)

// Completeness sub-weights: length bucket, structural elements,
// reference patterns, multimedia mentions, methodology mentions.
const (
	compWeightLength      = 0.2
	compWeightStructure   = 0.3
	compWeightReferences  = 0.25
	compWeightMultimedia  = 0.15
	compWeightMethodology = 0.1
)

var structuralMarkers = []string{
	"introduction", "conclusion", "summary", "abstract", "overview",
	"background", "results", "discussion", "section",
}

var multimediaMarkers = []string{
	"figure", "table", "chart", "diagram", "video", "image",
	"screenshot", "graph",
}

var methodologyMarkers = []string{
	"method", "methodology", "approach", "procedure", "protocol",
	"experiment", "dataset", "evaluation",
}

// referencePattern matches citation-style fragments: [12], (Smith
// et al., 2024), doi: prefixes.
var referencePattern = regexp.MustCompile(`\[\d+\]|\bet al\.|\bdoi:\s*\S+|\breferences\b|\bcitations?\b`)

// scoreCompleteness estimates how complete the source's content is
// from the signals visible in its title, description, and metadata.
func scoreCompleteness(src *models.ContentSource) float64 {
	text := strings.ToLower(src.CombinedText())

	score := compWeightLength*lengthBucket(len(text)) +
		compWeightStructure*markerPresence(text, structuralMarkers) +
		compWeightReferences*referenceScore(text) +
		compWeightMultimedia*markerPresence(text, multimediaMarkers) +
		compWeightMethodology*markerPresence(text, methodologyMarkers)
	return clamp01(score)
}

func lengthBucket(n int) float64 {
	switch {
	case n >= 1000:
		return 1.0
	case n >= 500:
		return 0.8
	case n >= 200:
		return 0.6
	case n >= 80:
		return 0.4
	default:
		return 0.2
	}
}

// markerPresence scores the fraction of marker words present, with a
// two-marker presence already counting as strong.
func markerPresence(text string, markers []string) float64 {
	found := 0
	for _, m := range markers {
		if strings.Contains(text, m) {
			found++
		}
	}
	switch {
	case found >= 2:
		return 1.0
	case found == 1:
		return 0.6
	default:
		return 0.2
	}
}

func referenceScore(text string) float64 {
	matches := referencePattern.FindAllString(text, 6)
	switch {
	case len(matches) >= 3:
		return 1.0
	case len(matches) >= 1:
		return 0.6
	default:
		return 0.2
	}
}
