package scoring

import (
	"math"
	"strings"
	"time"

	"github.com/kbforge/curator/pkg/models"
	"github.com/kbforge/curator/pkg/textanalysis"
)

// FreshnessRequirements maps a topic category to the age (in days) at
// or before which a source still scores 1.0.
type FreshnessRequirements struct {
	NewsDays    int `yaml:"news_days"`
	TechDays    int `yaml:"tech_days"`
	ScienceDays int `yaml:"science_days"`
	DefaultDays int `yaml:"default_days"`
}

// DefaultFreshnessRequirements returns the built-in age requirements.
func DefaultFreshnessRequirements() FreshnessRequirements {
	return FreshnessRequirements{
		NewsDays:    7,
		TechDays:    180,
		ScienceDays: 365,
		DefaultDays: 90,
	}
}

// dateLayouts are the publication date formats we tolerate.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123,
	time.RFC822,
	"January 2, 2006",
	"Jan 2, 2006",
	"02/01/2006",
}

var newsTopicWords = []string{"news", "election", "breaking", "market", "politics", "crisis"}
var techTopicWords = []string{"software", "framework", "programming", "api", "cloud", "kubernetes", "database", "language", "model", "ai", "machine", "learning"}
var scienceTopicWords = []string{"research", "study", "physics", "biology", "chemistry", "medicine", "clinical", "genome", "quantum"}

// freshnessFloor is the minimum score for any dated source.
const freshnessFloor = 0.1

// neutralFreshness is returned when no publication date is available.
// Missing input is neutral; it is not an error.
const neutralFreshness = 0.5

// scoreFreshness maps source age against the topic's age requirement.
// 1.0 at or before the requirement, linear decay to 0.5 at twice the
// requirement, exponential decay beyond that, floored at 0.1.
func scoreFreshness(topic string, src *models.ContentSource, reqs FreshnessRequirements, now time.Time) float64 {
	published, ok := publicationDate(src)
	if !ok {
		return neutralFreshness
	}

	ageDays := now.Sub(published).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	required := float64(requiredDays(topic, reqs))
	if required <= 0 {
		required = float64(DefaultFreshnessRequirements().DefaultDays)
	}

	switch {
	case ageDays <= required:
		return 1.0
	case ageDays <= 2*required:
		return 1.0 - 0.5*(ageDays-required)/required
	default:
		score := 0.5 * math.Exp(-(ageDays-2*required)/required)
		return math.Max(score, freshnessFloor)
	}
}

// publicationDate extracts and parses a publication date from the
// source metadata, tolerating several formats.
func publicationDate(src *models.ContentSource) (time.Time, bool) {
	var raw string
	for _, key := range []string{"published_at", "publishedAt", "published", "date", "created"} {
		if v, ok := src.SourceMetadata[key].(string); ok && v != "" {
			raw = v
			break
		}
	}
	if raw == "" {
		return time.Time{}, false
	}
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// requiredDays classifies the topic into a freshness category.
func requiredDays(topic string, reqs FreshnessRequirements) int {
	tokens := textanalysis.TokenSet(topic)
	contains := func(words []string) bool {
		for _, w := range words {
			if _, ok := tokens[w]; ok {
				return true
			}
		}
		return false
	}
	switch {
	case contains(newsTopicWords):
		return reqs.NewsDays
	case contains(techTopicWords):
		return reqs.TechDays
	case contains(scienceTopicWords):
		return reqs.ScienceDays
	default:
		return reqs.DefaultDays
	}
}
