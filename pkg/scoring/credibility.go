package scoring

import (
	"net/url"
	"strings"

	"github.com/kbforge/curator/pkg/models"
)

// Credibility sub-weights: domain reputation, content-quality
// heuristics, source-type prior, author/publisher indicators.
const (
	credWeightDomain    = 0.4
	credWeightHeuristic = 0.3
	credWeightTypePrior = 0.2
	credWeightAuthor    = 0.1
)

// reputableDomains maps known high-credibility domains to their score.
var reputableDomains = map[string]float64{
	"arxiv.org":         0.95,
	"nature.com":        0.95,
	"science.org":       0.95,
	"acm.org":           0.9,
	"ieee.org":          0.9,
	"nih.gov":           0.9,
	"reuters.com":       0.85,
	"apnews.com":        0.85,
	"bbc.com":           0.8,
	"nytimes.com":       0.8,
	"theguardian.com":   0.75,
	"wikipedia.org":     0.7,
	"github.com":        0.7,
	"stackoverflow.com": 0.65,
}

// lowReputationDomains maps known low-credibility domains.
var lowReputationDomains = map[string]float64{
	"buzzfeed.com":    0.3,
	"dailymail.co.uk": 0.25,
	"medium.com":      0.45,
	"reddit.com":      0.4,
	"quora.com":       0.35,
}

// tldDefaults provides a default reputation by top-level domain when
// the domain itself is unknown.
var tldDefaults = map[string]float64{
	"gov": 0.85,
	"edu": 0.85,
	"org": 0.6,
	"com": 0.5,
	"net": 0.45,
	"io":  0.5,
}

var clickbaitMarkers = []string{
	"you won't believe", "shocking", "this one trick",
	"what happens next", "top 10", "top ten", "mind-blowing",
	"will blow your mind", "!!!", "???",
}

var scholarlyMarkers = []string{
	"study", "research", "analysis", "methodology", "empirical",
	"peer-reviewed", "hypothesis", "evaluation", "findings",
	"experiment", "survey",
}

// scoreCredibility mixes domain reputation, heuristic content-quality
// signals, a source-type prior, and author/publisher indicators.
func scoreCredibility(src *models.ContentSource) float64 {
	score := credWeightDomain*domainReputation(src.URL) +
		credWeightHeuristic*contentQualitySignals(src.Title) +
		credWeightTypePrior*sourceTypePrior(src.SourceType) +
		credWeightAuthor*authorIndicators(src.SourceMetadata)
	return clamp01(score)
}

func domainReputation(rawURL string) float64 {
	if rawURL == "" {
		return 0.5
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return 0.5
	}
	host := strings.ToLower(strings.TrimPrefix(u.Host, "www."))

	if score, ok := reputableDomains[host]; ok {
		return score
	}
	if score, ok := lowReputationDomains[host]; ok {
		return score
	}
	// Suffix match handles subdomains like export.arxiv.org.
	for domain, score := range reputableDomains {
		if strings.HasSuffix(host, "."+domain) {
			return score
		}
	}
	for domain, score := range lowReputationDomains {
		if strings.HasSuffix(host, "."+domain) {
			return score
		}
	}

	if idx := strings.LastIndex(host, "."); idx >= 0 {
		if score, ok := tldDefaults[host[idx+1:]]; ok {
			return score
		}
	}
	return 0.5
}

func contentQualitySignals(title string) float64 {
	if title == "" {
		return 0.3
	}
	score := 0.5
	lower := strings.ToLower(title)

	// Moderate title lengths read as considered, not truncated or
	// keyword-stuffed.
	words := len(strings.Fields(title))
	switch {
	case words >= 5 && words <= 15:
		score += 0.2
	case words >= 3:
		score += 0.1
	}

	for _, marker := range clickbaitMarkers {
		if strings.Contains(lower, marker) {
			score -= 0.3
			break
		}
	}
	for _, marker := range scholarlyMarkers {
		if strings.Contains(lower, marker) {
			score += 0.15
			break
		}
	}
	return clamp01(score)
}

func sourceTypePrior(t models.SourceType) float64 {
	switch t {
	case models.SourceTypeAcademic:
		return 0.9
	case models.SourceTypeNews:
		return 0.6
	case models.SourceTypeWeb:
		return 0.5
	}
	return 0.5
}

func authorIndicators(metadata map[string]any) float64 {
	if metadata == nil {
		return 0.4
	}
	score := 0.4
	if authors, ok := metadata["authors"].([]string); ok && len(authors) > 0 {
		score += 0.3
	} else if author, ok := metadata["author"].(string); ok && author != "" {
		score += 0.2
	}
	if publisher, ok := metadata["publisher"].(string); ok && publisher != "" {
		score += 0.2
	}
	if venue, ok := metadata["venue"].(string); ok && venue != "" {
		score += 0.1
	}
	return clamp01(score)
}
