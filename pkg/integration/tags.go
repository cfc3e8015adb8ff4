package integration

import (
	"sort"
	"strings"

	"github.com/kbforge/curator/pkg/models"
	"github.com/kbforge/curator/pkg/textanalysis"
)

// maxTagSuggestions caps the returned tag list.
const maxTagSuggestions = 10

// Tag category weights, applied when scoring candidates.
const (
	categoryKeyword  = "keyword"
	categorySemantic = "semantic"
	categoryContext  = "context"
	categoryPrior    = "prior"
)

var categoryWeights = map[string]float64{
	categoryKeyword:  0.5,
	categorySemantic: 0.45,
	categoryContext:  0.35,
	categoryPrior:    0.2,
}

// commonTagPriors is a small list of tags worth proposing on almost
// any source, at low confidence.
var commonTagPriors = []string{"reference", "unreviewed"}

// contentTypeTags maps inferred content kinds, matched against the
// title, to a context tag.
var contentTypeTags = []struct {
	markers []string
	tag     string
}{
	{[]string{"tutorial", "guide", "how to", "introduction"}, "tutorial"},
	{[]string{"survey", "review of", "overview"}, "survey"},
	{[]string{"benchmark", "comparison", "versus", " vs "}, "comparison"},
	{[]string{"announcement", "release", "launches"}, "announcement"},
}

// suggestTags combines keyword extraction, neighbor-derived tags,
// context tags, and common priors, deduplicates by name keeping the
// highest confidence, and returns the top candidates by score.
func suggestTags(src *models.ContentSource, neighbors []Neighbor) []models.TagSuggestion {
	var candidates []models.TagSuggestion
	candidates = append(candidates, keywordTags(src)...)
	candidates = append(candidates, semanticTags(neighbors)...)
	candidates = append(candidates, contextTags(src)...)
	for _, tag := range commonTagPriors {
		candidates = append(candidates, models.TagSuggestion{Tag: tag, Confidence: 0.3, Category: categoryPrior})
	}

	deduped := dedupeTags(candidates)
	sort.SliceStable(deduped, func(i, j int) bool {
		return tagScore(src, deduped[i]) > tagScore(src, deduped[j])
	})
	if len(deduped) > maxTagSuggestions {
		deduped = deduped[:maxTagSuggestions]
	}
	return deduped
}

// keywordTags extracts repeated content tokens from the combined text.
func keywordTags(src *models.ContentSource) []models.TagSuggestion {
	freq := make(map[string]int)
	for _, tok := range textanalysis.ContentTokens(src.CombinedText(), 4) {
		freq[tok]++
	}
	var out []models.TagSuggestion
	for tok, n := range freq {
		if n < 2 {
			continue
		}
		confidence := 0.5 + 0.1*float64(n-2)
		if confidence > 0.9 {
			confidence = 0.9
		}
		out = append(out, models.TagSuggestion{Tag: tok, Confidence: confidence, Category: categoryKeyword})
	}
	return out
}

// semanticTags carries over neighbor tags, reweighted by the
// similarity of the neighbor they came from.
func semanticTags(neighbors []Neighbor) []models.TagSuggestion {
	var out []models.TagSuggestion
	for _, n := range neighbors {
		for _, tag := range n.Tags {
			tag = strings.ToLower(strings.TrimSpace(tag))
			if tag == "" {
				continue
			}
			out = append(out, models.TagSuggestion{
				Tag:        tag,
				Confidence: clamp01(0.8 * n.Similarity),
				Category:   categorySemantic,
			})
		}
	}
	return out
}

// contextTags derives tags from the source type and inferred content
// kind.
func contextTags(src *models.ContentSource) []models.TagSuggestion {
	out := []models.TagSuggestion{
		{Tag: string(src.SourceType), Confidence: 0.7, Category: categoryContext},
	}
	lower := strings.ToLower(src.Title)
	for _, ct := range contentTypeTags {
		for _, marker := range ct.markers {
			if strings.Contains(lower, marker) {
				out = append(out, models.TagSuggestion{Tag: ct.tag, Confidence: 0.6, Category: categoryContext})
				break
			}
		}
	}
	return out
}

// dedupeTags keeps one suggestion per tag name, preferring the highest
// confidence.
func dedupeTags(candidates []models.TagSuggestion) []models.TagSuggestion {
	best := make(map[string]models.TagSuggestion)
	var order []string
	for _, c := range candidates {
		existing, ok := best[c.Tag]
		if !ok {
			best[c.Tag] = c
			order = append(order, c.Tag)
			continue
		}
		if c.Confidence > existing.Confidence {
			best[c.Tag] = c
		}
	}
	out := make([]models.TagSuggestion, 0, len(order))
	for _, tag := range order {
		out = append(out, best[tag])
	}
	return out
}

// tagScore ranks a candidate by category weight, a positional boost
// when the tag appears in the title or description, and a specificity
// bonus for longer tokens.
func tagScore(src *models.ContentSource, t models.TagSuggestion) float64 {
	score := categoryWeights[t.Category] + t.Confidence

	lower := strings.ToLower(t.Tag)
	if strings.Contains(strings.ToLower(src.Title), lower) {
		score += 0.3
	} else if strings.Contains(strings.ToLower(src.Description), lower) {
		score += 0.15
	}

	if len(lower) >= 8 {
		score += 0.1
	}
	return score
}
