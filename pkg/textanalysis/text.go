// Package textanalysis holds the small lexical helpers shared by the
// quality scorer and the integration analyzer: tokenization, stopword
// filtering, and crude string similarity.
package textanalysis

import "strings"

// stopwords is the shared stopword set for keyword extraction and
// relevance overlap.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "but": {}, "by": {}, "for": {}, "from": {}, "has": {},
	"have": {}, "in": {}, "is": {}, "it": {}, "its": {}, "of": {},
	"on": {}, "or": {}, "that": {}, "the": {}, "this": {}, "to": {},
	"was": {}, "were": {}, "will": {}, "with": {}, "how": {},
	"what": {}, "when": {}, "where": {}, "which": {}, "who": {},
	"why": {}, "can": {}, "do": {}, "does": {}, "not": {}, "no": {},
	"about": {}, "into": {}, "over": {}, "under": {}, "between": {},
	"their": {}, "they": {}, "them": {}, "these": {}, "those": {},
	"than": {}, "then": {}, "more": {}, "most": {}, "some": {},
	"such": {}, "using": {}, "use": {}, "used": {}, "new": {},
	"also": {}, "been": {}, "we": {}, "our": {}, "your": {},
}

// IsStopword reports whether the lowercase token is a stopword.
func IsStopword(token string) bool {
	_, ok := stopwords[token]
	return ok
}

// Tokenize splits text into lowercase alphanumeric tokens.
func Tokenize(text string) []string {
	lower := strings.ToLower(text)
	return strings.FieldsFunc(lower, func(r rune) bool {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		return !isAlnum
	})
}

// ContentTokens returns the non-stopword tokens of at least minLen
// characters.
func ContentTokens(text string, minLen int) []string {
	var out []string
	for _, tok := range Tokenize(text) {
		if len(tok) < minLen || IsStopword(tok) {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// TokenSet returns the distinct non-stopword tokens of at least three
// characters.
func TokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range ContentTokens(text, 3) {
		set[tok] = struct{}{}
	}
	return set
}

// OverlapRatio returns |a ∩ b| / |a| for token sets, or 0 when a is
// empty. Used for keyword overlap against a topic.
func OverlapRatio(a, b map[string]struct{}) float64 {
	if len(a) == 0 {
		return 0
	}
	shared := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(a))
}

// Similarity is a crude string similarity: the Dice coefficient over
// character bigrams of the lowercased inputs. Returns a value in
// [0,1].
func Similarity(a, b string) float64 {
	ba := bigrams(strings.ToLower(a))
	bb := bigrams(strings.ToLower(b))
	if len(ba) == 0 || len(bb) == 0 {
		return 0
	}
	shared := 0
	for gram, n := range ba {
		if m, ok := bb[gram]; ok {
			if n < m {
				shared += n
			} else {
				shared += m
			}
		}
	}
	totalA, totalB := 0, 0
	for _, n := range ba {
		totalA += n
	}
	for _, n := range bb {
		totalB += n
	}
	return 2 * float64(shared) / float64(totalA+totalB)
}

func bigrams(s string) map[string]int {
	grams := make(map[string]int)
	runes := []rune(s)
	for i := 0; i+1 < len(runes); i++ {
		grams[string(runes[i:i+2])]++
	}
	return grams
}
