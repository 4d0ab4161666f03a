package retrieval

import (
	"sort"
	"unicode"
	"unicode/utf8"

	"github.com/bull/docqa/internal/normalize"
)

const (
	// MaxKeywords caps how many distinct terms represent a text.
	MaxKeywords = 20

	// minKeywordLength is the shortest token kept; shorter ones are noise.
	minKeywordLength = 4
)

// KeywordSet is the set of representative terms of a text.
type KeywordSet map[string]struct{}

// Keywords extracts the most frequent non-stopword terms of text.
// Tokens of three runes or fewer and purely numeric tokens are dropped.
// Frequency ties keep the earlier-seen term.
func Keywords(text string) KeywordSet {
	freq := make(map[string]int)
	var order []string
	for _, w := range normalize.Words(text) {
		if utf8.RuneCountInString(w) < minKeywordLength || normalize.IsStopword(w) || isDigits(w) {
			continue
		}
		if freq[w] == 0 {
			order = append(order, w)
		}
		freq[w]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return freq[order[i]] > freq[order[j]]
	})
	if len(order) > MaxKeywords {
		order = order[:MaxKeywords]
	}

	set := make(KeywordSet, len(order))
	for _, w := range order {
		set[w] = struct{}{}
	}
	return set
}

// Similarity is the Jaccard index |a ∩ b| / |a ∪ b|, or 0 if either set is empty.
func Similarity(a, b KeywordSet) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// TextSimilarity compares two texts by their keyword sets.
func TextSimilarity(a, b string) float64 {
	return Similarity(Keywords(a), Keywords(b))
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}
