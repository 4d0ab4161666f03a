package normalize

// stopwords is the fixed English list ignored by keyword and term matching.
var stopwords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for", "from",
		"has", "he", "in", "is", "it", "its", "of", "on", "that", "the",
		"to", "was", "were", "will", "with", "this", "but", "they",
		"have", "had", "what", "said", "each", "which", "their", "time",
		"if", "up", "out", "many", "then", "them", "these", "so", "some",
		"her", "would", "make", "like", "into", "him", "two",
		"more", "very", "know", "just", "first", "get", "over",
		"think", "also", "your", "work", "life", "only", "can", "still",
		"should", "after", "being", "now", "made", "before", "here",
		"through", "when", "where", "how", "all", "much", "well", "way",
		"down", "may", "new", "want", "even", "give", "most", "good",
		"long", "own", "under", "never", "day", "same", "another",
		"while", "come", "could", "there", "see", "back", "call", "came",
		"need", "take", "year", "find", "right", "look", "end",
		"why", "again", "turn", "every", "start", "might", "move",
	} {
		stopwords[w] = struct{}{}
	}
}

// IsStopword reports whether a lowercase word is on the stopword list.
func IsStopword(word string) bool {
	_, ok := stopwords[word]
	return ok
}
