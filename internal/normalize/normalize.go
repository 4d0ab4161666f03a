// Package normalize cleans extracted text and splits it into sentences.
package normalize

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MinSentenceLength is the rune count below which a sentence fragment is discarded.
const MinSentenceLength = 10

var punctuation = strings.NewReplacer(
	"\uFEFF", "",
	"‘", "'",
	"’", "'",
	"“", `"`,
	"”", `"`,
	"–", "-",
	"—", "--",
	"\r\n", "\n",
	"\r", "\n",
)

// Clean normalizes text for chunking and matching.
// It is deterministic and idempotent: Clean(Clean(s)) == Clean(s).
func Clean(text string) string {
	if text == "" {
		return ""
	}

	text = norm.NFKD.String(text)
	text = punctuation.Replace(text)

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == '\n':
			b.WriteRune(r)
		case r == '\t':
			b.WriteByte(' ')
		case unicode.Is(unicode.C, r):
		default:
			b.WriteRune(r)
		}
	}

	// Dropping format characters can leave combining marks out of canonical order
	text = norm.NFKD.String(b.String())

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}

	return strings.TrimSpace(collapseBlankLines(strings.Join(lines, "\n")))
}

// collapseBlankLines reduces every run of three or more newlines to one blank line.
func collapseBlankLines(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	run := 0
	for _, r := range text {
		if r == '\n' {
			run++
			if run > 2 {
				continue
			}
		} else {
			run = 0
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SplitSentences cleans text and splits it after '.', '!' or '?' followed by whitespace.
// Fragments shorter than MinSentenceLength runes are dropped.
func SplitSentences(text string) []string {
	text = Clean(text)
	if text == "" {
		return nil
	}

	var sentences []string
	keep := func(s string) {
		s = strings.TrimSpace(s)
		if utf8.RuneCountInString(s) >= MinSentenceLength {
			sentences = append(sentences, s)
		}
	}

	start := 0
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		i += size
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i >= len(text) {
			break
		}
		next, _ := utf8.DecodeRuneInString(text[i:])
		if !unicode.IsSpace(next) {
			continue
		}
		keep(text[start:i])
		for i < len(text) {
			ws, n := utf8.DecodeRuneInString(text[i:])
			if !unicode.IsSpace(ws) {
				break
			}
			i += n
		}
		start = i
	}
	if start < len(text) {
		keep(text[start:])
	}

	return sentences
}

// WordCount counts whitespace-separated fields.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
