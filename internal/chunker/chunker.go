// Package chunker splits normalized text into overlapping, size-bounded chunks.
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/bull/docqa/internal/document"
	"github.com/bull/docqa/internal/normalize"
)

const (
	// DefaultMaxSize is the soft upper bound on a chunk's accumulated sentence length.
	DefaultMaxSize = 1000
	// DefaultOverlap enables carrying sentences into the next chunk.
	DefaultOverlap = 200

	// overlapSentences is how many trailing sentences seed the next chunk.
	overlapSentences = 2
)

// Chunker groups sentences into chunks.
type Chunker struct {
	maxSize int
	overlap int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithMaxSize sets the soft chunk size bound in runes. Non-positive values are ignored.
func WithMaxSize(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

// WithOverlap sets the overlap. Only zero versus non-zero matters:
// a non-zero overlap seeds each new chunk with the closing sentences of the previous one.
func WithOverlap(n int) Option {
	return func(c *Chunker) {
		if n >= 0 {
			c.overlap = n
		}
	}
}

// NewChunker creates a chunker with the default size and overlap.
func NewChunker(opts ...Option) *Chunker {
	c := &Chunker{
		maxSize: DefaultMaxSize,
		overlap: DefaultOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MaxSize returns the configured soft size bound.
func (c *Chunker) MaxSize() int { return c.maxSize }

// Chunk splits text into chunks of whole sentences.
// A sentence longer than the size bound becomes a chunk of its own.
// Offsets accumulate over the emitted chunk texts.
func (c *Chunker) Chunk(text string) []document.Chunk {
	sentences := normalize.SplitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var (
		chunks  []document.Chunk
		current []string
		acc     int
	)

	for _, s := range sentences {
		n := utf8.RuneCountInString(s)

		if acc+n > c.maxSize && len(current) > 0 {
			chunks = c.emit(chunks, current)

			// Seed the next chunk with the tail of the closed one
			next := make([]string, 0, overlapSentences+1)
			if c.overlap > 0 {
				from := len(current) - overlapSentences
				if from < 0 {
					from = 0
				}
				next = append(next, current[from:]...)
			}
			current = append(next, s)
			acc = sentenceLength(current)
			continue
		}

		current = append(current, s)
		acc += n
	}

	if len(current) > 0 {
		chunks = c.emit(chunks, current)
	}

	return chunks
}

// emit closes the in-flight sentences into a chunk appended to chunks.
func (c *Chunker) emit(chunks []document.Chunk, sentences []string) []document.Chunk {
	content := strings.Join(sentences, " ")
	length := utf8.RuneCountInString(content)

	start := 0
	if len(chunks) > 0 {
		start = chunks[len(chunks)-1].EndPosition
	}

	return append(chunks, document.Chunk{
		ID:            len(chunks),
		Content:       content,
		Length:        length,
		SentenceCount: len(sentences),
		StartPosition: start,
		EndPosition:   start + length,
	})
}

func sentenceLength(sentences []string) int {
	total := 0
	for _, s := range sentences {
		total += utf8.RuneCountInString(s)
	}
	return total
}
