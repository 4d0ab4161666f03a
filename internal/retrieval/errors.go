package retrieval

import "errors"

var (
	// ErrEmbeddingUnavailable indicates the embedding path could not run.
	ErrEmbeddingUnavailable = errors.New("embedding ranking unavailable")

	// ErrNoMatches indicates ranking ran but nothing cleared the score bar.
	ErrNoMatches = errors.New("no matching chunks")
)
