// Package embedding turns text into fixed-length vectors for similarity ranking.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrDimensionMismatch indicates two vectors of different lengths were compared.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Embedder maps each input text to a vector. The i-th vector belongs to texts[i].
type Embedder interface {
	// Name identifies the model; it keys caches and is logged with results.
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Cosine returns the cosine similarity of a and b.
// A zero vector has similarity 0 with everything.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}
