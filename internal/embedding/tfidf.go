package embedding

import (
	"context"
	"math"
	"unicode/utf8"

	"github.com/bull/docqa/internal/normalize"
)

// TFIDFName identifies the local TF-IDF embedder.
const TFIDFName = "tfidf"

// MaxTFIDFDimension bounds vector length. Larger vocabularies fold term
// indexes into this many buckets.
const MaxTFIDFDimension = 4096

// TFIDFEmbedder builds TF-IDF vectors over the texts of a single call.
// The vocabulary and document frequencies are fitted per call, so vectors are
// only comparable with other vectors from the same call.
type TFIDFEmbedder struct {
	maxDim int
}

// NewTFIDFEmbedder creates a local embedder that needs no external service.
func NewTFIDFEmbedder() *TFIDFEmbedder {
	return &TFIDFEmbedder{maxDim: MaxTFIDFDimension}
}

// Name returns TFIDFName.
func (*TFIDFEmbedder) Name() string { return TFIDFName }

// Embed returns L2-normalized TF-IDF vectors with smoothed idf.
// Vectors have min(vocabulary, MaxTFIDFDimension) dimensions; texts without
// any terms map to the zero vector.
func (e *TFIDFEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vocab := make(map[string]int)
	var df []int
	counts := make([]map[int]int, len(texts))

	for i, text := range texts {
		counts[i] = make(map[int]int)
		for _, term := range terms(text) {
			idx, ok := vocab[term]
			if !ok {
				idx = len(vocab)
				vocab[term] = idx
				df = append(df, 0)
			}
			if counts[i][idx] == 0 {
				df[idx]++
			}
			counts[i][idx]++
		}
	}

	n := float64(len(texts))
	idf := make([]float64, len(df))
	for i, d := range df {
		idf[i] = math.Log((1+n)/(1+float64(d))) + 1
	}

	dim := min(len(vocab), e.maxDim)
	vectors := make([][]float32, len(texts))
	for i, tf := range counts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		weights := make(map[int]float64, len(tf))
		for idx, c := range tf {
			weights[idx%dim] += float64(c) * idf[idx]
		}
		var norm float64
		for _, w := range weights {
			norm += w * w
		}

		out := make([]float32, dim)
		if norm > 0 {
			norm = math.Sqrt(norm)
			for j, w := range weights {
				out[j] = float32(w / norm)
			}
		}
		vectors[i] = out
	}
	return vectors, nil
}

// terms keeps word tokens of at least two runes that are not stopwords.
func terms(text string) []string {
	words := normalize.Words(text)
	kept := words[:0]
	for _, w := range words {
		if utf8.RuneCountInString(w) < 2 || normalize.IsStopword(w) {
			continue
		}
		kept = append(kept, w)
	}
	return kept
}
