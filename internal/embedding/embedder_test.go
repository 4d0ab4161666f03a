package embedding

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosine(t *testing.T) {
	sim, err := Cosine([]float32{1, 0}, []float32{1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-9)

	sim, err = Cosine([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, sim, 1e-9)

	sim, err = Cosine([]float32{0, 0}, []float32{1, 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, sim)

	_, err = Cosine([]float32{1}, []float32{1, 2})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestTFIDF_Overlap(t *testing.T) {
	e := NewTFIDFEmbedder()
	vecs, err := e.Embed(context.Background(), []string{
		"Where did the cat sleep?",
		"The cat sat. The cat slept. Dogs bark loudly.",
		"stock market prices",
	})
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	related, err := Cosine(vecs[0], vecs[1])
	require.NoError(t, err)
	assert.InDelta(t, 0.266, related, 0.005)

	unrelated, err := Cosine(vecs[2], vecs[1])
	require.NoError(t, err)
	assert.Equal(t, 0.0, unrelated)
}

func TestTFIDF_Normalized(t *testing.T) {
	vecs, err := NewTFIDFEmbedder().Embed(context.Background(), []string{"alpha beta beta", "gamma"})
	require.NoError(t, err)

	self, err := Cosine(vecs[0], vecs[0])
	require.NoError(t, err)
	assert.InDelta(t, 1.0, self, 1e-6)
	assert.Len(t, vecs[1], len(vecs[0]))
}

func TestTFIDF_DimensionIsBounded(t *testing.T) {
	e := &TFIDFEmbedder{maxDim: 8}
	texts := make([]string, 50)
	for i := range texts {
		texts[i] = fmt.Sprintf("term%dalpha term%dbeta term%dgamma", i, i, i)
	}

	vecs, err := e.Embed(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, len(texts))
	for _, v := range vecs {
		assert.Len(t, v, 8)
	}

	self, err := Cosine(vecs[3], vecs[3])
	require.NoError(t, err)
	assert.InDelta(t, 1.0, self, 1e-6)

	small, err := NewTFIDFEmbedder().Embed(context.Background(), []string{"alpha beta", "gamma"})
	require.NoError(t, err)
	assert.Len(t, small[0], 3)
}

func TestTFIDF_EmptyText(t *testing.T) {
	vecs, err := NewTFIDFEmbedder().Embed(context.Background(), []string{"", "the a an"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Empty(t, vecs[0])
}

func TestTFIDF_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewTFIDFEmbedder().Embed(ctx, []string{"text"})
	assert.ErrorIs(t, err, context.Canceled)
}

// countingEmbedder returns a fixed vector derived from text length and counts inputs.
type countingEmbedder struct {
	seen int
	err  error
}

func (c *countingEmbedder) Name() string { return "counting" }

func (c *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.seen += len(texts)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func TestCachedEmbedder(t *testing.T) {
	store, err := NewMemoryStore()
	require.NoError(t, err)
	defer store.Close()

	inner := &countingEmbedder{}
	cached := NewCachedEmbedder(inner, store, nil)
	ctx := context.Background()

	first, err := cached.Embed(ctx, []string{"one", "three"})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.seen)

	second, err := cached.Embed(ctx, []string{"three", "one", "fourteen"})
	require.NoError(t, err)
	assert.Equal(t, 3, inner.seen, "only the new text is embedded")

	assert.Equal(t, first[1], second[0])
	assert.Equal(t, first[0], second[1])
	assert.Equal(t, []float32{8, 1}, second[2])
	assert.Equal(t, "counting", cached.Name())
}

func TestCachedEmbedder_PropagatesErrors(t *testing.T) {
	store, err := NewMemoryStore()
	require.NoError(t, err)
	defer store.Close()

	boom := errors.New("service down")
	cached := NewCachedEmbedder(&countingEmbedder{err: boom}, store, nil)
	_, err = cached.Embed(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, boom)
}

func TestVectorCodec(t *testing.T) {
	vec := []float32{0, -1.5, 3.25, 1e-7}
	got, err := decodeVector(encodeVector(vec))
	require.NoError(t, err)
	assert.Equal(t, vec, got)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
