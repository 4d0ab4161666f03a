//go:build integration

package storage

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/docqa/internal/document"
)

const testDimension = 8

// setupTestIndex creates an index on a throwaway collection.
// Skips test if Qdrant is not running.
func setupTestIndex(t *testing.T) *QdrantIndex {
	ctx := context.Background()
	idx, err := NewQdrantIndex(ctx, QdrantConfig{
		Host:       "localhost",
		Port:       6334,
		Collection: "docqa_test_" + uuid.NewString()[:8],
		Dimension:  testDimension,
	})
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}

	require.NoError(t, idx.EnsureCollection(ctx), "Failed to ensure collection")
	t.Cleanup(func() {
		_ = idx.client.DeleteCollection(context.Background(), idx.collection)
		idx.Close()
	})
	return idx
}

func vec(hot int) []float32 {
	v := make([]float32, testDimension)
	v[hot] = 1
	return v
}

func testDoc(id string, contents ...string) *document.Document {
	doc := &document.Document{ID: id, Filename: id + ".txt"}
	pos := 0
	for i, c := range contents {
		doc.Chunks = append(doc.Chunks, document.Chunk{
			ID: i, Content: c, Length: len(c), SentenceCount: 1,
			StartPosition: pos, EndPosition: pos + len(c),
		})
		pos += len(c)
	}
	doc.ChunkCount = len(doc.Chunks)
	return doc
}

func TestUpsertAndSearch(t *testing.T) {
	idx := setupTestIndex(t)
	ctx := context.Background()

	a := testDoc("doc_aaaaaaaaaaaaaaaa", "alpha chunk", "beta chunk")
	b := testDoc("doc_bbbbbbbbbbbbbbbb", "gamma chunk")
	require.NoError(t, idx.UpsertChunks(ctx, a, [][]float32{vec(0), vec(1)}))
	require.NoError(t, idx.UpsertChunks(ctx, b, [][]float32{vec(0)}))

	hits, err := idx.Search(ctx, vec(0), []string{a.ID}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, a.ID, hits[0].DocumentID)
	assert.Equal(t, 0, hits[0].ChunkID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-5)
	for _, h := range hits {
		assert.Equal(t, a.ID, h.DocumentID, "filter must exclude other documents")
	}

	has, err := idx.HasDocument(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestUpsertIsIdempotent(t *testing.T) {
	idx := setupTestIndex(t)
	ctx := context.Background()

	doc := testDoc("doc_cccccccccccccccc", "only chunk")
	require.NoError(t, idx.UpsertChunks(ctx, doc, [][]float32{vec(2)}))
	require.NoError(t, idx.UpsertChunks(ctx, doc, [][]float32{vec(2)}))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestDimensionMismatch(t *testing.T) {
	idx := setupTestIndex(t)
	ctx := context.Background()

	err := idx.UpsertChunks(ctx, testDoc("doc_dddddddddddddddd", "x"), [][]float32{{1, 2}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = idx.Search(ctx, []float32{1}, nil, 5)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestClear(t *testing.T) {
	idx := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.UpsertChunks(ctx, testDoc("doc_eeeeeeeeeeeeeeee", "x"), [][]float32{vec(3)}))
	require.NoError(t, idx.Clear(ctx))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}
