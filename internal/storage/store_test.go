package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/docqa/internal/chunker"
	"github.com/bull/docqa/internal/document"
	"github.com/bull/docqa/internal/metrics"
)

const catText = "The cat sat. The cat slept. Dogs bark loudly."

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := New(t.TempDir(), opts...)
	require.NoError(t, err)
	return s
}

func TestProcess_CreatesRecordIndexAndUpload(t *testing.T) {
	fixed := time.Date(2025, 8, 12, 10, 0, 0, 0, time.UTC)
	s := newTestStore(t, WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	res, err := s.Process(ctx, []byte(catText), "cats.txt", "text/plain")
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, res.Status)
	assert.Equal(t, document.ContentID([]byte(catText)), res.ID)
	assert.Equal(t, 1, res.ChunkCount)

	doc, err := s.Get(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "cats.txt", doc.Filename)
	assert.Equal(t, "text/plain", doc.FileType)
	assert.True(t, fixed.Equal(doc.ProcessedAt))
	assert.Equal(t, 1, doc.ChunkCount)
	assert.Equal(t, 3, doc.Chunks[0].SentenceCount)
	assert.Equal(t, len(catText), doc.TotalCharacters)
	assert.Equal(t, 9, doc.TotalWords)
	assert.Equal(t, ".txt", doc.Metadata["file_extension"])

	upload, err := os.ReadFile(filepath.Join(s.Dir(), uploadsDir, res.ID+".txt"))
	require.NoError(t, err)
	assert.Equal(t, catText, string(upload))

	entries, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, doc.Entry(), entries[0])
}

// TestProcess_Idempotent stores identical bytes exactly once.
func TestProcess_Idempotent(t *testing.T) {
	m := metrics.New()
	s := newTestStore(t, WithMetrics(m))
	ctx := context.Background()

	first, err := s.Process(ctx, []byte(catText), "cats.txt", "text/plain")
	require.NoError(t, err)
	second, err := s.Process(ctx, []byte(catText), "renamed.txt", "text/plain")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, StatusAlreadyProcessed, second.Status)
	assert.Equal(t, first.ChunkCount, second.ChunkCount)

	entries, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "cats.txt", entries[0].Filename)

	records, err := filepath.Glob(filepath.Join(s.Dir(), processedDir, "doc_*.json"))
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestProcess_ConcurrentDistinctDocuments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	texts := []string{
		"Alpha documents describe the first topic clearly.",
		"Beta documents describe the second topic clearly.",
		"Gamma documents describe the third topic clearly.",
		"Delta documents describe the fourth topic clearly.",
	}

	var wg sync.WaitGroup
	errs := make([]error, len(texts))
	for i, text := range texts {
		wg.Add(1)
		go func(i int, text string) {
			defer wg.Done()
			_, errs[i] = s.Process(ctx, []byte(text), "doc.txt", "text/plain")
		}(i, text)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	entries, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, len(texts))
}

func TestProcess_NoText(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Process(ctx, []byte("\x89PNG binary"), "image.png", "image/png")
	assert.ErrorIs(t, err, ErrNoTextExtracted)

	_, err = s.Process(ctx, []byte("   \n\t  "), "blank.txt", "text/plain")
	assert.ErrorIs(t, err, ErrNoTextExtracted)

	entries, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProcess_RechunksWithOptions(t *testing.T) {
	s := newTestStore(t, WithChunker(chunker.NewChunker(chunker.WithMaxSize(20), chunker.WithOverlap(0))))

	res, err := s.Process(context.Background(), []byte(catText), "cats.txt", "text/plain")
	require.NoError(t, err)
	assert.Equal(t, 3, res.ChunkCount)
}

func TestProcess_RejectsOversizedFiles(t *testing.T) {
	m := metrics.New()
	s := newTestStore(t, WithMaxFileSize(16), WithMetrics(m))
	ctx := context.Background()

	_, err := s.Process(ctx, []byte(catText), "cats.txt", "text/plain")
	assert.ErrorIs(t, err, ErrFileTooLarge)

	entries, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
	uploads, err := os.ReadDir(filepath.Join(s.Dir(), uploadsDir))
	require.NoError(t, err)
	assert.Empty(t, uploads)

	res, err := s.Process(ctx, []byte("Short enough."), "short.txt", "text/plain")
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, res.Status)
}

func TestProcess_DefaultMaxFileSize(t *testing.T) {
	assert.Equal(t, DefaultMaxFileSize, newTestStore(t).MaxFileSize())
	assert.Equal(t, int64(50<<20), DefaultMaxFileSize)
}

func TestGet_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "doc_0000000000000000")
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	_, err = s.Get(ctx, "../../etc/passwd")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

// TestGet_InvalidRecord checks records missing keys are rejected, not half-loaded.
func TestGet_InvalidRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	res, err := s.Process(ctx, []byte(catText), "cats.txt", "text/plain")
	require.NoError(t, err)

	path := s.recordPath(res.ID)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var record map[string]any
	require.NoError(t, json.Unmarshal(raw, &record))
	delete(record, "chunk_count")
	broken, err := json.Marshal(record)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, broken, 0o644))

	_, err = s.Get(ctx, res.ID)
	assert.ErrorIs(t, err, ErrInvalidRecord)

	// Re-ingesting the same bytes repairs the record
	again, err := s.Process(ctx, []byte(catText), "cats.txt", "text/plain")
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, again.Status)
	_, err = s.Get(ctx, res.ID)
	assert.NoError(t, err)
}

func TestList_Empty(t *testing.T) {
	entries, err := newTestStore(t).List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Process(ctx, []byte(catText), "cats.txt", "text/plain")
	require.NoError(t, err)
	_, err = s.Process(ctx, []byte("Quarterly revenue increased across every region."), "finance.txt", "text/plain")
	require.NoError(t, err)

	results, err := s.Search(ctx, "dogs bark loudly", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "cats.txt", results[0].DocumentName)
	assert.InDelta(t, 0.75, results[0].Similarity, 1e-9)

	results, err = s.Search(ctx, "stock market prices", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestReset(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	res, err := s.Process(ctx, []byte(catText), "cats.txt", "text/plain")
	require.NoError(t, err)
	require.NoError(t, s.Reset(ctx))

	entries, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = s.Get(ctx, res.ID)
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	uploads, err := os.ReadDir(filepath.Join(s.Dir(), uploadsDir))
	require.NoError(t, err)
	assert.Empty(t, uploads)

	// The store keeps working after a reset
	again, err := s.Process(ctx, []byte(catText), "cats.txt", "text/plain")
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, again.Status)
}

func TestHealth(t *testing.T) {
	assert.NoError(t, newTestStore(t).Health(context.Background()))
}

func TestGetMany_SkipsFailures(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	res, err := s.Process(ctx, []byte(catText), "cats.txt", "text/plain")
	require.NoError(t, err)

	docs := s.GetMany(ctx, []string{"doc_ffffffffffffffff", res.ID})
	require.Len(t, docs, 1)
	assert.Equal(t, res.ID, docs[0].ID)
}
