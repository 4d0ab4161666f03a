package grounding

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/docqa/internal/chunker"
	"github.com/bull/docqa/internal/document"
	"github.com/bull/docqa/internal/embedding"
	"github.com/bull/docqa/internal/generation"
	"github.com/bull/docqa/internal/metrics"
	"github.com/bull/docqa/internal/retrieval"
)

const catText = "The cat sat. The cat slept. Dogs bark loudly."

// mapLoader serves documents from memory and skips unknown ids.
type mapLoader map[string]*document.Document

func (m mapLoader) GetMany(_ context.Context, ids []string) []*document.Document {
	var docs []*document.Document
	for _, id := range ids {
		if d, ok := m[id]; ok {
			docs = append(docs, d)
		}
	}
	return docs
}

func newLoader(texts map[string]string) mapLoader {
	m := mapLoader{}
	for name, text := range texts {
		id := document.ContentID([]byte(text + name))
		chunks := chunker.NewChunker().Chunk(text)
		m[id] = &document.Document{ID: id, Filename: name, Chunks: chunks, ChunkCount: len(chunks)}
	}
	return m
}

func (m mapLoader) ids() []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	return ids
}

type failingEmbedder struct{}

func (failingEmbedder) Name() string { return "failing" }

func (failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("model unavailable")
}

// recordingGenerator captures the request it receives.
type recordingGenerator struct {
	calls int
	req   generation.Request
	err   error
}

func (g *recordingGenerator) Generate(_ context.Context, req generation.Request) (*generation.Result, error) {
	g.calls++
	g.req = req
	if g.err != nil {
		return nil, g.err
	}
	return &generation.Result{Content: "The cat slept.", Tokens: 42, FinishReason: "stop"}, nil
}

func TestAssemble_NoDocuments(t *testing.T) {
	a := NewAssembler(mapLoader{}, retrieval.New(embedding.NewTFIDFEmbedder()))

	got := a.Assemble(context.Background(), "Where did the cat sleep?", nil)
	assert.Equal(t, StateNoDocuments, got.State)
	assert.Empty(t, got.Text)
	assert.False(t, got.Used)
	assert.Empty(t, got.Sources)
}

func TestAssemble_GroundedRefusal(t *testing.T) {
	loader := newLoader(map[string]string{"cats.txt": catText})
	a := NewAssembler(loader, retrieval.New(embedding.NewTFIDFEmbedder()), WithMetrics(metrics.New()))

	got := a.Assemble(context.Background(), "stock market prices", loader.ids())
	assert.Equal(t, StateGroundedRefusal, got.State)
	assert.Equal(t, RefusalMessage, got.Text)
	assert.False(t, got.Used)
	assert.Empty(t, got.Sources)
	assert.Equal(t, retrieval.StrategyNone, got.Strategy)
}

// TestAssemble_UnloadableDocumentsRefuse treats ids that fail to load as skipped.
func TestAssemble_UnloadableDocumentsRefuse(t *testing.T) {
	a := NewAssembler(mapLoader{}, retrieval.New(embedding.NewTFIDFEmbedder()))

	got := a.Assemble(context.Background(), "Where did the cat sleep?", []string{"doc_0000000000000000"})
	assert.Equal(t, StateGroundedRefusal, got.State)
	assert.Equal(t, RefusalMessage, got.Text)
}

func TestAssemble_CatExample(t *testing.T) {
	loader := newLoader(map[string]string{"cats.txt": catText})
	a := NewAssembler(loader, retrieval.New(embedding.NewTFIDFEmbedder()))

	got := a.Assemble(context.Background(), "Where did the cat sleep?", loader.ids())
	require.Equal(t, StateGroundedContext, got.State)
	assert.True(t, got.Used)
	assert.Equal(t, retrieval.StrategyEmbedding, got.Strategy)
	require.Len(t, got.Sources, 1)
	assert.Equal(t, catText, got.Sources[0].Content)

	assert.True(t, strings.HasPrefix(got.Text, instruction))
	assert.Contains(t, got.Text, "=== Source 1: cats.txt (similarity: ")
	assert.Contains(t, got.Text, catText)
	assert.True(t, strings.HasSuffix(got.Text, "\n\n=== End of context ==="))
}

func TestAssemble_KeywordFallback(t *testing.T) {
	loader := newLoader(map[string]string{"cats.txt": catText})
	a := NewAssembler(loader, retrieval.New(failingEmbedder{}))

	got := a.Assemble(context.Background(), "Dogs bark loudly at night", loader.ids())
	require.Equal(t, StateGroundedContext, got.State)
	assert.Equal(t, retrieval.StrategyKeyword, got.Strategy)
	assert.Contains(t, got.Text, "=== Source 1: cats.txt (similarity: 0.60) ===")
}

func TestAssemble_KeepsAtMostThreeSources(t *testing.T) {
	loader := newLoader(map[string]string{
		"a.txt": catText, "b.txt": catText, "c.txt": catText, "d.txt": catText, "e.txt": catText,
	})
	a := NewAssembler(loader, retrieval.New(failingEmbedder{}))

	got := a.Assemble(context.Background(), "Dogs bark loudly at night", loader.ids())
	require.Equal(t, StateGroundedContext, got.State)
	assert.Len(t, got.Sources, DefaultMaxSources)
	assert.Contains(t, got.Text, "=== Source 3: ")
	assert.NotContains(t, got.Text, "=== Source 4: ")

	one := NewAssembler(loader, retrieval.New(failingEmbedder{}), WithMaxSources(1))
	assert.Len(t, one.Assemble(context.Background(), "Dogs bark loudly at night", loader.ids()).Sources, 1)
}

func TestFormatContext(t *testing.T) {
	got := formatContext([]retrieval.Result{
		{DocumentName: "a.txt", Content: "First.", Similarity: 0.456},
		{DocumentName: "b.txt", Content: "Second.", Similarity: 0.3},
	})

	want := instruction + "\n" +
		"\n=== Source 1: a.txt (similarity: 0.46) ===\n" +
		"First.\n" +
		"\n=== Source 2: b.txt (similarity: 0.30) ===\n" +
		"Second.\n" +
		"\n=== End of context ==="
	assert.Equal(t, want, got)
}

func TestAsk_RefusalSkipsGenerator(t *testing.T) {
	loader := newLoader(map[string]string{"cats.txt": catText})
	gen := &recordingGenerator{}
	ans := NewAnswerer(NewAssembler(loader, retrieval.New(embedding.NewTFIDFEmbedder())), gen)

	got, err := ans.Ask(context.Background(), "stock market prices", loader.ids())
	require.NoError(t, err)
	assert.Equal(t, RefusalMessage, got.Content)
	assert.Equal(t, StateGroundedRefusal, got.State)
	assert.False(t, got.ContextUsed)
	assert.Zero(t, gen.calls)
}

func TestAsk_GroundedCallsGenerator(t *testing.T) {
	loader := newLoader(map[string]string{"cats.txt": catText})
	gen := &recordingGenerator{}
	ans := NewAnswerer(NewAssembler(loader, retrieval.New(embedding.NewTFIDFEmbedder())), gen)

	got, err := ans.Ask(context.Background(), "Where did the cat sleep?", loader.ids())
	require.NoError(t, err)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, "The cat slept.", got.Content)
	assert.True(t, got.ContextUsed)
	assert.Equal(t, int64(42), got.Tokens)
	assert.Contains(t, gen.req.Prompt, "Context from documents:")
	assert.Contains(t, gen.req.Prompt, catText)
	assert.True(t, strings.HasSuffix(gen.req.Prompt, "User: Where did the cat sleep?\nAssistant:"))
	assert.NotEmpty(t, gen.req.System)
}

func TestAsk_NoDocumentsCallsGeneratorWithoutContext(t *testing.T) {
	gen := &recordingGenerator{}
	ans := NewAnswerer(NewAssembler(mapLoader{}, retrieval.New(embedding.NewTFIDFEmbedder())), gen)

	got, err := ans.Ask(context.Background(), "Hello?", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, StateNoDocuments, got.State)
	assert.False(t, got.ContextUsed)
	assert.NotContains(t, gen.req.Prompt, "Context from documents:")
}

func TestAsk_Errors(t *testing.T) {
	loader := newLoader(map[string]string{"cats.txt": catText})
	asm := NewAssembler(loader, retrieval.New(embedding.NewTFIDFEmbedder()))

	_, err := NewAnswerer(asm, nil).Ask(context.Background(), "Where did the cat sleep?", loader.ids())
	assert.ErrorIs(t, err, generation.ErrNoGenerator)

	boom := errors.New("boom")
	_, err = NewAnswerer(asm, &recordingGenerator{err: boom}).Ask(context.Background(), "Where did the cat sleep?", loader.ids())
	assert.ErrorIs(t, err, boom)
}
