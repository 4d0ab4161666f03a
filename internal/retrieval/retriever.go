// Package retrieval ranks document chunks against a query.
//
// Embedding similarity is the primary strategy. Keyword overlap runs only when
// the embedding path reports itself unavailable, and the two rankings are
// never blended.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/bull/docqa/internal/document"
	"github.com/bull/docqa/internal/embedding"
	"github.com/bull/docqa/internal/metrics"
)

const (
	// DefaultTopK is how many results Retrieve returns by default.
	DefaultTopK = 5

	// DefaultMinScore is the cosine floor for the local TF-IDF embedder.
	DefaultMinScore = 0.1

	// DefaultKeywordThreshold is the Jaccard score a chunk must exceed on the keyword path.
	DefaultKeywordThreshold = 0.3
)

// Strategy names the ranking that produced a result list.
type Strategy string

const (
	StrategyEmbedding Strategy = "embedding"
	StrategyKeyword   Strategy = "keyword"
	StrategyNone      Strategy = "none"
)

// Result is a ranked chunk. It is produced per query and never persisted.
type Result struct {
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	ChunkID      int     `json:"chunk_id"`
	Content      string  `json:"content"`
	Similarity   float64 `json:"similarity"`
}

// Hit is a scored chunk reference returned by a VectorIndex.
type Hit struct {
	DocumentID string
	ChunkID    int
	Score      float64
}

// VectorIndex searches stored chunk vectors, restricted to the given documents.
type VectorIndex interface {
	Search(ctx context.Context, vector []float32, docIDs []string, limit int) ([]Hit, error)
}

// EmbeddingRanking is the outcome of the embedding path: either Ranked with
// at least one result, or Unavailable with the reason.
type EmbeddingRanking struct {
	results []Result
	reason  error
}

func ranked(results []Result) EmbeddingRanking {
	if len(results) == 0 {
		return unavailable(ErrNoMatches)
	}
	return EmbeddingRanking{results: results}
}

func unavailable(reason error) EmbeddingRanking {
	return EmbeddingRanking{reason: reason}
}

// Ranked reports whether the embedding path produced results.
func (r EmbeddingRanking) Ranked() bool { return r.reason == nil }

// Results returns the ranked results; nil when unavailable.
func (r EmbeddingRanking) Results() []Result { return r.results }

// Reason explains why the ranking is unavailable; nil when ranked.
func (r EmbeddingRanking) Reason() error { return r.reason }

// Retriever ranks chunks of candidate documents against a query.
type Retriever struct {
	embedder         embedding.Embedder
	index            VectorIndex
	minScore         float64
	keywordThreshold float64
	logger           *slog.Logger
	metrics          *metrics.Metrics
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithVectorIndex makes the embedding path embed only the query and search idx.
func WithVectorIndex(idx VectorIndex) Option {
	return func(r *Retriever) { r.index = idx }
}

// WithMinScore sets the cosine floor for embedding results.
func WithMinScore(score float64) Option {
	return func(r *Retriever) { r.minScore = score }
}

// WithKeywordThreshold sets the Jaccard score a keyword result must exceed.
func WithKeywordThreshold(threshold float64) Option {
	return func(r *Retriever) { r.keywordThreshold = threshold }
}

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics records the chosen strategy of every Retrieve call.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Retriever) { r.metrics = m }
}

// New creates a Retriever. A nil embedder leaves only the keyword path.
func New(embedder embedding.Embedder, opts ...Option) *Retriever {
	r := &Retriever{
		embedder:         embedder,
		minScore:         DefaultMinScore,
		keywordThreshold: DefaultKeywordThreshold,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// chunkRef locates a chunk inside the candidate set.
type chunkRef struct {
	doc   *document.Document
	chunk document.Chunk
}

func (c chunkRef) result(score float64) Result {
	return Result{
		DocumentID:   c.doc.ID,
		DocumentName: c.doc.Filename,
		ChunkID:      c.chunk.ID,
		Content:      c.chunk.Content,
		Similarity:   score,
	}
}

func collectChunks(docs []*document.Document) []chunkRef {
	var refs []chunkRef
	for _, d := range docs {
		if d == nil {
			continue
		}
		for _, c := range d.Chunks {
			refs = append(refs, chunkRef{doc: d, chunk: c})
		}
	}
	return refs
}

// RankByEmbedding scores chunks by cosine similarity to the query.
// Every failure, including an empty ranking, is reported as Unavailable.
func (r *Retriever) RankByEmbedding(ctx context.Context, query string, docs []*document.Document, topK int) EmbeddingRanking {
	if r.embedder == nil {
		return unavailable(fmt.Errorf("%w: no embedder configured", ErrEmbeddingUnavailable))
	}
	if query == "" {
		return unavailable(fmt.Errorf("%w: empty query", ErrEmbeddingUnavailable))
	}
	refs := collectChunks(docs)
	if len(refs) == 0 {
		return unavailable(fmt.Errorf("%w: no chunks to rank", ErrNoMatches))
	}

	if r.index != nil {
		return r.rankWithIndex(ctx, query, docs, refs, topK)
	}

	texts := make([]string, 0, len(refs)+1)
	texts = append(texts, query)
	for _, ref := range refs {
		texts = append(texts, ref.chunk.Content)
	}

	vecs, err := r.embedder.Embed(ctx, texts)
	if err != nil {
		return unavailable(fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err))
	}
	if len(vecs) != len(texts) {
		return unavailable(fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingUnavailable, len(vecs), len(texts)))
	}

	var results []Result
	for i, ref := range refs {
		score, err := embedding.Cosine(vecs[0], vecs[i+1])
		if err != nil {
			return unavailable(fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err))
		}
		if score >= r.minScore {
			results = append(results, ref.result(score))
		}
	}

	return ranked(sortAndTruncate(results, topK))
}

func (r *Retriever) rankWithIndex(ctx context.Context, query string, docs []*document.Document, refs []chunkRef, topK int) EmbeddingRanking {
	vecs, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return unavailable(fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err))
	}
	if len(vecs) != 1 {
		return unavailable(fmt.Errorf("%w: got %d query vectors", ErrEmbeddingUnavailable, len(vecs)))
	}

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		if d != nil {
			ids = append(ids, d.ID)
		}
	}

	hits, err := r.index.Search(ctx, vecs[0], ids, topK)
	if err != nil {
		return unavailable(fmt.Errorf("%w: vector index: %w", ErrEmbeddingUnavailable, err))
	}

	byKey := make(map[string]map[int]chunkRef, len(docs))
	for _, ref := range refs {
		if byKey[ref.doc.ID] == nil {
			byKey[ref.doc.ID] = make(map[int]chunkRef)
		}
		byKey[ref.doc.ID][ref.chunk.ID] = ref
	}

	var results []Result
	for _, h := range hits {
		ref, ok := byKey[h.DocumentID][h.ChunkID]
		if !ok || h.Score < r.minScore {
			continue
		}
		results = append(results, ref.result(h.Score))
	}

	return ranked(sortAndTruncate(results, topK))
}

// RankByKeywords scores chunks by keyword Jaccard similarity.
// Only chunks scoring strictly above threshold are returned.
func RankByKeywords(query string, docs []*document.Document, topK int, threshold float64) []Result {
	qk := Keywords(query)
	if len(qk) == 0 {
		return nil
	}

	var results []Result
	for _, ref := range collectChunks(docs) {
		score := Similarity(qk, Keywords(ref.chunk.Content))
		if score > threshold {
			results = append(results, ref.result(score))
		}
	}
	return sortAndTruncate(results, topK)
}

// Retrieve runs the embedding ranking and falls back to keywords only when it is unavailable.
func (r *Retriever) Retrieve(ctx context.Context, query string, docs []*document.Document, topK int) ([]Result, Strategy) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	ranking := r.RankByEmbedding(ctx, query, docs, topK)
	if ranking.Ranked() {
		r.record(StrategyEmbedding, len(ranking.Results()))
		return ranking.Results(), StrategyEmbedding
	}

	level := slog.LevelWarn
	if errors.Is(ranking.Reason(), ErrNoMatches) {
		level = slog.LevelDebug
	}
	r.logger.Log(ctx, level, "embedding ranking unavailable, using keyword fallback", "error", ranking.Reason())

	results := RankByKeywords(query, docs, topK, r.keywordThreshold)
	if len(results) == 0 {
		r.record(StrategyNone, 0)
		return nil, StrategyNone
	}
	r.record(StrategyKeyword, len(results))
	return results, StrategyKeyword
}

func (r *Retriever) record(s Strategy, n int) {
	r.logger.Debug("retrieval complete", "strategy", s, "results", n)
	r.metrics.Retrieval(string(s))
}

// sortAndTruncate orders by descending similarity, keeping input order on ties.
func sortAndTruncate(results []Result, topK int) []Result {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}
