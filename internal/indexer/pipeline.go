// Package indexer ingests every document of a Source into the document store
// and, when configured, the vector index.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bull/docqa/internal/document"
	"github.com/bull/docqa/internal/embedding"
	"github.com/bull/docqa/internal/extract"
	"github.com/bull/docqa/internal/storage"
)

// IndexResult contains statistics about an indexing operation.
type IndexResult struct {
	TotalDocs      int
	SuccessfulDocs int
	SkippedDocs    int // Already processed, counted in SuccessfulDocs too
	TotalChunks    int
	FailedDocs     []FailedDoc
	Duration       time.Duration
}

// FailedDoc represents a document that failed to index.
type FailedDoc struct {
	Path   string
	Reason string
}

// DocumentStore is the part of storage.Store the pipeline writes to.
type DocumentStore interface {
	Process(ctx context.Context, data []byte, filename, declaredType string) (*storage.ProcessResult, error)
	Get(ctx context.Context, id string) (*document.Document, error)
}

// ChunkIndex stores chunk vectors.
type ChunkIndex interface {
	UpsertChunks(ctx context.Context, doc *document.Document, vectors [][]float32) error
	HasDocument(ctx context.Context, docID string) (bool, error)
}

// Pipeline orchestrates the full indexing process from fetching to storage.
type Pipeline struct {
	store    DocumentStore
	embedder embedding.Embedder
	index    ChunkIndex
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithVectorIndex embeds the chunks of ingested documents and upserts them into index.
func WithVectorIndex(embedder embedding.Embedder, index ChunkIndex) Option {
	return func(p *Pipeline) {
		p.embedder = embedder
		p.index = index
	}
}

// NewPipeline creates a new indexing pipeline over store.
func NewPipeline(store DocumentStore, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{store: store, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IndexAll fetches and processes every document of src.
// Per-document failures are collected in FailedDocs; only listing errors abort.
func (p *Pipeline) IndexAll(ctx context.Context, src Source) (*IndexResult, error) {
	start := time.Now()
	result := &IndexResult{}

	refs, err := src.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list docs: %w", err)
	}
	result.TotalDocs = len(refs)
	p.logger.Info("Found documents", "count", len(refs))

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := p.processDocument(ctx, src, ref)
		if err != nil {
			p.logger.Warn("Failed to process document", "path", ref.Path, "error", err)
			result.FailedDocs = append(result.FailedDocs, FailedDoc{
				Path:   ref.Path,
				Reason: err.Error(),
			})
			continue
		}
		result.SuccessfulDocs++
		result.TotalChunks += res.ChunkCount
		if res.Status == storage.StatusAlreadyProcessed {
			result.SkippedDocs++
		}
	}

	result.Duration = time.Since(start)
	p.logger.Info("Indexing complete",
		"successful", result.SuccessfulDocs,
		"skipped", result.SkippedDocs,
		"failed", len(result.FailedDocs),
		"chunks", result.TotalChunks,
		"duration", result.Duration,
	)

	return result, nil
}

// processDocument fetches, stores and optionally vector-indexes one document.
func (p *Pipeline) processDocument(ctx context.Context, src Source, ref Ref) (*storage.ProcessResult, error) {
	data, err := src.Fetch(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	p.logger.Debug("Fetched document", "path", ref.Path, "size", len(data))

	res, err := p.store.Process(ctx, data, ref.Name, extract.DetectType(ref.Name))
	if err != nil {
		return nil, fmt.Errorf("process: %w", err)
	}

	if p.index == nil || p.embedder == nil {
		return res, nil
	}
	if err := p.indexVectors(ctx, res); err != nil {
		return nil, fmt.Errorf("vector index: %w", err)
	}
	return res, nil
}

// indexVectors embeds and upserts the chunks of a new document. A document
// processed earlier is only embedded if the index has no points for it.
func (p *Pipeline) indexVectors(ctx context.Context, res *storage.ProcessResult) error {
	if res.Status == storage.StatusAlreadyProcessed {
		has, err := p.index.HasDocument(ctx, res.ID)
		if err != nil {
			return err
		}
		if has {
			return nil
		}
	}

	doc, err := p.store.Get(ctx, res.ID)
	if err != nil {
		return err
	}
	if len(doc.Chunks) == 0 {
		return nil
	}

	texts := make([]string, len(doc.Chunks))
	for i, c := range doc.Chunks {
		texts[i] = c.Content
	}
	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embeddings: %w", err)
	}
	if err := p.index.UpsertChunks(ctx, doc, vectors); err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}

	p.logger.Info("Indexed document vectors", "id", doc.ID, "chunks", len(doc.Chunks))
	return nil
}
