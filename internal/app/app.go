// Package app wires the configured components into a running docqa instance.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bull/docqa/internal/chunker"
	"github.com/bull/docqa/internal/config"
	"github.com/bull/docqa/internal/embedding"
	"github.com/bull/docqa/internal/generation"
	"github.com/bull/docqa/internal/grounding"
	"github.com/bull/docqa/internal/indexer"
	"github.com/bull/docqa/internal/metrics"
	"github.com/bull/docqa/internal/retrieval"
	"github.com/bull/docqa/internal/storage"
)

// App holds the wired components. Index, Generator and Cache are nil when
// not configured.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Store     *storage.Store
	Embedder  embedding.Embedder
	Cache     *embedding.Store
	Index     *storage.QdrantIndex
	Retriever *retrieval.Retriever
	Assembler *grounding.Assembler
	Generator generation.Generator
	Answerer  *grounding.Answerer
	Pipeline  *indexer.Pipeline
}

// New builds an App from cfg. Connecting to Qdrant blocks until it is
// healthy or the retry budget runs out.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger, Metrics: metrics.New()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.Store, err = storage.New(cfg.DataDir,
		storage.WithChunker(chunker.NewChunker(
			chunker.WithMaxSize(cfg.Chunker.MaxSize),
			chunker.WithOverlap(cfg.Chunker.Overlap),
		)),
		storage.WithKeywordThreshold(cfg.Retrieval.KeywordThreshold),
		storage.WithMaxFileSize(int64(cfg.MaxFileSizeMB)<<20),
		storage.WithLogger(logger),
		storage.WithMetrics(a.Metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("open document store: %w", err)
	}

	var openai *embedding.Client
	if cfg.Embedder.Type == config.EmbedderOpenAI || cfg.Generator.Type == config.GeneratorOpenAI {
		if openai, err = embedding.NewClient(""); err != nil {
			return nil, fmt.Errorf("create OpenAI client: %w", err)
		}
	}

	switch cfg.Embedder.Type {
	case config.EmbedderOpenAI:
		a.Embedder = embedding.NewOpenAIEmbedder(openai, cfg.Embedder.Model, cfg.Embedder.BatchSize)
		if cfg.Embedder.CacheDir != "" {
			if a.Cache, err = embedding.NewStore(cfg.Embedder.CacheDir); err != nil {
				return nil, fmt.Errorf("open embedding cache: %w", err)
			}
			a.Embedder = embedding.NewCachedEmbedder(a.Embedder, a.Cache, logger)
		}
	default:
		a.Embedder = embedding.NewTFIDFEmbedder()
	}

	retrieverOpts := []retrieval.Option{
		retrieval.WithMinScore(cfg.Embedder.MinScore),
		retrieval.WithKeywordThreshold(cfg.Retrieval.KeywordThreshold),
		retrieval.WithLogger(logger),
		retrieval.WithMetrics(a.Metrics),
	}
	var pipelineOpts []indexer.Option

	if cfg.VectorIndex.Type == config.IndexQdrant {
		a.Index, err = storage.NewQdrantIndex(ctx, storage.QdrantConfig{
			Host:       cfg.VectorIndex.Qdrant.Host,
			Port:       cfg.VectorIndex.Qdrant.Port,
			Collection: cfg.VectorIndex.Qdrant.Collection,
			Dimension:  cfg.Embedder.Dimension,
		})
		if err != nil {
			return nil, err
		}
		if err = a.Index.EnsureCollection(ctx); err != nil {
			return nil, fmt.Errorf("ensure collection: %w", err)
		}
		retrieverOpts = append(retrieverOpts, retrieval.WithVectorIndex(a.Index))
		pipelineOpts = append(pipelineOpts, indexer.WithVectorIndex(a.Embedder, a.Index))
	}

	a.Retriever = retrieval.New(a.Embedder, retrieverOpts...)
	a.Assembler = grounding.NewAssembler(a.Store, a.Retriever,
		grounding.WithTopK(cfg.Retrieval.TopK),
		grounding.WithMaxSources(cfg.Retrieval.ContextChunks),
		grounding.WithLogger(logger),
		grounding.WithMetrics(a.Metrics),
	)

	if cfg.Generator.Type == config.GeneratorOpenAI {
		a.Generator = generation.NewOpenAIGenerator(openai.Client(), cfg.Generator.Model, cfg.Generator.MaxTokens, logger)
	}
	a.Answerer = grounding.NewAnswerer(a.Assembler, a.Generator)
	a.Pipeline = indexer.NewPipeline(a.Store, logger, pipelineOpts...)

	return a, nil
}

// Reset empties the document store, the vector index and the embedding cache.
func (a *App) Reset(ctx context.Context) error {
	if err := a.Store.Reset(ctx); err != nil {
		return err
	}
	if a.Index != nil {
		if err := a.Index.Clear(ctx); err != nil {
			return fmt.Errorf("clear vector index: %w", err)
		}
	}
	if a.Cache != nil {
		if err := a.Cache.Clear(); err != nil {
			return fmt.Errorf("clear embedding cache: %w", err)
		}
	}
	return nil
}

// Close releases the vector index connection and the embedding cache.
func (a *App) Close() error {
	var errs []error
	if a.Index != nil {
		errs = append(errs, a.Index.Close())
	}
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	return errors.Join(errs...)
}
