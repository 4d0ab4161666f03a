// Package storage persists processed documents on disk and indexes chunk
// vectors in Qdrant.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gofrs/flock"

	"github.com/bull/docqa/internal/chunker"
	"github.com/bull/docqa/internal/document"
	"github.com/bull/docqa/internal/extract"
	"github.com/bull/docqa/internal/metrics"
	"github.com/bull/docqa/internal/normalize"
	"github.com/bull/docqa/internal/retrieval"
)

const (
	uploadsDir   = "uploads"
	processedDir = "processed"
	indexFile    = "document_index.json"
	lockFile     = ".index.lock"

	// DefaultMaxFileSize caps uploads at 50 MiB.
	DefaultMaxFileSize int64 = 50 << 20
)

// Status describes what Process did with a document.
type Status string

const (
	StatusCreated          Status = "created"
	StatusAlreadyProcessed Status = "already_processed"
)

var idPattern = regexp.MustCompile(`^` + document.IDPrefix + `[0-9a-f]{16}$`)

// ProcessResult reports the outcome of a successful Process call.
type ProcessResult struct {
	ID         string
	Status     Status
	ChunkCount int
}

// Store is the content-addressed document store rooted at a data directory.
//
// Layout:
//
//	<dir>/uploads/<id><ext>              raw bytes as uploaded
//	<dir>/processed/<id>.json            full Document record
//	<dir>/processed/document_index.json  array of IndexEntry
type Store struct {
	dir              string
	extractor        *extract.Extractor
	chunker          *chunker.Chunker
	keywordThreshold float64
	maxFileSize      int64
	logger           *slog.Logger
	metrics          *metrics.Metrics
	now              func() time.Time

	mu   sync.Mutex
	lock *flock.Flock
}

// Option configures a Store.
type Option func(*Store)

// WithExtractor replaces the default text extractor.
func WithExtractor(e *extract.Extractor) Option {
	return func(s *Store) { s.extractor = e }
}

// WithChunker replaces the default chunker.
func WithChunker(c *chunker.Chunker) Option {
	return func(s *Store) { s.chunker = c }
}

// WithKeywordThreshold sets the score a Search result must exceed.
func WithKeywordThreshold(threshold float64) Option {
	return func(s *Store) { s.keywordThreshold = threshold }
}

// WithMaxFileSize rejects inputs larger than n bytes. n <= 0 disables the cap.
func WithMaxFileSize(n int64) Option {
	return func(s *Store) { s.maxFileSize = n }
}

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records Process outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithClock overrides the processed_at time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New opens a store at dir, creating its directories if needed.
func New(dir string, opts ...Option) (*Store, error) {
	s := &Store{
		dir:              dir,
		chunker:          chunker.NewChunker(),
		keywordThreshold: retrieval.DefaultKeywordThreshold,
		maxFileSize:      DefaultMaxFileSize,
		logger:           slog.Default(),
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.extractor == nil {
		s.extractor = extract.New(s.logger)
	}

	for _, sub := range []string{uploadsDir, processedDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create %s directory: %w", sub, err)
		}
	}
	s.lock = flock.New(filepath.Join(dir, processedDir, lockFile))

	return s, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string { return s.dir }

// MaxFileSize returns the upload cap in bytes. Zero or less means no cap.
func (s *Store) MaxFileSize() int64 { return s.maxFileSize }

func (s *Store) recordPath(id string) string {
	return filepath.Join(s.dir, processedDir, id+".json")
}

func (s *Store) indexPath() string {
	return filepath.Join(s.dir, processedDir, indexFile)
}

func (s *Store) uploadPath(id, filename string) string {
	return filepath.Join(s.dir, uploadsDir, id+strings.ToLower(filepath.Ext(filename)))
}

// processed reports whether id has both a readable record and an index entry.
func (s *Store) processed(id string) (*document.Document, bool) {
	doc, err := s.load(id)
	if err != nil {
		return nil, false
	}
	entries, err := s.readIndex()
	if err != nil || !indexed(entries, id) {
		return nil, false
	}
	return doc, true
}

// Process ingests raw bytes. Identical bytes are processed once; later calls
// return StatusAlreadyProcessed. ErrFileTooLarge and ErrNoTextExtracted mean
// nothing was persisted.
func (s *Store) Process(ctx context.Context, data []byte, filename, declaredType string) (result *ProcessResult, err error) {
	start := time.Now()
	id := document.ContentID(data)
	status := "error"
	defer func() {
		s.metrics.DocumentProcessed(status, time.Since(start))
	}()

	if s.maxFileSize > 0 && int64(len(data)) > s.maxFileSize {
		s.logger.Warn("file too large", "filename", filename, "size", len(data), "max", s.maxFileSize)
		status = "too_large"
		return nil, fmt.Errorf("process %s: %w (%d bytes, max %d)", filename, ErrFileTooLarge, len(data), s.maxFileSize)
	}

	if doc, ok := s.processed(id); ok {
		s.logger.Info("document already processed", "id", id, "filename", filename)
		status = string(StatusAlreadyProcessed)
		return &ProcessResult{ID: id, Status: StatusAlreadyProcessed, ChunkCount: doc.ChunkCount}, nil
	}

	text := normalize.Clean(s.extractor.Extract(ctx, data, declaredType))
	if text == "" {
		s.logger.Warn("no text extracted", "id", id, "filename", filename, "file_type", declaredType)
		status = "no_text"
		return nil, fmt.Errorf("process %s: %w", filename, ErrNoTextExtracted)
	}

	chunks := s.chunker.Chunk(text)
	if chunks == nil {
		chunks = []document.Chunk{}
	}
	doc := &document.Document{
		ID:              id,
		Filename:        filename,
		FileType:        declaredType,
		ProcessedAt:     s.now().UTC(),
		Metadata:        s.extractor.Metadata(ctx, data, filename, declaredType),
		Chunks:          chunks,
		ChunkCount:      len(chunks),
		TotalCharacters: utf8.RuneCountInString(text),
		TotalWords:      normalize.WordCount(text),
	}

	created := true
	err = s.withIndexLock(ctx, func() error {
		// Another writer may have finished the same bytes while we extracted
		if existing, ok := s.processed(id); ok {
			created = false
			doc = existing
			return nil
		}
		if err := writeFileAtomic(s.uploadPath(id, filename), data); err != nil {
			return fmt.Errorf("save upload: %w", err)
		}
		if err := writeJSONAtomic(s.recordPath(id), doc); err != nil {
			return fmt.Errorf("save record: %w", err)
		}
		return s.putEntry(doc.Entry())
	})
	if err != nil {
		s.logger.Error("failed to persist document", "id", id, "filename", filename, "error", err)
		return nil, fmt.Errorf("process %s: %w", filename, err)
	}

	if !created {
		status = string(StatusAlreadyProcessed)
		return &ProcessResult{ID: id, Status: StatusAlreadyProcessed, ChunkCount: doc.ChunkCount}, nil
	}

	s.logger.Info("document processed", "id", id, "filename", filename, "chunks", doc.ChunkCount)
	status = string(StatusCreated)
	return &ProcessResult{ID: id, Status: StatusCreated, ChunkCount: doc.ChunkCount}, nil
}

func (s *Store) load(id string) (*document.Document, error) {
	if !idPattern.MatchString(id) {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}
	data, err := os.ReadFile(s.recordPath(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read record %s: %w", id, err)
	}
	return document.Decode(data)
}

// Get loads a document. It returns ErrDocumentNotFound or ErrInvalidRecord
// for missing and malformed records.
func (s *Store) Get(ctx context.Context, id string) (*document.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := s.load(id)
	if err != nil {
		if errors.Is(err, ErrInvalidRecord) {
			s.logger.Warn("rejected invalid document record", "id", id, "error", err)
		}
		return nil, err
	}
	return doc, nil
}

// GetMany loads the given documents, logging and skipping those that fail.
func (s *Store) GetMany(ctx context.Context, ids []string) []*document.Document {
	docs := make([]*document.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := s.Get(ctx, id)
		if err != nil {
			s.logger.Warn("skipping document", "id", id, "error", err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}

// List returns the index entries in insertion order.
func (s *Store) List(ctx context.Context) ([]document.IndexEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.readIndex()
}

// Search ranks chunks of every stored document by keyword overlap with query.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]retrieval.Result, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	if limit <= 0 {
		limit = retrieval.DefaultTopK
	}
	return retrieval.RankByKeywords(query, s.GetMany(ctx, ids), limit, s.keywordThreshold), nil
}

// Reset removes every upload, record and the index.
func (s *Store) Reset(ctx context.Context) error {
	return s.withIndexLock(ctx, func() error {
		if err := os.Remove(s.indexPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove index: %w", err)
		}
		for _, pattern := range []string{
			filepath.Join(s.dir, processedDir, document.IDPrefix+"*.json"),
			filepath.Join(s.dir, uploadsDir, "*"),
		} {
			matches, err := filepath.Glob(pattern)
			if err != nil {
				return fmt.Errorf("glob %s: %w", pattern, err)
			}
			for _, m := range matches {
				if err := os.RemoveAll(m); err != nil {
					return fmt.Errorf("remove %s: %w", m, err)
				}
			}
		}
		s.logger.Info("document store reset", "dir", s.dir)
		return nil
	})
}

// Health checks that the data directory is readable and writable.
func (s *Store) Health(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Join(s.dir, processedDir)
	if _, err := os.ReadDir(dir); err != nil {
		return fmt.Errorf("read data directory: %w", err)
	}
	f, err := os.CreateTemp(dir, ".health-*")
	if err != nil {
		return fmt.Errorf("write data directory: %w", err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
