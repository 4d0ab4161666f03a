package storage

import (
	"errors"

	"github.com/bull/docqa/internal/document"
	"github.com/bull/docqa/internal/embedding"
)

var (
	ErrDocumentNotFound  = errors.New("document not found")
	ErrNoTextExtracted   = errors.New("no text extracted from document")
	ErrFileTooLarge      = errors.New("file exceeds maximum size")
	ErrInvalidRecord     = document.ErrInvalidRecord
	ErrQdrantUnreachable = errors.New("qdrant server unreachable")
	ErrDimensionMismatch = embedding.ErrDimensionMismatch
)
