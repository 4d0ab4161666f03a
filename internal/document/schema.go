package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/jsonschema-go/jsonschema"
)

// ErrInvalidRecord indicates a persisted record is missing keys, has the wrong
// types, or breaks a document invariant.
var ErrInvalidRecord = errors.New("invalid document record")

func integerSchema() *jsonschema.Schema {
	zero := 0.0
	return &jsonschema.Schema{Type: "integer", Minimum: &zero}
}

var chunkSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"id":             integerSchema(),
		"content":        {Type: "string"},
		"length":         integerSchema(),
		"sentence_count": integerSchema(),
		"start_position": integerSchema(),
		"end_position":   integerSchema(),
	},
	Required: []string{"id", "content", "length", "sentence_count", "start_position", "end_position"},
}

var documentSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"id":               {Type: "string"},
		"filename":         {Type: "string"},
		"file_type":        {Type: "string"},
		"processed_at":     {Type: "string"},
		"metadata":         {Type: "object"},
		"chunks":           {Type: "array", Items: chunkSchema},
		"chunk_count":      integerSchema(),
		"total_characters": integerSchema(),
		"total_words":      integerSchema(),
	},
	Required: []string{
		"id", "filename", "file_type", "processed_at", "metadata",
		"chunks", "chunk_count", "total_characters", "total_words",
	},
}

var indexSchema = &jsonschema.Schema{
	Type: "array",
	Items: &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"id":               {Type: "string"},
			"filename":         {Type: "string"},
			"file_type":        {Type: "string"},
			"processed_at":     {Type: "string"},
			"chunk_count":      integerSchema(),
			"total_characters": integerSchema(),
			"total_words":      integerSchema(),
		},
		Required: []string{
			"id", "filename", "file_type", "processed_at",
			"chunk_count", "total_characters", "total_words",
		},
	},
}

var (
	resolveOnce      sync.Once
	resolvedDocument *jsonschema.Resolved
	resolvedIndex    *jsonschema.Resolved
	resolveErr       error
)

func resolveSchemas() error {
	resolveOnce.Do(func() {
		resolvedDocument, resolveErr = documentSchema.Resolve(nil)
		if resolveErr != nil {
			return
		}
		resolvedIndex, resolveErr = indexSchema.Resolve(nil)
	})
	return resolveErr
}

// Decode parses and validates a persisted document record.
// A record that fails the schema or any invariant is rejected as a whole.
func Decode(data []byte) (*Document, error) {
	if err := resolveSchemas(); err != nil {
		return nil, fmt.Errorf("resolve schema: %w", err)
	}

	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if err := resolvedDocument.Validate(instance); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// DecodeIndex parses and validates the persisted index array.
func DecodeIndex(data []byte) ([]IndexEntry, error) {
	if err := resolveSchemas(); err != nil {
		return nil, fmt.Errorf("resolve schema: %w", err)
	}

	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if err := resolvedIndex.Validate(instance); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	var entries []IndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return entries, nil
}

// Validate checks the document invariants that the schema cannot express.
func (d *Document) Validate() error {
	if !strings.HasPrefix(d.ID, IDPrefix) {
		return fmt.Errorf("%w: id %q lacks %q prefix", ErrInvalidRecord, d.ID, IDPrefix)
	}
	if d.ChunkCount != len(d.Chunks) {
		return fmt.Errorf("%w: chunk_count %d != %d chunks", ErrInvalidRecord, d.ChunkCount, len(d.Chunks))
	}
	return ValidateChunks(d.Chunks)
}

// ValidateChunks checks id ordering and offset continuity of a chunk sequence.
func ValidateChunks(chunks []Chunk) error {
	for i, c := range chunks {
		if c.Length != utf8.RuneCountInString(c.Content) {
			return fmt.Errorf("%w: chunk %d length %d does not match content", ErrInvalidRecord, c.ID, c.Length)
		}
		if c.EndPosition-c.StartPosition != c.Length {
			return fmt.Errorf("%w: chunk %d span %d-%d does not match length %d",
				ErrInvalidRecord, c.ID, c.StartPosition, c.EndPosition, c.Length)
		}
		if i == 0 {
			if c.StartPosition != 0 {
				return fmt.Errorf("%w: first chunk starts at %d", ErrInvalidRecord, c.StartPosition)
			}
			continue
		}
		prev := chunks[i-1]
		if c.ID <= prev.ID {
			return fmt.Errorf("%w: chunk ids not increasing at %d", ErrInvalidRecord, c.ID)
		}
		if c.StartPosition != prev.EndPosition {
			return fmt.Errorf("%w: chunk %d starts at %d, previous ended at %d",
				ErrInvalidRecord, c.ID, c.StartPosition, prev.EndPosition)
		}
	}
	return nil
}
