// Package document defines the persisted shapes of processed documents.
package document

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// IDPrefix is prepended to every content-addressed document id.
const IDPrefix = "doc_"

// idHexLength is the number of digest hex characters kept in an id.
const idHexLength = 16

// Document is a processed upload: its normalized text split into chunks plus metadata.
// Documents are immutable once persisted.
type Document struct {
	ID              string         `json:"id"`               // Content hash: "doc_" + 16 hex chars
	Filename        string         `json:"filename"`         // Original upload name
	FileType        string         `json:"file_type"`        // Declared MIME-like type
	ProcessedAt     time.Time      `json:"processed_at"`     // When the document was processed
	Metadata        map[string]any `json:"metadata"`         // Format-specific keys (page_count, author...)
	Chunks          []Chunk        `json:"chunks"`           // Ordered by Chunk.ID
	ChunkCount      int            `json:"chunk_count"`      // Always len(Chunks)
	TotalCharacters int            `json:"total_characters"` // Rune count of the normalized text
	TotalWords      int            `json:"total_words"`      // Whitespace-separated fields of the normalized text
}

// Chunk is a bounded span of a document's normalized text, the unit of retrieval.
// Positions are cumulative over emitted chunk texts, not offsets into the source.
type Chunk struct {
	ID            int    `json:"id"`
	Content       string `json:"content"`
	Length        int    `json:"length"`
	SentenceCount int    `json:"sentence_count"`
	StartPosition int    `json:"start_position"`
	EndPosition   int    `json:"end_position"`
}

// IndexEntry is the summary of a Document kept in the shared index.
type IndexEntry struct {
	ID              string    `json:"id"`
	Filename        string    `json:"filename"`
	FileType        string    `json:"file_type"`
	ProcessedAt     time.Time `json:"processed_at"`
	ChunkCount      int       `json:"chunk_count"`
	TotalCharacters int       `json:"total_characters"`
	TotalWords      int       `json:"total_words"`
}

// Entry projects the document onto its index summary.
func (d *Document) Entry() IndexEntry {
	return IndexEntry{
		ID:              d.ID,
		Filename:        d.Filename,
		FileType:        d.FileType,
		ProcessedAt:     d.ProcessedAt,
		ChunkCount:      d.ChunkCount,
		TotalCharacters: d.TotalCharacters,
		TotalWords:      d.TotalWords,
	}
}

// ContentID derives the document id from raw file bytes.
// Identical bytes always produce the same id.
func ContentID(data []byte) string {
	sum := sha256.Sum256(data)
	return IDPrefix + hex.EncodeToString(sum[:])[:idHexLength]
}
