// Package mcp exposes the document store and grounding over the Model Context Protocol.
package mcp

import (
	"github.com/bull/docqa/internal/document"
	"github.com/bull/docqa/internal/grounding"
	"github.com/bull/docqa/internal/retrieval"
)

// ListDocumentsInput defines the input parameters for the list_documents tool.
// This tool takes no parameters and lists all processed documents.
type ListDocumentsInput struct{}

// ListDocumentsOutput contains the index entries of all processed documents.
type ListDocumentsOutput struct {
	Documents []document.IndexEntry `json:"documents"`
	Count     int                   `json:"count"`
}

// GetDocumentInput defines the input parameters for the get_document_content tool.
type GetDocumentInput struct {
	ID string `json:"id" jsonschema:"the document id returned by list_documents, e.g. doc_0123456789abcdef"`
}

// GetDocumentOutput contains the retrieved document.
type GetDocumentOutput struct {
	// Found indicates whether the document exists.
	Found    bool               `json:"found"`
	Document *document.Document `json:"document,omitempty"`
}

// SearchDocumentsInput defines the input parameters for the search_documents tool.
type SearchDocumentsInput struct {
	Query string `json:"query" jsonschema:"keywords to look for across every stored document"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of chunks to return, default 5"`
}

// SearchDocumentsOutput contains the keyword search results.
type SearchDocumentsOutput struct {
	Results []retrieval.Result `json:"results"`
	// Message provides informational context (e.g., "No matching chunks found").
	Message string `json:"message,omitempty"`
}

// AssembleContextInput defines the input parameters for the assemble_context tool.
type AssembleContextInput struct {
	Query       string   `json:"query" jsonschema:"the question to ground"`
	DocumentIDs []string `json:"document_ids,omitempty" jsonschema:"ids of the documents to draw context from"`
}

// AssembleContextOutput is the grounding for a query.
type AssembleContextOutput struct {
	Context  string             `json:"context"`
	Used     bool               `json:"used"`
	State    grounding.State    `json:"state"`
	Sources  []retrieval.Result `json:"sources"`
	Strategy retrieval.Strategy `json:"strategy"`
}

// AskInput defines the input parameters for the ask tool.
type AskInput struct {
	Question    string   `json:"question" jsonschema:"the question to answer from the documents"`
	DocumentIDs []string `json:"document_ids,omitempty" jsonschema:"ids of the documents to answer from"`
}

// AskOutput is a grounded answer.
type AskOutput struct {
	Answer      string             `json:"answer"`
	ContextUsed bool               `json:"context_used"`
	State       grounding.State    `json:"state"`
	Sources     []retrieval.Result `json:"sources"`
	Tokens      int64              `json:"tokens"`
}

// StatusInput defines the input parameters for the get_index_status tool.
type StatusInput struct{}

// StatusOutput reports store and vector index sizes.
type StatusOutput struct {
	TotalDocs   int `json:"total_docs"`
	TotalChunks int `json:"total_chunks"`
	// VectorPoints is nil when no vector index is configured or it is unreachable.
	VectorPoints *uint64 `json:"vector_points,omitempty"`
	LastIngested string  `json:"last_ingested,omitempty"`
}
