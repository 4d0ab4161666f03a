package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/docqa/internal/document"
	"github.com/bull/docqa/internal/grounding"
	"github.com/bull/docqa/internal/retrieval"
	"github.com/bull/docqa/internal/storage"
)

// DocumentStore is the read side of storage.Store used by the tools.
type DocumentStore interface {
	List(ctx context.Context) ([]document.IndexEntry, error)
	Get(ctx context.Context, id string) (*document.Document, error)
	Search(ctx context.Context, query string, limit int) ([]retrieval.Result, error)
}

// ContextAssembler builds grounding for a query.
type ContextAssembler interface {
	Assemble(ctx context.Context, query string, docIDs []string) grounding.Context
}

// QuestionAnswerer answers a question from documents.
type QuestionAnswerer interface {
	Ask(ctx context.Context, question string, docIDs []string) (*grounding.Answer, error)
}

// PointCounter reports the number of vectors in an index.
type PointCounter interface {
	Count(ctx context.Context) (uint64, error)
}

// makeListHandler creates the list_documents tool handler.
func makeListHandler(store DocumentStore) func(
	context.Context, *mcp.CallToolRequest, ListDocumentsInput,
) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListDocumentsInput) (
		*mcp.CallToolResult, ListDocumentsOutput, error,
	) {
		entries, err := store.List(ctx)
		if err != nil {
			return nil, ListDocumentsOutput{}, fmt.Errorf("failed to list documents: %w", err)
		}

		return nil, ListDocumentsOutput{
			Documents: entries,
			Count:     len(entries),
		}, nil
	}
}

// makeGetHandler creates the get_document_content tool handler.
// A missing or invalid record is reported as not found rather than as a tool error.
func makeGetHandler(store DocumentStore) func(
	context.Context, *mcp.CallToolRequest, GetDocumentInput,
) (*mcp.CallToolResult, GetDocumentOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input GetDocumentInput) (
		*mcp.CallToolResult, GetDocumentOutput, error,
	) {
		doc, err := store.Get(ctx, input.ID)
		if err != nil {
			if errors.Is(err, storage.ErrDocumentNotFound) || errors.Is(err, storage.ErrInvalidRecord) {
				return nil, GetDocumentOutput{Found: false}, nil
			}
			return nil, GetDocumentOutput{}, fmt.Errorf("failed to fetch document: %w", err)
		}

		return nil, GetDocumentOutput{Found: true, Document: doc}, nil
	}
}

// makeSearchHandler creates the search_documents tool handler.
func makeSearchHandler(store DocumentStore) func(
	context.Context, *mcp.CallToolRequest, SearchDocumentsInput,
) (*mcp.CallToolResult, SearchDocumentsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchDocumentsInput) (
		*mcp.CallToolResult, SearchDocumentsOutput, error,
	) {
		limit := input.Limit
		if limit <= 0 {
			limit = retrieval.DefaultTopK
		}

		results, err := store.Search(ctx, input.Query, limit)
		if err != nil {
			return nil, SearchDocumentsOutput{}, fmt.Errorf("search failed: %w", err)
		}

		if len(results) == 0 {
			return nil, SearchDocumentsOutput{
				Results: []retrieval.Result{},
				Message: "No matching chunks found. Try terms that appear in the documents.",
			}, nil
		}

		return nil, SearchDocumentsOutput{Results: results}, nil
	}
}

// makeAssembleHandler creates the assemble_context tool handler.
func makeAssembleHandler(assembler ContextAssembler) func(
	context.Context, *mcp.CallToolRequest, AssembleContextInput,
) (*mcp.CallToolResult, AssembleContextOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input AssembleContextInput) (
		*mcp.CallToolResult, AssembleContextOutput, error,
	) {
		c := assembler.Assemble(ctx, input.Query, input.DocumentIDs)
		sources := c.Sources
		if sources == nil {
			sources = []retrieval.Result{} // Ensure non-nil for JSON marshaling
		}

		return nil, AssembleContextOutput{
			Context:  c.Text,
			Used:     c.Used,
			State:    c.State,
			Sources:  sources,
			Strategy: c.Strategy,
		}, nil
	}
}

// makeAskHandler creates the ask tool handler.
func makeAskHandler(answerer QuestionAnswerer) func(
	context.Context, *mcp.CallToolRequest, AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input AskInput) (
		*mcp.CallToolResult, AskOutput, error,
	) {
		ans, err := answerer.Ask(ctx, input.Question, input.DocumentIDs)
		if err != nil {
			return nil, AskOutput{}, fmt.Errorf("failed to answer: %w", err)
		}

		sources := ans.Context.Sources
		if sources == nil {
			sources = []retrieval.Result{}
		}
		return nil, AskOutput{
			Answer:      ans.Content,
			ContextUsed: ans.ContextUsed,
			State:       ans.State,
			Sources:     sources,
			Tokens:      ans.Tokens,
		}, nil
	}
}

// makeStatusHandler creates the get_index_status tool handler.
// Vector index errors leave VectorPoints nil instead of failing the tool.
func makeStatusHandler(store DocumentStore, index PointCounter) func(
	context.Context, *mcp.CallToolRequest, StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StatusInput) (
		*mcp.CallToolResult, StatusOutput, error,
	) {
		entries, err := store.List(ctx)
		if err != nil {
			return nil, StatusOutput{}, fmt.Errorf("failed to list documents: %w", err)
		}

		out := StatusOutput{TotalDocs: len(entries)}
		var last time.Time
		for _, e := range entries {
			out.TotalChunks += e.ChunkCount
			if e.ProcessedAt.After(last) {
				last = e.ProcessedAt
			}
		}
		if !last.IsZero() {
			out.LastIngested = last.Format(time.RFC3339)
		}

		if index != nil {
			if n, err := index.Count(ctx); err == nil {
				out.VectorPoints = &n
			}
		}

		return nil, out, nil
	}
}
