// Package grounding builds the document context a model answers from, and
// refuses when the selected documents hold nothing relevant.
package grounding

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bull/docqa/internal/document"
	"github.com/bull/docqa/internal/metrics"
	"github.com/bull/docqa/internal/retrieval"
)

const (
	// RefusalMessage is returned when documents are selected but none is relevant.
	RefusalMessage = "I don't know based on the provided documents."

	instruction = "You MUST answer strictly using the following document context. " +
		"If the answer is not in the context, say you don't know."

	// DefaultMaxSources caps how many ranked chunks enter the context.
	DefaultMaxSources = 3
)

// State is the grounding outcome for one query.
type State string

const (
	StateNoDocuments     State = "no_documents"
	StateGroundedRefusal State = "grounded_refusal"
	StateGroundedContext State = "grounded_context"
)

// Context is the assembled grounding for a query.
type Context struct {
	Text     string             `json:"context"`
	Used     bool               `json:"used"`
	State    State              `json:"state"`
	Sources  []retrieval.Result `json:"sources"`
	Strategy retrieval.Strategy `json:"strategy"`
}

// DocumentLoader loads stored documents, skipping any that fail.
type DocumentLoader interface {
	GetMany(ctx context.Context, ids []string) []*document.Document
}

// Assembler turns a query and a document selection into a Context.
type Assembler struct {
	loader     DocumentLoader
	retriever  *retrieval.Retriever
	topK       int
	maxSources int
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithTopK sets how many results retrieval ranks before the context cap. Non-positive values are ignored.
func WithTopK(n int) Option {
	return func(a *Assembler) {
		if n > 0 {
			a.topK = n
		}
	}
}

// WithMaxSources sets how many results enter the context. Non-positive values are ignored.
func WithMaxSources(n int) Option {
	return func(a *Assembler) {
		if n > 0 {
			a.maxSources = n
		}
	}
}

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMetrics counts grounding outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Assembler) { a.metrics = m }
}

// NewAssembler creates an assembler over loader and retriever.
func NewAssembler(loader DocumentLoader, retriever *retrieval.Retriever, opts ...Option) *Assembler {
	a := &Assembler{
		loader:     loader,
		retriever:  retriever,
		topK:       retrieval.DefaultTopK,
		maxSources: DefaultMaxSources,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble builds the grounding for query over the documents in docIDs.
func (a *Assembler) Assemble(ctx context.Context, query string, docIDs []string) Context {
	if len(docIDs) == 0 {
		a.metrics.Grounding(string(StateNoDocuments))
		return Context{State: StateNoDocuments, Strategy: retrieval.StrategyNone}
	}

	docs := a.loader.GetMany(ctx, docIDs)
	results, strategy := a.retriever.Retrieve(ctx, query, docs, a.topK)
	if len(results) > a.maxSources {
		results = results[:a.maxSources]
	}

	if len(results) == 0 {
		a.logger.Info("no relevant context in selected documents",
			"documents", len(docIDs), "loaded", len(docs))
		a.metrics.Grounding(string(StateGroundedRefusal))
		return Context{
			Text:     RefusalMessage,
			State:    StateGroundedRefusal,
			Sources:  []retrieval.Result{},
			Strategy: strategy,
		}
	}

	text := formatContext(results)
	a.logger.Info("built grounded context",
		"sources", len(results), "strategy", strategy, "chars", len(text))
	a.metrics.Grounding(string(StateGroundedContext))
	return Context{
		Text:     text,
		Used:     true,
		State:    StateGroundedContext,
		Sources:  results,
		Strategy: strategy,
	}
}

func formatContext(results []retrieval.Result) string {
	parts := make([]string, 0, 2*len(results)+2)
	parts = append(parts, instruction)
	for i, r := range results {
		parts = append(parts,
			fmt.Sprintf("\n=== Source %d: %s (similarity: %.2f) ===", i+1, r.DocumentName, r.Similarity),
			r.Content)
	}
	parts = append(parts, "\n=== End of context ===")
	return strings.Join(parts, "\n")
}
