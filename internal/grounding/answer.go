package grounding

import (
	"context"
	"fmt"
	"strings"

	"github.com/bull/docqa/internal/generation"
)

const systemPrompt = `You are an intelligent Q&A assistant. You help users by answering questions based on provided documents and context. Be helpful, accurate, and concise in your responses.

Instructions:
- Use ONLY the provided document context to answer. If the answer is not in the context, respond with: "I don't know based on the provided documents."
- Cite which source chunk you used when relevant (e.g., Source 1, Source 2).
- Provide specific answers with references to source material when possible.`

// Answer is the reply to a question plus the grounding it was built from.
type Answer struct {
	Content      string  `json:"content"`
	ContextUsed  bool    `json:"context_used"`
	State        State   `json:"state"`
	Tokens       int64   `json:"tokens"`
	FinishReason string  `json:"finish_reason,omitempty"`
	Context      Context `json:"grounding"`
}

// Answerer answers questions from assembled context.
type Answerer struct {
	assembler *Assembler
	generator generation.Generator
}

// NewAnswerer creates an answerer. A nil generator makes Ask fail with
// generation.ErrNoGenerator unless the question is refused.
func NewAnswerer(assembler *Assembler, generator generation.Generator) *Answerer {
	return &Answerer{assembler: assembler, generator: generator}
}

// Ask grounds question in docIDs and generates an answer. When the documents
// hold nothing relevant the refusal is returned and the generator is not called.
func (a *Answerer) Ask(ctx context.Context, question string, docIDs []string) (*Answer, error) {
	grounding := a.assembler.Assemble(ctx, question, docIDs)
	if grounding.State == StateGroundedRefusal {
		return &Answer{
			Content: RefusalMessage,
			State:   grounding.State,
			Context: grounding,
		}, nil
	}

	if a.generator == nil {
		return nil, generation.ErrNoGenerator
	}

	res, err := a.generator.Generate(ctx, generation.Request{
		System: systemPrompt,
		Prompt: buildPrompt(question, grounding),
	})
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &Answer{
		Content:      res.Content,
		ContextUsed:  grounding.Used,
		State:        grounding.State,
		Tokens:       res.Tokens,
		FinishReason: res.FinishReason,
		Context:      grounding,
	}, nil
}

func buildPrompt(question string, grounding Context) string {
	var b strings.Builder
	if grounding.Used {
		b.WriteString("Context from documents:\n")
		b.WriteString(grounding.Text)
		b.WriteString("\n\n")
	}
	b.WriteString("User: ")
	b.WriteString(question)
	b.WriteString("\nAssistant:")
	return b.String()
}
