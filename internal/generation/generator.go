// Package generation turns a grounded prompt into an answer using a chat model.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/openai/openai-go"
)

// DefaultMaxTokens is the maximum prompt length before truncation (in tokens).
const DefaultMaxTokens = 16000

// DefaultModel is the chat model used when none is configured.
const DefaultModel = openai.ChatModelGPT4oMini

// ErrNoGenerator is returned when an answer is requested but no generator is configured.
var ErrNoGenerator = errors.New("no generator configured")

// Request is a single-turn generation request.
type Request struct {
	System string
	Prompt string
}

// Result is the generated answer.
type Result struct {
	Content      string `json:"content"`
	Tokens       int64  `json:"tokens"`
	FinishReason string `json:"finish_reason"`
}

// Generator produces an answer for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// OpenAIGenerator answers with an OpenAI chat completion.
type OpenAIGenerator struct {
	client    *openai.Client
	model     openai.ChatModel
	maxTokens int
	logger    *slog.Logger
}

// NewOpenAIGenerator creates a generator with the given OpenAI client.
// Empty model selects DefaultModel; non-positive maxTokens selects DefaultMaxTokens.
func NewOpenAIGenerator(client *openai.Client, model string, maxTokens int, logger *slog.Logger) *OpenAIGenerator {
	if model == "" {
		model = string(DefaultModel)
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIGenerator{
		client:    client,
		model:     openai.ChatModel(model),
		maxTokens: maxTokens,
		logger:    logger,
	}
}

// Generate sends the system instructions and the (possibly truncated) prompt.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (*Result, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(g.truncateContent(req.Prompt)))

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    g.model,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	return &Result{
		Content:      resp.Choices[0].Message.Content,
		Tokens:       resp.Usage.TotalTokens,
		FinishReason: resp.Choices[0].FinishReason,
	}, nil
}

// truncateContent truncates content to fit within token limits.
// Uses rough estimate of 4 characters per token.
func (g *OpenAIGenerator) truncateContent(content string) string {
	maxChars := g.maxTokens * 4

	if utf8.RuneCountInString(content) <= maxChars {
		return content
	}

	g.logger.Warn("truncating prompt",
		"from_chars", utf8.RuneCountInString(content),
		"to_chars", maxChars,
		"estimated_tokens", g.maxTokens)

	return string([]rune(content)[:maxChars])
}
