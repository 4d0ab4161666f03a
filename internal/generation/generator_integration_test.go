//go:build integration

package generation

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/bull/docqa/internal/embedding"
)

func TestOpenAIGenerator_Generate(t *testing.T) {
	if os.Getenv("OPENAI_API_KEY") == "" {
		t.Skip("OPENAI_API_KEY not set")
	}

	client, err := embedding.NewClient("")
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	g := NewOpenAIGenerator(client.Client(), "", 0, nil)

	res, err := g.Generate(context.Background(), Request{
		System: "Answer with a single word.",
		Prompt: "What colour is the sky on a clear day?",
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !strings.Contains(strings.ToLower(res.Content), "blue") {
		t.Errorf("Expected answer to mention blue, got %q", res.Content)
	}
}
