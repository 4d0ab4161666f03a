package generation

import (
	"strings"
	"testing"
	"unicode/utf8"
)

// TestTruncateContent verifies truncation works correctly for very long content.
func TestTruncateContent(t *testing.T) {
	g := NewOpenAIGenerator(nil, "", 0, nil)

	// ~100k chars, well over 16k tokens
	longContent := strings.Repeat("This is a test content. ", 4000)

	truncated := g.truncateContent(longContent)

	expectedMaxChars := DefaultMaxTokens * 4
	if len(truncated) != expectedMaxChars {
		t.Errorf("Expected truncated length %d, got %d", expectedMaxChars, len(truncated))
	}
	if !strings.HasPrefix(longContent, truncated) {
		t.Error("Truncated content should be a prefix of original content")
	}
}

// TestTruncateContent_Short verifies short content is not truncated.
func TestTruncateContent_Short(t *testing.T) {
	g := NewOpenAIGenerator(nil, "", 0, nil)

	shortContent := strings.Repeat("Short. ", 140)

	if truncated := g.truncateContent(shortContent); truncated != shortContent {
		t.Error("Short content should not be truncated")
	}
}

// TestTruncateContent_Runes verifies multi-byte text is cut on rune boundaries.
func TestTruncateContent_Runes(t *testing.T) {
	g := NewOpenAIGenerator(nil, "", 10, nil)

	content := strings.Repeat("é", 100)
	truncated := g.truncateContent(content)

	if !utf8.ValidString(truncated) {
		t.Fatal("Truncated content is not valid UTF-8")
	}
	if n := utf8.RuneCountInString(truncated); n != 40 {
		t.Errorf("Expected 40 runes, got %d", n)
	}
}

func TestNewOpenAIGenerator_Defaults(t *testing.T) {
	g := NewOpenAIGenerator(nil, "", -1, nil)
	if g.model != DefaultModel {
		t.Errorf("Expected model %s, got %s", DefaultModel, g.model)
	}
	if g.maxTokens != DefaultMaxTokens {
		t.Errorf("Expected max tokens %d, got %d", DefaultMaxTokens, g.maxTokens)
	}

	custom := NewOpenAIGenerator(nil, "gpt-4o", 1000, nil)
	if custom.model != "gpt-4o" {
		t.Errorf("Expected model gpt-4o, got %s", custom.model)
	}
}
