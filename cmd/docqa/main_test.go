package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.ExecuteContext(context.Background()), "docqa %v", args)
	return out.String()
}

func TestIngestListSearch(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DOCQA_EMBEDDER", "")
	data := t.TempDir()

	doc := filepath.Join(t.TempDir(), "cats.txt")
	require.NoError(t, os.WriteFile(doc, []byte("The cat sat. The cat slept. Dogs bark loudly."), 0o644))

	out := run(t, "ingest", "--data-dir", data, doc)
	assert.Contains(t, out, "Documents: 1/1 (0 already processed)")

	out = run(t, "ingest", "--data-dir", data, doc)
	assert.Contains(t, out, "(1 already processed)")

	out = run(t, "list", "--data-dir", data)
	assert.Contains(t, out, "cats.txt")

	out = run(t, "search", "--data-dir", data, "dogs", "bark", "loudly")
	assert.Contains(t, out, "cats.txt #0 (similarity: 0.75)")

	out = run(t, "context", "--data-dir", data, "stock market prices")
	assert.Contains(t, out, "I don't know based on the provided documents.")
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short", snippet("short", 10))
	assert.Equal(t, "ab...", snippet("abcdef", 2))
	assert.Equal(t, "a b", snippet("a\nb", 10))
}
