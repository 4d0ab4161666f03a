package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"DOCQA_DATA_DIR", "DOCQA_LOG_LEVEL", "DOCQA_EMBEDDER", "MAX_FILE_SIZE_MB",
		"QDRANT_HOST", "QDRANT_PORT", "PORT", "SERVER_MODE",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docqa.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, 50, cfg.MaxFileSizeMB)
	assert.Equal(t, 1000, cfg.Chunker.MaxSize)
	assert.Equal(t, 200, cfg.Chunker.Overlap)
	assert.Equal(t, EmbedderTFIDF, cfg.Embedder.Type)
	assert.Equal(t, 0.1, cfg.Embedder.MinScore)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 3, cfg.Retrieval.ContextChunks)
	assert.Equal(t, 0.3, cfg.Retrieval.KeywordThreshold)
	assert.Equal(t, IndexNone, cfg.VectorIndex.Type)
	assert.Equal(t, GeneratorNone, cfg.Generator.Type)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
data_dir: /srv/docqa
chunker:
  max_size: 500
  overlap: 0
embedder:
  type: openai
vector_index:
  type: qdrant
  qdrant:
    host: qdrant.internal
generator:
  type: openai
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/docqa", cfg.DataDir)
	assert.Equal(t, 500, cfg.Chunker.MaxSize)
	assert.Equal(t, 0, cfg.Chunker.Overlap, "explicit zero overlap is kept")
	assert.Equal(t, 0.3, cfg.Embedder.MinScore, "openai gets its own score floor")
	assert.Equal(t, "text-embedding-3-small", cfg.Embedder.Model)
	assert.Equal(t, 500, cfg.Embedder.BatchSize)
	assert.Equal(t, 1536, cfg.Embedder.Dimension)
	assert.Equal(t, "qdrant.internal", cfg.VectorIndex.Qdrant.Host)
	assert.Equal(t, 6334, cfg.VectorIndex.Qdrant.Port)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DOCQA_DATA_DIR", "/tmp/docs")
	t.Setenv("DOCQA_LOG_LEVEL", "debug")
	t.Setenv("QDRANT_HOST", "db")
	t.Setenv("QDRANT_PORT", "7000")
	t.Setenv("PORT", "9090")
	t.Setenv("SERVER_MODE", "true")
	t.Setenv("MAX_FILE_SIZE_MB", "5")

	cfg, err := Load(writeConfig(t, "data_dir: ignored\n"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/docs", cfg.DataDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "db", cfg.VectorIndex.Qdrant.Host)
	assert.Equal(t, 7000, cfg.VectorIndex.Qdrant.Port)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.True(t, cfg.Server.HTTP)
	assert.Equal(t, 5, cfg.MaxFileSizeMB)
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "chunker: [1, 2"},
		{"unknown embedder", "embedder:\n  type: word2vec\n"},
		{"unknown index", "vector_index:\n  type: faiss\n"},
		{"unknown generator", "generator:\n  type: llama\n"},
		{"tfidf with qdrant", "vector_index:\n  type: qdrant\n"},
		{"negative overlap", "chunker:\n  overlap: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadDefault_Explicit(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "log_level: warn\n")

	cfg, used, err := LoadDefault(path)
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, "warn", cfg.LogLevel)

	_, _, err = LoadDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadDefault_WorkingDirectory(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())

	cfg, used, err := LoadDefault("")
	require.NoError(t, err)
	assert.Empty(t, used)
	assert.Equal(t, "data", cfg.DataDir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "docqa.yaml"), []byte("data_dir: here\n"), 0o644))
	cfg, used, err = LoadDefault("")
	require.NoError(t, err)
	assert.Equal(t, "docqa.yaml", used)
	assert.Equal(t, "here", cfg.DataDir)
}

func TestSave_RoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	want := Default()
	want.DataDir = "saved"

	require.NoError(t, Save(path, want))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestNewLogger(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))

	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn")
	logger.Info("hidden")
	logger.Warn("shown", "id", "doc_1")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "id=doc_1")
}
