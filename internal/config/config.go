// Package config loads docqa settings from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	EmbedderTFIDF  = "tfidf"
	EmbedderOpenAI = "openai"

	IndexNone   = "none"
	IndexQdrant = "qdrant"

	GeneratorNone   = "none"
	GeneratorOpenAI = "openai"
)

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	MaxSize int `yaml:"max_size"`
	Overlap int `yaml:"overlap"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string  `yaml:"type"`
	Model     string  `yaml:"model,omitempty"`
	BatchSize int     `yaml:"batch_size,omitempty"`
	Dimension int     `yaml:"dimension,omitempty"`
	MinScore  float64 `yaml:"min_score"`
	// CacheDir holds the Badger embedding cache. Empty disables caching.
	CacheDir string `yaml:"cache_dir,omitempty"`
}

// RetrievalConfig controls ranking and context size.
type RetrievalConfig struct {
	TopK             int     `yaml:"top_k"`
	ContextChunks    int     `yaml:"context_chunks"`
	KeywordThreshold float64 `yaml:"keyword_threshold"`
}

// QdrantConfig contains connection details for a Qdrant vector index.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Collection string `yaml:"collection"`
}

// VectorIndexConfig selects the vector index implementation.
type VectorIndexConfig struct {
	Type   string       `yaml:"type"`
	Qdrant QdrantConfig `yaml:"qdrant"`
}

// GeneratorConfig selects the answer generator.
type GeneratorConfig struct {
	Type      string `yaml:"type"`
	Model     string `yaml:"model,omitempty"`
	MaxTokens int    `yaml:"max_tokens,omitempty"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Port string `yaml:"port"`
	// HTTP serves MCP over streamable HTTP instead of stdio.
	HTTP bool `yaml:"http"`
}

// Config is the root application configuration structure.
type Config struct {
	DataDir       string            `yaml:"data_dir"`
	LogLevel      string            `yaml:"log_level"`
	// MaxFileSizeMB rejects larger uploads before extraction.
	MaxFileSizeMB int               `yaml:"max_file_size_mb"`
	Chunker       ChunkerConfig     `yaml:"chunker"`
	Embedder      EmbedderConfig    `yaml:"embedder"`
	Retrieval     RetrievalConfig   `yaml:"retrieval"`
	VectorIndex   VectorIndexConfig `yaml:"vector_index"`
	Generator     GeneratorConfig   `yaml:"generator"`
	Server        ServerConfig      `yaml:"server"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := newConfig()
	applyDefaults(cfg)
	return cfg
}

// newConfig holds the defaults a file may explicitly override with a zero value.
func newConfig() *Config {
	return &Config{Chunker: ChunkerConfig{Overlap: 200}}
}

// Load reads a config from path and applies environment overrides.
// If the file does not exist, defaults are used.
func Load(path string) (*Config, error) {
	cfg := newConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg, os.LookupEnv)
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads explicit if set, otherwise the first of ./docqa.yaml and
// ~/.config/docqa/config.yaml that exists. It returns the path used, or "" when
// only defaults and the environment apply.
func LoadDefault(explicit string) (*Config, string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return nil, "", fmt.Errorf("config %s: %w", explicit, err)
		}
		cfg, err := Load(explicit)
		return cfg, explicit, err
	}

	candidates := []string{"docqa.yaml"}
	if userPath, err := defaultUserConfigPath(); err == nil {
		candidates = append(candidates, userPath)
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			cfg, err := Load(path)
			return cfg, path, err
		}
	}

	cfg, err := Load("")
	return cfg, "", err
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects unknown implementation names and out-of-range values.
func (c *Config) Validate() error {
	switch c.Embedder.Type {
	case EmbedderTFIDF, EmbedderOpenAI:
	default:
		return fmt.Errorf("unknown embedder type %q", c.Embedder.Type)
	}
	switch c.VectorIndex.Type {
	case IndexNone, IndexQdrant:
	default:
		return fmt.Errorf("unknown vector index type %q", c.VectorIndex.Type)
	}
	switch c.Generator.Type {
	case GeneratorNone, GeneratorOpenAI:
	default:
		return fmt.Errorf("unknown generator type %q", c.Generator.Type)
	}
	if c.VectorIndex.Type == IndexQdrant && c.Embedder.Type == EmbedderTFIDF {
		return errors.New("qdrant index needs a stable embedder; tfidf vectors are only comparable within one call")
	}
	if c.Chunker.Overlap < 0 {
		return fmt.Errorf("chunker overlap must not be negative, got %d", c.Chunker.Overlap)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "docqa", "config.yaml"), nil
}

func applyDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.MaxFileSizeMB <= 0 {
		cfg.MaxFileSizeMB = 50
	}
	if cfg.Chunker.MaxSize <= 0 {
		cfg.Chunker.MaxSize = 1000
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = EmbedderTFIDF
	}
	if cfg.Embedder.MinScore == 0 {
		cfg.Embedder.MinScore = 0.1
		if cfg.Embedder.Type == EmbedderOpenAI {
			cfg.Embedder.MinScore = 0.3
		}
	}
	if cfg.Embedder.Type == EmbedderOpenAI {
		if cfg.Embedder.Model == "" {
			cfg.Embedder.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.BatchSize == 0 {
			cfg.Embedder.BatchSize = 500
		}
		if cfg.Embedder.Dimension == 0 {
			cfg.Embedder.Dimension = 1536
		}
	}
	if cfg.Retrieval.TopK <= 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.ContextChunks <= 0 {
		cfg.Retrieval.ContextChunks = 3
	}
	if cfg.Retrieval.KeywordThreshold == 0 {
		cfg.Retrieval.KeywordThreshold = 0.3
	}
	if cfg.VectorIndex.Type == "" {
		cfg.VectorIndex.Type = IndexNone
	}
	if cfg.VectorIndex.Qdrant.Host == "" {
		cfg.VectorIndex.Qdrant.Host = "localhost"
	}
	if cfg.VectorIndex.Qdrant.Port == 0 {
		cfg.VectorIndex.Qdrant.Port = 6334
	}
	if cfg.VectorIndex.Qdrant.Collection == "" {
		cfg.VectorIndex.Qdrant.Collection = "docqa_chunks"
	}
	if cfg.Generator.Type == "" {
		cfg.Generator.Type = GeneratorNone
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
}

// applyEnv overrides file values with the environment.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		return v, ok && v != ""
	}

	if v, ok := get("DOCQA_DATA_DIR"); ok {
		cfg.DataDir = v
	}
	if v, ok := get("DOCQA_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := get("MAX_FILE_SIZE_MB"); ok {
		if mb, err := strconv.Atoi(v); err == nil {
			cfg.MaxFileSizeMB = mb
		}
	}
	if v, ok := get("DOCQA_EMBEDDER"); ok {
		cfg.Embedder.Type = v
	}
	if v, ok := get("QDRANT_HOST"); ok {
		cfg.VectorIndex.Qdrant.Host = v
	}
	if v, ok := get("QDRANT_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.VectorIndex.Qdrant.Port = port
		}
	}
	if v, ok := get("PORT"); ok {
		cfg.Server.Port = v
	}
	if v, ok := get("SERVER_MODE"); ok {
		cfg.Server.HTTP = v == "true"
	}
}
