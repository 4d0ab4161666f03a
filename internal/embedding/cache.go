package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/dgraph-io/badger/v4"
)

// Cache persists vectors by key.
type Cache interface {
	// Get returns nil, nil when the key is absent.
	Get(key string) ([]float32, error)
	Set(key string, vec []float32) error
}

// Store is a BadgerDB-backed Cache.
type Store struct {
	db *badger.DB
}

// NewStore opens (or creates) a cache database at path.
func NewStore(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open embedding cache: %w", err)
	}
	return &Store{db: db}, nil
}

// NewMemoryStore opens a cache that lives only in memory.
func NewMemoryStore() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open embedding cache: %w", err)
	}
	return &Store{db: db}, nil
}

var _ Cache = (*Store)(nil)

// Get retrieves a vector by key.
func (s *Store) Get(key string) ([]float32, error) {
	var result []float32
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var derr error
			result, derr = decodeVector(val)
			return derr
		})
	})
	return result, err
}

// Set stores a vector by key.
func (s *Store) Set(key string, vec []float32) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), encodeVector(vec))
	})
}

// Clear drops every cached vector.
func (s *Store) Clear() error {
	return s.db.DropAll()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("cached vector has %d bytes", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec, nil
}

// CachedEmbedder serves repeated texts from a Cache and embeds only the misses.
// The wrapped embedder must produce call-independent vectors; TFIDFEmbedder does not.
type CachedEmbedder struct {
	inner  Embedder
	cache  Cache
	logger *slog.Logger
}

// NewCachedEmbedder wraps inner with cache. A nil logger uses slog.Default().
func NewCachedEmbedder(inner Embedder, cache Cache, logger *slog.Logger) *CachedEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedEmbedder{inner: inner, cache: cache, logger: logger}
}

// Name returns the wrapped embedder's name.
func (c *CachedEmbedder) Name() string { return c.inner.Name() }

// Embed looks each text up in the cache and delegates misses in one call.
// Cache failures are logged and treated as misses.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var (
		missIdx   []int
		missTexts []string
	)

	for i, text := range texts {
		vec, err := c.cache.Get(c.key(text))
		if err != nil {
			c.logger.Warn("embedding cache read failed", "error", err)
		}
		if vec == nil {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, text)
			continue
		}
		out[i] = vec
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(missTexts))
	}

	for j, i := range missIdx {
		out[i] = vecs[j]
		if err := c.cache.Set(c.key(texts[i]), vecs[j]); err != nil {
			c.logger.Warn("embedding cache write failed", "error", err)
		}
	}
	c.logger.Debug("embedded texts", "model", c.inner.Name(), "cached", len(texts)-len(missTexts), "embedded", len(missTexts))
	return out, nil
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(c.inner.Name() + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
