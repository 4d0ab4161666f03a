package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/bull/docqa/internal/document"
	"github.com/bull/docqa/internal/retrieval"
)

const (
	// DefaultCollection is the Qdrant collection holding chunk vectors.
	DefaultCollection = "docqa_chunks"

	// vectorName is the named vector every chunk point carries.
	vectorName = "content"

	upsertBatchSize = 100
)

// QdrantConfig selects the server and collection shape.
type QdrantConfig struct {
	Host       string
	Port       int
	Collection string
	Dimension  int
}

// QdrantIndex stores chunk vectors in Qdrant and searches them by document.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	dimension  uint64
}

var _ retrieval.VectorIndex = (*QdrantIndex)(nil)

// NewQdrantIndex creates a Qdrant client with health validation.
// It retries the health check on startup and fails fast if Qdrant stays unreachable.
func NewQdrantIndex(ctx context.Context, cfg QdrantConfig) (*QdrantIndex, error) {
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("qdrant index needs a positive vector dimension, got %d", cfg.Dimension)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: cfg.Host,
		Port: cfg.Port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	idx := &QdrantIndex{
		client:     client,
		collection: cfg.Collection,
		dimension:  uint64(cfg.Dimension),
	}

	if err := idx.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrQdrantUnreachable, err)
	}

	return idx, nil
}

func newBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return backoff.WithContext(b, ctx)
}

// healthCheckWithRetry performs health check with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (q *QdrantIndex) healthCheckWithRetry(ctx context.Context) error {
	return backoff.Retry(func() error {
		return q.Health(ctx)
	}, newBackoff(ctx))
}

// Health performs a single health check against Qdrant.
func (q *QdrantIndex) Health(ctx context.Context) error {
	result, err := q.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// EnsureCollection creates the collection with a cosine "content" vector and
// keyword payload indexes if it does not exist. Idempotent.
func (q *QdrantIndex) EnsureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			vectorName: {
				Size:     q.dimension,
				Distance: qdrant.Distance_Cosine,
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	// Filtering by document without an index degrades to a full scan
	for _, field := range []string{"document_id", "filename"} {
		_, err := q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: q.collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to create index for field %s: %w", field, err)
		}
	}

	return nil
}

// PointID derives a stable point id so re-upserting a chunk overwrites it.
func PointID(docID string, chunkID int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(docID+"/"+strconv.Itoa(chunkID))).String()
}

// UpsertChunks stores one vector per chunk of doc, in batches of 100.
func (q *QdrantIndex) UpsertChunks(ctx context.Context, doc *document.Document, vectors [][]float32) error {
	if len(vectors) != len(doc.Chunks) {
		return fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(doc.Chunks))
	}
	for i, v := range vectors {
		if uint64(len(v)) != q.dimension {
			return fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(v), q.dimension)
		}
	}

	for i := 0; i < len(doc.Chunks); i += upsertBatchSize {
		end := min(i+upsertBatchSize, len(doc.Chunks))

		points := make([]*qdrant.PointStruct, 0, end-i)
		for j := i; j < end; j++ {
			c := doc.Chunks[j]
			points = append(points, &qdrant.PointStruct{
				Id: qdrant.NewIDUUID(PointID(doc.ID, c.ID)),
				Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
					vectorName: qdrant.NewVector(vectors[j]...),
				}),
				Payload: qdrant.NewValueMap(map[string]any{
					"document_id": doc.ID,
					"filename":    doc.Filename,
					"chunk_id":    c.ID,
					"content":     c.Content,
				}),
			})
		}

		if err := q.upsertWithRetry(ctx, points); err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", i, end, err)
		}
	}
	return nil
}

func (q *QdrantIndex) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	return backoff.Retry(func() error {
		_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: q.collection,
			Points:         points,
		})
		return err
	}, newBackoff(ctx))
}

// Search returns the nearest chunks, restricted to docIDs when non-empty.
func (q *QdrantIndex) Search(ctx context.Context, vector []float32, docIDs []string, limit int) ([]retrieval.Hit, error) {
	if uint64(len(vector)) != q.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), q.dimension)
	}

	var filter *qdrant.Filter
	if len(docIDs) > 0 {
		filter = &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatchKeywords("document_id", docIDs...),
			},
		}
	}

	using := vectorName
	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Using:          &using,
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayloadInclude("document_id", "chunk_id"),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	hits := make([]retrieval.Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, retrieval.Hit{
			DocumentID: r.Payload["document_id"].GetStringValue(),
			ChunkID:    int(r.Payload["chunk_id"].GetIntegerValue()),
			Score:      float64(r.Score),
		})
	}
	return hits, nil
}

// HasDocument reports whether any chunk of docID is indexed.
func (q *QdrantIndex) HasDocument(ctx context.Context, docID string) (bool, error) {
	results, err := q.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: q.collection,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("document_id", docID),
			},
		},
		Limit:       qdrant.PtrOf(uint32(1)),
		WithPayload: qdrant.NewWithPayload(false),
	})
	if err != nil {
		return false, fmt.Errorf("failed to scroll for document %s: %w", docID, err)
	}
	return len(results) > 0, nil
}

// Count returns the number of indexed chunk points.
func (q *QdrantIndex) Count(ctx context.Context) (uint64, error) {
	info, err := q.client.GetCollectionInfo(ctx, q.collection)
	if err != nil {
		return 0, fmt.Errorf("failed to get collection: %w", err)
	}
	return info.GetPointsCount(), nil
}

// Clear drops and recreates the collection.
func (q *QdrantIndex) Clear(ctx context.Context) error {
	if err := q.client.DeleteCollection(ctx, q.collection); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return q.EnsureCollection(ctx)
}

// Close closes the Qdrant client connection.
func (q *QdrantIndex) Close() error {
	if q.client != nil {
		return q.client.Close()
	}
	return nil
}
