package index

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// pointNamespace derives stable point ids from unit ids.
var pointNamespace = uuid.MustParse("6f1c8c3e-2f55-4f6a-9d7e-8a1b0c7d5e21")

const qdrantUpsertBatch = 128

// Qdrant is an Index backed by one Qdrant collection. Unit ids live in the
// point payload, so there is no separate id list to keep in sync.
type Qdrant struct {
	client     *qdrant.Client
	collection string
	dim        int
	count      int
}

// NewQdrant connects to Qdrant and creates the collection if needed.
func NewQdrant(ctx context.Context, host string, port int, collection string, dim int) (*Qdrant, error) {
	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}
	q := &Qdrant{client: client, collection: collection, dim: dim}
	if err := q.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}
	n, err := client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to count points: %w", err)
	}
	q.count = int(n)
	return q, nil
}

func (q *Qdrant) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		return nil
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// Reset drops and recreates the collection.
func (q *Qdrant) Reset(ctx context.Context) error {
	if err := q.client.DeleteCollection(ctx, q.collection); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	q.count = 0
	return q.ensureCollection(ctx)
}

func (q *Qdrant) Close() error {
	return q.client.Close()
}

func (q *Qdrant) Len() int { return q.count }

func (q *Qdrant) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("%w: %d ids for %d vectors", ErrCorrupt, len(ids), len(vectors))
	}
	for start := 0; start < len(ids); start += qdrantUpsertBatch {
		end := min(start+qdrantUpsertBatch, len(ids))
		points := make([]*qdrant.PointStruct, 0, end-start)
		for i := start; i < end; i++ {
			if len(vectors[i]) != q.dim {
				return fmt.Errorf("%w: %s has %d, collection has %d", ErrDimension, ids[i], len(vectors[i]), q.dim)
			}
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(PointID(ids[i])),
				Vectors: qdrant.NewVectors(vectors[i]...),
				Payload: qdrant.NewValueMap(map[string]any{"unit_id": ids[i]}),
			})
		}
		if err := q.upsertWithRetry(ctx, points); err != nil {
			return err
		}
		q.count += len(points)
	}
	return nil
}

func (q *Qdrant) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	operation := func() error {
		_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: q.collection,
			Points:         points,
		})
		return err
	}
	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}

func (q *Qdrant) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query failed: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		id := r.Payload["unit_id"].GetStringValue()
		if id == "" {
			return nil, fmt.Errorf("%w: point without unit_id in %s", ErrCorrupt, q.collection)
		}
		hits = append(hits, Hit{ID: id, Score: r.Score})
	}
	return hits, nil
}

// PointID maps a unit id to its deterministic Qdrant point id.
func PointID(unitID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(unitID)).String()
}
