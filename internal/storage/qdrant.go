// Package storage persists chunk vectors in Qdrant, one collection per
// session namespace. Isolation is structural: a query addresses exactly one
// collection, so no filter bug can ever leak another session's chunks.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	// upsertBatchSize caps points per upsert request.
	upsertBatchSize = 100

	// defaultCallTimeout bounds each individual Qdrant call when no
	// timeout is configured.
	defaultCallTimeout = 15 * time.Second
)

// QdrantStore adapts the Qdrant client to namespace-scoped vector storage.
// Every call is bounded by a per-attempt timeout and transient failures are
// retried with backoff; structural failures abort immediately.
type QdrantStore struct {
	client      *qdrant.Client
	dimension   int
	callTimeout time.Duration

	// retryInterval is the initial backoff interval. Zero means the
	// production default; tests shrink it.
	retryInterval time.Duration
}

// NewQdrantStore connects to Qdrant and validates reachability with a
// health check retried under exponential backoff, failing fast if the
// server never responds. dimension is the embedding size every namespace
// collection is created with; callTimeout bounds each individual call,
// falling back to a default when zero.
func NewQdrantStore(host string, port int, dimension int, callTimeout time.Duration) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	s := &QdrantStore{client: client, dimension: dimension, callTimeout: callTimeout}

	if err := s.healthCheckWithRetry(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return s, nil
}

func (s *QdrantStore) healthCheckWithRetry(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		return s.Health(ctx)
	}, backoff.WithContext(b, ctx))
}

// bound derives a per-call context from ctx so one hung connection cannot
// stall a request indefinitely.
func (s *QdrantStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.callTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.callTimeout)
}

// callWithRetry runs op under backoff, giving each attempt a fresh bounded
// context. Structural gRPC failures are not retried; everything else,
// including a per-attempt deadline, is treated as transient while the
// caller's context is alive.
func (s *QdrantStore) callWithRetry(ctx context.Context, op func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	if s.retryInterval > 0 {
		b.InitialInterval = s.retryInterval
	}
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		callCtx, cancel := s.bound(ctx)
		defer cancel()

		err := op(callCtx)
		if err != nil && isPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(b, ctx))
}

// isPermanent reports whether a Qdrant error is structural rather than a
// transient network or server failure.
func isPermanent(err error) bool {
	switch status.Code(err) {
	case codes.NotFound, codes.InvalidArgument, codes.AlreadyExists, codes.FailedPrecondition:
		return true
	}
	return false
}

// Health performs a single bounded health check against Qdrant.
func (s *QdrantStore) Health(ctx context.Context) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// EnsureNamespace creates the collection backing a namespace if it does not
// exist yet. Idempotent.
func (s *QdrantStore) EnsureNamespace(ctx context.Context, namespace string) error {
	var exists bool
	err := s.callWithRetry(ctx, func(ctx context.Context) error {
		var err error
		exists, err = s.client.CollectionExists(ctx, namespace)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: check collection %s: %v", ErrVectorStore, namespace, err)
	}
	if exists {
		return nil
	}

	err = s.callWithRetry(ctx, func(ctx context.Context) error {
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: namespace,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(s.dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		// Lost a create race with a concurrent upload of the same session.
		if status.Code(err) == codes.AlreadyExists {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: create collection %s: %v", ErrVectorStore, namespace, err)
	}
	return nil
}

// UpsertChunks writes all chunks into the namespace's collection. Every
// embedding is dimension-checked up front; a mismatch is structural and not
// retried. Writes are batched and retried with backoff, and any batch
// failure fails the whole call, so a partially written namespace is never
// reported as success.
func (s *QdrantStore) UpsertChunks(ctx context.Context, namespace string, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	for i, chunk := range chunks {
		if len(chunk.Embedding) != s.dimension {
			return fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(chunk.Embedding), s.dimension)
		}
	}

	for i := 0; i < len(chunks); i += upsertBatchSize {
		end := min(i+upsertBatchSize, len(chunks))
		batch := chunks[i:end]

		points := make([]*qdrant.PointStruct, len(batch))
		for j, chunk := range batch {
			points[j] = &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(chunk.ID),
				Vectors: qdrant.NewVectors(chunk.Embedding...),
				Payload: qdrant.NewValueMap(map[string]any{
					"session_id":  chunk.SessionID,
					"chunk_index": chunk.Index,
					"text":        chunk.Text,
				}),
			}
		}

		err := s.callWithRetry(ctx, func(ctx context.Context) error {
			wait := true
			_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
				CollectionName: namespace,
				Points:         points,
				Wait:           &wait,
			})
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: upsert batch %d-%d into %s: %v", ErrVectorStore, i, end, namespace, err)
		}
	}
	return nil
}

// Query returns up to k chunks nearest to vector within the namespace,
// ordered by descending cosine similarity, dropping hits below minScore.
// Only the named collection is searched.
func (s *QdrantStore) Query(ctx context.Context, namespace string, vector []float32, k int, minScore float32) ([]ScoredChunk, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), s.dimension)
	}

	var results []*qdrant.ScoredPoint
	err := s.callWithRetry(ctx, func(ctx context.Context) error {
		var err error
		results, err = s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: namespace,
			Query:          qdrant.NewQuery(vector...),
			Limit:          qdrant.PtrOf(uint64(k)),
			ScoreThreshold: &minScore,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		return err
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrNamespaceNotFound, namespace)
		}
		return nil, fmt.Errorf("%w: query %s: %v", ErrVectorStore, namespace, err)
	}

	hits := make([]ScoredChunk, 0, len(results))
	for _, result := range results {
		payload := result.Payload
		hits = append(hits, ScoredChunk{
			Chunk: Chunk{
				ID:        result.Id.GetUuid(),
				SessionID: payload["session_id"].GetStringValue(),
				Index:     int(payload["chunk_index"].GetIntegerValue()),
				Text:      payload["text"].GetStringValue(),
			},
			Score: result.Score,
		})
	}
	return hits, nil
}

// DeleteNamespace drops the collection backing a namespace. Used for
// best-effort cleanup after a failed ingestion; correctness never depends
// on it, only on session status gating.
func (s *QdrantStore) DeleteNamespace(ctx context.Context, namespace string) error {
	err := s.callWithRetry(ctx, func(ctx context.Context) error {
		return s.client.DeleteCollection(ctx, namespace)
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return fmt.Errorf("%w: delete collection %s: %v", ErrVectorStore, namespace, err)
	}
	return nil
}

// CountChunks returns the number of points stored in a namespace.
func (s *QdrantStore) CountChunks(ctx context.Context, namespace string) (uint64, error) {
	var info *qdrant.CollectionInfo
	err := s.callWithRetry(ctx, func(ctx context.Context) error {
		var err error
		info, err = s.client.GetCollectionInfo(ctx, namespace)
		return err
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return 0, fmt.Errorf("%w: %s", ErrNamespaceNotFound, namespace)
		}
		return 0, fmt.Errorf("%w: collection info %s: %v", ErrVectorStore, namespace, err)
	}
	return info.GetPointsCount(), nil
}

// Close closes the Qdrant client connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
