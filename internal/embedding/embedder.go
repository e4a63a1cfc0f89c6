package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
)

const (
	// Model is the OpenAI model used for generating embeddings.
	Model = "text-embedding-3-small"

	// Dimension is the vector dimension for text-embedding-3-small.
	// Ingestion-time and query-time vectors must both match it.
	Dimension = 1536

	// DefaultBatchSize balances requests-per-minute vs tokens-per-minute
	// pressure. OpenAI supports up to 2048 texts per request.
	DefaultBatchSize = 100
)

// Embedder generates embeddings for text. Every outbound request first takes
// a token from the shared Limiter, then retries throttling and transient
// failures with exponential backoff before surfacing ErrEmbeddingService.
type Embedder struct {
	client    *Client
	limiter   *Limiter
	batchSize int
	timeout   time.Duration

	// retryInterval is the initial backoff interval. Zero means the
	// production default; tests shrink it.
	retryInterval time.Duration
}

// NewEmbedder creates an Embedder using the given client and shared limiter.
// If batchSize is 0, DefaultBatchSize is used. A non-zero timeout bounds each
// individual API call; retries each get a fresh allowance.
func NewEmbedder(client *Client, limiter *Limiter, batchSize int, timeout time.Duration) *Embedder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Embedder{
		client:    client,
		limiter:   limiter,
		batchSize: batchSize,
		timeout:   timeout,
	}
}

// EmbedDocuments generates embeddings for the given texts, one per input, in
// input order. Requests are batched; each batch consumes one rate token.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	var all [][]float32

	for i := 0; i < len(texts); i += e.batchSize {
		end := min(i+e.batchSize, len(texts))
		batch := texts[i:end]

		embeddings, err := e.embedBatch(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", i, end, err)
		}
		all = append(all, embeddings...)
	}

	return all, nil
}

// EmbedQuery generates an embedding for a single query string.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.embedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// embedBatch generates embeddings for one batch. The rate token is taken
// before every attempt so retries also count against the global ceiling.
func (e *Embedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var embeddings [][]float32

	operation := func() error {
		if err := e.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		callCtx := ctx
		if e.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, e.timeout)
			defer cancel()
		}

		resp, err := e.client.client.Embeddings.New(callCtx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model: Model,
		})
		if err != nil {
			// A per-call deadline is only transient while the caller's own
			// context is still alive.
			if isRetryable(err) || (errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil) {
				return err
			}
			return backoff.Permanent(err)
		}

		if len(resp.Data) != len(texts) {
			return backoff.Permanent(fmt.Errorf("got %d embeddings for %d inputs", len(resp.Data), len(texts)))
		}

		embeddings = make([][]float32, len(resp.Data))
		for i, data := range resp.Data {
			embeddings[i] = toFloat32(data.Embedding)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	if e.retryInterval > 0 {
		b.InitialInterval = e.retryInterval
	}
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 60 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, 5), ctx)); err != nil {
		if errors.Is(err, ErrQuotaExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingService, err)
	}
	return embeddings, nil
}

// isRetryable reports whether the error is a throttling or transient server
// failure worth retrying.
func isRetryable(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}

// toFloat32 converts the API's float64 vectors to float32 for storage.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
