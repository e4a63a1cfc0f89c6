package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClient points the OpenAI client at a local server with the SDK's own
// retries disabled, so the embedder's backoff is the only retry mechanism.
func testClient(baseURL string) *Client {
	c := openai.NewClient(
		option.WithAPIKey("test-key"),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(0),
	)
	return &Client{client: &c}
}

func generousLimiter(t *testing.T) *Limiter {
	t.Helper()
	l, err := NewLimiter(1000, time.Second, time.Second)
	require.NoError(t, err)
	return l
}

func fastEmbedder(client *Client, limiter *Limiter, timeout time.Duration) *Embedder {
	e := NewEmbedder(client, limiter, 0, timeout)
	e.retryInterval = time.Millisecond
	return e
}

// writeEmbeddings answers an embeddings request with one deterministic
// 3-dim vector per input. Runs on the server goroutine, so failures are
// reported as responses rather than test assertions.
func writeEmbeddings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Input []string `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest)
		return
	}

	type datum struct {
		Object    string    `json:"object"`
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	}
	data := make([]datum, len(req.Input))
	for i := range req.Input {
		data[i] = datum{
			Object:    "embedding",
			Index:     i,
			Embedding: []float64{float64(i + 1), 0.5, -0.5},
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"data":   data,
		"model":  Model,
		"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
	})
}

func writeAPIError(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":{"message":"upstream unhappy","type":"server_error"}}`)
}

func TestEmbedder_RetriesThrottlingThenSucceeds(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) <= 2 {
			writeAPIError(w, http.StatusTooManyRequests)
			return
		}
		writeEmbeddings(w, r)
	}))
	defer srv.Close()

	e := fastEmbedder(testClient(srv.URL), generousLimiter(t), 0)

	vectors, err := e.EmbedDocuments(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{1, 0.5, -0.5}, vectors[0])
	assert.Equal(t, []float32{2, 0.5, -0.5}, vectors[1])
	assert.Equal(t, int64(3), requests.Load(), "two throttled attempts then one success")
}

func TestEmbedder_ExhaustedRetriesSurfaceServiceError(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		writeAPIError(w, http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := fastEmbedder(testClient(srv.URL), generousLimiter(t), 0)

	_, err := e.EmbedDocuments(context.Background(), []string{"alpha"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddingService)
	assert.Equal(t, int64(6), requests.Load(), "initial attempt plus five retries")
}

func TestEmbedder_BadRequestIsNotRetried(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		writeAPIError(w, http.StatusBadRequest)
	}))
	defer srv.Close()

	e := fastEmbedder(testClient(srv.URL), generousLimiter(t), 0)

	_, err := e.EmbedDocuments(context.Background(), []string{"alpha"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddingService)
	assert.Equal(t, int64(1), requests.Load())
}

func TestEmbedder_QuotaPassesThroughUnwrapped(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		writeEmbeddings(w, r)
	}))
	defer srv.Close()

	// One token per minute with a bounded wait: the second batch must fail
	// with the quota sentinel, not ErrEmbeddingService, after one request.
	l, err := NewLimiter(1, time.Minute, 20*time.Millisecond)
	require.NoError(t, err)

	e := NewEmbedder(testClient(srv.URL), l, 1, 0)
	e.retryInterval = time.Millisecond

	_, err = e.EmbedDocuments(context.Background(), []string{"alpha", "beta"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.NotErrorIs(t, err, ErrEmbeddingService)
	assert.Equal(t, int64(1), requests.Load(), "no request may be sent without a rate token")
}

func TestEmbedder_PerCallTimeoutIsRetried(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			time.Sleep(300 * time.Millisecond)
		}
		writeEmbeddings(w, r)
	}))
	defer srv.Close()

	e := fastEmbedder(testClient(srv.URL), generousLimiter(t), 50*time.Millisecond)

	vectors, err := e.EmbedQuery(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Len(t, vectors, 3)
	assert.Equal(t, int64(2), requests.Load(), "timed-out attempt followed by a fast one")
}
