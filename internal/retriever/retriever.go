// Package retriever answers the query side of the pipeline: embed the
// question and fetch the most relevant chunks from one session's namespace.
package retriever

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/docuquery/docuquery/internal/storage"
)

// QueryEmbedder embeds a single query string.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Store performs namespace-scoped similarity search.
type Store interface {
	Query(ctx context.Context, namespace string, vector []float32, k int, minScore float32) ([]storage.ScoredChunk, error)
}

// Sessions resolves a session id to its namespace, gated on Ready status.
type Sessions interface {
	Resolve(sessionID string) (string, error)
}

// Scored is one retrieved chunk with its similarity score.
type Scored struct {
	Text  string
	Score float32
}

// Result is an ordered, namespace-restricted retrieval outcome. Empty is a
// valid result: it means nothing in the document cleared the relevance
// threshold, and the synthesizer must say so rather than invent an answer.
type Result struct {
	SessionID string
	Chunks    []Scored
}

// Empty reports whether no chunk cleared the relevance threshold.
func (r Result) Empty() bool { return len(r.Chunks) == 0 }

// Retriever embeds questions and searches exactly one namespace.
type Retriever struct {
	embedder QueryEmbedder
	store    Store
	sessions Sessions
	topK     int
	minScore float32
	logger   *slog.Logger
}

// New creates a Retriever returning at most topK chunks scoring at least
// minScore.
func New(embedder QueryEmbedder, store Store, sessions Sessions, topK int, minScore float32, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		embedder: embedder,
		store:    store,
		sessions: sessions,
		topK:     topK,
		minScore: minScore,
		logger:   logger,
	}
}

// Retrieve resolves the session's namespace, embeds the question, and
// returns the top chunks above the relevance threshold. Fails if the
// session is unknown or not Ready.
func (r *Retriever) Retrieve(ctx context.Context, sessionID, question string) (Result, error) {
	namespace, err := r.sessions.Resolve(sessionID)
	if err != nil {
		return Result{}, err
	}

	vector, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return Result{}, fmt.Errorf("embed question: %w", err)
	}

	hits, err := r.store.Query(ctx, namespace, vector, r.topK, r.minScore)
	if err != nil {
		return Result{}, fmt.Errorf("search namespace: %w", err)
	}

	result := Result{SessionID: sessionID, Chunks: make([]Scored, 0, len(hits))}
	for _, hit := range hits {
		result.Chunks = append(result.Chunks, Scored{Text: hit.Chunk.Text, Score: hit.Score})
	}

	r.logger.Debug("retrieved context",
		"session_id", sessionID,
		"hits", len(result.Chunks),
	)
	return result, nil
}
