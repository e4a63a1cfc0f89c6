// Package ingest orchestrates document ingestion: extract, chunk, embed,
// upsert, and only then mark the session ready.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/docuquery/docuquery/internal/chunker"
	"github.com/docuquery/docuquery/internal/pdf"
	"github.com/docuquery/docuquery/internal/storage"
)

// Extractor pulls plain text from PDF bytes.
type Extractor interface {
	Extract(data []byte) (string, error)
}

// Splitter divides text into ordered chunks.
type Splitter interface {
	Split(text string) []chunker.Chunk
}

// Embedder turns texts into fixed-dimension vectors.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Store is the namespace-scoped vector store surface the pipeline writes to.
type Store interface {
	EnsureNamespace(ctx context.Context, namespace string) error
	UpsertChunks(ctx context.Context, namespace string, chunks []storage.Chunk) error
	DeleteNamespace(ctx context.Context, namespace string) error
}

// Sessions is the session lifecycle surface the pipeline drives.
type Sessions interface {
	Create(sessionID string) (string, error)
	MarkIngesting(sessionID string) error
	MarkReady(sessionID string) error
	MarkFailed(sessionID, reason string) error
}

// Result contains statistics about one ingestion.
type Result struct {
	SessionID string
	Namespace string
	Chunks    int
	Duration  time.Duration
}

// Pipeline wires the ingestion stages together.
type Pipeline struct {
	extractor Extractor
	splitter  Splitter
	embedder  Embedder
	store     Store
	sessions  Sessions
	logger    *slog.Logger
}

// NewPipeline creates an ingestion pipeline with the given components.
func NewPipeline(
	extractor Extractor,
	splitter Splitter,
	embedder Embedder,
	store Store,
	sessions Sessions,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		extractor: extractor,
		splitter:  splitter,
		embedder:  embedder,
		store:     store,
		sessions:  sessions,
		logger:    logger,
	}
}

// Ingest runs the full pipeline for one uploaded document. The session
// reaches Ready only after every chunk is durably upserted; any failure or
// cancellation along the way marks it Failed and best-effort drops the
// partial namespace. A session is never left Ready with a partial index.
func (p *Pipeline) Ingest(ctx context.Context, sessionID string, pdfData []byte) (*Result, error) {
	start := time.Now()

	namespace, err := p.sessions.Create(sessionID)
	if err != nil {
		return nil, err
	}
	if err := p.sessions.MarkIngesting(sessionID); err != nil {
		return nil, err
	}

	chunkCount, err := p.ingest(ctx, sessionID, namespace, pdfData)
	if err != nil {
		p.fail(sessionID, namespace, err)
		return nil, err
	}

	if err := p.sessions.MarkReady(sessionID); err != nil {
		return nil, err
	}

	result := &Result{
		SessionID: sessionID,
		Namespace: namespace,
		Chunks:    chunkCount,
		Duration:  time.Since(start),
	}
	p.logger.Info("ingestion complete",
		"session_id", sessionID,
		"chunks", result.Chunks,
		"duration", result.Duration,
	)
	return result, nil
}

// ingest runs the extract → chunk → embed → upsert stages.
func (p *Pipeline) ingest(ctx context.Context, sessionID, namespace string, pdfData []byte) (int, error) {
	text, err := p.extractor.Extract(pdfData)
	if err != nil {
		return 0, fmt.Errorf("extract: %w", err)
	}
	p.logger.Debug("extracted text", "session_id", sessionID, "chars", len(text))

	chunks := p.splitter.Split(text)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("chunk: %w", pdf.ErrNoTextContent)
	}
	p.logger.Debug("chunked document", "session_id", sessionID, "chunks", len(chunks))

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	embeddings, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return 0, fmt.Errorf("embed: got %d vectors for %d chunks", len(embeddings), len(chunks))
	}

	if err := p.store.EnsureNamespace(ctx, namespace); err != nil {
		return 0, fmt.Errorf("ensure namespace: %w", err)
	}

	stored := make([]storage.Chunk, len(chunks))
	for i, chunk := range chunks {
		stored[i] = storage.Chunk{
			ID:        uuid.New().String(),
			SessionID: sessionID,
			Index:     chunk.Index,
			Text:      chunk.Text,
			Embedding: embeddings[i],
		}
	}
	if err := p.store.UpsertChunks(ctx, namespace, stored); err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}

	// An aborted request must not reach Ready even if all writes landed.
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// fail records the failure on the session, then tries to drop whatever was
// written. Cleanup runs on a fresh context because the request context is
// often already cancelled; correctness relies on status gating, not on this
// deletion succeeding.
func (p *Pipeline) fail(sessionID, namespace string, cause error) {
	p.logger.Warn("ingestion failed", "session_id", sessionID, "error", cause)

	if err := p.sessions.MarkFailed(sessionID, cause.Error()); err != nil {
		p.logger.Error("mark failed", "session_id", sessionID, "error", err)
	}

	cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.store.DeleteNamespace(cleanupCtx, namespace); err != nil {
		p.logger.Warn("partial namespace cleanup failed", "namespace", namespace, "error", err)
	}
}
