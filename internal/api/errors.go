package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/docuquery/docuquery/internal/answer"
	"github.com/docuquery/docuquery/internal/embedding"
	"github.com/docuquery/docuquery/internal/pdf"
	"github.com/docuquery/docuquery/internal/session"
	"github.com/docuquery/docuquery/internal/storage"
)

// errorStatus maps pipeline errors to HTTP status codes. Every capability
// failure bubbles up typed; nothing is swallowed on the way here.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrInvalidSessionID):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrSessionNotReady),
		errors.Is(err, session.ErrSessionExists):
		return http.StatusConflict
	case errors.Is(err, pdf.ErrUnreadable),
		errors.Is(err, pdf.ErrNoTextContent):
		return http.StatusUnprocessableEntity
	case errors.Is(err, embedding.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, embedding.ErrEmbeddingService),
		errors.Is(err, storage.ErrVectorStore),
		errors.Is(err, storage.ErrUnreachable),
		errors.Is(err, answer.ErrLLMService):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// errorDetail produces the user-facing reason for a failure. Unexpected
// internals are not leaked verbatim.
func errorDetail(err error) string {
	switch {
	case errors.Is(err, pdf.ErrNoTextContent):
		return "document unreadable - it may be a scanned image without a text layer"
	case errors.Is(err, pdf.ErrUnreadable):
		return "file could not be parsed as a PDF"
	case errors.Is(err, session.ErrInvalidSessionID):
		return "session_id must be 1-128 characters of letters, digits, '.', '_' or '-'"
	case errors.Is(err, session.ErrSessionExists):
		return "session_id already addresses an ingested document - use a new session_id"
	case errors.Is(err, session.ErrSessionNotFound):
		return "unknown session_id - upload a document first"
	case errors.Is(err, session.ErrSessionNotReady):
		return "document is still being processed or failed to ingest - check upload status"
	case errors.Is(err, embedding.ErrQuotaExceeded):
		return "embedding capacity exhausted - retry shortly"
	case errors.Is(err, answer.ErrLLMService):
		return "answer generation is temporarily unavailable - please retry"
	case errors.Is(err, embedding.ErrEmbeddingService),
		errors.Is(err, storage.ErrVectorStore),
		errors.Is(err, storage.ErrUnreachable):
		return "a downstream service is temporarily unavailable - please retry"
	default:
		return "internal error"
	}
}
