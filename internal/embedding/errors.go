package embedding

import "errors"

var (
	// ErrQuotaExceeded is returned when a caller cannot acquire embedding
	// capacity within the configured maximum wait.
	ErrQuotaExceeded = errors.New("embedding quota exceeded")

	// ErrEmbeddingService is returned when the embedding backend fails after
	// retries are exhausted.
	ErrEmbeddingService = errors.New("embedding service failure")
)
