package storage

import "errors"

var (
	// ErrUnreachable is returned when the Qdrant server cannot be reached.
	ErrUnreachable = errors.New("vector store unreachable")

	// ErrVectorStore wraps transient read/write failures.
	ErrVectorStore = errors.New("vector store failure")

	// ErrDimensionMismatch indicates a vector whose dimension does not match
	// the collection. Structural, never retried.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrNamespaceNotFound is returned when querying a namespace that has no
	// backing collection.
	ErrNamespaceNotFound = errors.New("namespace not found")
)
