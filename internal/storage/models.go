package storage

// Chunk is a document segment with its embedding, as written to the store.
type Chunk struct {
	ID        string    // UUID
	SessionID string    // Owning session, recorded in the payload
	Index     int       // Ordinal position in the source document
	Text      string    // Chunk text content
	Embedding []float32 // Dimension-checked against the collection
}

// ScoredChunk is a search hit: chunk payload plus similarity score.
type ScoredChunk struct {
	Chunk Chunk
	Score float32
}
