// Package config provides configuration loading for docuquery.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Upload    UploadConfig    `koanf:"upload"`
	Chunking  ChunkingConfig  `koanf:"chunking"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	Qdrant    QdrantConfig    `koanf:"qdrant"`
	Retrieval RetrievalConfig `koanf:"retrieval"`
	Answer    AnswerConfig    `koanf:"answer"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// UploadConfig bounds accepted uploads.
type UploadConfig struct {
	MaxFileBytes int64 `koanf:"max_file_bytes"`
}

// ChunkingConfig controls document splitting.
type ChunkingConfig struct {
	Size    int `koanf:"size"`    // Maximum chunk length in characters
	Overlap int `koanf:"overlap"` // Characters shared between consecutive chunks
}

// EmbeddingConfig controls the embedding client and the global rate ceiling.
type EmbeddingConfig struct {
	APIKey      string        `koanf:"api_key"`      // Falls back to OPENAI_API_KEY
	BatchSize   int           `koanf:"batch_size"`   // Texts per embedding request
	RateCeiling int           `koanf:"rate_ceiling"` // Requests per window, shared across all sessions
	RateWindow  time.Duration `koanf:"rate_window"`
	MaxWait     time.Duration `koanf:"max_wait"` // Bound on blocking for rate capacity
	Timeout     time.Duration `koanf:"timeout"`  // Per outbound embedding call
}

// QdrantConfig contains vector store connection details.
type QdrantConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`    // gRPC port
	Timeout time.Duration `koanf:"timeout"` // Per individual store call
}

// RetrievalConfig controls the query side.
type RetrievalConfig struct {
	TopK     int     `koanf:"top_k"`
	MinScore float32 `koanf:"min_score"` // Relevance threshold; hits below it are dropped
}

// AnswerConfig controls answer synthesis.
type AnswerConfig struct {
	Model   string        `koanf:"model"`
	Timeout time.Duration `koanf:"timeout"` // Per generation call
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Upload.MaxFileBytes == 0 {
		cfg.Upload.MaxFileBytes = 5 << 20 // 5MB
	}
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = 1000
	}
	if cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Overlap = 200
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 100
	}
	if cfg.Embedding.RateCeiling == 0 {
		cfg.Embedding.RateCeiling = 100
	}
	if cfg.Embedding.RateWindow == 0 {
		cfg.Embedding.RateWindow = time.Minute
	}
	if cfg.Embedding.MaxWait == 0 {
		cfg.Embedding.MaxWait = 30 * time.Second
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 30 * time.Second
	}
	if cfg.Qdrant.Host == "" {
		cfg.Qdrant.Host = "localhost"
	}
	if cfg.Qdrant.Port == 0 {
		cfg.Qdrant.Port = 6334
	}
	if cfg.Qdrant.Timeout == 0 {
		cfg.Qdrant.Timeout = 15 * time.Second
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.Retrieval.MinScore == 0 {
		cfg.Retrieval.MinScore = 0.4
	}
	if cfg.Answer.Timeout == 0 {
		cfg.Answer.Timeout = 60 * time.Second
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	if c.Upload.MaxFileBytes <= 0 {
		return fmt.Errorf("max file bytes must be positive: %d", c.Upload.MaxFileBytes)
	}
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunk size must be positive: %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunk overlap must be in [0, size): %d", c.Chunking.Overlap)
	}
	if c.Embedding.RateCeiling <= 0 {
		return fmt.Errorf("embedding rate ceiling must be positive: %d", c.Embedding.RateCeiling)
	}
	if c.Embedding.RateWindow <= 0 {
		return fmt.Errorf("embedding rate window must be positive: %s", c.Embedding.RateWindow)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval top_k must be positive: %d", c.Retrieval.TopK)
	}
	if c.Retrieval.MinScore < 0 || c.Retrieval.MinScore > 1 {
		return fmt.Errorf("retrieval min_score must be in [0, 1]: %f", c.Retrieval.MinScore)
	}
	return nil
}
