// Package main runs the docuquery HTTP API.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/docuquery/docuquery/internal/answer"
	"github.com/docuquery/docuquery/internal/api"
	"github.com/docuquery/docuquery/internal/chunker"
	"github.com/docuquery/docuquery/internal/config"
	"github.com/docuquery/docuquery/internal/embedding"
	"github.com/docuquery/docuquery/internal/ingest"
	"github.com/docuquery/docuquery/internal/pdf"
	"github.com/docuquery/docuquery/internal/retriever"
	"github.com/docuquery/docuquery/internal/session"
	"github.com/docuquery/docuquery/internal/storage"
)

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := run(*configPath, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	store, err := storage.NewQdrantStore(cfg.Qdrant.Host, cfg.Qdrant.Port, embedding.Dimension, cfg.Qdrant.Timeout)
	if err != nil {
		return err
	}
	defer store.Close()

	limiter, err := embedding.NewLimiter(cfg.Embedding.RateCeiling, cfg.Embedding.RateWindow, cfg.Embedding.MaxWait)
	if err != nil {
		return err
	}

	client, err := embedding.NewClient(cfg.Embedding.APIKey)
	if err != nil {
		return err
	}
	embedder := embedding.NewEmbedder(client, limiter, cfg.Embedding.BatchSize, cfg.Embedding.Timeout)

	splitter, err := chunker.NewSplitter(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return err
	}

	sessions := session.NewManager()
	pipeline := ingest.NewPipeline(pdf.NewExtractor(), splitter, embedder, store, sessions, logger)
	ret := retriever.New(embedder, store, sessions, cfg.Retrieval.TopK, cfg.Retrieval.MinScore, logger)
	completer := answer.NewOpenAICompleter(client.Client(), cfg.Answer.Model, cfg.Answer.Timeout)
	synth := answer.NewSynthesizer(completer, logger)

	server, err := api.NewServer(pipeline, ret, synth, store, api.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		MaxFileBytes: cfg.Upload.MaxFileBytes,
	}, logger)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
