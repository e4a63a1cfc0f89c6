// Package api exposes the upload and chat endpoints over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/docuquery/docuquery/internal/ingest"
	"github.com/docuquery/docuquery/internal/retriever"
)

// Ingestor runs document ingestion for one upload.
type Ingestor interface {
	Ingest(ctx context.Context, sessionID string, pdfData []byte) (*ingest.Result, error)
}

// Retriever fetches grounded context for a question.
type Retriever interface {
	Retrieve(ctx context.Context, sessionID, question string) (retriever.Result, error)
}

// Synthesizer produces the final answer from retrieved context.
type Synthesizer interface {
	Answer(ctx context.Context, question string, result retriever.Result) (string, error)
}

// HealthChecker reports downstream storage health.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Config holds HTTP server configuration.
type Config struct {
	Host         string
	Port         int
	MaxFileBytes int64
}

// Server wires the pipeline components behind the REST API.
type Server struct {
	echo        *echo.Echo
	ingestor    Ingestor
	retriever   Retriever
	synthesizer Synthesizer
	health      HealthChecker
	logger      *slog.Logger
	cfg         Config
}

// NewServer creates the HTTP server. All dependencies are required except
// the logger, which defaults to slog.Default().
func NewServer(ingestor Ingestor, ret Retriever, synth Synthesizer, health HealthChecker, cfg Config, logger *slog.Logger) (*Server, error) {
	if ingestor == nil || ret == nil || synth == nil || health == nil {
		return nil, fmt.Errorf("all pipeline components are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Errors echo raises itself (unknown routes, body limit) must come back
	// in the same {"detail": ...} shape as handler failures.
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		detail := "internal error"
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			code = httpErr.Code
			detail = fmt.Sprintf("%v", httpErr.Message)
		}
		if jsonErr := c.JSON(code, ErrorResponse{Detail: detail}); jsonErr != nil {
			logger.Error("error response failed", "error", jsonErr)
		}
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	// Headroom over the document limit for multipart framing; the precise
	// per-file check happens in the upload handler.
	e.Use(middleware.BodyLimit(fmt.Sprintf("%d", cfg.MaxFileBytes+1<<20)))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info("http request",
				"method", c.Request().Method,
				"uri", c.Request().RequestURI,
				"status", c.Response().Status,
				"duration", time.Since(start),
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			)
			return err
		}
	})

	s := &Server{
		echo:        e,
		ingestor:    ingestor,
		retriever:   ret,
		synthesizer: synth,
		health:      health,
		logger:      logger,
		cfg:         cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.POST("/upload", s.handleUpload)
	s.echo.POST("/chat", s.handleChat)
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.logger.Info("starting http server", "addr", addr)
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Echo exposes the underlying router for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
