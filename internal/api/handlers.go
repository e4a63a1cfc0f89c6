package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// handleHealth reports downstream storage health.
func (s *Server) handleHealth(c echo.Context) error {
	if err := s.health.Health(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "degraded"})
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleUpload accepts a PDF and a client-supplied session id, runs the
// ingestion pipeline, and reports the resulting session status.
func (s *Server) handleUpload(c echo.Context) error {
	sessionID := c.FormValue("session_id")
	if sessionID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Detail: "session_id form field is required"})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Detail: "file form field is required"})
	}
	if err := s.validateUpload(fileHeader); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Detail: err.Error()})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Detail: "could not read uploaded file"})
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxFileBytes+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Detail: "could not read uploaded file"})
	}
	if int64(len(data)) > s.cfg.MaxFileBytes {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Detail: uploadTooLargeDetail(s.cfg.MaxFileBytes)})
	}

	result, err := s.ingestor.Ingest(c.Request().Context(), sessionID, data)
	if err != nil {
		s.logger.Warn("upload failed", "session_id", sessionID, "error", err)
		return c.JSON(errorStatus(err), ErrorResponse{Detail: errorDetail(err)})
	}

	return c.JSON(http.StatusOK, UploadResponse{
		Status:    "ready",
		SessionID: result.SessionID,
		Chunks:    result.Chunks,
	})
}

// handleChat answers a question grounded in one session's document.
func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Detail: "invalid request body"})
	}
	if strings.TrimSpace(req.Question) == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Detail: "question is required"})
	}
	if req.SessionID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Detail: "session_id is required"})
	}

	ctx := c.Request().Context()

	result, err := s.retriever.Retrieve(ctx, req.SessionID, req.Question)
	if err != nil {
		s.logger.Warn("retrieval failed", "session_id", req.SessionID, "error", err)
		return c.JSON(errorStatus(err), ErrorResponse{Detail: errorDetail(err)})
	}

	text, err := s.synthesizer.Answer(ctx, req.Question, result)
	if err != nil {
		s.logger.Warn("synthesis failed", "session_id", req.SessionID, "error", err)
		return c.JSON(errorStatus(err), ErrorResponse{Detail: errorDetail(err)})
	}

	return c.JSON(http.StatusOK, ChatResponse{Answer: text, SessionID: req.SessionID})
}

// validateUpload checks the upload's declared shape before any bytes are
// processed: PDF only, within the size limit.
func (s *Server) validateUpload(fh *multipart.FileHeader) error {
	if fh.Size > s.cfg.MaxFileBytes {
		return errTooLarge{limit: s.cfg.MaxFileBytes}
	}

	contentType := fh.Header.Get("Content-Type")
	if !strings.HasSuffix(strings.ToLower(fh.Filename), ".pdf") && contentType != "application/pdf" {
		return errNotPDF{}
	}
	return nil
}

type errTooLarge struct{ limit int64 }

func (e errTooLarge) Error() string { return uploadTooLargeDetail(e.limit) }

type errNotPDF struct{}

func (errNotPDF) Error() string {
	return "invalid file type - only PDF documents are accepted"
}

func uploadTooLargeDetail(limit int64) string {
	return fmt.Sprintf("file exceeds the upload limit of %.1fMB", float64(limit)/(1<<20))
}
