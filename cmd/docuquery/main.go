// Package main provides the docuquery CLI for uploading documents and asking
// questions against a running docuquery server.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/docuquery/docuquery/internal/api"
)

var (
	serverAddr string
	sessionID  string
)

var rootCmd = &cobra.Command{
	Use:   "docuquery",
	Short: "Ask questions about your PDF documents",
	Long:  "CLI client for a docuquery server: upload a PDF into a session, then ask questions grounded in that document.",
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.pdf>",
	Short: "Upload a PDF document into a session",
	Long: `Uploads a PDF to the server, which extracts its text, chunks it,
generates embeddings, and indexes them under the session.

Without --session a fresh session id is generated and printed; pass it to
ask. A session id must be fresh; one session holds exactly one document.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about an ingested document",
	Long: `Asks a question against the document previously ingested under the
given session. The answer is grounded only in that document's content.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "http://localhost:8080", "docuquery server address")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "", "session id (generated for ingest when absent, required for ask)")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(askCmd)
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	sid := ensureSessionID(sessionID)
	path := args[0]

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("session_id", sid); err != nil {
		return err
	}
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	start := time.Now()
	fmt.Printf("Uploading %s (%d bytes)...\n", filepath.Base(path), len(data))

	resp, err := httpClient().Post(serverAddr+"/upload", w.FormDataContentType(), &body)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return serverError(resp)
	}

	var result api.UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	fmt.Println()
	fmt.Println("Document ready.")
	fmt.Printf("  Session:  %s\n", result.SessionID)
	fmt.Printf("  Chunks:   %d\n", result.Chunks)
	fmt.Printf("  Duration: %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	if sessionID == "" {
		return fmt.Errorf("--session is required")
	}
	question := strings.Join(args, " ")

	payload, err := json.Marshal(api.ChatRequest{Question: question, SessionID: sessionID})
	if err != nil {
		return err
	}

	resp, err := httpClient().Post(serverAddr+"/chat", "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("chat failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return serverError(resp)
	}

	var result api.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	fmt.Println(result.Answer)
	return nil
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 5 * time.Minute}
}

// ensureSessionID returns the given id, or a fresh one when none was passed.
func ensureSessionID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

// serverError turns a non-200 response into a readable error.
func serverError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var errResp api.ErrorResponse
	if err := json.Unmarshal(raw, &errResp); err == nil && errResp.Detail != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, errResp.Detail)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
}
