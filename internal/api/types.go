package api

// UploadResponse is the response body for POST /upload.
type UploadResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
	Chunks    int    `json:"chunks"`
}

// ChatRequest is the request body for POST /chat.
type ChatRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
}

// ChatResponse is the response body for POST /chat.
type ChatResponse struct {
	Answer    string `json:"answer"`
	SessionID string `json:"session_id"`
}

// ErrorResponse carries an actionable failure reason to the client.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}
