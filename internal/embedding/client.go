// Package embedding converts text into fixed-dimension vectors under a
// process-wide request-rate ceiling.
package embedding

import (
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Client wraps the OpenAI client used for embeddings and chat completions.
type Client struct {
	client *openai.Client
}

// NewClient creates an OpenAI client. If apiKey is empty, OPENAI_API_KEY is
// read from the environment; an error is returned if neither is set.
func NewClient(apiKey string) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key not configured and OPENAI_API_KEY not set")
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Client{client: &client}, nil
}

// Client returns the underlying OpenAI client for use in other packages
// (e.g. answer synthesis).
func (c *Client) Client() *openai.Client {
	return c.client
}
