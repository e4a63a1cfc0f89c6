package answer

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
)

// DefaultModel is the chat model used for answer synthesis.
const DefaultModel = openai.ChatModelGPT4oMini

// OpenAICompleter invokes OpenAI chat completions for answer synthesis.
type OpenAICompleter struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAICompleter creates a completer using the shared OpenAI client.
// If model is empty, DefaultModel is used. A non-zero timeout bounds each
// generation call.
func NewOpenAICompleter(client *openai.Client, model string, timeout time.Duration) *OpenAICompleter {
	if model == "" {
		model = DefaultModel
	}
	return &OpenAICompleter{client: client, model: model, timeout: timeout}
}

// Complete sends one chat completion request and returns the response text.
func (c *OpenAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: c.model,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
