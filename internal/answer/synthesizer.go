// Package answer turns retrieved context and a question into a grounded
// response from the generation model.
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/docuquery/docuquery/internal/retriever"
)

// ErrLLMService is returned when the generation backend fails after retries.
var ErrLLMService = errors.New("language model service failure")

// maxAttempts bounds generation retries; transient failures beyond this are
// surfaced as ErrLLMService for the caller to degrade gracefully.
const maxAttempts = 3

const promptTemplate = `Use the following pieces of retrieved context to answer the question.
Answer using only the supplied context. If the context is empty or does not
contain the answer, just say that you don't know based on this document.
Keep the answer concise and professional.

Context:
%s

Question: %s

Answer:`

// emptyContext stands in for the context block when retrieval found nothing
// relevant, so the model is explicitly told there is nothing to ground on.
const emptyContext = "(no relevant passages were found in the document)"

// Completer invokes the language-generation capability once.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Synthesizer builds grounded prompts and invokes the generation model.
// No conversation history is threaded in: every question stands alone.
type Synthesizer struct {
	completer Completer
	logger    *slog.Logger
}

// NewSynthesizer creates a Synthesizer using the given completer.
func NewSynthesizer(completer Completer, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{completer: completer, logger: logger}
}

// Answer generates a response grounded strictly in the retrieved chunks.
// Transient generation failures are retried a bounded number of times, then
// surfaced as ErrLLMService rather than silently swallowed.
func (s *Synthesizer) Answer(ctx context.Context, question string, result retriever.Result) (string, error) {
	prompt := BuildPrompt(question, result)

	var answer string
	operation := func() error {
		text, err := s.completer.Complete(ctx, prompt)
		if err != nil {
			return err
		}
		answer = text
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, maxAttempts-1), ctx))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrLLMService, err)
	}

	s.logger.Debug("synthesized answer",
		"session_id", result.SessionID,
		"context_chunks", len(result.Chunks),
	)
	return answer, nil
}

// BuildPrompt assembles the grounded prompt for a question and its retrieved
// context. Chunks are joined in retrieval order; an empty result is made
// explicit so the model states uncertainty instead of fabricating.
func BuildPrompt(question string, result retriever.Result) string {
	contextBlock := emptyContext
	if !result.Empty() {
		parts := make([]string, len(result.Chunks))
		for i, chunk := range result.Chunks {
			parts[i] = chunk.Text
		}
		contextBlock = strings.Join(parts, "\n\n")
	}
	return fmt.Sprintf(promptTemplate, contextBlock, question)
}
