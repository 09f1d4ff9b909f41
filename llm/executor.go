// Package llm defines the engine's LLM boundary: a PromptExecutor the
// graph delegates to, and a Session carrying one run's conversation.
//
// Message and tool types are the langchaingo llms types, so any
// llms.Model implementation (OpenAI, Anthropic, Ollama, ...) can sit
// behind the boundary without the engine knowing its wire format.
package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
)

// StreamChunk is one element of a streaming response. A non-nil Err
// terminates the stream.
type StreamChunk struct {
	Content string
	Err     error
}

// PromptExecutor executes prompts against a model. Implementations own
// retries and provider-specific behavior; the engine calls these
// methods at its LLM suspension points and does nothing else.
type PromptExecutor interface {
	// Execute sends the prompt and returns the response messages.
	Execute(ctx context.Context, prompt []llms.MessageContent, model string, tools []llms.Tool) ([]llms.MessageContent, error)

	// ExecuteStreaming sends the prompt and returns a finite stream of
	// text chunks. The channel is closed when the response completes;
	// the stream is not restartable.
	ExecuteStreaming(ctx context.Context, prompt []llms.MessageContent, model string) <-chan StreamChunk
}

// ModelExecutor adapts a langchaingo llms.Model to PromptExecutor.
type ModelExecutor struct {
	model llms.Model
}

var _ PromptExecutor = (*ModelExecutor)(nil)

// NewModelExecutor wraps the given model.
func NewModelExecutor(model llms.Model) *ModelExecutor {
	return &ModelExecutor{model: model}
}

// Execute calls the model, offering the given tools when non-empty.
func (e *ModelExecutor) Execute(ctx context.Context, prompt []llms.MessageContent, model string, tools []llms.Tool) ([]llms.MessageContent, error) {
	opts := []llms.CallOption{}
	if model != "" {
		opts = append(opts, llms.WithModel(model))
	}
	if len(tools) > 0 {
		opts = append(opts, llms.WithTools(tools))
	}

	resp, err := e.model.GenerateContent(ctx, prompt, opts...)
	if err != nil {
		return nil, fmt.Errorf("llm call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("llm call returned no choices")
	}

	choice := resp.Choices[0]
	msg := llms.MessageContent{Role: llms.ChatMessageTypeAI}
	if choice.Content != "" {
		msg.Parts = append(msg.Parts, llms.TextPart(choice.Content))
	}
	for _, tc := range choice.ToolCalls {
		msg.Parts = append(msg.Parts, tc)
	}
	return []llms.MessageContent{msg}, nil
}

// ExecuteStreaming calls the model with a streaming callback and
// forwards each chunk on the returned channel.
func (e *ModelExecutor) ExecuteStreaming(ctx context.Context, prompt []llms.MessageContent, model string) <-chan StreamChunk {
	out := make(chan StreamChunk)

	go func() {
		defer close(out)

		opts := []llms.CallOption{
			llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
				select {
				case out <- StreamChunk{Content: string(chunk)}:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			}),
		}
		if model != "" {
			opts = append(opts, llms.WithModel(model))
		}

		if _, err := e.model.GenerateContent(ctx, prompt, opts...); err != nil {
			select {
			case out <- StreamChunk{Err: fmt.Errorf("llm streaming call failed: %w", err)}:
			case <-ctx.Done():
			}
		}
	}()

	return out
}
