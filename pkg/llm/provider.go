package llm

import (
	"context"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

// StreamDelta is one fragment of a streamed completion. Exactly one
// terminal delta is emitted per stream: Done=true on success, or Err set
// on failure. No further deltas follow a terminal one.
type StreamDelta struct {
	Content string
	Done    bool
	Err     error
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// LLMProvider defines the contract for any LLM backend
type LLMProvider interface {
	// Chat sends a chat history to the model and returns the full response
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// ChatStream sends a chat history and returns a lazy, finite,
	// non-restartable sequence of deltas. The channel is closed after the
	// terminal delta. Callers accumulate fragments themselves.
	ChatStream(ctx context.Context, history []Message, options ...Option) (<-chan StreamDelta, error)

	// Generate sends a single prompt to the model (convenience method)
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)

	// Name identifies the backend for logging
	Name() string
}
