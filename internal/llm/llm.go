// Package llm wraps the language-model runtimes behind one small
// interface: an in-process llama.cpp binding and an OpenAI-compatible
// llama-server endpoint.
package llm

import (
	"context"

	"barevox/internal/chat"
)

// Options are the per-call sampling parameters. A negative Seed leaves
// sampling unseeded.
type Options struct {
	MaxTokens     int
	Temperature   float64
	TopP          float64
	TopK          int
	RepeatPenalty float64
	Seed          int
}

// StreamFunc receives each generated token as it is produced.
type StreamFunc func(token string)

// Engine generates a completion for a conversation transcript, streaming
// tokens through fn, and returns the full response.
type Engine interface {
	Complete(ctx context.Context, msgs []chat.Message, opts Options, fn StreamFunc) (string, error)
	Close() error
}
