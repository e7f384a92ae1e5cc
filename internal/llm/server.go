package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"barevox/internal/chat"
)

// ServerEngine talks to a running llama-server (or any OpenAI-compatible
// endpoint) instead of loading the model in-process.
type ServerEngine struct {
	baseURL string
	model   string
	sdk     openai.Client
}

// NewServer constructs a client for the endpoint at baseURL. The model
// name is whatever the server advertises; llama-server accepts any
// string and serves its single loaded model.
func NewServer(baseURL, model string) (*ServerEngine, error) {
	if baseURL == "" {
		return nil, errors.New("server URL is required")
	}
	if model == "" {
		model = "default"
	}
	sdk := openai.NewClient(
		option.WithBaseURL(baseURL),
		// llama-server ignores auth but the SDK requires a key.
		option.WithAPIKey("none"),
	)
	return &ServerEngine{baseURL: baseURL, model: model, sdk: sdk}, nil
}

// BaseURL returns the configured endpoint.
func (e *ServerEngine) BaseURL() string { return e.baseURL }

// Complete streams a chat completion from the server.
func (e *ServerEngine) Complete(ctx context.Context, msgs []chat.Message, opts Options, fn StreamFunc) (string, error) {
	stream := e.sdk.Chat.Completions.NewStreaming(ctx, newChatParams(e.model, msgs, opts))
	var out []byte
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		out = append(out, delta...)
		if fn != nil {
			fn(delta)
		}
	}
	if err := stream.Err(); err != nil {
		return string(out), fmt.Errorf("chat completion stream: %w", err)
	}
	return string(out), nil
}

func (e *ServerEngine) Close() error { return nil }

// newChatParams maps sampling options onto the request. A negative seed
// means "unseeded": llama-server pins its sampler to any explicit seed,
// including zero, so the field is only sent when the caller chose one.
func newChatParams(model string, msgs []chat.Message, opts Options) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: toSDKMessages(msgs),
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}
	if opts.Temperature > 0 {
		params.Temperature = openai.Float(opts.Temperature)
	}
	if opts.TopP > 0 {
		params.TopP = openai.Float(opts.TopP)
	}
	if opts.Seed >= 0 {
		params.Seed = openai.Int(int64(opts.Seed))
	}
	return params
}

// toSDKMessages maps the session transcript onto the SDK's message union.
func toSDKMessages(msgs []chat.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case chat.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case chat.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
