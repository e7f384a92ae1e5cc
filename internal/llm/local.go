package llm

import (
	"context"
	"errors"
	"fmt"
	"os"

	llama "github.com/tcpipuk/llama-go"

	"barevox/internal/chat"
)

// LoadConfig carries the model-load parameters for the in-process runtime.
type LoadConfig struct {
	CtxSize   int
	Threads   int
	GPULayers int
}

// LocalEngine runs a GGUF model in-process through the llama.cpp binding.
type LocalEngine struct {
	model *llama.Model
	lctx  *llama.Context
	path  string
}

// NewLocal loads the GGUF checkpoint at path. The file must exist; the
// binding's own error for a bad path is unhelpfully terse.
func NewLocal(path string, cfg LoadConfig) (*LocalEngine, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("model file not found: %s: %w", path, err)
	}
	model, err := llama.LoadModel(path,
		llama.WithGPULayers(cfg.GPULayers),
		llama.WithMMap(true),
	)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	lctx, err := model.NewContext(
		llama.WithContext(cfg.CtxSize),
		llama.WithThreads(cfg.Threads),
		llama.WithF16Memory(),
	)
	if err != nil {
		_ = model.Close()
		return nil, fmt.Errorf("load model: %w", err)
	}
	return &LocalEngine{model: model, lctx: lctx, path: path}, nil
}

// Path returns the loaded checkpoint path.
func (e *LocalEngine) Path() string { return e.path }

// Complete renders the transcript into a prompt and streams the
// completion. Generation stops at the next role marker so the model does
// not talk to itself.
func (e *LocalEngine) Complete(ctx context.Context, msgs []chat.Message, opts Options, fn StreamFunc) (string, error) {
	prompt := chat.Transcript(msgs)

	var out []byte
	canceled := false
	err := e.lctx.GenerateStream(prompt,
		func(token string) bool {
			select {
			case <-ctx.Done():
				canceled = true
				return false
			default:
			}
			out = append(out, token...)
			if fn != nil {
				fn(token)
			}
			return true
		},
		// The binding exposes no repeat-penalty or seed knobs; those
		// options only apply to the server engine.
		llama.WithMaxTokens(opts.MaxTokens),
		llama.WithTemperature(float32(opts.Temperature)),
		llama.WithTopP(float32(opts.TopP)),
		llama.WithTopK(opts.TopK),
		llama.WithStopWords("User:", "System:"),
	)
	if canceled {
		return string(out), ctx.Err()
	}
	if err != nil {
		return string(out), fmt.Errorf("generate: %w", err)
	}
	return string(out), nil
}

func (e *LocalEngine) Close() error {
	if e.model == nil {
		return errors.New("model already closed")
	}
	if e.lctx != nil {
		_ = e.lctx.Close()
		e.lctx = nil
	}
	_ = e.model.Close()
	e.model = nil
	return nil
}
