package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"barevox/internal/chat"
	cfgpkg "barevox/internal/config"
	"barevox/internal/llm"
	"barevox/internal/paths"
)

var newChatEngine = func(cfg cfgpkg.Config) (llm.Engine, error) {
	if cfg.ServerURL != "" {
		return llm.NewServer(cfg.ServerURL, cfg.Model)
	}
	modelPath := paths.ResolveModel(paths.ModelsDir(cfg.ModelsDir), cfg.Model)
	return llm.NewLocal(modelPath, llm.LoadConfig{
		CtxSize:   cfg.CtxSize,
		Threads:   cfg.Threads,
		GPULayers: cfg.GPULayers,
	})
}

// barevox chat
func cmdChat(args []string) error {
	var cf commonFlags
	var model, server, system, prompt stringFlag
	var ctxSize, threads, maxTokens, seed intFlag
	var temperature floatFlag
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	addCommonFlags(fs, &cf)
	fs.Var(&model, "model", "GGUF model file (name under models dir, or a path)")
	fs.Var(&server, "server", "OpenAI-compatible server URL instead of in-process model")
	fs.Var(&system, "system", "System prompt")
	fs.Var(&prompt, "prompt", "One-shot prompt; answer and exit instead of the REPL")
	fs.Var(&ctxSize, "ctx", "Context window size in tokens")
	fs.Var(&threads, "threads", "Inference threads")
	fs.Var(&maxTokens, "max-tokens", "Max tokens per response")
	fs.Var(&temperature, "temperature", "Sampling temperature")
	fs.Var(&seed, "seed", "Sampling seed; unseeded when omitted")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	setupLogger(cf.logLevel)

	var flagOv cfgpkg.Overrides
	if model.set {
		flagOv.Model = &model.v
	}
	if server.set {
		flagOv.ServerURL = &server.v
	}
	if ctxSize.set {
		flagOv.CtxSize = &ctxSize.v
	}
	if threads.set {
		flagOv.Threads = &threads.v
	}
	cfg, err := loadMergedConfig(cf, flagOv)
	if err != nil {
		return err
	}
	if system.set {
		cfg.SystemPrompt = system.v
	}
	if maxTokens.set {
		cfg.MaxTokens = maxTokens.v
	}
	if temperature.set {
		cfg.Temperature = temperature.v
	}
	if err := cfgpkg.ValidateForChat(cfg); err != nil {
		return err
	}

	engine, err := newChatEngine(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := engine.Close(); cerr != nil {
			slog.Warn("failed to close engine", "err", cerr)
		}
	}()

	session := chat.NewSession(cfg.SystemPrompt, cfg.CtxSize-cfg.MaxTokens)
	opts := llm.Options{
		MaxTokens:     cfg.MaxTokens,
		Temperature:   cfg.Temperature,
		TopP:          cfg.TopP,
		TopK:          cfg.TopK,
		RepeatPenalty: cfg.RepeatPenalty,
		Seed:          -1,
	}
	if seed.set {
		opts.Seed = seed.v
	}
	ctx := context.Background()

	if prompt.set {
		return oneTurn(ctx, engine, session, opts, prompt.v, os.Stdout)
	}
	return repl(ctx, engine, session, opts, os.Stdin, os.Stdout)
}

func oneTurn(ctx context.Context, engine llm.Engine, session *chat.Session, opts llm.Options, input string, out io.Writer) error {
	session.Append(chat.RoleUser, input)
	reply, err := engine.Complete(ctx, session.Messages(), opts, func(token string) {
		fmt.Fprint(out, token)
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	session.Append(chat.RoleAssistant, strings.TrimSpace(reply))
	return nil
}

// repl reads user turns until EOF or "exit".
func repl(ctx context.Context, engine llm.Engine, session *chat.Session, opts llm.Options, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, `Type "exit" to quit.`)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "exit") {
			return nil
		}
		if err := oneTurn(ctx, engine, session, opts, line, out); err != nil {
			return err
		}
	}
}
