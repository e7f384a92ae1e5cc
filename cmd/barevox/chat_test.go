package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"barevox/internal/chat"
	cfgpkg "barevox/internal/config"
	"barevox/internal/llm"
)

type fakeEngine struct {
	reply    string
	calls    int
	lastMsgs []chat.Message
	closed   bool
}

func (f *fakeEngine) Complete(ctx context.Context, msgs []chat.Message, opts llm.Options, fn llm.StreamFunc) (string, error) {
	f.calls++
	f.lastMsgs = msgs
	if fn != nil {
		fn(f.reply)
	}
	return f.reply, nil
}

func (f *fakeEngine) Close() error {
	f.closed = true
	return nil
}

func missingConfig(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "no-config.json")
}

func TestChatOneShot(t *testing.T) {
	orig := newChatEngine
	t.Cleanup(func() { newChatEngine = orig })

	fake := &fakeEngine{reply: "Hi there."}
	newChatEngine = func(cfg cfgpkg.Config) (llm.Engine, error) {
		return fake, nil
	}

	code := run([]string{"chat", "--model=m.gguf", "--prompt=hello", "--config", missingConfig(t)})
	if code != 0 {
		t.Fatalf("chat returned non-zero: %d", code)
	}
	if fake.calls != 1 {
		t.Fatalf("expected one completion, got %d", fake.calls)
	}
	if !fake.closed {
		t.Fatalf("engine was not closed")
	}
	last := fake.lastMsgs[len(fake.lastMsgs)-1]
	if last.Role != chat.RoleUser || last.Content != "hello" {
		t.Fatalf("unexpected final message: %+v", last)
	}
}

func TestChatRequiresModelOrServer(t *testing.T) {
	orig := newChatEngine
	t.Cleanup(func() { newChatEngine = orig })
	newChatEngine = func(cfg cfgpkg.Config) (llm.Engine, error) {
		t.Fatal("engine should not be constructed without a model")
		return nil, nil
	}
	if code := run([]string{"chat", "--prompt=hello", "--config", missingConfig(t)}); code == 0 {
		t.Fatalf("expected non-zero without a model or server")
	}
}

func TestReplExitsOnExit(t *testing.T) {
	fake := &fakeEngine{reply: "ok"}
	session := chat.NewSession("", 0)
	in := strings.NewReader("hello\nexit\n")
	var out bytes.Buffer

	if err := repl(context.Background(), fake, session, llm.Options{}, in, &out); err != nil {
		t.Fatalf("repl: %v", err)
	}
	if fake.calls != 1 {
		t.Fatalf("expected one turn before exit, got %d", fake.calls)
	}
	if !strings.Contains(out.String(), "ok") {
		t.Fatalf("reply not streamed to output: %q", out.String())
	}
}

func TestReplSkipsBlankLines(t *testing.T) {
	fake := &fakeEngine{reply: "ok"}
	session := chat.NewSession("", 0)
	in := strings.NewReader("\n   \nEXIT\n")
	var out bytes.Buffer

	if err := repl(context.Background(), fake, session, llm.Options{}, in, &out); err != nil {
		t.Fatalf("repl: %v", err)
	}
	if fake.calls != 0 {
		t.Fatalf("blank lines should not reach the engine, got %d calls", fake.calls)
	}
}
