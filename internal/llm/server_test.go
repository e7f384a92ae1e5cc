package llm

import (
	"testing"

	"barevox/internal/chat"
)

func TestNewServerRequiresURL(t *testing.T) {
	if _, err := NewServer("", "m"); err == nil {
		t.Fatalf("expected error when base URL missing")
	}
}

func TestNewServerStoresFields(t *testing.T) {
	e, err := NewServer("http://127.0.0.1:8081/v1", "")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if e.BaseURL() != "http://127.0.0.1:8081/v1" {
		t.Fatalf("baseURL mismatch")
	}
	if e.model != "default" {
		t.Fatalf("empty model should default, got %q", e.model)
	}
}

func TestChatParamsSeedOnlyWhenChosen(t *testing.T) {
	msgs := []chat.Message{{Role: chat.RoleUser, Content: "u"}}

	// Unseeded requests must not pin the server's sampler.
	params := newChatParams("m", msgs, Options{Seed: -1})
	if params.Seed.Valid() {
		t.Fatalf("seed sent for unseeded request: %+v", params.Seed)
	}

	// An explicit seed, including zero, goes through.
	params = newChatParams("m", msgs, Options{Seed: 0})
	if !params.Seed.Valid() || params.Seed.Value != 0 {
		t.Fatalf("zero seed not sent: %+v", params.Seed)
	}
	params = newChatParams("m", msgs, Options{Seed: 42})
	if !params.Seed.Valid() || params.Seed.Value != 42 {
		t.Fatalf("seed not sent: %+v", params.Seed)
	}
}

func TestChatParamsSkipsUnsetSampling(t *testing.T) {
	msgs := []chat.Message{{Role: chat.RoleUser, Content: "u"}}
	params := newChatParams("m", msgs, Options{Seed: -1})
	if params.MaxTokens.Valid() || params.Temperature.Valid() || params.TopP.Valid() {
		t.Fatalf("zero-valued sampling options should be omitted: %+v", params)
	}
}

func TestToSDKMessagesKeepsOrder(t *testing.T) {
	msgs := []chat.Message{
		{Role: chat.RoleSystem, Content: "s"},
		{Role: chat.RoleUser, Content: "u"},
		{Role: chat.RoleAssistant, Content: "a"},
	}
	got := toSDKMessages(msgs)
	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got))
	}
	if got[0].OfSystem == nil || got[1].OfUser == nil || got[2].OfAssistant == nil {
		t.Fatalf("role mapping wrong: %+v", got)
	}
}
