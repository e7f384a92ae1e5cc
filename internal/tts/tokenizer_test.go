package tts

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/go-huggingface/tokenizers/api"
)

func writeTestTokenizer(t *testing.T) string {
	t.Helper()
	tf := map[string]any{
		"model": map[string]any{
			"vocab": map[string]int{
				"[STOP]":  0,
				"[UNK]":   1,
				"[SPACE]": 2,
				"h":       3,
				"he":      4,
				"hello":   5,
				"l":       6,
				"o":       7,
				"[START]": 255,
			},
		},
	}
	data, err := json.Marshal(tf)
	if err != nil {
		t.Fatalf("marshal tokenizer: %v", err)
	}
	path := filepath.Join(t.TempDir(), "tokenizer.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write tokenizer: %v", err)
	}
	return path
}

func TestEncodeGreedyLongestMatch(t *testing.T) {
	tok, err := LoadTokenizer(writeTestTokenizer(t))
	if err != nil {
		t.Fatalf("LoadTokenizer: %v", err)
	}
	// "hello" must match as one token, not h+e+l+l+o.
	got := tok.Encode("hello")
	if len(got) != 1 || got[0] != 5 {
		t.Fatalf("Encode(hello) = %v", got)
	}
	// "hell" backs off to he + l + l.
	got = tok.Encode("hell")
	want := []int{4, 6, 6}
	if len(got) != len(want) {
		t.Fatalf("Encode(hell) = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Encode(hell) = %v, want %v", got, want)
		}
	}
}

func TestEncodeSpaceAndUnknown(t *testing.T) {
	tok, err := LoadTokenizer(writeTestTokenizer(t))
	if err != nil {
		t.Fatalf("LoadTokenizer: %v", err)
	}
	got := tok.Encode("h o")
	want := []int{3, 2, 7}
	if len(got) != len(want) {
		t.Fatalf("Encode(h o) = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Encode(h o) = %v, want %v", got, want)
		}
	}
	// "z" and the multibyte "é" are out of vocabulary: one [UNK] each.
	got = tok.Encode("zé")
	if len(got) != 2 || got[0] != 1 || got[1] != 1 {
		t.Fatalf("Encode(zé) = %v", got)
	}
}

func TestDecodeDropsControlTokens(t *testing.T) {
	tok, err := LoadTokenizer(writeTestTokenizer(t))
	if err != nil {
		t.Fatalf("LoadTokenizer: %v", err)
	}
	got := tok.Decode([]int{255, 5, 2, 7, 1, 0})
	if got != "hello o" {
		t.Fatalf("Decode = %q", got)
	}
}

func TestSpecialTokenIDs(t *testing.T) {
	tok, err := LoadTokenizer(writeTestTokenizer(t))
	if err != nil {
		t.Fatalf("LoadTokenizer: %v", err)
	}
	start, err := tok.SpecialTokenID(api.TokBeginningOfSentence)
	if err != nil || start != 255 {
		t.Fatalf("start token: %d, %v", start, err)
	}
	stop, err := tok.SpecialTokenID(api.TokEndOfSentence)
	if err != nil || stop != 0 {
		t.Fatalf("stop token: %d, %v", stop, err)
	}
	if _, err := tok.SpecialTokenID(api.TokMask); err == nil {
		t.Fatalf("expected error for unregistered special token")
	}
}
