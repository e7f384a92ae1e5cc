package tts

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/gomlx/go-huggingface/tokenizers/api"
)

// Special token strings used by the text tokenizer vocabulary.
const (
	tokStart   = "[START]"
	tokStop    = "[STOP]"
	tokSpace   = "[SPACE]"
	tokUnknown = "[UNK]"
)

// Tokenizer maps text to the integer ids the speech transformer was
// trained on. The vocabulary comes from a standard tokenizer.json;
// encoding is greedy longest-match, which is what the checkpoint's
// character-level vocabulary expects.
type Tokenizer struct {
	vocab    map[string]int
	ids      map[int]string
	maxToken int // longest vocab entry, in bytes
}

var _ api.Tokenizer = (*Tokenizer)(nil)

type tokenizerFile struct {
	Model struct {
		Vocab map[string]int `json:"vocab"`
	} `json:"model"`
	AddedTokens []struct {
		ID      int    `json:"id"`
		Content string `json:"content"`
	} `json:"added_tokens"`
}

// LoadTokenizer reads a tokenizer.json file.
func LoadTokenizer(path string) (*Tokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tf tokenizerFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse tokenizer %s: %w", path, err)
	}
	if len(tf.Model.Vocab) == 0 {
		return nil, fmt.Errorf("tokenizer %s: empty vocabulary", path)
	}

	t := &Tokenizer{
		vocab: make(map[string]int, len(tf.Model.Vocab)),
		ids:   make(map[int]string, len(tf.Model.Vocab)),
	}
	for tok, id := range tf.Model.Vocab {
		t.add(tok, id)
	}
	for _, at := range tf.AddedTokens {
		t.add(at.Content, at.ID)
	}
	return t, nil
}

func (t *Tokenizer) add(tok string, id int) {
	t.vocab[tok] = id
	t.ids[id] = tok
	if len(tok) > t.maxToken {
		t.maxToken = len(tok)
	}
}

// Encode converts text to token ids with greedy longest-match. Spaces
// map to the dedicated [SPACE] token; characters outside the vocabulary
// fall back to [UNK], or are dropped if the vocabulary has no [UNK].
func (t *Tokenizer) Encode(text string) []int {
	text = strings.ReplaceAll(text, " ", tokSpace)
	unk, hasUnk := t.vocab[tokUnknown]

	var out []int
	for i := 0; i < len(text); {
		end := i + t.maxToken
		if end > len(text) {
			end = len(text)
		}
		matched := false
		for j := end; j > i; j-- {
			if id, ok := t.vocab[text[i:j]]; ok {
				out = append(out, id)
				i = j
				matched = true
				break
			}
		}
		if !matched {
			if hasUnk {
				out = append(out, unk)
			}
			// Skip one full rune, not one byte.
			_, size := utf8.DecodeRuneInString(text[i:])
			i += size
		}
	}
	return out
}

// Decode converts token ids back to text, dropping control tokens.
func (t *Tokenizer) Decode(ids []int) string {
	var sb strings.Builder
	for _, id := range ids {
		tok, ok := t.ids[id]
		if !ok {
			continue
		}
		switch tok {
		case tokStart, tokStop, tokUnknown:
		case tokSpace:
			sb.WriteByte(' ')
		default:
			sb.WriteString(tok)
		}
	}
	return sb.String()
}

// SpecialTokenID reports the id of a registered special token.
func (t *Tokenizer) SpecialTokenID(token api.SpecialToken) (int, error) {
	var name string
	switch token {
	case api.TokBeginningOfSentence:
		name = tokStart
	case api.TokEndOfSentence:
		name = tokStop
	case api.TokUnknown:
		name = tokUnknown
	default:
		return 0, fmt.Errorf("special token %v not registered", token)
	}
	id, ok := t.vocab[name]
	if !ok {
		return 0, fmt.Errorf("vocabulary has no %s token", name)
	}
	return id, nil
}

// VocabSize reports the number of distinct token ids.
func (t *Tokenizer) VocabSize() int { return len(t.ids) }
