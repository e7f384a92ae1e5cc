// Package textnorm cleans up text before it is handed to the speech
// tokenizer. LLM output tends to carry punctuation the TTS checkpoint
// rarely saw in training, so it is rewritten into plain forms.
package textnorm

import (
	"strings"
	"unicode"
)

// EmptyFallback is spoken when the caller provides no text at all.
const EmptyFallback = "You need to add some text for me to talk."

// Ordered replacement table. Order matters: the ellipsis rules must run
// before the single-colon rule.
var puncReplacements = []struct {
	old string
	new string
}{
	{"...", ", "},
	{"…", ", "},
	{":", ","},
	{" - ", ", "},
	{";", ", "},
	{"—", "-"},
	{"–", "-"},
	{" ,", ","},
	{"“", `"`},
	{"”", `"`},
	{"‘", "'"},
	{"’", "'"},
}

var sentenceEnders = map[string]struct{}{
	".": {}, "!": {}, "?": {}, "-": {}, ",": {},
}

// Normalize applies the deterministic punctuation cleanup: capitalize the
// first rune, collapse whitespace runs, rewrite uncommon punctuation, and
// make sure the text ends on a sentence boundary.
func Normalize(text string) string {
	if len(text) == 0 {
		return EmptyFallback
	}

	runes := []rune(text)
	if unicode.IsLower(runes[0]) {
		runes[0] = unicode.ToUpper(runes[0])
		text = string(runes)
	}

	text = strings.Join(strings.Fields(text), " ")

	for _, r := range puncReplacements {
		text = strings.ReplaceAll(text, r.old, r.new)
	}

	text = strings.TrimRight(text, " ")
	if !endsWithSentenceEnder(text) {
		text += "."
	}
	return text
}

func endsWithSentenceEnder(text string) bool {
	for p := range sentenceEnders {
		if strings.HasSuffix(text, p) {
			return true
		}
	}
	return false
}
