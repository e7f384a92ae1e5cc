package tts

import (
	"math/rand"
	"testing"
)

func TestPadTextTokens(t *testing.T) {
	got := padTextTokens([]int64{10, 11}, 255, 0)
	want := []int64{255, 10, 11, 0}
	if len(got) != len(want) {
		t.Fatalf("padded: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("padded: %v, want %v", got, want)
		}
	}
}

func TestCFGEmbRowsZeroesUnconditionalRow(t *testing.T) {
	got := cfgEmbRows([]float32{1, 2, 3})
	if len(got) != 6 {
		t.Fatalf("length: %d", len(got))
	}
	for i, want := range []float32{1, 2, 3, 0, 0, 0} {
		if got[i] != want {
			t.Fatalf("row batch: %v", got)
		}
	}
}

func TestRepeatRows(t *testing.T) {
	got := repeatRows([]int64{4, 5}, 2)
	want := []int64{4, 5, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("repeated: %v", got)
		}
	}
}

func TestMixCFG(t *testing.T) {
	cond := []float32{2, 4}
	uncond := []float32{1, 6}
	got := mixCFG(cond, uncond, 0.5)
	// cond + w*(cond-uncond): 2+0.5*1 = 2.5, 4+0.5*(-2) = 3.
	if got[0] != 2.5 || got[1] != 3 {
		t.Fatalf("mixed: %v", got)
	}
	// Zero weight returns the conditional logits untouched.
	got = mixCFG(cond, uncond, 0)
	if got[0] != 2 || got[1] != 4 {
		t.Fatalf("mixed at w=0: %v", got)
	}
}

func TestDropInvalidSpeechTokens(t *testing.T) {
	in := []int64{5, startSpeechToken, 100, stopSpeechToken, -1, speechVocabSize - 1}
	got := dropInvalidSpeechTokens(in)
	want := []int64{5, 100, speechVocabSize - 1}
	if len(got) != len(want) {
		t.Fatalf("filtered: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("filtered: %v, want %v", got, want)
		}
	}
}

func TestSampleTokenArgmaxAtZeroTemperature(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	logits := []float32{0.1, 3.0, -2.0, 2.9}
	if got := sampleToken(logits, 0, 0.95, rng); got != 1 {
		t.Fatalf("argmax: %d", got)
	}
}

func TestSampleTokenDeterministicPerSeed(t *testing.T) {
	logits := []float32{1, 2, 3, 4, 2, 1}
	a := sampleToken(logits, 0.8, 0.95, rand.New(rand.NewSource(123)))
	b := sampleToken(logits, 0.8, 0.95, rand.New(rand.NewSource(123)))
	if a != b {
		t.Fatalf("same seed diverged: %d vs %d", a, b)
	}
}

func TestSampleTokenRespectsTopP(t *testing.T) {
	// One token holds nearly all the probability mass; a tight top-p
	// must always pick it.
	logits := []float32{20, 0, 0, 0}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		if got := sampleToken(logits, 1.0, 0.5, rng); got != 0 {
			t.Fatalf("top-p leaked to token %d", got)
		}
	}
}

func TestGenOptionsDefaults(t *testing.T) {
	o := GenOptions{}.withDefaults()
	if o.Temperature != 0.8 || o.TopP != 0.95 {
		t.Fatalf("sampling defaults: %+v", o)
	}
	if o.MaxNewTokens != defaultMaxNewTokens || o.Seed != defaultSeed {
		t.Fatalf("loop defaults: %+v", o)
	}
	// Explicit values survive.
	o = GenOptions{Temperature: 0.3, MaxNewTokens: 10}.withDefaults()
	if o.Temperature != 0.3 || o.MaxNewTokens != 10 {
		t.Fatalf("explicit values clobbered: %+v", o)
	}
}

func TestTruncate(t *testing.T) {
	in := []float32{1, 2, 3, 4}
	if got := truncate(in, 2); len(got) != 2 {
		t.Fatalf("truncated: %v", got)
	}
	if got := truncate(in, 10); len(got) != 4 {
		t.Fatalf("short input truncated: %v", got)
	}
}
