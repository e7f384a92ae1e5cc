// Package tts synthesizes speech in a cloned voice. A voice encoder
// turns a short reference clip into a speaker embedding, a speech
// transformer autoregressively generates discrete speech tokens from
// text under classifier-free guidance, and a vocoder renders those
// tokens to a waveform in the reference speaker's voice.
package tts

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gomlx/go-huggingface/tokenizers/api"
	ort "github.com/yalue/onnxruntime_go"

	"barevox/internal/audio"
	"barevox/internal/textnorm"
)

const (
	// S3SR is the sample rate the voice encoder consumes.
	S3SR = 16000
	// S3GenSR is the sample rate the vocoder produces.
	S3GenSR = 24000

	// EncCondLen and DecCondLen bound how much reference audio the
	// encoders see. Longer clips are truncated.
	EncCondLen = 6 * S3SR
	DecCondLen = 10 * S3GenSR

	speechVocabSize  = 6561
	startSpeechToken = 6561
	stopSpeechToken  = 6562

	defaultMaxNewTokens = 1000
	defaultSeed         = 123
)

// Graph file and tokenizer names expected under Config.AssetDir.
const (
	voiceEncoderGraph = "voice_encoder.onnx"
	refEncoderGraph   = "reference_encoder.onnx"
	t3StepGraph       = "t3_step.onnx"
	vocoderGraph      = "s3gen_decoder.onnx"
	tokenizerFileName = "tokenizer.json"
)

// BuiltinConditionals is the packaged fallback conditionals file used
// when no reference clip is supplied.
const BuiltinConditionals = "conds.safetensors"

// GraphAssets lists the files NewEngine expects under Config.AssetDir.
func GraphAssets() []string {
	return []string{tokenizerFileName, voiceEncoderGraph, refEncoderGraph, t3StepGraph, vocoderGraph}
}

var ortInit sync.Once

// InitRuntime loads the ONNX Runtime shared library and initializes its
// environment. Honors ONNXRUNTIME_LIB_PATH; falls back to the common
// install locations.
func InitRuntime() error {
	var err error
	ortInit.Do(func() {
		libPath := os.Getenv("ONNXRUNTIME_LIB_PATH")
		if libPath == "" {
			libPath = "/usr/local/lib/libonnxruntime.so"
			if _, statErr := os.Stat("/usr/local/lib/libonnxruntime.dylib"); statErr == nil {
				libPath = "/usr/local/lib/libonnxruntime.dylib"
			} else if _, statErr := os.Stat("/usr/lib/libonnxruntime.so"); statErr == nil {
				libPath = "/usr/lib/libonnxruntime.so"
			}
		}
		ort.SetSharedLibraryPath(libPath)
		if initErr := ort.InitializeEnvironment(); initErr != nil {
			err = fmt.Errorf("initialize onnxruntime (set ONNXRUNTIME_LIB_PATH?): %w", initErr)
		}
	})
	return err
}

// Config locates the assets an Engine needs. AssetDir holds the graph
// files and tokenizer; the weight paths are the converted safetensors
// checkpoints the graphs map their external data from.
type Config struct {
	AssetDir            string
	VoiceEncoderWeights string
	T3Weights           string
	S3GenWeights        string
}

// Engine runs the three-stage synthesis pipeline.
type Engine struct {
	tok      *Tokenizer
	voiceEnc *ort.DynamicAdvancedSession
	refEnc   *ort.DynamicAdvancedSession
	t3Step   *ort.DynamicAdvancedSession
	vocoder  *ort.DynamicAdvancedSession

	startTextToken int64
	stopTextToken  int64
}

// NewEngine loads the tokenizer and the four inference graphs.
func NewEngine(cfg Config) (*Engine, error) {
	for _, p := range []string{cfg.VoiceEncoderWeights, cfg.T3Weights, cfg.S3GenWeights} {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("weights not found: %s (run convert first): %w", p, err)
		}
	}
	if err := InitRuntime(); err != nil {
		return nil, err
	}

	tok, err := LoadTokenizer(filepath.Join(cfg.AssetDir, tokenizerFileName))
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	e := &Engine{tok: tok}
	if e.startTextToken, e.stopTextToken, err = textControlTokens(tok); err != nil {
		return nil, err
	}

	e.voiceEnc, err = ort.NewDynamicAdvancedSession(
		filepath.Join(cfg.AssetDir, voiceEncoderGraph),
		[]string{"ref_wav_16k"}, []string{"speaker_emb"}, nil)
	if err != nil {
		return nil, fmt.Errorf("load voice encoder: %w", err)
	}
	e.refEnc, err = ort.NewDynamicAdvancedSession(
		filepath.Join(cfg.AssetDir, refEncoderGraph),
		[]string{"ref_wav_24k", "ref_wav_16k"},
		[]string{"ref_emb", "ref_tokens", "prompt_tokens"}, nil)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("load reference encoder: %w", err)
	}
	e.t3Step, err = ort.NewDynamicAdvancedSession(
		filepath.Join(cfg.AssetDir, t3StepGraph),
		[]string{"text_tokens", "speech_tokens", "speaker_emb", "prompt_tokens", "exaggeration"},
		[]string{"logits"}, nil)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("load speech transformer: %w", err)
	}
	e.vocoder, err = ort.NewDynamicAdvancedSession(
		filepath.Join(cfg.AssetDir, vocoderGraph),
		[]string{"speech_tokens", "ref_emb", "ref_tokens"},
		[]string{"wav"}, nil)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("load vocoder: %w", err)
	}
	return e, nil
}

// Close releases the inference sessions.
func (e *Engine) Close() error {
	for _, s := range []*ort.DynamicAdvancedSession{e.voiceEnc, e.refEnc, e.t3Step, e.vocoder} {
		if s != nil {
			_ = s.Destroy()
		}
	}
	e.voiceEnc, e.refEnc, e.t3Step, e.vocoder = nil, nil, nil, nil
	return nil
}

// PrepareConditionals derives conditioning from a reference WAV. The
// clip is mixed to mono, resampled to each encoder's rate, and
// truncated to the conditioning windows.
func (e *Engine) PrepareConditionals(refWavPath string, exaggeration float32) (*Conditionals, error) {
	samples, sr, err := audio.ReadWAV(refWavPath)
	if err != nil {
		return nil, fmt.Errorf("read reference %s: %w", refWavPath, err)
	}
	ref16 := truncate(audio.Resample(samples, sr, S3SR), EncCondLen)
	ref24 := truncate(audio.Resample(samples, sr, S3GenSR), DecCondLen)

	emb, err := e.encodeSpeaker(ref16)
	if err != nil {
		return nil, err
	}
	refEmb, refTokens, promptTokens, err := e.encodeReference(ref24, ref16)
	if err != nil {
		return nil, err
	}
	return &Conditionals{
		SpeakerEmb:   emb,
		PromptTokens: promptTokens,
		RefEmb:       refEmb,
		RefTokens:    refTokens,
		Exaggeration: exaggeration,
	}, nil
}

// GenOptions tunes token generation.
type GenOptions struct {
	Temperature  float64
	TopP         float64
	CFGWeight    float64
	MaxNewTokens int
	Seed         int64
}

func (o GenOptions) withDefaults() GenOptions {
	if o.Temperature == 0 {
		o.Temperature = 0.8
	}
	if o.TopP == 0 {
		o.TopP = 0.95
	}
	if o.MaxNewTokens == 0 {
		o.MaxNewTokens = defaultMaxNewTokens
	}
	if o.Seed == 0 {
		o.Seed = defaultSeed
	}
	return o
}

// Generate synthesizes a waveform at S3GenSR for the given text in the
// voice described by conds. Empty text falls back to a canned sentence.
func (e *Engine) Generate(text string, conds *Conditionals, opts GenOptions) ([]float32, error) {
	opts = opts.withDefaults()
	norm := textnorm.Normalize(text)
	textTokens := padTextTokens(toInt64(e.tok.Encode(norm)), e.startTextToken, e.stopTextToken)

	speech, err := e.generateSpeechTokens(textTokens, conds, opts)
	if err != nil {
		return nil, err
	}
	speech = dropInvalidSpeechTokens(speech)
	if len(speech) == 0 {
		return nil, fmt.Errorf("no speech tokens generated for %q", norm)
	}
	return e.vocode(speech, conds)
}

func (e *Engine) generateSpeechTokens(textTokens []int64, conds *Conditionals, opts GenOptions) ([]int64, error) {
	rng := rand.New(rand.NewSource(opts.Seed))

	// Two batch rows per step: row 0 is conditioned on the speaker,
	// row 1 is unconditional for classifier-free guidance.
	textBatch := repeatRows(textTokens, 2)
	embBatch := cfgEmbRows(conds.SpeakerEmb)
	promptBatch := repeatRows(conds.PromptTokens, 2)
	exag := []float32{conds.Exaggeration, conds.Exaggeration}

	speech := []int64{startSpeechToken}
	for step := 0; step < opts.MaxNewTokens; step++ {
		logits, vocab, err := e.stepLogits(textBatch, len(textTokens), repeatRows(speech, 2), len(speech), embBatch, len(conds.SpeakerEmb), promptBatch, len(conds.PromptTokens), exag)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", step, err)
		}
		mixed := mixCFG(logits[:vocab], logits[vocab:], opts.CFGWeight)
		next := int64(sampleToken(mixed, opts.Temperature, opts.TopP, rng))
		if next == stopSpeechToken {
			break
		}
		speech = append(speech, next)
	}
	return speech[1:], nil
}

// stepLogits runs one transformer step and returns the flat (2, vocab)
// logits plus the vocab width.
func (e *Engine) stepLogits(textBatch []int64, textLen int, speechBatch []int64, speechLen int, embBatch []float32, embDim int, promptBatch []int64, promptLen int, exag []float32) ([]float32, int, error) {
	textT, err := ort.NewTensor([]int64{2, int64(textLen)}, textBatch)
	if err != nil {
		return nil, 0, err
	}
	defer textT.Destroy()
	speechT, err := ort.NewTensor([]int64{2, int64(speechLen)}, speechBatch)
	if err != nil {
		return nil, 0, err
	}
	defer speechT.Destroy()
	embT, err := ort.NewTensor([]int64{2, int64(embDim)}, embBatch)
	if err != nil {
		return nil, 0, err
	}
	defer embT.Destroy()
	promptT, err := ort.NewTensor([]int64{2, int64(promptLen)}, promptBatch)
	if err != nil {
		return nil, 0, err
	}
	defer promptT.Destroy()
	exagT, err := ort.NewTensor([]int64{2}, exag)
	if err != nil {
		return nil, 0, err
	}
	defer exagT.Destroy()

	outputs := []ort.Value{nil}
	if err := e.t3Step.Run([]ort.Value{textT, speechT, embT, promptT, exagT}, outputs); err != nil {
		return nil, 0, err
	}
	logitsT := outputs[0].(*ort.Tensor[float32])
	defer logitsT.Destroy()

	data := logitsT.GetData()
	if len(data)%2 != 0 {
		return nil, 0, fmt.Errorf("odd logits length %d", len(data))
	}
	out := make([]float32, len(data))
	copy(out, data)
	return out, len(out) / 2, nil
}

func (e *Engine) encodeSpeaker(ref16 []float32) ([]float32, error) {
	in, err := ort.NewTensor([]int64{1, int64(len(ref16))}, ref16)
	if err != nil {
		return nil, err
	}
	defer in.Destroy()

	outputs := []ort.Value{nil}
	if err := e.voiceEnc.Run([]ort.Value{in}, outputs); err != nil {
		return nil, fmt.Errorf("voice encoder: %w", err)
	}
	embT := outputs[0].(*ort.Tensor[float32])
	defer embT.Destroy()

	emb := make([]float32, len(embT.GetData()))
	copy(emb, embT.GetData())
	return emb, nil
}

func (e *Engine) encodeReference(ref24, ref16 []float32) (refEmb []float32, refTokens, promptTokens []int64, err error) {
	in24, err := ort.NewTensor([]int64{1, int64(len(ref24))}, ref24)
	if err != nil {
		return nil, nil, nil, err
	}
	defer in24.Destroy()
	in16, err := ort.NewTensor([]int64{1, int64(len(ref16))}, ref16)
	if err != nil {
		return nil, nil, nil, err
	}
	defer in16.Destroy()

	outputs := []ort.Value{nil, nil, nil}
	if err := e.refEnc.Run([]ort.Value{in24, in16}, outputs); err != nil {
		return nil, nil, nil, fmt.Errorf("reference encoder: %w", err)
	}
	embT := outputs[0].(*ort.Tensor[float32])
	refTokT := outputs[1].(*ort.Tensor[int64])
	promptTokT := outputs[2].(*ort.Tensor[int64])
	defer embT.Destroy()
	defer refTokT.Destroy()
	defer promptTokT.Destroy()

	refEmb = append(refEmb, embT.GetData()...)
	refTokens = append(refTokens, refTokT.GetData()...)
	promptTokens = append(promptTokens, promptTokT.GetData()...)
	return refEmb, refTokens, promptTokens, nil
}

func (e *Engine) vocode(speech []int64, conds *Conditionals) ([]float32, error) {
	tokT, err := ort.NewTensor([]int64{1, int64(len(speech))}, speech)
	if err != nil {
		return nil, err
	}
	defer tokT.Destroy()
	embT, err := ort.NewTensor([]int64{1, int64(len(conds.RefEmb))}, conds.RefEmb)
	if err != nil {
		return nil, err
	}
	defer embT.Destroy()
	refTokT, err := ort.NewTensor([]int64{1, int64(len(conds.RefTokens))}, conds.RefTokens)
	if err != nil {
		return nil, err
	}
	defer refTokT.Destroy()

	outputs := []ort.Value{nil}
	if err := e.vocoder.Run([]ort.Value{tokT, embT, refTokT}, outputs); err != nil {
		return nil, fmt.Errorf("vocoder: %w", err)
	}
	wavT := outputs[0].(*ort.Tensor[float32])
	defer wavT.Destroy()

	wav := make([]float32, len(wavT.GetData()))
	copy(wav, wavT.GetData())
	return wav, nil
}

func textControlTokens(tok *Tokenizer) (start, stop int64, err error) {
	s, err := tok.SpecialTokenID(api.TokBeginningOfSentence)
	if err != nil {
		return 0, 0, fmt.Errorf("tokenizer: %w", err)
	}
	e, err := tok.SpecialTokenID(api.TokEndOfSentence)
	if err != nil {
		return 0, 0, fmt.Errorf("tokenizer: %w", err)
	}
	return int64(s), int64(e), nil
}

// padTextTokens wraps ids in the start and stop control tokens.
func padTextTokens(ids []int64, start, stop int64) []int64 {
	out := make([]int64, 0, len(ids)+2)
	out = append(out, start)
	out = append(out, ids...)
	out = append(out, stop)
	return out
}

// repeatRows tiles one row n times for a batched input.
func repeatRows(row []int64, n int) []int64 {
	out := make([]int64, 0, n*len(row))
	for i := 0; i < n; i++ {
		out = append(out, row...)
	}
	return out
}

// cfgEmbRows builds the two-row speaker embedding batch: the real
// embedding for the conditioned row, zeros for the unconditional row.
func cfgEmbRows(emb []float32) []float32 {
	out := make([]float32, 2*len(emb))
	copy(out, emb)
	return out
}

// mixCFG blends conditional and unconditional logits:
// cond + w*(cond - uncond). w == 0 returns the conditional logits.
func mixCFG(cond, uncond []float32, w float64) []float32 {
	out := make([]float32, len(cond))
	for i := range cond {
		out[i] = cond[i] + float32(w)*(cond[i]-uncond[i])
	}
	return out
}

// dropInvalidSpeechTokens filters out control and out-of-vocabulary
// tokens before vocoding.
func dropInvalidSpeechTokens(tokens []int64) []int64 {
	out := make([]int64, 0, len(tokens))
	for _, t := range tokens {
		if t >= 0 && t < speechVocabSize {
			out = append(out, t)
		}
	}
	return out
}

// sampleToken draws a token id from logits with temperature and
// nucleus (top-p) filtering. Temperature <= 0 means argmax.
func sampleToken(logits []float32, temperature, topP float64, rng *rand.Rand) int {
	if len(logits) == 0 {
		return 0
	}
	if temperature <= 0 {
		best := 0
		for i, v := range logits {
			if v > logits[best] {
				best = i
			}
		}
		return best
	}

	maxLogit := logits[0]
	for _, v := range logits[1:] {
		if v > maxLogit {
			maxLogit = v
		}
	}
	probs := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		p := math.Exp((float64(v) - float64(maxLogit)) / temperature)
		probs[i] = p
		sum += p
	}
	for i := range probs {
		probs[i] /= sum
	}

	idx := make([]int, len(probs))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return probs[idx[a]] > probs[idx[b]] })

	if topP <= 0 || topP > 1 {
		topP = 1
	}
	var cum, kept float64
	cut := len(idx)
	for i, j := range idx {
		cum += probs[j]
		kept = cum
		if cum >= topP {
			cut = i + 1
			break
		}
	}

	r := rng.Float64() * kept
	var acc float64
	for _, j := range idx[:cut] {
		acc += probs[j]
		if r <= acc {
			return j
		}
	}
	return idx[cut-1]
}

func truncate(samples []float32, max int) []float32 {
	if len(samples) > max {
		return samples[:max]
	}
	return samples
}

func toInt64(ids []int) []int64 {
	out := make([]int64, len(ids))
	for i, v := range ids {
		out[i] = int64(v)
	}
	return out
}
