package tts

import (
	"encoding/binary"
	"fmt"
	"math"

	"barevox/internal/convert"
)

// Conditionals captures everything derived from a reference voice clip:
// the speaker embedding and prompt speech tokens that condition the
// speech transformer, and the reference embedding and tokens the
// vocoder needs to match the target voice. A Conditionals value can be
// saved and reloaded so repeat synthesis skips the reference encoders.
type Conditionals struct {
	SpeakerEmb   []float32
	PromptTokens []int64
	RefEmb       []float32
	RefTokens    []int64
	Exaggeration float32
}

// Save writes the conditionals as a safetensors file.
func (c *Conditionals) Save(path string) error {
	tensors := []convert.Tensor{
		{Name: "exaggeration", Dtype: "F32", Shape: []int{1}, Data: f32LE([]float32{c.Exaggeration})},
		{Name: "prompt_tokens", Dtype: "I64", Shape: []int{1, len(c.PromptTokens)}, Data: i64LE(c.PromptTokens)},
		{Name: "ref_emb", Dtype: "F32", Shape: []int{1, len(c.RefEmb)}, Data: f32LE(c.RefEmb)},
		{Name: "ref_tokens", Dtype: "I64", Shape: []int{1, len(c.RefTokens)}, Data: i64LE(c.RefTokens)},
		{Name: "speaker_emb", Dtype: "F32", Shape: []int{1, len(c.SpeakerEmb)}, Data: f32LE(c.SpeakerEmb)},
	}
	return convert.WriteSafetensors(path, tensors)
}

// LoadConditionals reads conditionals saved by Save.
func LoadConditionals(path string) (*Conditionals, error) {
	tensors, err := convert.ReadSafetensors(path)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]convert.Tensor, len(tensors))
	for _, t := range tensors {
		byName[t.Name] = t
	}

	c := &Conditionals{}
	for _, name := range []string{"exaggeration", "prompt_tokens", "ref_emb", "ref_tokens", "speaker_emb"} {
		t, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("conditionals %s: missing tensor %s", path, name)
		}
		switch name {
		case "exaggeration":
			vals, err := leF32(t.Data)
			if err != nil || len(vals) != 1 {
				return nil, fmt.Errorf("conditionals %s: bad exaggeration tensor", path)
			}
			c.Exaggeration = vals[0]
		case "prompt_tokens":
			if c.PromptTokens, err = leI64(t.Data); err != nil {
				return nil, fmt.Errorf("conditionals %s: %w", path, err)
			}
		case "ref_emb":
			if c.RefEmb, err = leF32(t.Data); err != nil {
				return nil, fmt.Errorf("conditionals %s: %w", path, err)
			}
		case "ref_tokens":
			if c.RefTokens, err = leI64(t.Data); err != nil {
				return nil, fmt.Errorf("conditionals %s: %w", path, err)
			}
		case "speaker_emb":
			if c.SpeakerEmb, err = leF32(t.Data); err != nil {
				return nil, fmt.Errorf("conditionals %s: %w", path, err)
			}
		}
	}
	return c, nil
}

func f32LE(vals []float32) []byte {
	out := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return out
}

func leF32(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("f32 payload length %d not a multiple of 4", len(data))
	}
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return out, nil
}

func i64LE(vals []int64) []byte {
	out := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(out[8*i:], uint64(v))
	}
	return out
}

func leI64(data []byte) ([]int64, error) {
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("i64 payload length %d not a multiple of 8", len(data))
	}
	out := make([]int64, len(data)/8)
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(data[8*i:]))
	}
	return out, nil
}
