// Package convert turns GGUF checkpoints into safetensors files so the
// speech runtime can map the weights directly. Quantized tensors are
// dequantized on the way through; the set of supported source types is
// deliberately the set the published checkpoints actually use.
package convert

import (
	"fmt"
	"io"
	"os"

	"github.com/abrander/gguf"
	"github.com/schollz/progressbar/v3"
)

// Stats summarizes one conversion.
type Stats struct {
	Tensors int
	Bytes   int64
}

// File converts the GGUF checkpoint at ggufPath into a safetensors file
// at outPath. When bf16 is set the output tensors are BF16, otherwise
// F32.
func File(ggufPath, outPath string, bf16 bool) (Stats, error) {
	if _, err := os.Stat(ggufPath); err != nil {
		return Stats{}, fmt.Errorf("gguf file not found: %s: %w", ggufPath, err)
	}
	g, err := gguf.OpenFile(ggufPath)
	if err != nil {
		return Stats{}, fmt.Errorf("open gguf: %w", err)
	}

	bar := progressbar.Default(int64(len(g.Tensors)), "converting")
	tensors := make([]Tensor, 0, len(g.Tensors))
	var total int64
	for _, ti := range g.Tensors {
		t, err := convertTensor(ti, bf16)
		if err != nil {
			return Stats{}, fmt.Errorf("tensor %s: %w", ti.Name, err)
		}
		tensors = append(tensors, t)
		total += int64(len(t.Data))
		_ = bar.Add(1)
	}

	if err := WriteSafetensors(outPath, tensors); err != nil {
		return Stats{}, fmt.Errorf("write %s: %w", outPath, err)
	}
	return Stats{Tensors: len(tensors), Bytes: total}, nil
}

func convertTensor(ti gguf.TensorInfo, bf16 bool) (Tensor, error) {
	n := 1
	for _, d := range ti.Dimensions {
		n *= int(d)
	}

	r, err := ti.Reader()
	if err != nil {
		return Tensor{}, fmt.Errorf("tensor reader: %w", err)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return Tensor{}, fmt.Errorf("read payload: %w", err)
	}

	var vals []float32
	switch ti.Type {
	case gguf.GgmlFloat32:
		vals, err = dequantF32(raw, n)
	case gguf.GgmlFloat16:
		vals, err = dequantF16(raw, n)
	case gguf.GgmlQ8_0:
		vals, err = dequantQ8_0(raw, n)
	default:
		return Tensor{}, fmt.Errorf("unsupported gguf tensor type %v", ti.Type)
	}
	if err != nil {
		return Tensor{}, err
	}

	// GGUF stores dimensions innermost-first; safetensors shapes are
	// row-major outermost-first.
	shape := make([]int, len(ti.Dimensions))
	for i, d := range ti.Dimensions {
		shape[len(shape)-1-i] = int(d)
	}

	t := Tensor{Name: ti.Name, Shape: shape}
	if bf16 {
		t.Dtype = "BF16"
		t.Data = bf16Bytes(vals)
	} else {
		t.Dtype = "F32"
		t.Data = f32Bytes(vals)
	}
	return t, nil
}
