package convert

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/x448/float16"
)

// Q8_0 stores blocks of 32 int8 weights behind one f16 scale.
const q8BlockSize = 32
const q8BlockBytes = 2 + q8BlockSize

func dequantF32(raw []byte, n int) ([]float32, error) {
	if len(raw) < n*4 {
		return nil, fmt.Errorf("f32 payload too short: %d bytes for %d elements", len(raw), n)
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out, nil
}

func dequantF16(raw []byte, n int) ([]float32, error) {
	if len(raw) < n*2 {
		return nil, fmt.Errorf("f16 payload too short: %d bytes for %d elements", len(raw), n)
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = float16.Frombits(binary.LittleEndian.Uint16(raw[i*2:])).Float32()
	}
	return out, nil
}

func dequantQ8_0(raw []byte, n int) ([]float32, error) {
	if n%q8BlockSize != 0 {
		return nil, fmt.Errorf("q8_0 element count %d not divisible by block size %d", n, q8BlockSize)
	}
	blocks := n / q8BlockSize
	if len(raw) < blocks*q8BlockBytes {
		return nil, fmt.Errorf("q8_0 payload too short: %d bytes for %d blocks", len(raw), blocks)
	}
	out := make([]float32, n)
	for b := 0; b < blocks; b++ {
		off := b * q8BlockBytes
		scale := float16.Frombits(binary.LittleEndian.Uint16(raw[off:])).Float32()
		for j := 0; j < q8BlockSize; j++ {
			out[b*q8BlockSize+j] = scale * float32(int8(raw[off+2+j]))
		}
	}
	return out, nil
}

// bf16FromF32 truncates a float32 to bfloat16 with round-to-nearest-even.
func bf16FromF32(f float32) uint16 {
	bits := math.Float32bits(f)
	if f != f { // NaN: keep the payload non-zero
		return uint16(bits>>16) | 0x0040
	}
	round := uint32(0x7FFF + ((bits >> 16) & 1))
	return uint16((bits + round) >> 16)
}

func f32Bytes(vals []float32) []byte {
	out := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func bf16Bytes(vals []float32) []byte {
	out := make([]byte, len(vals)*2)
	for i, v := range vals {
		binary.LittleEndian.PutUint16(out[i*2:], bf16FromF32(v))
	}
	return out
}
