package convert

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
)

// Tensor is one named tensor destined for (or read from) a safetensors
// file. Data is the raw little-endian payload for the stated dtype.
type Tensor struct {
	Name  string
	Dtype string // "F32" or "BF16"
	Shape []int
	Data  []byte
}

type headerEntry struct {
	Dtype       string `json:"dtype"`
	Shape       []int  `json:"shape"`
	DataOffsets [2]int `json:"data_offsets"`
}

// WriteSafetensors writes tensors in safetensors layout: a little-endian
// u64 header length, the JSON header, then the concatenated payloads.
func WriteSafetensors(path string, tensors []Tensor) error {
	header := make(map[string]headerEntry, len(tensors))
	offset := 0
	for _, t := range tensors {
		header[t.Name] = headerEntry{
			Dtype:       t.Dtype,
			Shape:       t.Shape,
			DataOffsets: [2]int{offset, offset + len(t.Data)},
		}
		offset += len(t.Data)
	}
	headerBytes, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("encode safetensors header: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(headerBytes)))
	if _, err := f.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := f.Write(headerBytes); err != nil {
		return err
	}
	for _, t := range tensors {
		if _, err := f.Write(t.Data); err != nil {
			return fmt.Errorf("write tensor %s: %w", t.Name, err)
		}
	}
	return f.Sync()
}

// ReadSafetensors loads every tensor from a safetensors file. Tensors
// come back sorted by name.
func ReadSafetensors(path string) ([]Tensor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lenBuf [8]byte
	if _, err := io.ReadFull(f, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("read safetensors header length: %w", err)
	}
	headerLen := binary.LittleEndian.Uint64(lenBuf[:])
	if headerLen > 100<<20 {
		return nil, fmt.Errorf("implausible safetensors header length: %d", headerLen)
	}
	headerBytes := make([]byte, headerLen)
	if _, err := io.ReadFull(f, headerBytes); err != nil {
		return nil, fmt.Errorf("read safetensors header: %w", err)
	}
	var header map[string]headerEntry
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmt.Errorf("parse safetensors header: %w", err)
	}
	delete(header, "__metadata__")

	names := make([]string, 0, len(header))
	for name := range header {
		names = append(names, name)
	}
	sort.Strings(names)

	dataStart := int64(8 + headerLen)
	out := make([]Tensor, 0, len(names))
	for _, name := range names {
		e := header[name]
		size := e.DataOffsets[1] - e.DataOffsets[0]
		if size < 0 {
			return nil, fmt.Errorf("tensor %s: inverted data offsets", name)
		}
		data := make([]byte, size)
		if _, err := f.ReadAt(data, dataStart+int64(e.DataOffsets[0])); err != nil {
			return nil, fmt.Errorf("read tensor %s: %w", name, err)
		}
		out = append(out, Tensor{Name: name, Dtype: e.Dtype, Shape: e.Shape, Data: data})
	}
	return out, nil
}
