package paths

import (
	"os"
	"path/filepath"
	"testing"
)

func TestModelsDirFileOrDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "model.gguf")
	if err := os.WriteFile(file, []byte("gguf"), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}

	if got := ModelsDir(dir); got != dir {
		t.Fatalf("dir value: got %q want %q", got, dir)
	}
	if got := ModelsDir(file); got != dir {
		t.Fatalf("file value should resolve to parent: got %q want %q", got, dir)
	}
	if got := ModelsDir(""); got != defaultModelsDir {
		t.Fatalf("empty value should fall back to default: got %q", got)
	}
	if got := ModelsDir(filepath.Join(dir, "missing")); got != defaultModelsDir {
		t.Fatalf("missing path should fall back to default: got %q", got)
	}
}

func TestResolveModel(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "here.gguf")
	if err := os.WriteFile(existing, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if got := ResolveModel(dir, existing); got != existing {
		t.Fatalf("absolute path should pass through: %q", got)
	}
	if got := ResolveModel(dir, "bare.gguf"); got != filepath.Join(dir, "bare.gguf") {
		t.Fatalf("bare name should join models dir: %q", got)
	}
	if got := ResolveModel(dir, ""); got != "" {
		t.Fatalf("empty name should stay empty: %q", got)
	}
}

func TestConvertedPath(t *testing.T) {
	got := ConvertedPath(filepath.Join("ckpt", "ve_fp32-f16.gguf"), "f32")
	want := filepath.Join("ckpt", "ve_fp32-f16-f32.safetensors")
	if got != want {
		t.Fatalf("ConvertedPath: got %q want %q", got, want)
	}
	got = ConvertedPath("s3gen-bf16.gguf", "bf16")
	if got != "s3gen-bf16-bf16.safetensors" {
		t.Fatalf("ConvertedPath: got %q", got)
	}
}

func TestListGGUF(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.gguf", "b.GGUF", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.gguf"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	files, err := ListGGUF(dir)
	if err != nil {
		t.Fatalf("ListGGUF: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 gguf files, got %d: %v", len(files), files)
	}
}

func TestCheckOverwrite(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "out.wav")
	if err := os.WriteFile(existing, []byte("x"), 0o644); err != nil {
		t.Fatalf("write existing: %v", err)
	}
	if err := CheckOverwrite([]string{existing}, false); err == nil {
		t.Fatalf("expected overwrite guard to fail")
	}
	if err := CheckOverwrite([]string{existing}, true); err != nil {
		t.Fatalf("overwrite=true should not error: %v", err)
	}
	if err := CheckOverwrite([]string{filepath.Join(dir, "missing.wav")}, false); err != nil {
		t.Fatalf("missing file should pass: %v", err)
	}
}
