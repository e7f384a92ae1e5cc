package config

import (
	"testing"
)

func TestMergePrecedence(t *testing.T) {
	file := Default()
	file.Model = "file-model.gguf"
	file.MirrorBucket = "file-bucket"

	env := Overrides{}
	env.Model = strPtr("env-model.gguf")
	env.MirrorBucket = strPtr("env-bucket")

	flags := Overrides{}
	flags.Model = strPtr("flag-model.gguf")

	cfg := Merge(file, env, flags, "hf-key")
	if cfg.Model != "flag-model.gguf" {
		t.Fatalf("model precedence wrong: %s", cfg.Model)
	}
	if cfg.MirrorBucket != "env-bucket" {
		t.Fatalf("bucket precedence wrong: %s", cfg.MirrorBucket)
	}
	if cfg.HFToken != "hf-key" {
		t.Fatalf("hf token not set")
	}
}

func TestValidateChatRequiresModelOrServer(t *testing.T) {
	cfg := Default()
	if err := ValidateForChat(cfg); err == nil {
		t.Fatalf("expected error without model or server")
	}
	cfg.Model = "lfm-1.2b-int8.gguf"
	if err := ValidateForChat(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.Model = ""
	cfg.ServerURL = "http://127.0.0.1:8081"
	if err := ValidateForChat(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateFetch(t *testing.T) {
	cfg := Default()
	cfg.HubRepo = ""
	if err := ValidateForFetch(cfg); err == nil {
		t.Fatalf("expected error without hub repo or bucket")
	}
	cfg.MirrorBucket = "models-mirror"
	if err := ValidateForFetch(cfg); err == nil {
		t.Fatalf("expected error without region")
	}
	cfg.Region = "us-east-1"
	if err := ValidateForFetch(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("BAREVOX_MODEL", "env-model.gguf")
	t.Setenv("BAREVOX_CTX_SIZE", "2048")
	t.Setenv("BAREVOX_OVERWRITE", "1")
	t.Setenv("HF_TOKEN", "hf-xyz")
	ov, token := FromEnv()
	if ov.Model == nil || *ov.Model != "env-model.gguf" {
		t.Fatalf("model not read from env")
	}
	if ov.CtxSize == nil || *ov.CtxSize != 2048 {
		t.Fatalf("ctx size not parsed from env")
	}
	if ov.Overwrite == nil || *ov.Overwrite != true {
		t.Fatalf("overwrite not parsed as true")
	}
	if token != "hf-xyz" {
		t.Fatalf("hf token not read from env")
	}
}

func strPtr(s string) *string { return &s }
