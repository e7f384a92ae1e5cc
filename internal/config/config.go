package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds resolved configuration values after merging file, env, and flags.
type Config struct {
	// Chat model settings.
	Model     string `json:"model,omitempty"`
	ModelsDir string `json:"modelsDir,omitempty"`
	ServerURL string `json:"serverUrl,omitempty"`
	CtxSize   int    `json:"ctxSize,omitempty"`
	Threads   int    `json:"threads,omitempty"`
	GPULayers int    `json:"gpuLayers,omitempty"`

	// Sampling defaults shared by chat and speech generation.
	MaxTokens     int     `json:"maxTokens,omitempty"`
	Temperature   float64 `json:"temperature,omitempty"`
	TopP          float64 `json:"topP,omitempty"`
	TopK          int     `json:"topK,omitempty"`
	RepeatPenalty float64 `json:"repeatPenalty,omitempty"`
	SystemPrompt  string  `json:"systemPrompt,omitempty"`

	// Voice-cloning checkpoint locations.
	HubRepo      string  `json:"hubRepo,omitempty"`
	VoiceGGUF    string  `json:"voiceGguf,omitempty"`
	T3GGUF       string  `json:"t3Gguf,omitempty"`
	S3GenGGUF    string  `json:"s3genGguf,omitempty"`
	Exaggeration float64 `json:"exaggeration,omitempty"`
	CFGWeight    float64 `json:"cfgWeight,omitempty"`

	// Checkpoint mirror (optional alternative to the hub).
	MirrorBucket string `json:"mirrorBucket,omitempty"`
	MirrorPrefix string `json:"mirrorPrefix,omitempty"`
	Region       string `json:"region,omitempty"`

	Overwrite bool `json:"overwrite,omitempty"`
	BF16      bool `json:"bf16,omitempty"`

	// Not persisted to file; sourced from env only.
	HFToken string `json:"-"`
}

// Overrides represents optional overrides from env or flags.
// Only non-nil pointers are applied during merge.
type Overrides struct {
	Model        *string
	ModelsDir    *string
	ServerURL    *string
	CtxSize      *int
	Threads      *int
	HubRepo      *string
	MirrorBucket *string
	MirrorPrefix *string
	Region       *string
	Overwrite    *bool
	BF16         *bool
}

func Default() Config {
	return Config{
		ModelsDir:     "models",
		CtxSize:       4096,
		Threads:       8,
		MaxTokens:     256,
		Temperature:   0.8,
		TopP:          0.95,
		TopK:          40,
		RepeatPenalty: 1.1,
		HubRepo:       "callgg/chatterbox-encoder",
		VoiceGGUF:     "ve_fp32-f16.gguf",
		T3GGUF:        "t3_cfg-q4_k_m.gguf",
		S3GenGGUF:     "s3gen-bf16.gguf",
		Exaggeration:  0.5,
		CFGWeight:     0.5,
	}
}

// LoadFile reads a JSON config. If file not found, returns defaults and no error.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// FromEnv reads env vars and returns overrides and the HuggingFace token.
func FromEnv() (Overrides, string) {
	var ov Overrides

	if v, ok := os.LookupEnv("BAREVOX_MODEL"); ok {
		ov.Model = &v
	}
	if v, ok := os.LookupEnv("BAREVOX_MODEL_PATH"); ok {
		ov.ModelsDir = &v
	}
	if v, ok := os.LookupEnv("BAREVOX_SERVER"); ok {
		ov.ServerURL = &v
	}
	if v, ok := os.LookupEnv("BAREVOX_CTX_SIZE"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			ov.CtxSize = &n
		}
	}
	if v, ok := os.LookupEnv("BAREVOX_THREADS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			ov.Threads = &n
		}
	}
	if v, ok := os.LookupEnv("BAREVOX_HUB_REPO"); ok {
		ov.HubRepo = &v
	}
	if v, ok := os.LookupEnv("BAREVOX_MIRROR_BUCKET"); ok {
		ov.MirrorBucket = &v
	}
	if v, ok := os.LookupEnv("BAREVOX_MIRROR_PREFIX"); ok {
		ov.MirrorPrefix = &v
	}
	if v, ok := os.LookupEnv("AWS_REGION"); ok {
		ov.Region = &v
	}
	if v, ok := os.LookupEnv("BAREVOX_OVERWRITE"); ok {
		if b, err := parseBool(v); err == nil {
			ov.Overwrite = &b
		}
	}
	token := os.Getenv("HF_TOKEN")
	return ov, token
}

func parseBool(s string) (bool, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return false, fmt.Errorf("empty bool")
	}
	if s == "1" || s == "t" || s == "true" || s == "y" || s == "yes" || s == "on" {
		return true, nil
	}
	if s == "0" || s == "f" || s == "false" || s == "n" || s == "no" || s == "off" {
		return false, nil
	}
	return strconv.ParseBool(s)
}

// Merge applies overrides in order: file -> env -> flags.
func Merge(fileCfg Config, env Overrides, flags Overrides, hfToken string) Config {
	cfg := fileCfg

	apply := func(ov Overrides) {
		if ov.Model != nil {
			cfg.Model = *ov.Model
		}
		if ov.ModelsDir != nil {
			cfg.ModelsDir = *ov.ModelsDir
		}
		if ov.ServerURL != nil {
			cfg.ServerURL = *ov.ServerURL
		}
		if ov.CtxSize != nil {
			cfg.CtxSize = *ov.CtxSize
		}
		if ov.Threads != nil {
			cfg.Threads = *ov.Threads
		}
		if ov.HubRepo != nil {
			cfg.HubRepo = *ov.HubRepo
		}
		if ov.MirrorBucket != nil {
			cfg.MirrorBucket = *ov.MirrorBucket
		}
		if ov.MirrorPrefix != nil {
			cfg.MirrorPrefix = *ov.MirrorPrefix
		}
		if ov.Region != nil {
			cfg.Region = *ov.Region
		}
		if ov.Overwrite != nil {
			cfg.Overwrite = *ov.Overwrite
		}
		if ov.BF16 != nil {
			cfg.BF16 = *ov.BF16
		}
	}

	apply(env)
	apply(flags)

	cfg.HFToken = hfToken
	return cfg
}

// Validation helpers
func ValidateForChat(cfg Config) error {
	if cfg.Model == "" && cfg.ServerURL == "" {
		return errors.New("a model path or a server URL is required for chat")
	}
	if cfg.CtxSize <= 0 {
		return errors.New("context size must be positive")
	}
	return nil
}

func ValidateForSay(cfg Config) error {
	if cfg.VoiceGGUF == "" || cfg.T3GGUF == "" || cfg.S3GenGGUF == "" {
		return errors.New("voice encoder, t3, and s3gen GGUF paths are required")
	}
	if cfg.HubRepo == "" {
		return errors.New("hub repo is required for tokenizer and conditionals")
	}
	return nil
}

func ValidateForFetch(cfg Config) error {
	if cfg.MirrorBucket != "" && cfg.Region == "" {
		return errors.New("AWS region is required when fetching from a mirror bucket")
	}
	if cfg.MirrorBucket == "" && cfg.HubRepo == "" {
		return errors.New("a hub repo or a mirror bucket is required for fetch")
	}
	return nil
}
