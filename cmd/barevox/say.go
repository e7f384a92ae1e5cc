package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"barevox/internal/audio"
	cfgpkg "barevox/internal/config"
	"barevox/internal/convert"
	"barevox/internal/hub"
	"barevox/internal/paths"
	"barevox/internal/tts"
)

type synthesizer interface {
	PrepareConditionals(refWavPath string, exaggeration float32) (*tts.Conditionals, error)
	Generate(text string, conds *tts.Conditionals, opts tts.GenOptions) ([]float32, error)
	Close() error
}

var newSynth = func(assetDir, veWeights, t3Weights, s3genWeights string) (synthesizer, error) {
	return tts.NewEngine(tts.Config{
		AssetDir:            assetDir,
		VoiceEncoderWeights: veWeights,
		T3Weights:           t3Weights,
		S3GenWeights:        s3genWeights,
	})
}

// fetchAssets downloads the tokenizer, graphs, and built-in
// conditionals, returning the directory that holds them.
var fetchAssets = func(cfg cfgpkg.Config) (string, error) {
	fetcher, err := hub.New(cfg.HubRepo, hub.WithToken(cfg.HFToken), hub.WithProgress(true))
	if err != nil {
		return "", err
	}
	files := append(tts.GraphAssets(), tts.BuiltinConditionals)
	local, err := fetcher.Download(files...)
	if err != nil {
		return "", err
	}
	return filepath.Dir(local[0]), nil
}

var convertCheckpoint = convert.File

// barevox say
func cmdSay(args []string) error {
	var cf commonFlags
	var text, ref, out stringFlag
	var exaggeration, cfgWeight, temperature floatFlag
	var seed intFlag
	var bf16, overwrite boolFlag
	fs := flag.NewFlagSet("say", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	addCommonFlags(fs, &cf)
	fs.Var(&text, "text", "Text to speak")
	fs.Var(&ref, "ref", "Reference WAV clip for voice cloning")
	fs.Var(&out, "out", "Output WAV path")
	fs.Var(&exaggeration, "exaggeration", "Emotion exaggeration, 0 to 1")
	fs.Var(&cfgWeight, "cfg-weight", "Classifier-free guidance weight")
	fs.Var(&temperature, "temperature", "Sampling temperature")
	fs.Var(&seed, "seed", "Sampling seed")
	fs.Var(&bf16, "bf16", "Convert checkpoints to BF16 instead of F32")
	fs.Var(&overwrite, "overwrite", "Overwrite existing output files")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	setupLogger(cf.logLevel)

	var flagOv cfgpkg.Overrides
	if bf16.set {
		flagOv.BF16 = &bf16.v
	}
	if overwrite.set {
		flagOv.Overwrite = &overwrite.v
	}
	cfg, err := loadMergedConfig(cf, flagOv)
	if err != nil {
		return err
	}
	if exaggeration.set {
		cfg.Exaggeration = exaggeration.v
	}
	if cfgWeight.set {
		cfg.CFGWeight = cfgWeight.v
	}
	if err := cfgpkg.ValidateForSay(cfg); err != nil {
		return err
	}

	outPath := out.v
	if outPath == "" {
		outPath = "output.wav"
	}
	if err := paths.CheckOverwrite([]string{outPath}, cfg.Overwrite); err != nil {
		return err
	}

	modelsDir := paths.ModelsDir(cfg.ModelsDir)
	veWeights, err := ensureConverted(paths.ResolveModel(modelsDir, cfg.VoiceGGUF), cfg.BF16)
	if err != nil {
		return err
	}
	t3Weights, err := ensureConverted(paths.ResolveModel(modelsDir, cfg.T3GGUF), cfg.BF16)
	if err != nil {
		return err
	}
	s3genWeights, err := ensureConverted(paths.ResolveModel(modelsDir, cfg.S3GenGGUF), cfg.BF16)
	if err != nil {
		return err
	}

	assetDir, err := fetchAssets(cfg)
	if err != nil {
		return fmt.Errorf("fetch runtime assets: %w", err)
	}

	synth, err := newSynth(assetDir, veWeights, t3Weights, s3genWeights)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := synth.Close(); cerr != nil {
			slog.Warn("failed to close synthesizer", "err", cerr)
		}
	}()

	conds, err := resolveConditionals(synth, ref.v, assetDir, float32(cfg.Exaggeration))
	if err != nil {
		return err
	}

	opts := tts.GenOptions{CFGWeight: cfg.CFGWeight}
	if temperature.set {
		opts.Temperature = temperature.v
	}
	if seed.set {
		opts.Seed = int64(seed.v)
	}

	start := time.Now()
	wav, err := synth.Generate(text.v, conds, opts)
	if err != nil {
		return err
	}
	if err := audio.WriteWAV(outPath, wav, tts.S3GenSR); err != nil {
		return err
	}

	slog.Info(
		"speech generated",
		"path", outPath,
		"samples", len(wav),
		"seconds", float64(len(wav))/float64(tts.S3GenSR),
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
	)
	return nil
}

// ensureConverted converts a GGUF checkpoint to safetensors unless the
// converted file already exists, and returns the safetensors path.
func ensureConverted(ggufPath string, bf16 bool) (string, error) {
	if _, err := os.Stat(ggufPath); err != nil {
		return "", fmt.Errorf("checkpoint not found: %s (run \"barevox fetch\" first): %w", ggufPath, err)
	}
	suffix := "f32"
	if bf16 {
		suffix = "bf16"
	}
	outPath := paths.ConvertedPath(ggufPath, suffix)
	if _, err := os.Stat(outPath); err == nil {
		slog.Info("already converted", "path", outPath)
		return outPath, nil
	}
	stats, err := convertCheckpoint(ggufPath, outPath, bf16)
	if err != nil {
		return "", fmt.Errorf("convert %s: %w", ggufPath, err)
	}
	slog.Info("converted checkpoint", "in", ggufPath, "out", outPath, "tensors", stats.Tensors)
	return outPath, nil
}

// resolveConditionals prepares conditioning from the reference clip, or
// falls back to the packaged conditionals when no usable clip is given.
func resolveConditionals(synth synthesizer, refWav, assetDir string, exaggeration float32) (*tts.Conditionals, error) {
	if refWav != "" {
		if _, err := os.Stat(refWav); err == nil {
			return synth.PrepareConditionals(refWav, exaggeration)
		}
		slog.Warn("reference clip not found, using built-in voice", "ref", refWav)
	}
	conds, err := tts.LoadConditionals(filepath.Join(assetDir, tts.BuiltinConditionals))
	if err != nil {
		return nil, fmt.Errorf("load built-in conditionals: %w", err)
	}
	conds.Exaggeration = exaggeration
	return conds, nil
}
