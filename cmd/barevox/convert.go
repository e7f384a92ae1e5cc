package main

import (
	"errors"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	cfgpkg "barevox/internal/config"
	"barevox/internal/paths"
)

// barevox convert
func cmdConvert(args []string) error {
	var cf commonFlags
	var in, out stringFlag
	var bf16, overwrite boolFlag
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	addCommonFlags(fs, &cf)
	fs.Var(&in, "in", "GGUF checkpoint to convert")
	fs.Var(&out, "out", "Output safetensors path; default: next to the input")
	fs.Var(&bf16, "bf16", "Write BF16 tensors instead of F32")
	fs.Var(&overwrite, "overwrite", "Overwrite an existing output file")

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
	if in.v == "" {
		return errors.New("an input GGUF file is required (-in)")
	}

	suffix := "f32"
	if cfg.BF16 {
		suffix = "bf16"
	}
	outPath := out.v
	if outPath == "" {
		outPath = paths.ConvertedPath(in.v, suffix)
	}
	if err := paths.CheckOverwrite([]string{outPath}, cfg.Overwrite); err != nil {
		return err
	}

	start := time.Now()
	stats, err := convertCheckpoint(in.v, outPath, cfg.BF16)
	if err != nil {
		return err
	}
	slog.Info(
		"conversion complete",
		"in", in.v,
		"out", outPath,
		"dtype", suffix,
		"tensors", stats.Tensors,
		"size", humanize.Bytes(uint64(stats.Bytes)),
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
	)
	return nil
}
