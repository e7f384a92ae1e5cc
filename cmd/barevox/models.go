package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/abrander/gguf"
	"github.com/dustin/go-humanize"

	cfgpkg "barevox/internal/config"
	"barevox/internal/paths"
)

// ggufArch reads the architecture string from a GGUF header. Swapped in
// tests so they do not need real checkpoint files.
var ggufArch = func(path string) (string, error) {
	g, err := gguf.OpenFile(path)
	if err != nil {
		return "", err
	}
	return gguf.MetaValue[string](g.Metadata, "general.architecture")
}

// barevox models
func cmdModels(args []string) error {
	var cf commonFlags
	var dir stringFlag
	fs := flag.NewFlagSet("models", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	addCommonFlags(fs, &cf)
	fs.Var(&dir, "dir", "Models directory to list")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	setupLogger(cf.logLevel)

	var flagOv cfgpkg.Overrides
	if dir.set {
		flagOv.ModelsDir = &dir.v
	}
	cfg, err := loadMergedConfig(cf, flagOv)
	if err != nil {
		return err
	}

	modelsDir := paths.ModelsDir(cfg.ModelsDir)
	files, err := paths.ListGGUF(modelsDir)
	if err != nil {
		return fmt.Errorf("list models in %s: %w", modelsDir, err)
	}
	if len(files) == 0 {
		fmt.Printf("no GGUF models in %s\n", modelsDir)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSIZE\tARCH")
	for _, path := range files {
		size := "-"
		if info, err := os.Stat(path); err == nil {
			size = humanize.Bytes(uint64(info.Size()))
		}
		arch, err := ggufArch(path)
		if err != nil {
			arch = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", path, size, arch)
	}
	return w.Flush()
}
