package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const defaultModelsDir = "models"

// ModelsDir resolves the model checkpoint directory. The env value may
// name either the directory itself or a file inside it; both work, same
// as the desktop frontends this tool replaces.
func ModelsDir(envValue string) string {
	if envValue != "" {
		info, err := os.Stat(envValue)
		if err == nil {
			if info.IsDir() {
				return envValue
			}
			return filepath.Dir(envValue)
		}
	}
	return defaultModelsDir
}

// ResolveModel returns the path of a model file. Absolute paths and
// paths that already exist are returned as-is; bare names are looked up
// under the models directory.
func ResolveModel(modelsDir, name string) string {
	if name == "" {
		return name
	}
	if filepath.IsAbs(name) {
		return name
	}
	if _, err := os.Stat(name); err == nil {
		return name
	}
	return filepath.Join(modelsDir, name)
}

// ConvertedPath maps a GGUF checkpoint to its safetensors counterpart:
// dir/stem-<suffix>.safetensors next to the input.
func ConvertedPath(ggufPath, suffix string) string {
	dir := filepath.Dir(ggufPath)
	stem := strings.TrimSuffix(filepath.Base(ggufPath), filepath.Ext(ggufPath))
	return filepath.Join(dir, fmt.Sprintf("%s-%s.safetensors", stem, suffix))
}

// ListGGUF returns the GGUF files directly under dir, sorted by name.
func ListGGUF(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".gguf") {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}

// CheckOverwrite enforces overwrite behavior. If any path exists and overwrite is false, returns error.
func CheckOverwrite(paths []string, overwrite bool) error {
	if overwrite {
		return nil
	}
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return fmt.Errorf("refusing to overwrite existing file: %s (use --overwrite)", p)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("checking file: %s: %w", p, err)
		}
	}
	return nil
}
