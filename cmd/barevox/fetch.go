package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	cfgpkg "barevox/internal/config"
	"barevox/internal/hub"
	"barevox/internal/paths"
	"barevox/internal/storage"
)

type mirrorClient interface {
	KeyFor(filename string) string
	FetchFile(ctx context.Context, key, localPath string) (int64, error)
	List(ctx context.Context) ([]string, error)
}

var newMirror = func(ctx context.Context, bucket, prefix, region string) (mirrorClient, error) {
	return storage.New(ctx, bucket, prefix, region)
}

type hubClient interface {
	Download(files ...string) ([]string, error)
}

var newHubFetcher = func(cfg cfgpkg.Config) (hubClient, error) {
	return hub.New(cfg.HubRepo, hub.WithToken(cfg.HFToken), hub.WithProgress(true))
}

// barevox fetch
func cmdFetch(args []string) error {
	var cf commonFlags
	var repo, bucket, prefix, region, dir stringFlag
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	addCommonFlags(fs, &cf)
	fs.Var(&repo, "repo", "Hub repository (owner/name)")
	fs.Var(&bucket, "bucket", "S3 mirror bucket; takes precedence over the hub")
	fs.Var(&prefix, "prefix", "Key prefix inside the mirror bucket")
	fs.Var(&region, "region", "AWS region for the mirror bucket")
	fs.Var(&dir, "dir", "Directory to place checkpoints in")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	setupLogger(cf.logLevel)

	var flagOv cfgpkg.Overrides
	if repo.set {
		flagOv.HubRepo = &repo.v
	}
	if bucket.set {
		flagOv.MirrorBucket = &bucket.v
	}
	if prefix.set {
		flagOv.MirrorPrefix = &prefix.v
	}
	if region.set {
		flagOv.Region = &region.v
	}
	if dir.set {
		flagOv.ModelsDir = &dir.v
	}
	cfg, err := loadMergedConfig(cf, flagOv)
	if err != nil {
		return err
	}
	if err := cfgpkg.ValidateForFetch(cfg); err != nil {
		return err
	}

	files := fs.Args()
	destDir := paths.ModelsDir(cfg.ModelsDir)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}

	if cfg.MirrorBucket != "" {
		return fetchFromMirror(cfg, files, destDir)
	}
	if len(files) == 0 {
		files = []string{cfg.VoiceGGUF, cfg.T3GGUF, cfg.S3GenGGUF}
	}
	return fetchFromHub(cfg, files, destDir)
}

func fetchFromMirror(cfg cfgpkg.Config, files []string, destDir string) error {
	ctx := context.Background()
	mirror, err := newMirror(ctx, cfg.MirrorBucket, cfg.MirrorPrefix, cfg.Region)
	if err != nil {
		return err
	}
	// No files named: take everything the mirror holds.
	if len(files) == 0 {
		files, err = mirror.List(ctx)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			slog.Info("mirror is empty", "bucket", cfg.MirrorBucket, "prefix", cfg.MirrorPrefix)
			return nil
		}
	}
	for _, name := range files {
		start := time.Now()
		local := filepath.Join(destDir, name)
		n, err := mirror.FetchFile(ctx, mirror.KeyFor(name), local)
		if err != nil {
			return err
		}
		slog.Info(
			"fetched from mirror",
			"file", name,
			"path", local,
			"size", humanize.Bytes(uint64(n)),
			"elapsed", time.Since(start).Round(time.Millisecond).String(),
		)
	}
	return nil
}

func fetchFromHub(cfg cfgpkg.Config, files []string, destDir string) error {
	fetcher, err := newHubFetcher(cfg)
	if err != nil {
		return err
	}
	cached, err := fetcher.Download(files...)
	if err != nil {
		return err
	}
	for i, name := range files {
		local := filepath.Join(destDir, name)
		n, err := copyFile(cached[i], local)
		if err != nil {
			return err
		}
		slog.Info(
			"fetched from hub",
			"repo", cfg.HubRepo,
			"file", name,
			"path", local,
			"size", humanize.Bytes(uint64(n)),
		)
	}
	return nil
}

func copyFile(src, dst string) (int64, error) {
	if src == dst {
		return 0, nil
	}
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return n, err
}
