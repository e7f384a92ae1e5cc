// Package hub fetches checkpoint assets (tokenizer, built-in
// conditionals, graph files) from the HuggingFace hub, sharing the
// standard ~/.cache/huggingface/hub layout.
package hub

import (
	"errors"
	"fmt"

	hfhub "github.com/gomlx/go-huggingface/hub"
)

// Fetcher downloads files from one hub repository.
type Fetcher struct {
	repoID   string
	cacheDir string
	token    string
	progress bool
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithCacheDir overrides the default HF cache directory.
func WithCacheDir(dir string) Option {
	return func(f *Fetcher) { f.cacheDir = dir }
}

// WithToken sets the auth token for gated repositories.
func WithToken(token string) Option {
	return func(f *Fetcher) { f.token = token }
}

// WithProgress enables the download progress bar.
func WithProgress(on bool) Option {
	return func(f *Fetcher) { f.progress = on }
}

// New creates a Fetcher for the given repo ("owner/name").
func New(repoID string, opts ...Option) (*Fetcher, error) {
	if repoID == "" {
		return nil, errors.New("hub repo id is required")
	}
	f := &Fetcher{repoID: repoID}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// RepoID returns the configured repository.
func (f *Fetcher) RepoID() string { return f.repoID }

// Download fetches the named files, reusing cached copies, and returns
// their local paths in the same order.
func (f *Fetcher) Download(files ...string) ([]string, error) {
	repo := hfhub.New(f.repoID).WithProgressBar(f.progress)
	if f.token != "" {
		repo = repo.WithAuth(f.token)
	}
	if f.cacheDir != "" {
		repo = repo.WithCacheDir(f.cacheDir)
	}
	paths, err := repo.DownloadFiles(files...)
	if err != nil {
		return nil, fmt.Errorf("download from %s: %w", f.repoID, err)
	}
	return paths, nil
}
