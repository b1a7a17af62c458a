// Copyright 2025 The ner-model Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package modelregistry fetches and caches model archives on local disk.
// Archive locations are explicit configuration, not a baked-in ID table.
package modelregistry

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/schollz/progressbar/v2"
	"go.uber.org/zap"
)

// ErrModelMissing is returned when a model is not on disk and not registered.
// Callers must check before building drivers; a missing model never panics.
var ErrModelMissing = errors.New("modelregistry: model not available")

// DefaultRoot is the default cache directory under the user's home.
const DefaultRoot = ".ner-model/models"

// modelDirPrefix namespaces extracted model directories inside the root.
const modelDirPrefix = "model_"

// Config configures a Registry.
type Config struct {
	// Root overrides the cache directory (default ~/.ner-model/models).
	Root string

	// Models maps model names to archive URLs.
	Models map[string]string

	// Client overrides the HTTP client used for downloads.
	Client *http.Client

	// ShowProgress renders a progress bar during downloads.
	ShowProgress bool

	// Logger for logging (nil = no logging)
	Logger *zap.Logger
}

// Registry resolves model names to local directories, downloading and
// extracting archives on demand.
type Registry struct {
	root         string
	models       map[string]string
	client       *http.Client
	showProgress bool
	logger       *zap.Logger
}

// New builds a registry. The cache directory is created lazily on first pull.
func New(cfg Config) (*Registry, error) {
	root := cfg.Root
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		root = filepath.Join(home, DefaultRoot)
	}

	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	models := make(map[string]string, len(cfg.Models))
	for name, url := range cfg.Models {
		models[name] = url
	}

	return &Registry{
		root:         root,
		models:       models,
		client:       client,
		showProgress: cfg.ShowProgress,
		logger:       logger,
	}, nil
}

// Path returns the local directory a model extracts to, whether or not it
// exists yet.
func (r *Registry) Path(name string) string {
	return filepath.Join(r.root, modelDirPrefix+name)
}

// Exists reports whether the model is on disk.
func (r *Registry) Exists(name string) bool {
	info, err := os.Stat(r.Path(name))
	return err == nil && info.IsDir()
}

// Resolve returns the local model directory. A model that is neither on disk
// nor registered yields ErrModelMissing; the error is logged so unattended
// callers leave a trace.
func (r *Registry) Resolve(name string) (string, error) {
	if r.Exists(name) {
		return r.Path(name), nil
	}
	if _, ok := r.models[name]; ok {
		r.logger.Error("Model registered but not pulled",
			zap.String("model", name),
			zap.String("path", r.Path(name)))
		return "", fmt.Errorf("model %q not pulled: %w", name, ErrModelMissing)
	}
	r.logger.Error("Model not registered", zap.String("model", name))
	return "", fmt.Errorf("model %q: %w", name, ErrModelMissing)
}

// Pull downloads and extracts the model archive. Models already on disk are
// skipped.
func (r *Registry) Pull(ctx context.Context, name string) error {
	url, ok := r.models[name]
	if !ok {
		return fmt.Errorf("model %q: %w", name, ErrModelMissing)
	}
	if r.Exists(name) {
		r.logger.Info("Model already downloaded",
			zap.String("model", name),
			zap.String("path", r.Path(name)))
		return nil
	}

	if err := os.MkdirAll(r.root, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	zipPath := filepath.Join(r.root, name+".zip")
	r.logger.Info("Downloading model",
		zap.String("model", name),
		zap.String("url", url))
	if err := r.download(ctx, url, zipPath); err != nil {
		return fmt.Errorf("downloading %q: %w", name, err)
	}
	defer os.Remove(zipPath)

	r.logger.Info("Extracting model", zap.String("model", name))
	if err := extractZip(zipPath, r.root); err != nil {
		return fmt.Errorf("extracting %q: %w", name, err)
	}

	if !r.Exists(name) {
		return fmt.Errorf("archive for %q did not contain %s%s", name, modelDirPrefix, name)
	}
	r.logger.Info("Model downloaded and extracted",
		zap.String("model", name),
		zap.String("path", r.Path(name)))
	return nil
}

// PullAll pulls every registered model, continuing past individual failures.
func (r *Registry) PullAll(ctx context.Context) error {
	var firstErr error
	for _, name := range r.Registered() {
		if err := r.Pull(ctx, name); err != nil {
			r.logger.Warn("Failed to pull model",
				zap.String("model", name),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Registered returns the configured model names, sorted.
func (r *Registry) Registered() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns the models present on disk, sorted.
func (r *Registry) List() ([]string, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading cache directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), modelDirPrefix) {
			names = append(names, strings.TrimPrefix(entry.Name(), modelDirPrefix))
		}
	}
	sort.Strings(names)
	return names, nil
}

func (r *Registry) download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	var src io.Reader = resp.Body
	if r.showProgress && resp.ContentLength > 0 {
		bar := progressbar.NewOptions(int(resp.ContentLength),
			progressbar.OptionSetBytes(int(resp.ContentLength)))
		src = io.TeeReader(src, bar)
		defer bar.Finish()
	}

	if _, err := io.Copy(out, src); err != nil {
		return err
	}
	return out.Close()
}

// extractZip unpacks archive into dir, skipping macOS resource-fork entries
// and rejecting paths that would escape the target directory.
func extractZip(archive, dir string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer zr.Close()

	for _, f := range zr.File {
		if strings.Contains(f.Name, "__MACOSX") {
			continue
		}
		target := filepath.Join(dir, filepath.Clean(f.Name))
		if !strings.HasPrefix(target, filepath.Clean(dir)+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry %q escapes target directory", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := extractFile(f, target); err != nil {
			return fmt.Errorf("extracting %q: %w", f.Name, err)
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return err
	}
	return dst.Close()
}
