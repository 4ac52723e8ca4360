package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tasklenslab/tasklens/internal/notion"
	"go.uber.org/zap"
)

// Downloader is the raw-URL download slice of the API client.
type Downloader interface {
	Download(ctx context.Context, rawURL string) ([]byte, error)
}

// FetcherConfig carries the dependencies of a Fetcher.
type FetcherConfig struct {
	Client  Downloader
	BaseDir string
	Logger  *zap.Logger
}

// Fetcher downloads a record's linked files into a per-record directory.
type Fetcher struct {
	client  Downloader
	baseDir string
	logger  *zap.Logger
}

// NewFetcher validates the configuration and returns a ready fetcher.
func NewFetcher(cfg FetcherConfig) (*Fetcher, error) {
	if cfg.Client == nil {
		return nil, errors.New("downloader is required")
	}
	if cfg.BaseDir == "" {
		return nil, errors.New("attachment base dir is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{client: cfg.Client, baseDir: cfg.BaseDir, logger: logger}, nil
}

// Fetch downloads every referenced file concurrently and returns the
// sanitized names of the ones that succeeded, in reference order. The
// per-record directory is created only once at least one download succeeds;
// a failed file is logged and excluded without disturbing its siblings.
func (f *Fetcher) Fetch(ctx context.Context, dirName string, files []notion.FileRef) []string {
	if len(files) == 0 {
		return nil
	}

	type download struct {
		name string
		data []byte
	}
	results := make([]*download, len(files))

	var wg sync.WaitGroup
	for i, file := range files {
		sourceURL := file.URL()
		if sourceURL == "" {
			continue
		}
		name := SanitizeFilename(file.Name)
		wg.Add(1)
		go func(i int, name, sourceURL string) {
			defer wg.Done()
			data, err := f.client.Download(ctx, sourceURL)
			if err != nil {
				f.logger.Warn("attachment download failed",
					zap.String("record", dirName),
					zap.String("file", name),
					zap.Error(err))
				return
			}
			results[i] = &download{name: name, data: data}
		}(i, name, sourceURL)
	}
	wg.Wait()

	directory := filepath.Join(f.baseDir, dirName)
	created := false
	var stored []string
	for _, result := range results {
		if result == nil {
			continue
		}
		if !created {
			if err := os.MkdirAll(directory, 0o755); err != nil {
				f.logger.Warn("attachment directory creation failed",
					zap.String("directory", directory),
					zap.Error(err))
				return nil
			}
			created = true
		}
		if err := os.WriteFile(filepath.Join(directory, result.name), result.data, 0o644); err != nil {
			f.logger.Warn("attachment write failed",
				zap.String("record", dirName),
				zap.String("file", result.name),
				zap.Error(err))
			continue
		}
		stored = append(stored, result.name)
	}
	return stored
}

const maxFilenameLength = 255

// SanitizeFilename strips characters that are illegal in filesystem paths
// and caps the length.
func SanitizeFilename(name string) string {
	replaced := strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return '_'
		}
		return r
	}, name)
	if len(replaced) > maxFilenameLength {
		replaced = replaced[:maxFilenameLength]
	}
	return replaced
}
