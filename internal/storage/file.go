package storage

import (
	"context"
	"net/url"
	"os"
	"path/filepath"

	"golang.org/x/xerrors"
)

type fileStorage struct {
	config FileConfig
}

type FileConfig struct {
	Directory string
	// Prefix is a subdirectory of Directory.
	Prefix string
}

func NewFileStorage(f FileConfig) (Storage, error) {
	if f.Directory == "" {
		f.Directory = "."
	}
	directory, err := filepath.Abs(f.Directory)
	if err != nil {
		return nil, xerrors.Errorf("failed to resolve directory %s: %w", f.Directory, err)
	}
	f.Directory = directory

	return &fileStorage{
		config: f,
	}, nil
}

func (a *fileStorage) Put(ctx context.Context, key string, data []byte) (string, error) {
	filePath := filepath.Join(a.config.Directory, a.config.Prefix, filepath.Base(key))

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return "", xerrors.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", xerrors.Errorf("failed to write file: %w", err)
	}

	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(filePath)}).String(), nil
}
