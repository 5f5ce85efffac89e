package storage

import (
	"context"
	"net/http"

	"golang.org/x/xerrors"
)

type BackendConfig struct {
	ImageBed ImageBedConfig
	S3       S3Config
	File     FileConfig
	// Client is used by HTTP backends.
	Client *http.Client
}

// NewBackend builds the named backend. "none" returns a nil Storage, which
// makes every publish inline.
func NewBackend(ctx context.Context, name string, c BackendConfig) (Storage, error) {
	switch name {
	case "imagebed", "":
		return NewImageBedStorage(c.Client, c.ImageBed), nil
	case "s3":
		return NewS3Storage(ctx, c.S3)
	case "file":
		return NewFileStorage(c.File)
	case "none":
		return nil, nil
	}
	return nil, xerrors.Errorf("unknown storage backend %q", name)
}
