package storage

import (
	"context"
)

type Storage interface {
	// Put stores data under key and returns a URL the object can be read from.
	Put(ctx context.Context, key string, data []byte) (string, error)
}
