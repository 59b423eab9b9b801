package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/pkg/config"
)

// ErrObjectNotFound is returned when a key does not exist in the store.
var ErrObjectNotFound = errors.New("storage: object not found")

// ObjectStore persists binary blobs such as tutor certificates and resources.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// New selects a driver from configuration.
func New(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (ObjectStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Driver {
	case "", config.StorageDriverLocal:
		logger.Info("object storage initialised", zap.String("driver", config.StorageDriverLocal), zap.String("dir", cfg.LocalDir))
		return NewLocalStorage(cfg.LocalDir)
	case config.StorageDriverGCS:
		logger.Info("object storage initialised", zap.String("driver", config.StorageDriverGCS), zap.String("bucket", cfg.GCSBucket))
		return NewGCSStorage(ctx, cfg.GCSBucket, cfg.GCSCredentials)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
