package storage

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/legacyckpt/internal/config"
)

// Open returns the store selected by the storage configuration.
func Open(ctx context.Context, sc config.StorageConfig) (ObjectStore, error) {
	switch sc.Backend {
	case config.StorageFS:
		return NewFSStore(sc.FSRoot)
	case config.StorageS3, "":
		return NewS3Store(ctx, sc)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", sc.Backend)
	}
}
