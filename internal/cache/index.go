package cache

import (
	"context"
	"time"

	"github.com/desertthunder/cloudplay/internal/models"
)

// Blobs is the byte storage a [Cache] sits on.
//
// Implemented by store.Store and store.DirStore.
type Blobs interface {
	Put(key string, data []byte) (string, error)
	Get(key string) ([]byte, error)
	Delete(key string) error
	SizeOf(key string) (int64, error)
	Path(key string) string
	Keys() ([]string, error)
}

// Index persists cache metadata between sessions.
//
// The cache treats the index as advisory: write failures are logged and the in-memory state stays authoritative.
type Index interface {
	Load(ctx context.Context, namespace string) ([]models.CacheEntry, error)
	Upsert(ctx context.Context, namespace string, entry models.CacheEntry) error
	Touch(ctx context.Context, namespace, key string, at time.Time) error
	Remove(ctx context.Context, namespace, key string) error
	Clear(ctx context.Context, namespace string) error
}
