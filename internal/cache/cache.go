package cache

import (
	"context"
	"time"
)

// Cache is the key-value collaborator the services invalidate and read
// through. It is never a source of truth; implementations make no
// transactional guarantee with the note store.
type Cache interface {
	// Get returns the stored value, or (nil, nil) on a miss.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
