package domain

import (
	"context"
	"time"
)

// Cache is a shared key/value cache with atomic get/set and a bounded
// TTL. Last writer wins; staleness is acceptable for everything stored
// through it.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}
