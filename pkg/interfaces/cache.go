package interfaces

import (
	"context"
	"time"
)

// Cache stores opaque byte payloads under string keys.
type Cache interface {
	// Get returns the value for key or a miss error
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with a TTL, zero means no expiry
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	Delete(ctx context.Context, key string) error

	// Clear removes every value owned by this cache
	Clear(ctx context.Context) error
}
