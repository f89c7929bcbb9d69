package cache

import (
	"context"
	"fmt"
	"time"
)

// CacheInterface defines the set of methods that need to be implemented to
// be used as a cache storage.
type CacheInterface interface {
	Connect(url string) error
	Disconnect() error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// ErrCacheMiss is returned by Get when the key does not exist. Callers fall
// back to recomputation on a miss; it is never a failure of the cache.
var ErrCacheMiss = fmt.Errorf("key does not exist")

// NewCache creates a new CacheInterface with a Redis backend.
// It connects to the provided address, and returns the cache instance or
// an error if the connection failed.
func NewCache(url string) (CacheInterface, error) {
	c := NewRedisCache()
	err := c.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	return c, nil
}
