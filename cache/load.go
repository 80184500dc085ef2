package cache

import (
	"context"
	"time"
)

// GetTyped returns the cached value for key when it is present, fresh and of type T.
func GetTyped[T any](c *Cache, key string) (T, bool) {
	var zero T
	value, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	typed, ok := value.(T)
	if !ok {
		c.logger.Warn("cached value has unexpected type, dropping it", "key", key)
		c.Delete(key)
		return zero, false
	}
	return typed, true
}

// GetOrLoad is a cache-aside read. Concurrent misses for the same key share one call to load, and only successful
// loads are stored. The shared load runs detached from any one caller's cancellation and is bounded by the cache's
// load timeout; a caller whose ctx ends stops waiting and gets ctx.Err().
func GetOrLoad[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, load func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if value, ok := GetTyped[T](c, key); ok {
		return value, nil
	}

	results := c.flight.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()

		value, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		c.Set(key, value, ttl)
		return value, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case result := <-results:
		if result.Err != nil {
			return zero, result.Err
		}
		if result.Shared {
			c.logger.Debug("shared in-flight load", "key", key)
		}
		return result.Val.(T), nil
	}
}
