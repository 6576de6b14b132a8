// Package cacheutils builds the configured cache.Cache implementation.
package cacheutils

import (
	"fmt"
	"time"

	"github.com/papercomputeco/hellochat/pkg/cache"
	"github.com/papercomputeco/hellochat/pkg/cache/memory"
	"github.com/papercomputeco/hellochat/pkg/cache/redis"
)

type NewCacheOpts struct {
	ProviderType string
	Size         int
	TTL          time.Duration
	RedisAddr    string
}

// NewCache returns the configured cache, or nil when caching is disabled.
func NewCache(o *NewCacheOpts) (cache.Cache, error) {
	switch o.ProviderType {
	case cache.ProviderMemory, "":
		return memory.New(memory.Config{
			Size: o.Size,
			TTL:  o.TTL,
		}), nil
	case cache.ProviderRedis:
		c, err := redis.New(redis.Config{
			Addr: o.RedisAddr,
			TTL:  o.TTL,
		})
		if err != nil {
			return nil, fmt.Errorf("creating redis cache: %w", err)
		}
		return c, nil
	case cache.ProviderNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported cache provider: %s", o.ProviderType)
	}
}
