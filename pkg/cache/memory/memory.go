// Package memory provides an in-process LRU result cache with a TTL.
package memory

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/papercomputeco/hellochat/pkg/cache"
	"github.com/papercomputeco/hellochat/pkg/llm"
)

const (
	defaultSize = 1024
	defaultTTL  = time.Hour
)

// Config is the in-memory cache configuration.
type Config struct {
	// Size is the maximum number of entries before the least recently used
	// one is evicted. Defaults to 1024.
	Size int

	// TTL is how long an entry lives after insertion. Defaults to one hour.
	TTL time.Duration
}

// Cache is an LRU cache bounded by both entry count and age.
type Cache struct {
	lru *expirable.LRU[string, llm.AggregatedResult]
}

var _ cache.Cache = (*Cache)(nil)

// New creates an in-memory cache.
func New(c Config) *Cache {
	if c.Size <= 0 {
		c.Size = defaultSize
	}
	if c.TTL <= 0 {
		c.TTL = defaultTTL
	}

	return &Cache{
		lru: expirable.NewLRU[string, llm.AggregatedResult](c.Size, nil, c.TTL),
	}
}

// Get returns a copy of the cached result.
func (c *Cache) Get(_ context.Context, key cache.Key) (llm.AggregatedResult, bool, error) {
	result, ok := c.lru.Get(key.String())
	if !ok {
		return llm.AggregatedResult{}, false, nil
	}
	return result.Clone(), true, nil
}

// AddIfAbsent stores a copy of result unless key is already present.
func (c *Cache) AddIfAbsent(_ context.Context, key cache.Key, result llm.AggregatedResult) (bool, error) {
	k := key.String()
	if c.lru.Contains(k) {
		return false, nil
	}
	c.lru.Add(k, result.Clone())
	return true, nil
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Close purges all entries.
func (c *Cache) Close() error {
	c.lru.Purge()
	return nil
}
