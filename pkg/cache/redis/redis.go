// Package redis provides a Redis-backed result cache, so several relay
// processes can share answers to repeated short prompts.
package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/papercomputeco/hellochat/pkg/cache"
	"github.com/papercomputeco/hellochat/pkg/llm"
)

const (
	defaultKeyPrefix = "hellochat:cache"
	defaultTTL       = time.Hour
)

// Config is the Redis cache configuration.
type Config struct {
	// Addr is the Redis server address (e.g., "localhost:6379").
	Addr string

	// Password is the optional Redis password.
	Password string

	// DB selects the Redis logical database.
	DB int

	// KeyPrefix namespaces cache keys. Defaults to "hellochat:cache".
	KeyPrefix string

	// TTL bounds the life of every entry. Defaults to one hour.
	TTL time.Duration

	// DialTimeout bounds connection setup. Zero uses the go-redis default.
	DialTimeout time.Duration
}

// Cache stores results as JSON values with a TTL.
type Cache struct {
	rdb       *goredis.Client
	keyPrefix string
	ttl       time.Duration
}

var _ cache.Cache = (*Cache)(nil)

// New creates a Redis cache. The connection is established lazily.
func New(c Config) (*Cache, error) {
	if c.Addr == "" {
		return nil, errors.New("redis cache requires an address")
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = defaultKeyPrefix
	}
	if c.TTL <= 0 {
		c.TTL = defaultTTL
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        c.Addr,
		Password:    c.Password,
		DB:          c.DB,
		DialTimeout: c.DialTimeout,
	})

	return &Cache{
		rdb:       rdb,
		keyPrefix: c.KeyPrefix,
		ttl:       c.TTL,
	}, nil
}

// Get loads and decodes the cached result. A corrupt value is deleted and
// reported as a miss.
func (c *Cache) Get(ctx context.Context, key cache.Key) (llm.AggregatedResult, bool, error) {
	k := c.redisKey(key)

	raw, err := c.rdb.Get(ctx, k).Bytes()
	if errors.Is(err, goredis.Nil) {
		return llm.AggregatedResult{}, false, nil
	}
	if err != nil {
		return llm.AggregatedResult{}, false, fmt.Errorf("redis get %q: %w", k, err)
	}

	var result llm.AggregatedResult
	if err := json.Unmarshal(raw, &result); err != nil {
		_ = c.rdb.Del(ctx, k).Err()
		return llm.AggregatedResult{}, false, nil
	}

	return result, true, nil
}

// AddIfAbsent stores result with SET NX so the first completed writer wins.
func (c *Cache) AddIfAbsent(ctx context.Context, key cache.Key, result llm.AggregatedResult) (bool, error) {
	k := c.redisKey(key)

	payload, err := json.Marshal(result)
	if err != nil {
		return false, fmt.Errorf("encoding cache entry: %w", err)
	}

	stored, err := c.rdb.SetNX(ctx, k, payload, c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %q: %w", k, err)
	}
	return stored, nil
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

// redisKey hashes the key so arbitrary user text never lands in the keyspace.
func (c *Cache) redisKey(key cache.Key) string {
	sum := sha256.Sum256([]byte(key.String()))
	return c.keyPrefix + ":" + hex.EncodeToString(sum[:])
}
