// Package cache defines the bounded result cache used to short-circuit
// repeated short prompts.
//
// Entries are keyed by (model, message) and hold the completed aggregation
// snapshot. Implementations must bound their growth (size and/or TTL) and be
// safe for concurrent use; concurrent writers to one key are resolved
// last-writer-wins.
package cache

import (
	"context"
	"strconv"
	"unicode/utf8"

	"github.com/papercomputeco/hellochat/pkg/llm"
)

const (
	// DefaultShortMessageThreshold is the rune count below which a message
	// is eligible for caching.
	DefaultShortMessageThreshold = 50

	// ProviderMemory is the in-process LRU cache.
	ProviderMemory = "memory"

	// ProviderRedis is the shared Redis-backed cache.
	ProviderRedis = "redis"

	// ProviderNone disables caching.
	ProviderNone = "none"
)

// Key identifies a cache entry.
type Key struct {
	Model   string
	Message string
}

// String renders the key as "<len(model)>:model:message". The length prefix
// keeps a colon inside the model from shifting the split between the two.
func (k Key) String() string {
	return strconv.Itoa(len(k.Model)) + ":" + k.Model + ":" + k.Message
}

// Cache stores completed aggregation results.
type Cache interface {
	// Get returns the cached result for key. A miss is (zero, false, nil).
	Get(ctx context.Context, key Key) (llm.AggregatedResult, bool, error)

	// AddIfAbsent stores result under key unless an entry already exists.
	// It reports whether the result was stored.
	AddIfAbsent(ctx context.Context, key Key, result llm.AggregatedResult) (bool, error)

	// Close releases any resources held by the cache.
	Close() error
}

// Qualifies reports whether message is short enough to be cached under the
// given threshold. A non-positive threshold disables caching.
func Qualifies(message string, threshold int) bool {
	if threshold <= 0 {
		return false
	}
	return utf8.RuneCountInString(message) < threshold
}
