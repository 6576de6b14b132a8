// Package aggregator reconstructs a single answer from an ordered sequence
// of stream events and records completed answers for short prompts in the
// result cache.
//
// An Aggregator belongs to exactly one in-flight relay call. It is passed by
// pointer through the call's read loop and is never shared, so concurrent
// calls cannot interleave content.
package aggregator

import (
	"context"
	"log/slog"

	"github.com/papercomputeco/hellochat/pkg/cache"
	"github.com/papercomputeco/hellochat/pkg/llm"
	"github.com/papercomputeco/hellochat/pkg/utils"
)

// Config is shared by every aggregation a relay starts.
type Config struct {
	// Cache is the optional result cache. Nil disables caching.
	Cache cache.Cache

	// ShortMessageThreshold is the rune count below which a message is
	// cached. Zero uses cache.DefaultShortMessageThreshold.
	ShortMessageThreshold int

	// Logger is the provided logger. Nil discards.
	Logger *slog.Logger
}

func (c Config) threshold() int {
	if c.ShortMessageThreshold == 0 {
		return cache.DefaultShortMessageThreshold
	}
	return c.ShortMessageThreshold
}

func (c Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}

// Lookup returns a cached, complete result for (model, message) if one
// exists. Cache errors are logged and treated as a miss.
func Lookup(ctx context.Context, c Config, model, message string) (llm.AggregatedResult, bool) {
	if c.Cache == nil || !cache.Qualifies(message, c.threshold()) {
		return llm.AggregatedResult{}, false
	}

	key := cache.Key{Model: model, Message: message}
	result, ok, err := c.Cache.Get(ctx, key)
	if err != nil {
		c.logger().Warn("cache lookup failed",
			"model", model,
			"error", err,
		)
		return llm.AggregatedResult{}, false
	}
	if !ok {
		return llm.AggregatedResult{}, false
	}

	c.logger().Debug("cache hit",
		"model", model,
		"message", utils.Truncate(message, 20),
	)

	result.IsComplete = true
	return result, true
}

// Stats counts what an aggregation has consumed.
type Stats struct {
	Deltas      int
	Unparseable int
	Ignored     int
}

// Aggregator accumulates stream events into an llm.AggregatedResult.
type Aggregator struct {
	config  Config
	model   string
	message string

	result llm.AggregatedResult
	stats  Stats
}

// New starts an aggregation for the given requested model and user message.
func New(c Config, model, message string) *Aggregator {
	return &Aggregator{
		config:  c,
		model:   model,
		message: message,
		result:  llm.AggregatedResult{Model: model},
	}
}

// Consume applies ev and returns a snapshot of the current state.
//
//   - Delta appends its text to the content.
//   - ModelEcho overwrites the model.
//   - UsageReport overwrites the usage; the last report wins.
//   - Terminal completes the aggregation and, for short messages, stores the
//     result in the cache unless an entry already exists.
//   - Unparseable is counted and dropped.
//
// Events consumed after completion are ignored.
func (a *Aggregator) Consume(ctx context.Context, ev llm.StreamEvent) llm.AggregatedResult {
	if a.result.IsComplete {
		a.stats.Ignored++
		return a.result.Clone()
	}

	switch ev.Kind {
	case llm.EventDelta:
		a.result.Content += ev.Text
		a.stats.Deltas++
	case llm.EventModel:
		a.result.Model = ev.Model
	case llm.EventUsage:
		if ev.Usage != nil {
			u := *ev.Usage
			a.result.Usage = &u
		}
	case llm.EventTerminal:
		a.result.IsComplete = true
		a.store(ctx)
	case llm.EventUnparseable:
		a.stats.Unparseable++
		a.config.logger().Debug("dropping unparseable stream record",
			"raw", utils.Truncate(ev.Raw, 80),
			"error", ev.Err,
		)
	default:
		a.stats.Ignored++
	}

	return a.result.Clone()
}

// Result returns a snapshot of the current state.
func (a *Aggregator) Result() llm.AggregatedResult {
	return a.result.Clone()
}

// Complete reports whether the terminal event has been consumed.
func (a *Aggregator) Complete() bool {
	return a.result.IsComplete
}

// Stats returns the event counters.
func (a *Aggregator) Stats() Stats {
	return a.stats
}

func (a *Aggregator) store(ctx context.Context) {
	c := a.config
	if c.Cache == nil || !cache.Qualifies(a.message, c.threshold()) {
		return
	}

	key := cache.Key{Model: a.model, Message: a.message}
	stored, err := c.Cache.AddIfAbsent(ctx, key, a.result.Clone())
	if err != nil {
		c.logger().Warn("cache store failed",
			"model", a.model,
			"error", err,
		)
		return
	}

	if stored {
		c.logger().Debug("cached result",
			"model", a.model,
			"message", utils.Truncate(a.message, 20),
		)
	}
}
