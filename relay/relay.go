// Package relay provides the streaming completion relay: it issues one
// upstream chat completion request, consumes the provider's event stream,
// reconstructs a single answer and hands it back either buffered or as a
// sequence of progressive updates.
package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/papercomputeco/hellochat/pkg/aggregator"
	"github.com/papercomputeco/hellochat/pkg/cache"
	"github.com/papercomputeco/hellochat/pkg/eventstream"
	"github.com/papercomputeco/hellochat/pkg/llm"
	"github.com/papercomputeco/hellochat/pkg/llm/deepseek"
	"github.com/papercomputeco/hellochat/pkg/sse"
	"github.com/papercomputeco/hellochat/pkg/utils"
	"github.com/papercomputeco/hellochat/relay/header"
	"github.com/papercomputeco/hellochat/relay/worker"
)

const (
	modeOneShot     = "one_shot"
	modeProgressive = "progressive"

	// maxErrorBodyBytes bounds how much of a rejected response is read.
	maxErrorBodyBytes = 4 * 1024

	// maxErrorBodyRunes bounds the body kept on UpstreamRejectedError.
	maxErrorBodyRunes = 200
)

// UpdateFunc receives the full accumulated content after every delta and
// once more with isComplete set when the call terminates successfully.
type UpdateFunc func(content string, isComplete bool)

// Relay drives chat completion calls against a single upstream provider.
// It is safe for concurrent use; each call owns its own aggregation state.
type Relay struct {
	config        Config
	cache         cache.Cache
	workerPool    *worker.Pool
	slots         *Slots
	headerHandler *header.Handler
	httpClient    *http.Client
	logger        *slog.Logger
}

// New creates a new Relay.
// The cache may be nil to disable result caching. The publisher may be nil to
// disable completion events; otherwise events are published asynchronously
// through a worker pool that Close drains.
func New(config Config, c cache.Cache, publisher eventstream.Publisher, logger *slog.Logger) (*Relay, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := &Relay{
		config:        config.withDefaults(),
		cache:         c,
		slots:         NewSlots(),
		headerHandler: header.NewHandler(),
		// Deadlines are carried by each call's context.
		httpClient: &http.Client{},
		logger:     logger,
	}

	if publisher != nil {
		wp, err := worker.NewPool(&worker.Config{
			Publisher: publisher,
			Logger:    logger,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create worker pool: %w", err)
		}
		r.workerPool = wp
	}

	return r, nil
}

// Close waits for queued completion events to drain.
func (r *Relay) Close() error {
	if r.workerPool != nil {
		r.workerPool.Close()
	}
	return nil
}

// Config returns the effective configuration.
func (r *Relay) Config() Config {
	return r.config
}

// OneShotRequest builds a request for message with the one-shot policy and
// the configured system prompt. An empty model selects the configured model.
func (r *Relay) OneShotRequest(message, model string) llm.CompletionRequest {
	return r.newRequest(message, model, r.config.OneShot)
}

// ProgressiveRequest builds a request for message with the progressive policy
// and the configured system prompt.
func (r *Relay) ProgressiveRequest(message, model string) llm.CompletionRequest {
	return r.newRequest(message, model, r.config.Progressive)
}

func (r *Relay) newRequest(message, model string, policy Policy) llm.CompletionRequest {
	if model == "" {
		model = r.config.Model
	}
	return llm.NewCompletionRequest(message,
		llm.WithModel(model),
		llm.WithMaxTokens(policy.MaxTokens),
		llm.WithTemperature(policy.Temperature),
		llm.WithSystemPrompt(r.config.SystemPrompt),
	)
}

// Complete runs req to completion and returns the buffered result. A result
// without a usage report carries zero usage.
func (r *Relay) Complete(ctx context.Context, req llm.CompletionRequest) (llm.AggregatedResult, error) {
	ctx, t := r.slots.acquire(ctx, "")
	defer t.release()

	res, err := r.run(ctx, t, callSpec{
		mode:   modeOneShot,
		policy: r.config.OneShot,
		req:    req,
	})
	if err != nil {
		return llm.AggregatedResult{}, err
	}

	if res.Usage == nil {
		res.Usage = &llm.Usage{}
	}
	return res, nil
}

// CompleteProgressive runs req and reports progress through onUpdate, which
// is called synchronously in stream order. Starting another call on the same
// slot cancels this one; once that happens onUpdate is never called again and
// the call returns ErrSuperseded.
func (r *Relay) CompleteProgressive(ctx context.Context, slot string, req llm.CompletionRequest, onUpdate UpdateFunc) (llm.AggregatedResult, error) {
	ctx, t := r.slots.acquire(ctx, slot)
	defer t.release()

	return r.run(ctx, t, callSpec{
		mode:     modeProgressive,
		slot:     slot,
		policy:   r.config.Progressive,
		req:      req,
		onUpdate: onUpdate,
	})
}

type callSpec struct {
	mode     string
	slot     string
	policy   Policy
	req      llm.CompletionRequest
	onUpdate UpdateFunc
}

// callTiming collects the per-call timing log block.
type callTiming struct {
	start      time.Time
	prepared   time.Duration
	headers    time.Duration
	firstChunk time.Duration
	total      time.Duration
	status     int
	chunks     int
	cacheHit   bool
}

func (r *Relay) run(ctx context.Context, t *ticket, call callSpec) (llm.AggregatedResult, error) {
	callID := uuid.NewString()
	timing := callTiming{start: time.Now()}
	logger := r.logger.With(
		"call_id", callID,
		"mode", call.mode,
		"model", call.req.Model,
	)
	if call.slot != "" {
		logger = logger.With("slot", call.slot)
	}

	var (
		res   llm.AggregatedResult
		stats aggregator.Stats
		err   error
	)
	defer func() {
		timing.total = time.Since(timing.start)
		r.logTiming(logger, timing, res, err)
		r.publish(callID, call, timing, stats, res, err)
	}()

	if r.config.APIKey == "" {
		err = ErrMissingCredential
		return llm.AggregatedResult{}, err
	}

	aggConfig := aggregator.Config{
		Cache:                 r.cache,
		ShortMessageThreshold: r.config.ShortMessageThreshold,
		Logger:                logger,
	}

	if cached, ok := aggregator.Lookup(ctx, aggConfig, call.req.Model, call.req.UserMessage); ok {
		timing.cacheHit = true
		res = cached
		if call.onUpdate != nil && !t.deliver(func() { call.onUpdate(res.Content, true) }) {
			res, err = llm.AggregatedResult{}, ErrSuperseded
			return res, err
		}
		return res, nil
	}

	callCtx, cancel := context.WithTimeoutCause(ctx, call.policy.Timeout, ErrUpstreamTimeout)
	defer cancel()

	res, stats, err = r.stream(callCtx, t, call, aggConfig, &timing, logger)
	if err != nil {
		res = llm.AggregatedResult{}
	}
	return res, err
}

// stream performs the upstream round trip and drives the parser and
// aggregator until the terminal marker.
func (r *Relay) stream(ctx context.Context, t *ticket, call callSpec, aggConfig aggregator.Config, timing *callTiming, logger *slog.Logger) (llm.AggregatedResult, aggregator.Stats, error) {
	payload, err := deepseek.BuildPayload(call.req)
	if err != nil {
		return llm.AggregatedResult{}, aggregator.Stats{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.config.APIURL, bytes.NewReader(payload))
	if err != nil {
		return llm.AggregatedResult{}, aggregator.Stats{}, fmt.Errorf("creating upstream request: %w", err)
	}
	r.headerHandler.SetUpstreamRequestHeaders(httpReq, r.config.APIKey)
	timing.prepared = time.Since(timing.start)

	logger.Debug("forwarding request to upstream",
		"url", r.config.APIURL,
		"message_runes", utf8.RuneCountInString(call.req.UserMessage),
	)

	httpResp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return llm.AggregatedResult{}, aggregator.Stats{}, r.callError(ctx, "upstream request failed", err)
	}
	// Released on every path, including cancellation mid-stream.
	defer httpResp.Body.Close()

	timing.headers = time.Since(timing.start)
	timing.status = httpResp.StatusCode

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBodyBytes))
		logger.Error("upstream returned error",
			"status", httpResp.StatusCode,
			"body", utils.Truncate(string(body), maxErrorBodyRunes),
		)
		return llm.AggregatedResult{}, aggregator.Stats{}, &UpstreamRejectedError{
			Status: httpResp.StatusCode,
			Body:   utils.Truncate(string(bytes.TrimSpace(body)), maxErrorBodyRunes),
		}
	}

	agg := aggregator.New(aggConfig, call.req.Model, call.req.UserMessage)
	reader := sse.NewReader(httpResp.Body)

	for !agg.Complete() {
		rec, err := reader.Next()
		timing.chunks = reader.Fragments
		if timing.firstChunk == 0 && reader.Fragments > 0 {
			timing.firstChunk = time.Since(timing.start)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return llm.AggregatedResult{}, agg.Stats(), r.callError(ctx, "reading upstream stream", err)
		}

		for _, ev := range deepseek.DecodeRecord(rec) {
			res := agg.Consume(ctx, ev)
			if ev.Kind != llm.EventDelta || call.onUpdate == nil {
				continue
			}
			if !t.deliver(func() { call.onUpdate(res.Content, false) }) {
				return llm.AggregatedResult{}, agg.Stats(), ErrSuperseded
			}
		}
	}

	if !agg.Complete() {
		// The body may have been cut short by cancellation rather than by
		// the upstream.
		if cause := context.Cause(ctx); cause != nil {
			return llm.AggregatedResult{}, agg.Stats(), cause
		}
		return llm.AggregatedResult{}, agg.Stats(), ErrIncompleteStream
	}

	res := agg.Result()
	if call.onUpdate != nil && !t.deliver(func() { call.onUpdate(res.Content, true) }) {
		return llm.AggregatedResult{}, agg.Stats(), ErrSuperseded
	}

	return res, agg.Stats(), nil
}

// callError maps a transport error to the call's cancellation cause when the
// context ended, and wraps it otherwise.
func (r *Relay) callError(ctx context.Context, msg string, err error) error {
	if cause := context.Cause(ctx); cause != nil {
		return cause
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func (r *Relay) logTiming(logger *slog.Logger, timing callTiming, res llm.AggregatedResult, err error) {
	attrs := []any{
		"cache_hit", timing.cacheHit,
		"request_prep", timing.prepared,
		"network", timing.headers,
		"first_chunk", timing.firstChunk,
		"stream_processing", max(timing.total-timing.headers, 0),
		"chunks", timing.chunks,
		"total", timing.total,
		"status", timing.status,
		"content_length", utf8.RuneCountInString(res.Content),
		"response_model", res.Model,
	}

	switch {
	case errors.Is(err, ErrSuperseded):
		logger.Info("completion superseded", attrs...)
		return
	case err != nil:
		logger.Error("completion failed", append(attrs, "error", err)...)
		return
	}
	logger.Debug("completion timing", attrs...)
}

func (r *Relay) publish(callID string, call callSpec, timing callTiming, stats aggregator.Stats, res llm.AggregatedResult, err error) {
	if r.workerPool == nil {
		return
	}

	completed := timing.start.Add(timing.total)
	event := eventstream.NewCompletionEvent(
		eventstream.EventSource{Provider: deepseek.Name, Mode: call.mode},
		eventstream.CompletionRequestMeta{
			CallID:       callID,
			Model:        call.req.Model,
			MessageRunes: utf8.RuneCountInString(call.req.UserMessage),
			StartedAt:    timing.start.UTC(),
			CompletedAt:  completed.UTC(),
			DurationMs:   timing.total.Milliseconds(),
			CacheHit:     timing.cacheHit,
			HTTPStatus:   timing.status,
			Fragments:    timing.chunks,
			Unparseable:  stats.Unparseable,
		},
		res,
	)
	if err != nil {
		event.Error = err.Error()
	}

	r.workerPool.Enqueue(worker.Job{Event: event})
}
