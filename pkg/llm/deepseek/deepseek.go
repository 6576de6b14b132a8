// Package deepseek speaks the DeepSeek chat completions wire format: it
// builds the streaming request payload and decodes stream records into
// provider-agnostic llm.StreamEvent values.
package deepseek

import (
	"encoding/json"
	"fmt"

	"github.com/papercomputeco/hellochat/pkg/llm"
	"github.com/papercomputeco/hellochat/pkg/sse"
)

const (
	// Name is the canonical provider name used in logs and events.
	Name = "deepseek"

	// DefaultAPIURL is the chat completions endpoint.
	DefaultAPIURL = "https://api.deepseek.com/v1/chat/completions"
)

// BuildPayload encodes req as a streaming chat completions request.
// Streaming is always requested, including for buffered callers: reading the
// body incrementally avoids stalls on large single-shot responses.
func BuildPayload(req llm.CompletionRequest) ([]byte, error) {
	messages := make([]chatMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.UserMessage})

	body := chatRequest{
		Model:       req.Model,
		Messages:    messages,
		Stream:      true,
		Temperature: req.Temperature,
	}
	if req.MaxTokens > 0 {
		maxTokens := req.MaxTokens
		body.MaxTokens = &maxTokens
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding chat request: %w", err)
	}
	return payload, nil
}

// DecodeRecord turns one stream record into zero or more events.
//
// The sentinel maps to a single terminal event. A JSON record may carry a
// model echo, a content delta and a usage report at once; they are emitted
// in that order. A record that fails to decode yields one unparseable event
// and never an error, so one bad line cannot abort the stream.
func DecodeRecord(rec sse.Record) []llm.StreamEvent {
	if rec.IsDone() {
		return []llm.StreamEvent{llm.Terminal()}
	}

	var chunk streamChunk
	if err := json.Unmarshal([]byte(rec.Data), &chunk); err != nil {
		return []llm.StreamEvent{llm.Unparseable(rec.Data, err)}
	}

	var events []llm.StreamEvent
	if chunk.Model != "" {
		events = append(events, llm.ModelEcho(chunk.Model))
	}
	if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
		events = append(events, llm.Delta(chunk.Choices[0].Delta.Content))
	}
	if chunk.Usage != nil {
		events = append(events, llm.UsageReport(llm.Usage{
			PromptTokens:     chunk.Usage.PromptTokens,
			CompletionTokens: chunk.Usage.CompletionTokens,
			TotalTokens:      chunk.Usage.TotalTokens,
		}))
	}

	return events
}
