package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/hellochat/pkg/llm"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeCompletionFinished is emitted after a relay call reaches a
	// terminal state, successful or not.
	EventTypeCompletionFinished = "hellochat.completion.finished"
)

// CompletionEvent is a transport-neutral event payload for a finished relay call.
type CompletionEvent struct {
	SchemaVersion int                   `json:"schema_version"`
	EventType     string                `json:"event_type"`
	EventID       string                `json:"event_id"`
	EmittedAt     time.Time             `json:"emitted_at"`
	Source        EventSource           `json:"source"`
	RequestMeta   CompletionRequestMeta `json:"request_meta"`
	Result        llm.AggregatedResult  `json:"result"`

	// Error is the terminal error message for failed calls.
	Error string `json:"error,omitempty"`
}

// EventSource identifies where the completion originated.
type EventSource struct {
	Provider string `json:"provider"`
	Mode     string `json:"mode"`
}

// CompletionRequestMeta captures request lifecycle metadata for the event.
type CompletionRequestMeta struct {
	CallID         string    `json:"call_id"`
	Model          string    `json:"model"`
	MessageRunes   int       `json:"message_runes"`
	StartedAt      time.Time `json:"started_at"`
	CompletedAt    time.Time `json:"completed_at"`
	DurationMs     int64     `json:"duration_ms"`
	CacheHit       bool      `json:"cache_hit"`
	HTTPStatus     int       `json:"http_status,omitempty"`
	Fragments      int       `json:"fragments"`
	Unparseable    int       `json:"unparseable"`
}

// NewCompletionEvent stamps a payload with the current schema, type, ID and time.
func NewCompletionEvent(source EventSource, meta CompletionRequestMeta, result llm.AggregatedResult) *CompletionEvent {
	return &CompletionEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeCompletionFinished,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		RequestMeta:   meta,
		Result:        result.Clone(),
	}
}
