package llm

import "fmt"

// EventKind tags the variant carried by a StreamEvent.
type EventKind int

const (
	// EventDelta carries an incremental content fragment in Text.
	EventDelta EventKind = iota + 1

	// EventUsage carries a token usage report in Usage.
	EventUsage

	// EventModel carries the model name echoed by the provider in Model.
	EventModel

	// EventTerminal is the provider's explicit end-of-stream marker.
	EventTerminal

	// EventUnparseable is a record that failed to decode. It is dropped by
	// the aggregator and never aborts a stream.
	EventUnparseable
)

func (k EventKind) String() string {
	switch k {
	case EventDelta:
		return "delta"
	case EventUsage:
		return "usage"
	case EventModel:
		return "model"
	case EventTerminal:
		return "terminal"
	case EventUnparseable:
		return "unparseable"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// StreamEvent is a single parsed event from a provider stream. Only the
// fields matching Kind are meaningful. Ordering within a stream is
// significant and is preserved end to end.
type StreamEvent struct {
	Kind EventKind

	// Text is set for EventDelta.
	Text string

	// Usage is set for EventUsage.
	Usage *Usage

	// Model is set for EventModel.
	Model string

	// Raw and Err are set for EventUnparseable.
	Raw string
	Err error
}

// Delta returns an EventDelta carrying text.
func Delta(text string) StreamEvent {
	return StreamEvent{Kind: EventDelta, Text: text}
}

// UsageReport returns an EventUsage carrying a copy of u.
func UsageReport(u Usage) StreamEvent {
	return StreamEvent{Kind: EventUsage, Usage: &u}
}

// ModelEcho returns an EventModel carrying model.
func ModelEcho(model string) StreamEvent {
	return StreamEvent{Kind: EventModel, Model: model}
}

// Terminal returns an EventTerminal.
func Terminal() StreamEvent {
	return StreamEvent{Kind: EventTerminal}
}

// Unparseable returns an EventUnparseable for raw with the decode error.
func Unparseable(raw string, err error) StreamEvent {
	return StreamEvent{Kind: EventUnparseable, Raw: raw, Err: err}
}
