// Package sse provides the line framing used on both legs of the hellochat
// relay: a fragment-oriented parser for the upstream provider stream, and a
// minimal writer for the text/event-stream endpoint served to clients.
//
// Upstream providers deliver "data: <payload>" lines over a chunked HTTP
// body. Network reads do not respect line boundaries, so the parser keeps the
// unterminated tail of every fragment and prepends it to the next one.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

const (
	// DataPrefix is the field marker carried by every record we care about.
	DataPrefix = "data:"

	// DoneSentinel is the payload an OpenAI-compatible provider sends as its
	// explicit end-of-stream marker.
	DoneSentinel = "[DONE]"
)

// Record is a single complete "data:" line recovered from the stream, with
// the field name and the optional single leading space stripped.
type Record struct {
	Data string
}

// IsDone reports whether the record carries the end-of-stream sentinel.
func (r Record) IsDone() bool {
	return r.Data == DoneSentinel
}
