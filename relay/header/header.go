// Package header provides header policy for the hellochat relay.
//
// The relay sits between a chat client and the upstream LLM provider:
//
//	Client <--> Relay <--> Upstream LLM Provider
//
// and each leg negotiates its own headers. Upstream requests always ask for
// an event stream; downstream SSE responses must not be buffered or cached
// by intermediaries.
package header

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/hellochat/pkg/utils"
)

const (
	// SlotHeader optionally names the conversation slot for /stream calls.
	SlotHeader = "X-Hellochat-Slot"

	// EventStreamContentType is the SSE media type.
	EventStreamContentType = "text/event-stream"
)

// Handler manages headers on both legs of a relay call.
type Handler struct {
	userAgent string
}

// NewHandler creates a new header Handler.
func NewHandler() *Handler {
	return &Handler{userAgent: "hellochat/" + utils.Version}
}

// upstreamRequest is the fixed set of headers sent on every upstream call.
// Authorization is added separately. Accept-Encoding is left to Go's
// http.Transport, which only decompresses transparently when it set the
// header itself.
var upstreamRequest = map[string]string{
	"Content-Type":  "application/json",
	"Accept":        EventStreamContentType,
	"Cache-Control": "no-cache",
}

// streamResponse is the set of headers for downstream SSE responses.
var streamResponse = map[string]string{
	"Content-Type":  EventStreamContentType,
	"Cache-Control": "no-cache",
	"Connection":    "keep-alive",
	// Disables response buffering in nginx style reverse proxies.
	"X-Accel-Buffering": "no",
}

// SetUpstreamRequestHeaders sets the provider request headers, including the
// bearer credential.
func (h *Handler) SetUpstreamRequestHeaders(req *http.Request, apiKey string) {
	for k, v := range upstreamRequest {
		req.Header.Set(k, v)
	}
	req.Header.Set("User-Agent", h.userAgent)
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}

// SetStreamResponseHeaders sets the downstream SSE response headers on the
// Fiber context.
func (h *Handler) SetStreamResponseHeaders(c *fiber.Ctx) {
	for k, v := range streamResponse {
		c.Set(k, v)
	}
}
