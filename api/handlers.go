package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/hellochat/pkg/llm"
	"github.com/papercomputeco/hellochat/pkg/sse"
	"github.com/papercomputeco/hellochat/relay"
	"github.com/papercomputeco/hellochat/relay/header"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string  `json:"status"`
	Timestamp string  `json:"timestamp"`
	Uptime    float64 `json:"uptime"`
}

// StreamUpdate is the JSON payload of each /stream data record. Content is
// always the full accumulated text, never a fragment.
type StreamUpdate struct {
	Content string `json:"content"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(s.startedAt).Seconds(),
	})
}

// handleStream relays one progressive completion as server-sent events.
func (s *Server) handleStream(c *fiber.Ctx) error {
	if c.Method() != fiber.MethodGet {
		c.Set(fiber.HeaderAllow, fiber.MethodGet)
		return c.Status(fiber.StatusMethodNotAllowed).JSON(llm.ErrorResponse{Error: "method not allowed"})
	}

	message := c.Query("message")
	if message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "message is required"})
	}

	// Failures known before the first byte get a proper status code.
	if s.relay.Config().APIKey == "" {
		s.logger.Error("stream request rejected", "error", relay.ErrMissingCredential)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: relay.ErrMissingCredential.Error()})
	}

	slot := c.Query("slot")
	if slot == "" {
		slot = c.Get(header.SlotHeader)
	}
	req := s.relay.ProgressiveRequest(message, c.Query("model"))

	s.headerHandler.SetStreamResponseHeaders(c)

	// Use io.Pipe + SetBodyStream so each pw.Write blocks until fasthttp has
	// flushed the previous chunk to the client. The call runs on a background
	// context because fasthttp recycles the request context once the handler
	// returns; closing the body stream cancels it instead.
	ctx, cancel := context.WithCancel(context.Background())
	pr, pw := io.Pipe()
	go s.streamToPipeWriter(ctx, cancel, pw, slot, req)

	// Set the body stream with unknown size (-1), which triggers chunked
	// transfer encoding in fasthttp.
	c.Context().Response.SetBodyStream(&streamBody{PipeReader: pr, cancel: cancel}, -1)

	return nil
}

// streamBody is the /stream response body. fasthttp closes it once the
// response is written or writing to the client fails, which cancels the
// relay call.
type streamBody struct {
	*io.PipeReader
	cancel context.CancelFunc
}

func (b *streamBody) Close() error {
	b.cancel()
	return b.PipeReader.Close()
}

// streamToPipeWriter runs the relay call and encodes its updates. A failed
// pipe write cancels the call.
func (s *Server) streamToPipeWriter(ctx context.Context, cancel context.CancelFunc, pw *io.PipeWriter, slot string, req llm.CompletionRequest) {
	defer pw.Close()
	defer cancel()

	w := sse.NewWriter(pw)
	var writeErr error

	_, err := s.relay.CompleteProgressive(ctx, slot, req, func(content string, _ bool) {
		if writeErr != nil {
			return
		}
		payload, err := json.Marshal(StreamUpdate{Content: content})
		if err != nil {
			writeErr = err
			cancel()
			return
		}
		if err := w.WriteData(string(payload)); err != nil {
			writeErr = err
			cancel()
		}
	})

	if writeErr != nil {
		s.logger.Debug("stream client went away", "error", writeErr)
		return
	}

	if err != nil && !errors.Is(err, relay.ErrSuperseded) {
		s.logger.Error("stream relay failed", "error", err)
		payload, _ := json.Marshal(llm.ErrorResponse{Error: err.Error()})
		if err := w.WriteData(string(payload)); err != nil {
			return
		}
	}

	if err := w.WriteDone(); err != nil {
		s.logger.Debug("failed to write stream terminator", "error", err)
	}
}
