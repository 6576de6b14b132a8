package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/papercomputeco/hellochat/pkg/sse"
)

// LiveSource reads progressive updates from the server's /stream endpoint.
type LiveSource struct {
	// BaseURL is the server root, e.g. http://localhost:8080.
	BaseURL string

	// Slot names the conversation; a new message on the same slot cancels the
	// previous one on the server.
	Slot string

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

type streamRecord struct {
	Content *string `json:"content"`
	Error   string  `json:"error"`
}

// Stream implements Source.
func (l *LiveSource) Stream(ctx context.Context, message, model string, onUpdate UpdateFunc) (string, error) {
	endpoint, err := l.streamURL(message, model)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("creating stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	client := l.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("stream request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", decodeServerError(resp)
	}

	var content string
	reader := sse.NewReader(resp.Body)
	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return "", ErrIncompleteStream
		}
		if err != nil {
			return "", fmt.Errorf("reading stream: %w", err)
		}

		if rec.IsDone() {
			onUpdate(content, true)
			return content, nil
		}

		var r streamRecord
		if err := json.Unmarshal([]byte(rec.Data), &r); err != nil {
			continue
		}
		if r.Error != "" {
			return "", &ServerError{Message: r.Error}
		}
		if r.Content != nil && *r.Content != content {
			content = *r.Content
			onUpdate(content, false)
		}
	}
}

func (l *LiveSource) streamURL(message, model string) (string, error) {
	u, err := url.Parse(strings.TrimRight(l.BaseURL, "/") + "/stream")
	if err != nil {
		return "", fmt.Errorf("parsing server URL: %w", err)
	}

	q := u.Query()
	q.Set("message", message)
	if model != "" {
		q.Set("model", model)
	}
	if l.Slot != "" {
		q.Set("slot", l.Slot)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func decodeServerError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))

	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return &ServerError{Status: resp.StatusCode, Message: e.Error}
	}
	return &ServerError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
}
