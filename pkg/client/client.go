// Package client reconstructs a progressively revealed chat answer on the
// client side. A Source delivers updates for one message, either live from the
// relay's event stream or by revealing a buffered answer rune by rune; a
// Session applies those updates to per-turn views and tracks each turn's state.
package client

import (
	"context"
	"errors"
	"fmt"
)

// ApologyMessage replaces a turn's partial answer when its call fails.
const ApologyMessage = "抱歉，服务器连接失败。请检查网络连接或稍后重试。"

// ErrIncompleteStream is returned when the server's event stream ends
// without its terminal marker.
var ErrIncompleteStream = errors.New("server stream ended without terminal marker")

// UpdateFunc receives the full content revealed so far. isComplete is set on
// the last call only.
type UpdateFunc func(content string, isComplete bool)

// Source produces progressive updates for one message. Implementations call
// onUpdate synchronously with monotonically growing content and finish with
// exactly one isComplete call on success. The returned string is the final
// content.
type Source interface {
	Stream(ctx context.Context, message, model string, onUpdate UpdateFunc) (string, error)
}

// ServerError is an error reported by the hellochat server.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	if e.Status == 0 {
		return "server error: " + e.Message
	}
	return fmt.Sprintf("server error (%d): %s", e.Status, e.Message)
}
