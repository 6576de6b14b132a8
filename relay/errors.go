package relay

import (
	"errors"
	"fmt"
)

var (
	// ErrUpstreamTimeout is returned when a call exceeds its wall clock budget.
	ErrUpstreamTimeout = errors.New("upstream timeout")

	// ErrIncompleteStream is returned when the upstream body ends before the
	// terminal marker.
	ErrIncompleteStream = errors.New("upstream stream ended without terminal marker")

	// ErrMissingCredential is returned before any network call when no API
	// key is configured.
	ErrMissingCredential = errors.New("missing upstream API key")

	// ErrSuperseded is returned by a progressive call whose slot was taken
	// over by a newer call.
	ErrSuperseded = errors.New("superseded by a newer call on the same slot")
)

// UpstreamRejectedError is returned when the provider answers with a non-2xx
// status. Body holds a truncated copy of the response body.
type UpstreamRejectedError struct {
	Status int
	Body   string
}

func (e *UpstreamRejectedError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream rejected request: status %d", e.Status)
	}
	return fmt.Sprintf("upstream rejected request: status %d: %s", e.Status, e.Body)
}
