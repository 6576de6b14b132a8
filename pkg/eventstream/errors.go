package eventstream

import "errors"

// ErrNilCompletionEvent indicates a nil completion event payload was provided to a publisher.
var ErrNilCompletionEvent = errors.New("nil completion event")
