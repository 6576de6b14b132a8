package client

import (
	"sync"
	"unicode/utf8"
)

// ProgressiveView is the text displayed for one assistant turn. While not
// done its length never decreases; once done it is frozen.
type ProgressiveView struct {
	mu   sync.Mutex
	text string
	done bool
}

// Apply replaces the displayed text with content. Updates that would shrink
// the text, or that arrive after the view is done, are dropped. Apply
// reports whether the update was taken.
func (v *ProgressiveView) Apply(content string, isComplete bool) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.done {
		return false
	}
	if utf8.RuneCountInString(content) < utf8.RuneCountInString(v.text) {
		return false
	}

	v.text = content
	v.done = isComplete
	return true
}

// Fail replaces the text with msg and freezes the view.
func (v *ProgressiveView) Fail(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.text = msg
	v.done = true
}

// Snapshot returns the displayed text and whether the view is done.
func (v *ProgressiveView) Snapshot() (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.text, v.done
}
