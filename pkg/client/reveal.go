package client

import (
	"context"
	"time"
)

// DefaultRevealDelay is the pause between revealed runes.
const DefaultRevealDelay = 20 * time.Millisecond

// Reveal simulates streaming of an already complete answer. It calls onUpdate
// for every rune prefix of content, from the empty prefix to the full text,
// pausing delay between calls. The last call has isComplete set. Reveal stops
// early with the context's error if ctx ends.
func Reveal(ctx context.Context, content string, delay time.Duration, onUpdate UpdateFunc) error {
	runes := []rune(content)

	var timer *time.Timer
	if delay > 0 {
		timer = time.NewTimer(delay)
		defer timer.Stop()
	}

	for i := 0; i <= len(runes); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		onUpdate(string(runes[:i]), i == len(runes))

		if i == len(runes) || timer == nil {
			continue
		}

		if i > 0 {
			timer.Reset(delay)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return nil
}
