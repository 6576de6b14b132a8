package relay

import (
	"context"
	"sync"
)

// Slots tracks the in-flight progressive call for each named slot, usually
// one per conversation. Starting a call on a busy slot cancels the previous
// call and stops its updates.
type Slots struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	mu     sync.Mutex
	gen    uint64
	cancel context.CancelCauseFunc

	// dead is set once the last holder releases the slot.
	dead bool
}

// ticket is one call's claim on a slot.
type ticket struct {
	slots *Slots
	name  string
	slot  *slot
	gen   uint64
}

// NewSlots returns an empty slot table.
func NewSlots() *Slots {
	return &Slots{slots: make(map[string]*slot)}
}

// acquire claims name for a new call, canceling any prior holder with
// ErrSuperseded. The returned context is canceled when the claim is lost.
// An empty name is never shared.
func (s *Slots) acquire(ctx context.Context, name string) (context.Context, *ticket) {
	callCtx, cancel := context.WithCancelCause(ctx)
	if name == "" {
		return callCtx, &ticket{slot: &slot{gen: 1, cancel: cancel}, gen: 1}
	}

	var sl *slot
	for {
		s.mu.Lock()
		var ok bool
		sl, ok = s.slots[name]
		if !ok {
			sl = &slot{}
			s.slots[name] = sl
		}
		s.mu.Unlock()

		sl.mu.Lock()
		if !sl.dead {
			break
		}
		sl.mu.Unlock()
		s.remove(name, sl)
	}

	if sl.cancel != nil {
		sl.cancel(ErrSuperseded)
	}
	sl.gen++
	sl.cancel = cancel
	gen := sl.gen
	sl.mu.Unlock()

	return callCtx, &ticket{slots: s, name: name, slot: sl, gen: gen}
}

// Active reports how many named slots have a call in flight.
func (s *Slots) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

// remove drops sl from the table if it is still registered under name.
func (s *Slots) remove(name string, sl *slot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slots[name] == sl {
		delete(s.slots, name)
	}
}

// deliver runs fn only while t still owns its slot. Once a newer call has
// acquired the slot, deliver returns false without running fn. fn runs
// without any slot lock held, so a blocked fn never delays a newer call on
// the same slot.
func (t *ticket) deliver(fn func()) bool {
	if !t.current() {
		return false
	}
	fn()
	return true
}

// current reports whether t still owns its slot.
func (t *ticket) current() bool {
	t.slot.mu.Lock()
	defer t.slot.mu.Unlock()
	return t.slot.gen == t.gen
}

// release ends the claim and frees the slot if no newer call holds it.
func (t *ticket) release() {
	if t.slots == nil {
		t.slot.cancel(nil)
		return
	}

	t.slot.mu.Lock()
	if t.slot.gen != t.gen {
		t.slot.mu.Unlock()
		return
	}
	t.slot.cancel(nil)
	t.slot.cancel = nil
	t.slot.dead = true
	t.slot.mu.Unlock()

	t.slots.remove(t.name, t.slot)
}
