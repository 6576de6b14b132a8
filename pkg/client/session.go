package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Turn is one user message and the assistant answer shown for it.
type Turn struct {
	ID          string
	UserMessage string
	StartedAt   time.Time

	View ProgressiveView

	mu    sync.Mutex
	state State
	err   error
}

// State returns the turn's current state.
func (t *Turn) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Err returns the failure cause of a failed turn.
func (t *Turn) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Turn) transition(to State) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == to {
		return nil
	}
	if !CanTransition(t.state, to) {
		return &InvalidTransitionError{From: t.state, To: to}
	}
	t.state = to
	return nil
}

func (t *Turn) fail(err error) {
	t.mu.Lock()
	if t.state.Terminal() {
		t.mu.Unlock()
		return
	}
	t.state = StateFailed
	t.err = err
	t.mu.Unlock()

	t.View.Fail(ApologyMessage)
}

// SessionConfig configures a Session.
type SessionConfig struct {
	Source Source
	Model  string

	// OnChange is called after every accepted update to a turn's view and
	// after every state change.
	OnChange func(*Turn)

	Logger *slog.Logger
}

// Session is one conversation. It runs at most one turn at a time: sending a
// new message cancels the turn in flight, whose later updates are dropped.
type Session struct {
	config SessionConfig
	logger *slog.Logger

	mu       sync.Mutex
	turns    []*Turn
	inFlight context.CancelFunc
}

// NewSession creates a Session.
func NewSession(c SessionConfig) (*Session, error) {
	if c.Source == nil {
		return nil, errors.New("source is required")
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{config: c, logger: logger}, nil
}

// Turns returns the conversation so far, oldest first.
func (s *Session) Turns() []*Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Turn(nil), s.turns...)
}

// Send runs one turn to completion. On failure the turn's view shows
// ApologyMessage and the error is returned; earlier turns are untouched.
func (s *Session) Send(ctx context.Context, message string) (*Turn, error) {
	turn := &Turn{
		ID:          uuid.NewString(),
		UserMessage: message,
		StartedAt:   time.Now(),
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.inFlight != nil {
		s.inFlight()
	}
	s.inFlight = cancel
	s.turns = append(s.turns, turn)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		// Only clear the slot if a newer turn has not replaced it.
		if s.turns[len(s.turns)-1] == turn {
			s.inFlight = nil
		}
	}()

	s.setState(turn, StateRequesting)

	logger := s.logger.With("turn_id", turn.ID)
	logger.Debug("sending message", "model", s.config.Model)

	_, err := s.config.Source.Stream(ctx, message, s.config.Model, func(content string, isComplete bool) {
		if ctx.Err() != nil {
			return
		}
		if turn.State() == StateRequesting {
			s.setState(turn, StateStreaming)
		}
		if turn.View.Apply(content, isComplete) {
			s.changed(turn)
		}
	})
	if err != nil {
		logger.Warn("turn failed", "error", err)
		turn.fail(err)
		s.changed(turn)
		return turn, err
	}

	if _, done := turn.View.Snapshot(); !done {
		err := ErrIncompleteStream
		logger.Warn("turn ended without completion", "error", err)
		turn.fail(err)
		s.changed(turn)
		return turn, err
	}

	s.setState(turn, StateCompleted)
	logger.Debug("turn completed", "duration", time.Since(turn.StartedAt))
	return turn, nil
}

func (s *Session) setState(turn *Turn, to State) {
	if err := turn.transition(to); err != nil {
		s.logger.Error("turn state", "turn_id", turn.ID, "error", err)
		return
	}
	s.changed(turn)
}

func (s *Session) changed(turn *Turn) {
	if s.config.OnChange != nil {
		s.config.OnChange(turn)
	}
}
