// Package logger provides opinionated logging capabilities for hellochat.
//
// Every component takes a *slog.Logger. The handler behind it is picked here:
// charmbracelet/log for interactive terminals, slog's JSON handler for the
// relay server's log file, and slog's text handler otherwise.
package logger

import (
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
)

type outputFormat int

const (
	formatText outputFormat = iota
	formatPretty
	formatJSON
)

type config struct {
	level  slog.Level
	format outputFormat
	w      io.Writer
}

// New builds a *slog.Logger from the given options. Without options it logs
// text at Info level to os.Stdout.
func New(opts ...Option) *slog.Logger {
	c := &config{
		level: slog.LevelInfo,
		w:     os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.w == nil {
		c.w = os.Stdout
	}

	switch c.format {
	case formatPretty:
		return slog.New(newPrettyHandler(c))
	case formatJSON:
		return slog.New(slog.NewJSONHandler(c.w, &slog.HandlerOptions{Level: c.level}))
	default:
		return slog.New(slog.NewTextHandler(c.w, &slog.HandlerOptions{Level: c.level}))
	}
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newPrettyHandler(c *config) *charmlog.Logger {
	level := charmlog.InfoLevel
	if c.level <= slog.LevelDebug {
		level = charmlog.DebugLevel
	}

	return charmlog.NewWithOptions(c.w, charmlog.Options{
		Level:           level,
		ReportTimestamp: true,
	})
}
