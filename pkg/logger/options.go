package logger

import (
	"io"
	"log/slog"
)

// Option tunes a logger built by New.
type Option func(*config)

// WithDebug lowers the level to Debug; the global --debug flag sets it.
func WithDebug(debug bool) Option {
	return func(c *config) {
		c.level = slog.LevelInfo
		if debug {
			c.level = slog.LevelDebug
		}
	}
}

// WithPretty selects the colorized charmbracelet/log output the interactive
// commands write to the terminal.
func WithPretty(pretty bool) Option {
	return format(formatPretty, pretty)
}

// WithJSON selects one JSON object per record, as written to "serve --log-file".
func WithJSON(json bool) Option {
	return format(formatJSON, json)
}

// WithWriter sends output to w instead of os.Stdout.
func WithWriter(w io.Writer) Option {
	return func(c *config) {
		c.w = w
	}
}

// format switches to f when on is set. Turning an option off falls back to
// text only if f was the selected format.
func format(f outputFormat, on bool) Option {
	return func(c *config) {
		switch {
		case on:
			c.format = f
		case c.format == f:
			c.format = formatText
		}
	}
}
