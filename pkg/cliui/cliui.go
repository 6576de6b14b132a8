// Package cliui provides reusable terminal UI helpers (spinners, step
// indicators, styles, markdown rendering) for hellochat CLI commands.
package cliui

import (
	"fmt"
	"io"
	"os"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

var (
	SuccessMark = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
	StepStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	KeyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	ValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	DimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	NameStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("215"))

	UserPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	AssistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("assistant> ")

	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// Step prints an animated spinner while fn runs, then replaces it with
// a ✓ or ✗ checkmark and elapsed time.
func Step(w io.Writer, msg string, fn func() error) error {
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		frame := 0
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for {
			fmt.Fprintf(w, "\r  %s %s",
				spinnerStyle.Render(spinnerFrames[frame%len(spinnerFrames)]),
				msg,
			)

			select {
			case <-done:
				return
			case <-ticker.C:
				frame++
			}
		}
	}()

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	close(done)
	<-stopped

	// Clear the spinner line and print final result
	fmt.Fprintf(w, "\r  %s %s %s\n",
		Mark(err),
		msg,
		StepStyle.Render(fmt.Sprintf("(%s)", FormatDuration(elapsed))),
	)

	return err
}

// Mark returns a ✓ for nil errors or ✗ for non-nil errors.
func Mark(err error) string {
	if err != nil {
		return FailMark
	}
	return SuccessMark
}

// FormatDuration formats a duration for display (e.g. "12ms" or "3.2s").
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// MaskSecret hides all but the last four characters of a secret.
func MaskSecret(s string) string {
	const visible = 4
	r := []rune(s)
	if len(r) <= visible {
		return "****"
	}
	return "****" + string(r[len(r)-visible:])
}

const (
	defaultWrap = 80
	maxWrap     = 120
)

// RenderMarkdown renders markdown content for terminal display using glamour,
// wrapped to the width of stdout when it is a terminal.
func RenderMarkdown(content string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(WrapWidth(int(os.Stdout.Fd()))),
	)
	if err != nil {
		return content, err
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content, err
	}

	return rendered, nil
}

// WrapWidth returns the word wrap width for the terminal on fd, leaving a
// small margin. Non-terminals get the default of 80 columns.
func WrapWidth(fd int) int {
	if !term.IsTerminal(fd) {
		return defaultWrap
	}

	width, _, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		return defaultWrap
	}

	return min(max(width-4, 20), maxWrap)
}
