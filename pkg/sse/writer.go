package sse

import (
	"fmt"
	"io"
)

// Writer emits "data:" records to a downstream text/event-stream body.
// Every record is terminated by a blank line so browsers' EventSource and
// line-oriented clients both see event boundaries.
type Writer struct {
	w io.Writer
}

// NewWriter returns a Writer over w. When w backs an io.Pipe, each write
// blocks until the HTTP layer has consumed it.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteData writes a single record carrying data.
func (w *Writer) WriteData(data string) error {
	_, err := fmt.Fprintf(w.w, "%s %s\n\n", DataPrefix, data)
	return err
}

// WriteDone writes the end-of-stream sentinel record.
func (w *Writer) WriteDone() error {
	return w.WriteData(DoneSentinel)
}
