package sse

import (
	"errors"
	"io"
)

const readBufferSize = 4 * 1024

// Reader pulls records from an io.Reader, one blocking read at a time.
// Each call to Next suspends the caller until the next record or end of
// input is available.
type Reader struct {
	src     io.Reader
	parser  *Parser
	buf     []byte
	pending []Record

	// Fragments counts successful non-empty reads from src.
	Fragments int

	eof bool
}

// NewReader returns a Reader that parses records from src.
func NewReader(src io.Reader) *Reader {
	return &Reader{
		src:    src,
		parser: NewParser(),
		buf:    make([]byte, readBufferSize),
	}
}

// Next returns the next record. It returns io.EOF once the source is
// exhausted and no buffered record remains. Any other read error is returned
// unchanged so callers can tell a cancelled context apart from a clean end.
func (r *Reader) Next() (Record, error) {
	for {
		if len(r.pending) > 0 {
			rec := r.pending[0]
			r.pending = r.pending[1:]
			return rec, nil
		}

		if r.eof {
			return Record{}, io.EOF
		}

		n, err := r.src.Read(r.buf)
		if n > 0 {
			r.Fragments++
			r.pending = append(r.pending, r.parser.Feed(r.buf[:n])...)
		}

		if err != nil {
			if !errors.Is(err, io.EOF) {
				return Record{}, err
			}

			r.eof = true
			if rec, ok := r.parser.Flush(); ok {
				r.pending = append(r.pending, rec)
			}
		}
	}
}
