package sse

import (
	"bytes"
	"strings"
)

// Parser splits raw stream fragments into complete records.
//
// ┌───────────────┐   ┌──────────────┐   ┌──────────┐
// │ fragment []b  │──▶│ Parser.Feed  │──▶│ []Record │
// └───────────────┘   └──────────────┘   └──────────┘
//                            │
//                            ▼
//                      residual (partial line, kept for the next Feed)
//
// A Parser is not safe for concurrent use; each stream owns its own.
type Parser struct {
	residual []byte
}

// NewParser returns an empty Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Feed appends fragment to the residual buffer and returns every record
// completed by a newline. Lines that do not carry the data prefix (comments,
// "event:" / "id:" fields, blank separators) produce no record. The trailing
// unterminated line, if any, stays buffered until a later Feed or Flush.
func (p *Parser) Feed(fragment []byte) []Record {
	if len(fragment) == 0 {
		return nil
	}

	p.residual = append(p.residual, fragment...)

	var records []Record
	for {
		idx := bytes.IndexByte(p.residual, '\n')
		if idx < 0 {
			break
		}

		line := p.residual[:idx]
		p.residual = p.residual[idx+1:]

		if rec, ok := parseLine(line); ok {
			records = append(records, rec)
		}
	}

	// Release the consumed prefix so a long-lived stream does not pin the
	// whole body in memory.
	if len(p.residual) == 0 {
		p.residual = nil
	} else {
		p.residual = append([]byte(nil), p.residual...)
	}

	return records
}

// Residual returns a copy of the buffered, not yet terminated bytes.
func (p *Parser) Residual() []byte {
	return append([]byte(nil), p.residual...)
}

// Flush parses whatever is left in the residual buffer as a final line. It
// is called once the source reports end of input, where a provider may have
// omitted the final newline.
func (p *Parser) Flush() (Record, bool) {
	line := p.residual
	p.residual = nil
	if len(line) == 0 {
		return Record{}, false
	}

	return parseLine(line)
}

func parseLine(line []byte) (Record, bool) {
	s := strings.TrimSuffix(string(line), "\r")
	if !strings.HasPrefix(s, DataPrefix) {
		return Record{}, false
	}

	value := strings.TrimPrefix(s, DataPrefix)
	value = strings.TrimPrefix(value, " ")

	return Record{Data: value}, true
}
