// Package jsonpull adapts encoding/json's streaming Decoder into the
// pull interface the ingester's external JSON parser collaborator
// contract calls for: one top-level value per call, annotated with the
// source line number the value started on.
package jsonpull

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
)

// Puller yields successive top-level JSON values from a stream, each
// tagged with its starting line number for diagnostics.
type Puller struct {
	dec  *json.Decoder
	cr   *countingReader
	line int
}

// New wraps r for pull-style decoding.
func New(r io.Reader) *Puller {
	cr := &countingReader{r: bufio.NewReaderSize(r, 64*1024), line: 1}
	return &Puller{dec: json.NewDecoder(cr), cr: cr, line: 1}
}

// Next decodes the next top-level JSON value into a generic
// map[string]interface{}/[]interface{}/scalar tree and reports the line
// it started on. Returns io.EOF when the stream is exhausted. Newlines
// before a value that the decoder has not yet read are not counted.
func (p *Puller) Next() (value interface{}, line int, err error) {
	// The decoder reads ahead: discount the newlines it has buffered
	// beyond the start of the next value.
	rest, _ := io.ReadAll(p.dec.Buffered())
	line = p.cr.line - bytes.Count(bytes.TrimLeft(rest, " \t\r\n"), []byte{'\n'})
	if err := p.dec.Decode(&value); err != nil {
		return nil, line, err
	}
	return value, line, nil
}

// countingReader wraps a buffered reader and counts newlines as they are
// consumed, giving the decoder's otherwise byte-offset-only position a
// human line number.
type countingReader struct {
	r    *bufio.Reader
	line int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	for i := 0; i < n; i++ {
		if p[i] == '\n' {
			c.line++
		}
	}
	return n, err
}
