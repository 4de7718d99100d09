// Package json turns JSON streams into parser.Record maps.
//
// Accepted shapes, possibly mixed within one stream:
//
//   - one object:                {"song_id":"S1",...}
//   - newline-delimited objects: {"ts":1}\n{"ts":2}
//   - top-level arrays:          [{"ts":1},{"ts":2}]
//
// Numbers are decoded as json.Number so that callers decide between int and
// float. A value that is not an object (or an array element that is not an
// object) is reported as a *parser.RecordError and skipped. A syntax error
// leaves the stream unreadable, so it is returned as a *parser.RecordError
// once and the decoder then reports io.EOF.
package json

import (
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"songetl/internal/parser"
)

// Decoder yields records from a JSON stream.
type Decoder struct {
	dec     *json.Decoder
	pending []any
	index   int
	broken  bool
}

// NewDecoder constructs a Decoder over r.
func NewDecoder(r io.Reader) *Decoder {
	d := json.NewDecoder(r)
	d.UseNumber()
	return &Decoder{dec: d}
}

var _ parser.RecordReader = (*Decoder)(nil)

// Next returns the next record, io.EOF at the end of the stream, or a
// *parser.RecordError for an unusable record.
func (d *Decoder) Next() (parser.Record, error) {
	for {
		if len(d.pending) > 0 {
			v := d.pending[0]
			d.pending = d.pending[1:]
			return d.emit(v)
		}
		if d.broken {
			return nil, io.EOF
		}

		var raw any
		if err := d.dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			d.broken = true
			d.index++
			return nil, &parser.RecordError{Index: d.index, Err: fmt.Errorf("json: decode: %w", err)}
		}

		if arr, ok := raw.([]any); ok {
			d.pending = arr
			continue
		}
		return d.emit(raw)
	}
}

func (d *Decoder) emit(v any) (parser.Record, error) {
	d.index++
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &parser.RecordError{Index: d.index, Err: fmt.Errorf("json: want object, got %T", v)}
	}
	return obj, nil
}

// DecodeAll reads every record from r, stopping at the first error of any
// kind. It is meant for tests and small inputs.
func DecodeAll(r io.Reader) ([]parser.Record, error) {
	d := NewDecoder(r)
	var out []parser.Record
	for {
		rec, err := d.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}
