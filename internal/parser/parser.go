// Package parser holds the format-independent record contract shared by the
// concrete parsers under internal/parser.
package parser

import "fmt"

// Record is one decoded source record keyed by field name.
type Record = map[string]any

// RecordReader yields records one at a time and returns io.EOF when done.
//
// A *RecordError means only the current record was unusable; callers may
// continue calling Next. Any other error ends the stream.
type RecordReader interface {
	Next() (Record, error)
}

// RecordError reports a record that could not be decoded. Index is the
// 1-based position of the record within its stream.
type RecordError struct {
	Index int
	Err   error
}

func (e *RecordError) Error() string { return fmt.Sprintf("record %d: %v", e.Index, e.Err) }

func (e *RecordError) Unwrap() error { return e.Err }
