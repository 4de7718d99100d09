// Package table holds the in-memory tabular representation shared by readers,
// transformers and writers: a schema.Descriptor plus rows of values aligned
// with it.
//
// Tables are treated as immutable once built. Operators in
// internal/transformer always return a new Table and never modify the rows of
// their input, so a table can be shared between several downstream stages.
package table

import (
	"fmt"
	"time"

	"songetl/internal/schema"
)

// Row is one record; Row[i] belongs to Schema[i]. Values are string, int64,
// float64, bool, time.Time or nil.
type Row []any

// Table is a named-column collection of rows.
type Table struct {
	Schema schema.Descriptor
	Rows   []Row
}

// New builds a table and checks row widths.
func New(d schema.Descriptor, rows []Row) (*Table, error) {
	for i, r := range rows {
		if len(r) != len(d) {
			return nil, fmt.Errorf("table: row %d has %d values, schema has %d columns", i, len(r), len(d))
		}
	}
	return &Table{Schema: d, Rows: rows}, nil
}

// MustNew is New for fixtures whose shape is known to be valid.
func MustNew(d schema.Descriptor, rows ...Row) *Table {
	t, err := New(d, rows)
	if err != nil {
		panic(err)
	}
	return t
}

// Len returns the number of rows; a nil table has none.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Column returns the index of name or an error naming the available columns.
func (t *Table) Column(name string) (int, error) {
	i := t.Schema.Index(name)
	if i < 0 {
		return -1, fmt.Errorf("table: no column %q in [%s]", name, t.Schema.Layout())
	}
	return i, nil
}

// Values returns every value of the named column, in row order.
func (t *Table) Values(name string) ([]any, error) {
	i, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(t.Rows))
	for j, r := range t.Rows {
		out[j] = r[i]
	}
	return out, nil
}

// Matrix exposes the rows as [][]any for bulk loaders.
func (t *Table) Matrix() [][]any {
	out := make([][]any, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r
	}
	return out
}

// Equal reports whether two values are the same under full-row equality.
// Timestamps compare by instant.
func Equal(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return a == b
}

// RowsEqual reports whether two rows are equal column by column.
func RowsEqual(a, b Row) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
