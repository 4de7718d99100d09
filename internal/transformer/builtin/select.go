// Package builtin contains the relational operators the normalizers are
// composed from: projection, renaming, filtering, derived columns and
// full-row de-duplication.
package builtin

import (
	"songetl/internal/table"
)

// Select projects the input onto Columns, in that order.
type Select struct {
	Columns []string
}

// Apply implements transformer.Transformer.
func (s Select) Apply(in *table.Table) (*table.Table, error) {
	desc, err := in.Schema.Select(s.Columns...)
	if err != nil {
		return nil, err
	}
	idx := make([]int, len(s.Columns))
	for i, c := range s.Columns {
		idx[i] = in.Schema.Index(c)
	}

	rows := make([]table.Row, len(in.Rows))
	for i, r := range in.Rows {
		out := make(table.Row, len(idx))
		for j, k := range idx {
			out[j] = r[k]
		}
		rows[i] = out
	}
	return &table.Table{Schema: desc, Rows: rows}, nil
}

// Rename renames every column positionally. Rows are shared with the input.
type Rename struct {
	Columns []string
}

// Apply implements transformer.Transformer.
func (r Rename) Apply(in *table.Table) (*table.Table, error) {
	desc, err := in.Schema.Rename(r.Columns...)
	if err != nil {
		return nil, err
	}
	return &table.Table{Schema: desc, Rows: in.Rows}, nil
}
