package builtin

import (
	"songetl/internal/schema"
	"songetl/internal/table"
)

// Equals keeps rows whose Column holds exactly Value. Rows where the column
// is null never match.
type Equals struct {
	Column string
	Value  any
}

// Apply implements transformer.Transformer.
func (e Equals) Apply(in *table.Table) (*table.Table, error) {
	i, err := in.Column(e.Column)
	if err != nil {
		return nil, err
	}
	out := make([]table.Row, 0, len(in.Rows))
	for _, r := range in.Rows {
		if r[i] != nil && table.Equal(r[i], e.Value) {
			out = append(out, r)
		}
	}
	return &table.Table{Schema: in.Schema, Rows: out}, nil
}

// Extend appends a derived column computed from each row. Rows for which Fn
// reports false are dropped and counted through OnDrop.
type Extend struct {
	Field  schema.Field
	Fn     func(s schema.Descriptor, r table.Row) (any, bool)
	OnDrop func(r table.Row)
}

// Apply implements transformer.Transformer.
func (e Extend) Apply(in *table.Table) (*table.Table, error) {
	desc := make(schema.Descriptor, 0, len(in.Schema)+1)
	desc = append(desc, in.Schema...)
	desc = append(desc, e.Field)
	if _, err := desc.Rename(desc.Names()...); err != nil {
		return nil, err
	}

	out := make([]table.Row, 0, len(in.Rows))
	for _, r := range in.Rows {
		v, ok := e.Fn(in.Schema, r)
		if !ok {
			if e.OnDrop != nil {
				e.OnDrop(r)
			}
			continue
		}
		nr := make(table.Row, len(r)+1)
		copy(nr, r)
		nr[len(r)] = v
		out = append(out, nr)
	}
	return &table.Table{Schema: desc, Rows: out}, nil
}
