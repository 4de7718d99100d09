// Package transformer defines the table-to-table transformation contract used
// by every normalization step, plus Chain for composing them in order.
package transformer

import (
	"fmt"

	"songetl/internal/table"
)

// Transformer maps one table to another. Implementations must not modify the
// rows of their input.
type Transformer interface {
	Apply(in *table.Table) (*table.Table, error)
}

// Func adapts a plain function to Transformer.
type Func func(in *table.Table) (*table.Table, error)

// Apply calls f.
func (f Func) Apply(in *table.Table) (*table.Table, error) { return f(in) }

// Chain is an ordered list of transformers.
type Chain []Transformer

// Apply runs each transformer on the output of the previous one and stops at
// the first error, reporting its position in the chain.
func (c Chain) Apply(in *table.Table) (*table.Table, error) {
	out := in
	for i, t := range c {
		next, err := t.Apply(out)
		if err != nil {
			return nil, fmt.Errorf("transform step %d (%T): %w", i, t, err)
		}
		out = next
	}
	return out, nil
}
