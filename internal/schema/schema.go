// Package schema describes the shape of every table that flows through the
// pipeline. A Descriptor is an ordered list of name/type pairs; readers use it
// to coerce raw JSON values, transforms use it to project and rename columns,
// and writers use it to render DDL or columnar layouts.
package schema

import (
	"fmt"
	"strings"
)

// Type is a logical column type.
type Type string

const (
	String    Type = "string"
	Int       Type = "int"
	Float     Type = "float"
	Bool      Type = "bool"
	Timestamp Type = "timestamp"
)

// Field is one column of a Descriptor.
type Field struct {
	Name     string `json:"name"`
	Type     Type   `json:"type"`
	Nullable bool   `json:"nullable,omitempty"`
}

// Descriptor is an ordered set of fields. Field names are unique.
type Descriptor []Field

// Names returns the column names in order.
func (d Descriptor) Names() []string {
	out := make([]string, len(d))
	for i, f := range d {
		out[i] = f.Name
	}
	return out
}

// Index returns the position of the named column or -1.
func (d Descriptor) Index(name string) int {
	for i, f := range d {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Field returns the named field.
func (d Descriptor) Field(name string) (Field, bool) {
	if i := d.Index(name); i >= 0 {
		return d[i], true
	}
	return Field{}, false
}

// Has reports whether every name is a column of d.
func (d Descriptor) Has(names ...string) bool {
	for _, n := range names {
		if d.Index(n) < 0 {
			return false
		}
	}
	return true
}

// Select returns the descriptor restricted to names, in the given order.
func (d Descriptor) Select(names ...string) (Descriptor, error) {
	out := make(Descriptor, 0, len(names))
	for _, n := range names {
		f, ok := d.Field(n)
		if !ok {
			return nil, fmt.Errorf("schema: unknown column %q (have %s)", n, strings.Join(d.Names(), ","))
		}
		out = append(out, f)
	}
	return out, nil
}

// Rename returns a copy of d with its columns renamed positionally.
func (d Descriptor) Rename(names ...string) (Descriptor, error) {
	if len(names) != len(d) {
		return nil, fmt.Errorf("schema: rename wants %d names, got %d", len(d), len(names))
	}
	out := make(Descriptor, len(d))
	seen := make(map[string]struct{}, len(names))
	for i, n := range names {
		if _, dup := seen[n]; dup {
			return nil, fmt.Errorf("schema: duplicate column %q", n)
		}
		seen[n] = struct{}{}
		out[i] = d[i]
		out[i].Name = n
	}
	return out, nil
}

// Equal reports whether two descriptors have the same fields in the same order.
func (d Descriptor) Equal(o Descriptor) bool {
	if len(d) != len(o) {
		return false
	}
	for i := range d {
		if d[i] != o[i] {
			return false
		}
	}
	return true
}

// String renders the descriptor as a tree, one column per line:
//
//	root
//	 |-- song_id: string (nullable = false)
func (d Descriptor) String() string {
	var b strings.Builder
	b.WriteString("root\n")
	for _, f := range d {
		fmt.Fprintf(&b, " |-- %s: %s (nullable = %t)\n", f.Name, f.Type, f.Nullable)
	}
	return b.String()
}

// Layout renders the descriptor compactly as "name:type,name:type".
func (d Descriptor) Layout() string {
	parts := make([]string, len(d))
	for i, f := range d {
		parts[i] = f.Name + ":" + string(f.Type)
	}
	return strings.Join(parts, ",")
}
