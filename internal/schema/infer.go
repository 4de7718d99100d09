package schema

import (
	"sort"
	"time"
)

// Inferrer accumulates observed value types per key and produces a
// Descriptor. Keys are sorted by name; every inferred field is nullable.
//
// Widening rules:
//
//	int + float        -> float
//	anything else mixed -> string
//	only ever null      -> string
type Inferrer struct {
	seen map[string]Type
}

// NewInferrer returns an empty Inferrer.
func NewInferrer() *Inferrer {
	return &Inferrer{seen: make(map[string]Type)}
}

// Observe folds one record into the inferred shape.
func (in *Inferrer) Observe(rec map[string]any) {
	for k, v := range rec {
		prev, known := in.seen[k]
		t, ok := typeOf(v)
		if !ok {
			if !known {
				in.seen[k] = ""
			}
			continue
		}
		if !known || prev == "" {
			in.seen[k] = t
			continue
		}
		in.seen[k] = widen(prev, t)
	}
}

// Descriptor returns the inferred descriptor.
func (in *Inferrer) Descriptor() Descriptor {
	names := make([]string, 0, len(in.seen))
	for k := range in.seen {
		names = append(names, k)
	}
	sort.Strings(names)

	out := make(Descriptor, 0, len(names))
	for _, n := range names {
		t := in.seen[n]
		if t == "" {
			t = String
		}
		out = append(out, Field{Name: n, Type: t, Nullable: true})
	}
	return out
}

// Infer is a convenience wrapper over Inferrer for an in-memory slice.
func Infer(recs []map[string]any) Descriptor {
	in := NewInferrer()
	for _, r := range recs {
		in.Observe(r)
	}
	return in.Descriptor()
}

func typeOf(v any) (Type, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return String, true
	case bool:
		return Bool, true
	case int, int64:
		return Int, true
	case float64:
		return Float, true
	case time.Time:
		return Timestamp, true
	case number:
		if _, err := x.Int64(); err == nil {
			return Int, true
		}
		return Float, true
	default:
		// Nested objects and arrays are carried as their textual form.
		return String, true
	}
}

func widen(a, b Type) Type {
	if a == b {
		return a
	}
	if (a == Int && b == Float) || (a == Float && b == Int) {
		return Float
	}
	return String
}
