package builtin

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/zeebo/xxh3"

	"songetl/internal/table"
)

// DeDup removes duplicate rows, keeping the first occurrence of each.
//
// With no Keys a row's identity is the full row (every column), which is what
// all dimension and fact tables use. With Keys only the named columns take
// part in the comparison.
//
// Rows are bucketed by an xxh3 fingerprint of their canonical encoding and then
// compared value by value, so hash collisions never merge distinct rows. Output
// order is the order of first occurrence.
type DeDup struct {
	Keys []string
}

// Apply implements transformer.Transformer.
func (d DeDup) Apply(in *table.Table) (*table.Table, error) {
	idx := make([]int, 0, len(in.Schema))
	if len(d.Keys) == 0 {
		for i := range in.Schema {
			idx = append(idx, i)
		}
	} else {
		for _, k := range d.Keys {
			i, err := in.Column(k)
			if err != nil {
				return nil, err
			}
			idx = append(idx, i)
		}
	}

	buckets := make(map[uint64][]int, len(in.Rows))
	out := make([]table.Row, 0, len(in.Rows))
	var buf []byte

	for _, r := range in.Rows {
		buf = encodeKey(buf[:0], r, idx)
		h := xxh3.Hash(buf)

		dup := false
		for _, j := range buckets[h] {
			if sameKey(out[j], r, idx) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		buckets[h] = append(buckets[h], len(out))
		out = append(out, r)
	}
	return &table.Table{Schema: in.Schema, Rows: out}, nil
}

func sameKey(a, b table.Row, idx []int) bool {
	for _, i := range idx {
		if !table.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// encodeKey appends a type-tagged encoding of the selected values to buf.
// Strings are length-prefixed so ("ab","c") and ("a","bc") differ.
func encodeKey(buf []byte, r table.Row, idx []int) []byte {
	for _, i := range idx {
		switch v := r[i].(type) {
		case nil:
			buf = append(buf, 0)
		case string:
			buf = append(buf, 1)
			buf = binary.AppendUvarint(buf, uint64(len(v)))
			buf = append(buf, v...)
		case int64:
			buf = append(buf, 2)
			buf = binary.LittleEndian.AppendUint64(buf, uint64(v))
		case float64:
			buf = append(buf, 3)
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
		case bool:
			if v {
				buf = append(buf, 4, 1)
			} else {
				buf = append(buf, 4, 0)
			}
		case time.Time:
			buf = append(buf, 5)
			buf = binary.LittleEndian.AppendUint64(buf, uint64(v.UnixNano()))
		default:
			// Unknown types still land in one bucket per type; sameKey decides.
			buf = append(buf, 6)
		}
	}
	return buf
}
