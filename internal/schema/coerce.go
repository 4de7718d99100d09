package schema

import (
	"math"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/zeebo/errs"
)

// ErrSchemaMismatch is the class of errors raised when a value or a whole
// record collection does not fit the declared schema.
var ErrSchemaMismatch = errs.Class("schema mismatch")

// number is satisfied by json.Number from both encoding/json and go-json.
type number interface {
	String() string
	Int64() (int64, error)
	Float64() (float64, error)
}

// Coerce converts a decoded JSON value into the Go representation of f.Type:
// string, int64, float64, bool or time.Time. A nil value is accepted only
// when f is nullable.
func Coerce(f Field, v any) (any, error) {
	if v == nil {
		if f.Nullable {
			return nil, nil
		}
		return nil, ErrSchemaMismatch.New("%s: null in non-nullable column", f.Name)
	}

	switch f.Type {
	case String:
		switch x := v.(type) {
		case string:
			return x, nil
		case number:
			return x.String(), nil
		case int64:
			return strconv.FormatInt(x, 10), nil
		case int:
			return strconv.Itoa(x), nil
		case float64:
			return strconv.FormatFloat(x, 'g', -1, 64), nil
		case bool:
			return strconv.FormatBool(x), nil
		case map[string]any, []any:
			b, err := json.Marshal(x)
			if err == nil {
				return string(b), nil
			}
		}

	case Int:
		switch x := v.(type) {
		case number:
			if n, err := x.Int64(); err == nil {
				return n, nil
			}
			if fl, err := x.Float64(); err == nil && fl == math.Trunc(fl) && math.Abs(fl) < 1<<53 {
				return int64(fl), nil
			}
		case int64:
			return x, nil
		case int:
			return int64(x), nil
		case float64:
			if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
				return int64(x), nil
			}
		}

	case Float:
		switch x := v.(type) {
		case number:
			if fl, err := x.Float64(); err == nil {
				return fl, nil
			}
		case float64:
			return x, nil
		case int64:
			return float64(x), nil
		case int:
			return float64(x), nil
		}

	case Bool:
		if b, ok := v.(bool); ok {
			return b, nil
		}

	case Timestamp:
		if t, ok := v.(time.Time); ok {
			return t, nil
		}
	}

	return nil, ErrSchemaMismatch.New("%s: cannot use %T as %s", f.Name, v, f.Type)
}

// CoerceRecord aligns a decoded record with d, coercing every field. Keys of
// rec that d does not declare are ignored. The first failing field rejects
// the whole record.
func CoerceRecord(d Descriptor, rec map[string]any) ([]any, error) {
	row := make([]any, len(d))
	for i, f := range d {
		v, err := Coerce(f, rec[f.Name])
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}
