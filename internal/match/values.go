package match

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"
)

// Equal reports strict value equality. Numbers compare by value across Go
// numeric kinds, which keeps JSON-decoded floats equal to integer literals.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return reflect.DeepEqual(a, b)
}

// Compare orders two values of the same kind. ok is false when the values
// are not mutually comparable.
func Compare(a, b any) (result int, ok bool) {
	if fa, isNum := toFloat(a); isNum {
		fb, isNum := toFloat(b)
		if !isNum {
			return 0, false
		}
		return compareFloats(fa, fb), true
	}
	switch av := a.(type) {
	case string:
		bv, isStr := b.(string)
		if !isStr {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, isBool := b.(bool)
		if !isBool {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		default:
			return 1, true
		}
	case time.Time:
		bv, isTime := b.(time.Time)
		if !isTime {
			return 0, false
		}
		return av.Compare(bv), true
	}
	return 0, false
}

// Rank gives a stable order across value kinds for sorting mixed data.
func Rank(v any) int {
	if _, ok := toFloat(v); ok {
		return 1
	}
	switch v.(type) {
	case bool:
		return 0
	case string:
		return 2
	case time.Time:
		return 3
	}
	return 4
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// AsList returns v as a generic list when it is any kind of slice or array.
func AsList(v any) ([]any, bool) {
	switch list := v.(type) {
	case []any:
		return list, true
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out, true
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
