package types

import (
	"encoding/json"
	"math"
	"strconv"
)

// Shadow values arrive as decoded JSON: float64, string, bool, nil, maps and
// slices. Persisted params go through the same codec, but device code may
// also store native ints, so comparisons normalise numbers first.

// Equal reports whether two shadow values are the same, treating all numeric
// kinds by value.
func Equal(a, b any) bool {
	fa, aNum := AsFloat(a)
	fb, bNum := AsFloat(b)
	if aNum || bNum {
		return aNum && bNum && fa == fb
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	}
	ab, err1 := json.Marshal(a)
	bb, err2 := json.Marshal(b)
	return err1 == nil && err2 == nil && string(ab) == string(bb)
}

// AsFloat converts any numeric kind (including json.Number) to float64.
func AsFloat(v any) (float64, bool) {
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

// AsInt truncates a numeric value to int. Non-integral floats are rejected.
func AsInt(v any) (int, bool) {
	f, ok := AsFloat(v)
	if !ok || math.Trunc(f) != f || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

// Format renders a value the way status strings show it.
func Format(v any) string {
	if f, ok := AsFloat(v); ok {
		if i, ok := AsInt(f); ok {
			return strconv.Itoa(i)
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return "None"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "?"
	}
	return string(b)
}
