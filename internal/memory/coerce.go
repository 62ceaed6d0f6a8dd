package memory

import (
	"time"
)

// Coercion helpers for values coming off the wire. The driver hands back
// int64 for integers and float64 for floats; older records may carry
// RFC 3339 strings where epoch milliseconds are expected.

// AsString returns v as a string if it is one.
func AsString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// AsFloat returns v as a float64 for any numeric wire type.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

// AsInt returns v as an int for any numeric wire type. Fractional floats
// are truncated.
func AsInt(v any) (int, bool) {
	switch n := v.(type) {
	case int64:
		return int(n), true
	case int:
		return n, true
	case float64:
		return int(n), true
	}
	return 0, false
}

// AsFloatSlice returns v as a []float64. The driver returns lists as []any.
func AsFloatSlice(v any) ([]float64, bool) {
	switch vec := v.(type) {
	case []float64:
		return vec, true
	case []any:
		out := make([]float64, 0, len(vec))
		for _, item := range vec {
			f, ok := AsFloat(item)
			if !ok {
				return nil, false
			}
			out = append(out, f)
		}
		return out, true
	}
	return nil, false
}

// AsTime decodes a timestamp field: epoch milliseconds (any numeric type),
// an RFC 3339 string, or a driver-native time.Time.
func AsTime(v any) (time.Time, bool) {
	switch ts := v.(type) {
	case time.Time:
		return ts, true
	case int64:
		return time.UnixMilli(ts).UTC(), true
	case float64:
		return time.UnixMilli(int64(ts)).UTC(), true
	case string:
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Millis converts a time to epoch milliseconds for storage, with zero time
// mapping to 0.
func Millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
