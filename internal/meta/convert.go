package meta

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are accepted when converting strings to time.Time.
var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}

// Convert converts v to T using a closed conversion table keyed by the requested type.
// Values that already have type T are returned unchanged. Supported targets beyond
// identity are string, bool, int, int64, float64, time.Time, []string, []any,
// map[string]any and Metadata. A nil value converts only to interface types.
func Convert[T any](v any) (T, bool) {
	var zero T
	if t, ok := v.(T); ok {
		return t, true
	}
	if v == nil {
		return zero, any(zero) == nil
	}
	if inner, ok := v.(Value); ok {
		// Unresolved lazy values are resolved against an empty store, within
		// DefaultMaxDepth.
		resolved, err := Metadata{}.resolve(inner)
		if err != nil {
			return zero, false
		}
		return Convert[T](resolved)
	}

	var ok bool
	switch p := any(&zero).(type) {
	case *string:
		*p, ok = toString(v)
	case *bool:
		*p, ok = toBool(v)
	case *int:
		var n int64
		n, ok = toInt64(v)
		if ok && (n > math.MaxInt || n < math.MinInt) {
			ok = false
		}
		*p = int(n)
	case *int64:
		*p, ok = toInt64(v)
	case *float64:
		*p, ok = toFloat64(v)
	case *time.Time:
		*p, ok = toTime(v)
	case *[]string:
		*p, ok = toStrings(v)
	case *[]any:
		*p, ok = toSlice(v), true
	case *map[string]any:
		*p, ok = toMap(v)
	case *Metadata:
		var m map[string]any
		if m, ok = toMap(v); ok {
			*p = New(FromMap(m))
		}
	}
	if !ok {
		return zero, false
	}
	return zero, true
}

func toString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case []byte:
		return string(x), true
	case bool:
		return strconv.FormatBool(x), true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(x), true
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case time.Time:
		return x.Format(time.RFC3339), true
	case fmt.Stringer:
		return x.String(), true
	case error:
		return x.Error(), true
	}
	return "", false
}

func toBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		return b, err == nil
	}
	if n, ok := toInt64(v); ok {
		return n != 0, true
	}
	return false, false
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		return int64(x), x <= math.MaxInt64
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		return int64(x), x <= math.MaxInt64
	case float32:
		return floatToInt(float64(x))
	case float64:
		return floatToInt(x)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		return n, err == nil
	}
	return 0, false
}

func floatToInt(f float64) (int64, bool) {
	if f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

func toFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	if n, ok := toInt64(v); ok {
		return float64(n), true
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// toStrings converts sequences element-wise; a single scalar becomes a one-element slice.
func toStrings(v any) ([]string, bool) {
	items := toSlice(v)
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := toString(it)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func toSlice(v any) []any {
	switch x := v.(type) {
	case []any:
		return x
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	case []int:
		out := make([]any, len(x))
		for i, n := range x {
			out[i] = n
		}
		return out
	case []Metadata:
		out := make([]any, len(x))
		for i, m := range x {
			out[i] = m
		}
		return out
	}
	return []any{v}
}

func toMap(v any) (map[string]any, bool) {
	switch x := v.(type) {
	case map[string]any:
		return x, true
	case Metadata:
		return x.ToMap(), true
	case map[string]string:
		out := make(map[string]any, len(x))
		for k, s := range x {
			out[k] = s
		}
		return out, true
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			ks, ok := toString(k)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	}
	return nil, false
}
