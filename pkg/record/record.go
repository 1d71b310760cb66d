package record

import (
	"fmt"
	"strconv"
	"strings"
)

// Record is a source or target record: a tree of JSON-compatible values
// (nil, bool, int64, float64, string, []byte, []any, map[string]any).
type Record = map[string]any

// GetPath resolves a dotted path against a record and reports whether the
// full path exists. Intermediate non-object values terminate resolution.
func GetPath(rec Record, path string) (any, bool) {
	if rec == nil || path == "" {
		return nil, false
	}
	parts := strings.Split(path, ".")
	var cur any = rec
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// SetPath assigns a value at a dotted path, creating intermediate objects
// as needed. It fails when an intermediate path segment holds a non-object.
func SetPath(rec Record, path string, value any) error {
	if rec == nil {
		return fmt.Errorf("nil record")
	}
	if path == "" {
		return fmt.Errorf("empty path")
	}
	parts := strings.Split(path, ".")
	cur := rec
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p]
		if !ok || next == nil {
			child := map[string]any{}
			cur[p] = child
			cur = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("path %q: segment %q is not an object", path, p)
		}
		cur = child
	}
	cur[parts[len(parts)-1]] = value
	return nil
}

// Clone deep-copies a record.
func Clone(rec Record) Record {
	if rec == nil {
		return nil
	}
	return cloneValue(rec).(map[string]any)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []byte:
		out := make([]byte, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}

// ToString coerces a scalar to its string form. nil yields "".
func ToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// ToFloat coerces a value to float64 and reports whether the coercion
// succeeded. Strings are parsed; booleans and composites do not coerce.
func ToFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// IsEmpty reports whether a value is nil, an empty string, or an empty
// composite.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	case []byte:
		return len(t) == 0
	}
	return false
}

// SizeOf estimates the in-memory footprint of a value graph in bytes.
// Used by the sandbox to enforce its result-size budget.
func SizeOf(v any) int64 {
	switch t := v.(type) {
	case nil:
		return 8
	case bool:
		return 8
	case string:
		return int64(16 + len(t))
	case []byte:
		return int64(24 + len(t))
	case []any:
		var n int64 = 24
		for _, e := range t {
			n += SizeOf(e)
		}
		return n
	case map[string]any:
		var n int64 = 48
		for k, e := range t {
			n += int64(16+len(k)) + SizeOf(e)
		}
		return n
	default:
		return 16
	}
}
