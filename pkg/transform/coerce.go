package transform

import (
	"github.com/nineking424/nificdc-sub002/pkg/record"
)

// argString fetches the i-th parameter as a string, or def when absent.
func argString(args []any, i int, def string) string {
	if i >= len(args) || args[i] == nil {
		return def
	}
	return record.ToString(args[i])
}

// argFloat fetches the i-th parameter as a float64, or def when absent
// or not numeric.
func argFloat(args []any, i int, def float64) float64 {
	if i >= len(args) {
		return def
	}
	if f, ok := record.ToFloat(args[i]); ok {
		return f
	}
	return def
}

// argInt fetches the i-th parameter as an int, or def.
func argInt(args []any, i int, def int) int {
	return int(argFloat(args, i, float64(def)))
}

// asSlice coerces the source value into a generic slice. Scalars wrap
// into a single-element slice so array functions degrade gracefully.
func asSlice(value any) []any {
	switch v := value.(type) {
	case nil:
		return nil
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	default:
		return []any{value}
	}
}

// asMap coerces the source value into a generic map, or nil.
func asMap(value any) map[string]any {
	m, _ := value.(map[string]any)
	return m
}
