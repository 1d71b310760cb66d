package transform

import (
	"github.com/nineking424/nificdc-sub002/pkg/record"
)

// Truthy applies the engine-wide coercion rule shared with predicate
// evaluation: nil and empty values are false, non-zero numbers and
// non-empty strings are true.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	}
	if f, ok := record.ToFloat(v); ok {
		return f != 0
	}
	return !record.IsEmpty(v)
}

func init() {
	register("conditional", "ifNull", 1, 1, func(v any, args []any) (any, error) {
		if v == nil {
			return args[0], nil
		}
		return v, nil
	})
	register("conditional", "ifEmpty", 1, 1, func(v any, args []any) (any, error) {
		if v == nil || record.IsEmpty(v) {
			return args[0], nil
		}
		return v, nil
	})
	register("conditional", "ifElse", 2, 2, func(v any, args []any) (any, error) {
		if Truthy(v) {
			return args[0], nil
		}
		return args[1], nil
	})
	register("conditional", "switchCase", 1, 2, func(v any, args []any) (any, error) {
		cases := asMap(args[0])
		if out, ok := cases[record.ToString(v)]; ok {
			return out, nil
		}
		if len(args) > 1 {
			return args[1], nil
		}
		return nil, nil
	})
	register("conditional", "inRange", 2, 2, func(v any, args []any) (any, error) {
		f, ok := record.ToFloat(v)
		if !ok {
			return false, nil
		}
		return f >= argFloat(args, 0, 0) && f <= argFloat(args, 1, 0), nil
	})
	register("conditional", "inArray", 1, 1, func(v any, args []any) (any, error) {
		needle := record.ToString(v)
		for _, it := range asSlice(args[0]) {
			if record.ToString(it) == needle {
				return true, nil
			}
		}
		return false, nil
	})
}
