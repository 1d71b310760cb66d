package transform

import (
	"sort"

	"github.com/nineking424/nificdc-sub002/pkg/errdefs"
	"github.com/nineking424/nificdc-sub002/pkg/record"
)

func init() {
	register("object", "keys", 0, 0, func(v any, _ []any) (any, error) {
		m := asMap(v)
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]any, len(keys))
		for i, k := range keys {
			out[i] = k
		}
		return out, nil
	})
	register("object", "values", 0, 0, func(v any, _ []any) (any, error) {
		m := asMap(v)
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]any, len(keys))
		for i, k := range keys {
			out[i] = m[k]
		}
		return out, nil
	})
	register("object", "entries", 0, 0, func(v any, _ []any) (any, error) {
		m := asMap(v)
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]any, len(keys))
		for i, k := range keys {
			out[i] = map[string]any{"key": k, "value": m[k]}
		}
		return out, nil
	})
	register("object", "pick", 1, -1, func(v any, args []any) (any, error) {
		m := asMap(v)
		out := map[string]any{}
		for _, a := range args {
			k := record.ToString(a)
			if val, ok := m[k]; ok {
				out[k] = val
			}
		}
		return out, nil
	})
	register("object", "omit", 1, -1, func(v any, args []any) (any, error) {
		drop := map[string]bool{}
		for _, a := range args {
			drop[record.ToString(a)] = true
		}
		out := map[string]any{}
		for k, val := range asMap(v) {
			if !drop[k] {
				out[k] = val
			}
		}
		return out, nil
	})
	register("object", "mapKeys", 1, 1, func(v any, args []any) (any, error) {
		fn, err := Lookup(argString(args, 0, "string.lower"))
		if err != nil {
			return nil, err
		}
		out := map[string]any{}
		for k, val := range asMap(v) {
			nk, err := fn.Apply(k, nil)
			if err != nil {
				return nil, errdefs.Validation("object.mapKeys: %v", err)
			}
			out[record.ToString(nk)] = val
		}
		return out, nil
	})
	register("object", "mapValues", 1, 1, func(v any, args []any) (any, error) {
		fn, err := Lookup(argString(args, 0, ""))
		if err != nil {
			return nil, err
		}
		out := map[string]any{}
		for k, val := range asMap(v) {
			nv, err := fn.Apply(val, nil)
			if err != nil {
				return nil, errdefs.Validation("object.mapValues: %v", err)
			}
			out[k] = nv
		}
		return out, nil
	})
	register("object", "deepMerge", 1, 1, func(v any, args []any) (any, error) {
		return deepMerge(asMap(v), asMap(args[0])), nil
	})
	register("object", "get", 1, 2, func(v any, args []any) (any, error) {
		val, ok := record.GetPath(asMap(v), argString(args, 0, ""))
		if !ok || val == nil {
			if len(args) > 1 {
				return args[1], nil
			}
			return nil, nil
		}
		return val, nil
	})
}

// deepMerge overlays b onto a. Nested maps merge recursively; any other
// collision takes b's value. Inputs are not mutated.
func deepMerge(a, b map[string]any) map[string]any {
	out := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		if am, ok := out[k].(map[string]any); ok {
			if bm, ok := v.(map[string]any); ok {
				out[k] = deepMerge(am, bm)
				continue
			}
		}
		out[k] = v
	}
	return out
}
