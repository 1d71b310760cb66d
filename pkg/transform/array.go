package transform

import (
	"fmt"
	"sort"

	"github.com/nineking424/nificdc-sub002/pkg/record"
)

func init() {
	register("array", "first", 0, 0, func(v any, _ []any) (any, error) {
		items := asSlice(v)
		if len(items) == 0 {
			return nil, nil
		}
		return items[0], nil
	})
	register("array", "last", 0, 0, func(v any, _ []any) (any, error) {
		items := asSlice(v)
		if len(items) == 0 {
			return nil, nil
		}
		return items[len(items)-1], nil
	})
	register("array", "unique", 0, 0, func(v any, _ []any) (any, error) {
		items := asSlice(v)
		seen := map[string]bool{}
		out := make([]any, 0, len(items))
		for _, it := range items {
			key := fmt.Sprintf("%v", it)
			if !seen[key] {
				seen[key] = true
				out = append(out, it)
			}
		}
		return out, nil
	})
	register("array", "flatten", 0, 1, func(v any, args []any) (any, error) {
		depth := argInt(args, 0, 1)
		return flatten(asSlice(v), depth), nil
	})
	register("array", "compact", 0, 0, func(v any, _ []any) (any, error) {
		items := asSlice(v)
		out := make([]any, 0, len(items))
		for _, it := range items {
			if it != nil && !record.IsEmpty(it) {
				out = append(out, it)
			}
		}
		return out, nil
	})
	register("array", "sort", 0, 2, func(v any, args []any) (any, error) {
		items := append([]any(nil), asSlice(v)...)
		key := argString(args, 0, "")
		desc := argString(args, 1, "asc") == "desc"
		sort.SliceStable(items, func(i, j int) bool {
			a, b := sortKey(items[i], key), sortKey(items[j], key)
			less := compareValues(a, b) < 0
			if desc {
				return !less && compareValues(a, b) != 0
			}
			return less
		})
		return items, nil
	})
	register("array", "chunk", 1, 1, func(v any, args []any) (any, error) {
		items := asSlice(v)
		size := argInt(args, 0, 1)
		if size < 1 {
			size = 1
		}
		var out []any
		for i := 0; i < len(items); i += size {
			end := i + size
			if end > len(items) {
				end = len(items)
			}
			out = append(out, items[i:end])
		}
		return out, nil
	})
	register("array", "groupBy", 1, 1, func(v any, args []any) (any, error) {
		key := argString(args, 0, "")
		out := map[string]any{}
		for _, it := range asSlice(v) {
			k := record.ToString(sortKey(it, key))
			group, _ := out[k].([]any)
			out[k] = append(group, it)
		}
		return out, nil
	})
	register("array", "sum", 0, 0, func(v any, _ []any) (any, error) {
		sum := 0.0
		for _, it := range asSlice(v) {
			if f, ok := record.ToFloat(it); ok {
				sum += f
			}
		}
		return sum, nil
	})
	register("array", "avg", 0, 0, func(v any, _ []any) (any, error) {
		sum, n := 0.0, 0
		for _, it := range asSlice(v) {
			if f, ok := record.ToFloat(it); ok {
				sum += f
				n++
			}
		}
		if n == 0 {
			return nil, nil
		}
		return sum / float64(n), nil
	})
	register("array", "min", 0, 0, func(v any, _ []any) (any, error) {
		return extreme(asSlice(v), func(a, b float64) bool { return a < b }), nil
	})
	register("array", "max", 0, 0, func(v any, _ []any) (any, error) {
		return extreme(asSlice(v), func(a, b float64) bool { return a > b }), nil
	})
	register("array", "diff", 1, 1, func(v any, args []any) (any, error) {
		other := keySet(asSlice(args[0]))
		var out []any
		for _, it := range asSlice(v) {
			if !other[fmt.Sprintf("%v", it)] {
				out = append(out, it)
			}
		}
		return out, nil
	})
	register("array", "intersect", 1, 1, func(v any, args []any) (any, error) {
		other := keySet(asSlice(args[0]))
		var out []any
		for _, it := range asSlice(v) {
			if other[fmt.Sprintf("%v", it)] {
				out = append(out, it)
			}
		}
		return out, nil
	})
	register("array", "union", 1, 1, func(v any, args []any) (any, error) {
		seen := map[string]bool{}
		var out []any
		for _, it := range append(asSlice(v), asSlice(args[0])...) {
			key := fmt.Sprintf("%v", it)
			if !seen[key] {
				seen[key] = true
				out = append(out, it)
			}
		}
		return out, nil
	})
}

func flatten(items []any, depth int) []any {
	out := make([]any, 0, len(items))
	for _, it := range items {
		if nested, ok := it.([]any); ok && depth > 0 {
			out = append(out, flatten(nested, depth-1)...)
			continue
		}
		out = append(out, it)
	}
	return out
}

func sortKey(item any, key string) any {
	if key == "" {
		return item
	}
	if m, ok := item.(map[string]any); ok {
		v, _ := record.GetPath(m, key)
		return v
	}
	return item
}

func compareValues(a, b any) int {
	fa, oka := record.ToFloat(a)
	fb, okb := record.ToFloat(b)
	if oka && okb {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	sa, sb := record.ToString(a), record.ToString(b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	default:
		return 0
	}
}

func extreme(items []any, better func(a, b float64) bool) any {
	var best any
	var bestF float64
	for _, it := range items {
		f, ok := record.ToFloat(it)
		if !ok {
			continue
		}
		if best == nil || better(f, bestF) {
			best, bestF = it, f
		}
	}
	return best
}

func keySet(items []any) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, it := range items {
		out[fmt.Sprintf("%v", it)] = true
	}
	return out
}
