package transform

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"github.com/nineking424/nificdc-sub002/pkg/errdefs"
	"github.com/nineking424/nificdc-sub002/pkg/record"
)

func init() {
	register("number", "parseInt", 0, 0, func(v any, _ []any) (any, error) {
		if v == nil {
			return nil, nil
		}
		f, ok := record.ToFloat(v)
		if !ok {
			n, err := strconv.ParseInt(strings.TrimSpace(record.ToString(v)), 10, 64)
			if err != nil {
				return nil, errdefs.Validation("number.parseInt: %q is not an integer", record.ToString(v))
			}
			return n, nil
		}
		return int64(f), nil
	})
	register("number", "parseFloat", 0, 0, func(v any, _ []any) (any, error) {
		if v == nil {
			return nil, nil
		}
		f, ok := record.ToFloat(v)
		if !ok {
			var err error
			f, err = strconv.ParseFloat(strings.TrimSpace(record.ToString(v)), 64)
			if err != nil {
				return nil, errdefs.Validation("number.parseFloat: %q is not a number", record.ToString(v))
			}
		}
		return f, nil
	})
	register("number", "round", 0, 1, func(v any, args []any) (any, error) {
		return roundOp(v, args, math.Round)
	})
	register("number", "floor", 0, 1, func(v any, args []any) (any, error) {
		return roundOp(v, args, math.Floor)
	})
	register("number", "ceil", 0, 1, func(v any, args []any) (any, error) {
		return roundOp(v, args, math.Ceil)
	})
	register("number", "abs", 0, 0, func(v any, _ []any) (any, error) {
		if v == nil {
			return nil, nil
		}
		f, ok := record.ToFloat(v)
		if !ok {
			return nil, errdefs.Validation("number.abs: not a number")
		}
		return math.Abs(f), nil
	})
	register("number", "fixed", 1, 1, func(v any, args []any) (any, error) {
		if v == nil {
			return nil, nil
		}
		f, ok := record.ToFloat(v)
		if !ok {
			return nil, errdefs.Validation("number.fixed: not a number")
		}
		return strconv.FormatFloat(f, 'f', argInt(args, 0, 2), 64), nil
	})
	register("number", "percent", 0, 1, func(v any, args []any) (any, error) {
		if v == nil {
			return nil, nil
		}
		f, ok := record.ToFloat(v)
		if !ok {
			return nil, errdefs.Validation("number.percent: not a number")
		}
		return strconv.FormatFloat(f*100, 'f', argInt(args, 0, 0), 64) + "%", nil
	})
	register("number", "currency", 0, 2, func(v any, args []any) (any, error) {
		if v == nil {
			return nil, nil
		}
		f, ok := record.ToFloat(v)
		if !ok {
			return nil, errdefs.Validation("number.currency: not a number")
		}
		code := argString(args, 0, "USD")
		digits := argInt(args, 1, 2)
		return code + " " + groupThousands(strconv.FormatFloat(f, 'f', digits, 64)), nil
	})
	register("number", "humanBytes", 0, 0, func(v any, _ []any) (any, error) {
		if v == nil {
			return nil, nil
		}
		f, ok := record.ToFloat(v)
		if !ok {
			return nil, errdefs.Validation("number.humanBytes: not a number")
		}
		return humanBytes(f), nil
	})
	register("number", "random", 0, 2, func(_ any, args []any) (any, error) {
		lo := argFloat(args, 0, 0)
		hi := argFloat(args, 1, 1)
		if hi < lo {
			return nil, errdefs.Validation("number.random: max %v below min %v", hi, lo)
		}
		return lo + rand.Float64()*(hi-lo), nil
	})
	register("number", "clamp", 2, 2, func(v any, args []any) (any, error) {
		if v == nil {
			return nil, nil
		}
		f, ok := record.ToFloat(v)
		if !ok {
			return nil, errdefs.Validation("number.clamp: not a number")
		}
		lo, hi := argFloat(args, 0, math.Inf(-1)), argFloat(args, 1, math.Inf(1))
		return math.Min(math.Max(f, lo), hi), nil
	})
}

func roundOp(v any, args []any, op func(float64) float64) (any, error) {
	if v == nil {
		return nil, nil
	}
	f, ok := record.ToFloat(v)
	if !ok {
		return nil, errdefs.Validation("number rounding: not a number")
	}
	pow := math.Pow(10, float64(argInt(args, 0, 0)))
	return op(f*pow) / pow, nil
}

func groupThousands(s string) string {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i:]
	}
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + frac
	if neg {
		out = "-" + out
	}
	return out
}

func humanBytes(n float64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%.0f B", n)
	}
	exp := 0
	for v := n; v >= unit && exp < 5; v /= unit {
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", n/math.Pow(unit, float64(exp)), "KMGTP"[exp-1])
}
