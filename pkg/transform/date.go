package transform

import (
	"strings"
	"time"

	"github.com/nineking424/nificdc-sub002/pkg/errdefs"
	"github.com/nineking424/nificdc-sub002/pkg/record"
)

// Token-based date patterns (YYYY-MM-DD HH:mm:ss) are translated to Go
// reference layouts. Longer tokens are replaced first so MM does not
// clobber mm.
var layoutTokens = []struct{ token, layout string }{
	{"YYYY", "2006"},
	{"YY", "06"},
	{"MM", "01"},
	{"DD", "02"},
	{"HH", "15"},
	{"mm", "04"},
	{"ss", "05"},
	{"SSS", "000"},
}

func toGoLayout(pattern string) string {
	for _, t := range layoutTokens {
		pattern = strings.ReplaceAll(pattern, t.token, t.layout)
	}
	return pattern
}

// parseFormats are tried in order when no explicit pattern is given.
var parseFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"20060102",
}

func toTime(v any, args []any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case nil:
		return time.Time{}, errdefs.Validation("date: null value")
	}
	if f, ok := record.ToFloat(v); ok {
		// Numeric inputs are epoch milliseconds.
		return time.UnixMilli(int64(f)).UTC(), nil
	}
	s := strings.TrimSpace(record.ToString(v))
	if len(args) > 0 {
		layout := toGoLayout(argString(args, 0, ""))
		t, err := time.Parse(layout, s)
		if err != nil {
			return time.Time{}, errdefs.Validation("date: %q does not match %q", s, argString(args, 0, ""))
		}
		return t, nil
	}
	for _, layout := range parseFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errdefs.Validation("date: cannot parse %q", s)
}

func init() {
	register("date", "parse", 0, 1, func(v any, args []any) (any, error) {
		if v == nil {
			return nil, nil
		}
		t, err := toTime(v, args)
		if err != nil {
			return nil, err
		}
		return t, nil
	})
	register("date", "format", 1, 1, func(v any, args []any) (any, error) {
		if v == nil {
			return nil, nil
		}
		t, err := toTime(v, nil)
		if err != nil {
			return nil, err
		}
		return t.Format(toGoLayout(argString(args, 0, "YYYY-MM-DD"))), nil
	})
	register("date", "addDays", 1, 1, func(v any, args []any) (any, error) {
		return shift(v, 0, 0, argInt(args, 0, 0))
	})
	register("date", "addMonths", 1, 1, func(v any, args []any) (any, error) {
		return shift(v, 0, argInt(args, 0, 0), 0)
	})
	register("date", "addYears", 1, 1, func(v any, args []any) (any, error) {
		return shift(v, argInt(args, 0, 0), 0, 0)
	})
	register("date", "diff", 1, 2, func(v any, args []any) (any, error) {
		if v == nil {
			return nil, nil
		}
		a, err := toTime(v, nil)
		if err != nil {
			return nil, err
		}
		b, err := toTime(args[0], nil)
		if err != nil {
			return nil, err
		}
		d := a.Sub(b)
		switch argString(args, 1, "days") {
		case "millis":
			return d.Milliseconds(), nil
		case "seconds":
			return int64(d.Seconds()), nil
		case "minutes":
			return int64(d.Minutes()), nil
		case "hours":
			return int64(d.Hours()), nil
		case "days":
			return int64(d.Hours() / 24), nil
		default:
			return nil, errdefs.Validation("date.diff: unknown unit %q", argString(args, 1, ""))
		}
	})
	register("date", "toMillis", 0, 0, func(v any, _ []any) (any, error) {
		if v == nil {
			return nil, nil
		}
		t, err := toTime(v, nil)
		if err != nil {
			return nil, err
		}
		return t.UnixMilli(), nil
	})
	register("date", "fromMillis", 0, 0, func(v any, _ []any) (any, error) {
		if v == nil {
			return nil, nil
		}
		f, ok := record.ToFloat(v)
		if !ok {
			return nil, errdefs.Validation("date.fromMillis: not a number")
		}
		return time.UnixMilli(int64(f)).UTC(), nil
	})
}

func shift(v any, years, months, days int) (any, error) {
	if v == nil {
		return nil, nil
	}
	t, err := toTime(v, nil)
	if err != nil {
		return nil, err
	}
	return t.AddDate(years, months, days), nil
}
