package transform

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/nineking424/nificdc-sub002/pkg/errdefs"
	"github.com/nineking424/nificdc-sub002/pkg/record"
)

func init() {
	register("string", "upper", 0, 0, func(v any, _ []any) (any, error) {
		if v == nil {
			return nil, nil
		}
		return strings.ToUpper(record.ToString(v)), nil
	})
	register("string", "lower", 0, 0, func(v any, _ []any) (any, error) {
		if v == nil {
			return nil, nil
		}
		return strings.ToLower(record.ToString(v)), nil
	})
	register("string", "trim", 0, 0, func(v any, _ []any) (any, error) {
		if v == nil {
			return nil, nil
		}
		return strings.TrimSpace(record.ToString(v)), nil
	})
	register("string", "replace", 2, 2, func(v any, args []any) (any, error) {
		if v == nil {
			return nil, nil
		}
		re, err := regexp.Compile(argString(args, 0, ""))
		if err != nil {
			return nil, errdefs.Validation("string.replace: invalid pattern: %v", err)
		}
		return re.ReplaceAllString(record.ToString(v), argString(args, 1, "")), nil
	})
	register("string", "split", 1, 1, func(v any, args []any) (any, error) {
		if v == nil {
			return nil, nil
		}
		parts := strings.Split(record.ToString(v), argString(args, 0, ","))
		out := make([]any, len(parts))
		for i, p := range parts {
			out[i] = p
		}
		return out, nil
	})
	register("string", "join", 1, 1, func(v any, args []any) (any, error) {
		items := asSlice(v)
		parts := make([]string, len(items))
		for i, it := range items {
			parts[i] = record.ToString(it)
		}
		return strings.Join(parts, argString(args, 0, ",")), nil
	})
	register("string", "padLeft", 1, 2, func(v any, args []any) (any, error) {
		return pad(v, args, true), nil
	})
	register("string", "padRight", 1, 2, func(v any, args []any) (any, error) {
		return pad(v, args, false), nil
	})
	register("string", "truncate", 1, 2, func(v any, args []any) (any, error) {
		if v == nil {
			return nil, nil
		}
		s := record.ToString(v)
		limit := argInt(args, 0, len(s))
		suffix := argString(args, 1, "...")
		runes := []rune(s)
		if limit < 0 || len(runes) <= limit {
			return s, nil
		}
		return string(runes[:limit]) + suffix, nil
	})
	register("string", "slugify", 0, 0, func(v any, _ []any) (any, error) {
		if v == nil {
			return nil, nil
		}
		return slugify(record.ToString(v)), nil
	})
	register("string", "camelCase", 0, 0, func(v any, _ []any) (any, error) {
		if v == nil {
			return nil, nil
		}
		return camelCase(record.ToString(v)), nil
	})
	register("string", "snakeCase", 0, 0, func(v any, _ []any) (any, error) {
		if v == nil {
			return nil, nil
		}
		return delimitCase(record.ToString(v), '_'), nil
	})
	register("string", "kebabCase", 0, 0, func(v any, _ []any) (any, error) {
		if v == nil {
			return nil, nil
		}
		return delimitCase(record.ToString(v), '-'), nil
	})
	register("string", "jamoDecompose", 0, 0, func(v any, _ []any) (any, error) {
		if v == nil {
			return nil, nil
		}
		return jamoDecompose(record.ToString(v), false), nil
	})
	register("string", "jamoInitials", 0, 0, func(v any, _ []any) (any, error) {
		if v == nil {
			return nil, nil
		}
		return jamoDecompose(record.ToString(v), true), nil
	})
}

func pad(v any, args []any, left bool) any {
	if v == nil {
		return nil
	}
	s := record.ToString(v)
	width := argInt(args, 0, 0)
	fill := argString(args, 1, " ")
	if fill == "" {
		fill = " "
	}
	for len([]rune(s)) < width {
		if left {
			s = fill + s
		} else {
			s = s + fill
		}
	}
	runes := []rune(s)
	if len(runes) > width && width > 0 {
		if left {
			runes = runes[len(runes)-width:]
		} else {
			runes = runes[:width]
		}
		return string(runes)
	}
	return s
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugStrip.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// words splits an identifier on delimiters and case boundaries.
func words(s string) []string {
	var out []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			out = append(out, string(cur))
			cur = nil
		}
	}
	prevLower := false
	for _, r := range s {
		switch {
		case r == '_' || r == '-' || r == '.' || unicode.IsSpace(r):
			flush()
			prevLower = false
		case unicode.IsUpper(r) && prevLower:
			flush()
			cur = append(cur, unicode.ToLower(r))
			prevLower = false
		default:
			cur = append(cur, unicode.ToLower(r))
			prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
		}
	}
	flush()
	return out
}

func camelCase(s string) string {
	ws := words(s)
	var b strings.Builder
	for i, w := range ws {
		if i == 0 {
			b.WriteString(w)
			continue
		}
		b.WriteString(strings.ToUpper(w[:1]) + w[1:])
	}
	return b.String()
}

func delimitCase(s string, sep rune) string {
	return strings.Join(words(s), string(sep))
}

// Hangul syllable decomposition. Precomposed syllables occupy
// U+AC00..U+D7A3 and factor into initial, medial and optional final jamo.
const (
	hangulBase = 0xAC00
	hangulEnd  = 0xD7A3
	jamoVCount = 21
	jamoTCount = 28
)

var (
	jamoInitial = []rune("ㄱㄲㄴㄷㄸㄹㅁㅂㅃㅅㅆㅇㅈㅉㅊㅋㅌㅍㅎ")
	jamoMedial  = []rune("ㅏㅐㅑㅒㅓㅔㅕㅖㅗㅘㅙㅚㅛㅜㅝㅞㅟㅠㅡㅢㅣ")
	jamoFinal   = []rune{0, 'ㄱ', 'ㄲ', 'ㄳ', 'ㄴ', 'ㄵ', 'ㄶ', 'ㄷ', 'ㄹ', 'ㄺ', 'ㄻ', 'ㄼ', 'ㄽ', 'ㄾ', 'ㄿ', 'ㅀ', 'ㅁ', 'ㅂ', 'ㅄ', 'ㅅ', 'ㅆ', 'ㅇ', 'ㅈ', 'ㅊ', 'ㅋ', 'ㅌ', 'ㅍ', 'ㅎ'}
)

func jamoDecompose(s string, initialsOnly bool) string {
	var b strings.Builder
	for _, r := range s {
		if r < hangulBase || r > hangulEnd {
			b.WriteRune(r)
			continue
		}
		idx := r - hangulBase
		lead := idx / (jamoVCount * jamoTCount)
		b.WriteRune(jamoInitial[lead])
		if initialsOnly {
			continue
		}
		vowel := (idx % (jamoVCount * jamoTCount)) / jamoTCount
		b.WriteRune(jamoMedial[vowel])
		if tail := idx % jamoTCount; tail != 0 {
			b.WriteRune(jamoFinal[tail])
		}
	}
	return b.String()
}
