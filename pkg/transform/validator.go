package transform

import (
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/nineking424/nificdc-sub002/pkg/record"
)

// Validators return booleans and never fail; a null or malformed input
// is simply false.
var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 \-().]{6,19}$`)

	postalPatterns = map[string]*regexp.Regexp{
		"US": regexp.MustCompile(`^\d{5}(-\d{4})?$`),
		"KR": regexp.MustCompile(`^\d{5}$`),
		"GB": regexp.MustCompile(`^[A-Z]{1,2}\d[A-Z\d]? ?\d[A-Z]{2}$`),
		"CA": regexp.MustCompile(`^[A-Za-z]\d[A-Za-z] ?\d[A-Za-z]\d$`),
		"JP": regexp.MustCompile(`^\d{3}-?\d{4}$`),
		"DE": regexp.MustCompile(`^\d{5}$`),
	}
)

func init() {
	register("validator", "email", 0, 0, boolFn(func(s string) bool {
		return emailPattern.MatchString(s)
	}))
	register("validator", "url", 0, 0, boolFn(func(s string) bool {
		u, err := url.Parse(s)
		return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
	}))
	register("validator", "phone", 0, 0, boolFn(func(s string) bool {
		return phonePattern.MatchString(s)
	}))
	register("validator", "uuid", 0, 0, boolFn(func(s string) bool {
		_, err := uuid.Parse(s)
		return err == nil
	}))
	register("validator", "creditCard", 0, 0, boolFn(luhnValid))
	register("validator", "ipv4", 0, 0, boolFn(func(s string) bool {
		ip := net.ParseIP(s)
		return ip != nil && ip.To4() != nil
	}))
	register("validator", "ipv6", 0, 0, boolFn(func(s string) bool {
		ip := net.ParseIP(s)
		return ip != nil && ip.To4() == nil
	}))
	register("validator", "postalCode", 1, 1, func(v any, args []any) (any, error) {
		if v == nil {
			return false, nil
		}
		pat, ok := postalPatterns[strings.ToUpper(argString(args, 0, ""))]
		if !ok {
			return false, nil
		}
		return pat.MatchString(strings.TrimSpace(record.ToString(v))), nil
	})
}

func boolFn(check func(string) bool) func(any, []any) (any, error) {
	return func(v any, _ []any) (any, error) {
		if v == nil {
			return false, nil
		}
		return check(strings.TrimSpace(record.ToString(v))), nil
	}
}

func luhnValid(s string) bool {
	s = strings.ReplaceAll(strings.ReplaceAll(s, " ", ""), "-", "")
	if len(s) < 12 || len(s) > 19 {
		return false
	}
	sum, alt := 0, false
	for i := len(s) - 1; i >= 0; i-- {
		c := s[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if alt {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		alt = !alt
	}
	return sum%10 == 0
}
