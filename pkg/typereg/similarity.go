package typereg

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// Similarity scores how alike two column names are, in [0,1]. It is used
// by the mapping validator's auto-mapper suggestions.
//
// Exact or normalised-equal names score 1.0; containment scores at least
// 0.8; otherwise the score is the normalised Levenshtein distance with a
// small bonus for shared prefixes or suffixes.
func Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	na, nb := normalizeName(a), normalizeName(b)
	if na == nb {
		return 1.0
	}
	if na == "" || nb == "" {
		return 0
	}

	base := 1.0 - float64(levenshtein.ComputeDistance(na, nb))/float64(max(len(na), len(nb)))

	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		if base < 0.8 {
			base = 0.8
		} else {
			base += 0.05
		}
	} else if strings.HasPrefix(na, nb[:min(3, len(nb))]) || strings.HasSuffix(na, nb[max(0, len(nb)-3):]) {
		base += 0.1
	}

	if base > 1.0 {
		base = 1.0
	}
	if base < 0 {
		base = 0
	}
	return base
}

// normalizeName lowercases and strips separators so user_id, UserID and
// user-id compare equal.
func normalizeName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r == '_' || r == '-' || r == ' ' || r == '.' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
