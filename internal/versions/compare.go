package versions

import (
	"strconv"
	"strings"
	"unicode"
)

// Compare orders dotted version strings numerically segment by segment.
// Non-numeric segments compare lexically; a release sorts after its pre-releases
// ("1.0.0rc1" < "1.0.0").
func Compare(a, b string) int {
	as, bs := segments(a), segments(b)
	for i := 0; i < len(as) && i < len(bs); i++ {
		if c := compareSegment(as[i], bs[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(as) == len(bs):
		return 0
	case len(as) > len(bs):
		// extra trailing segment on a means pre-release when it starts with a letter
		if startsWithLetter(as[len(bs)]) {
			return -1
		}
		return 1
	default:
		if startsWithLetter(bs[len(as)]) {
			return 1
		}
		return -1
	}
}

func segments(v string) []string {
	v = strings.TrimPrefix(v, "v")
	var out []string
	var cur strings.Builder
	digit := false
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, r := range v {
		switch {
		case r == '.' || r == '-' || r == '_' || r == '+':
			flush()
		case unicode.IsDigit(r) != digit && cur.Len() > 0:
			flush()
			cur.WriteRune(r)
		default:
			cur.WriteRune(r)
		}
		digit = unicode.IsDigit(r)
	}
	flush()
	return out
}

func compareSegment(a, b string) int {
	an, aerr := strconv.Atoi(a)
	bn, berr := strconv.Atoi(b)
	switch {
	case aerr == nil && berr == nil:
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		}
		return 0
	case aerr == nil:
		return 1 // numeric beats pre-release tag
	case berr == nil:
		return -1
	}
	return strings.Compare(a, b)
}

func startsWithLetter(s string) bool {
	return s != "" && unicode.IsLetter(rune(s[0]))
}
