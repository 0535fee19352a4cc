package catalog

import (
	"regexp"
	"strings"
)

var (
	strictCodePattern = regexp.MustCompile(`\b([A-Z]{2,4}) ?(\d{4})\b`)
	looseCodePattern  = regexp.MustCompile(`\b([A-Z]{2,4}) ?(\d{1,5})\b`)
)

// ExtractCourseCode finds the first course code in text: two to four
// uppercase letters followed by digits, optionally separated by one space.
// Four-digit numbers are preferred over other lengths.
func ExtractCourseCode(text string) (string, bool) {
	if m := strictCodePattern.FindStringSubmatch(text); m != nil {
		return m[1] + m[2], true
	}
	if m := looseCodePattern.FindStringSubmatch(text); m != nil {
		return m[1] + m[2], true
	}
	return "", false
}

// NormalizeCode upper-cases a code and drops separators, so "cs 2500"
// and "CS-2500" both become "CS2500".
func NormalizeCode(code string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(code) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SplitCode separates a normalized code into its subject and number.
func SplitCode(code string) (subject, number string, ok bool) {
	code = NormalizeCode(code)
	i := strings.IndexFunc(code, func(r rune) bool { return r >= '0' && r <= '9' })
	if i <= 0 {
		return "", "", false
	}
	if strings.ContainsFunc(code[i:], func(r rune) bool { return r < '0' || r > '9' }) {
		return "", "", false
	}
	return code[:i], code[i:], true
}
