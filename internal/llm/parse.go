package llm

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

var (
	ErrMalformed = errors.New("malformed llm response")

	fencePattern  = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
	numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
)

// StripCodeFence removes a surrounding markdown code fence, if any.
func StripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if m := fencePattern.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	return content
}

// ParseIndexList reads comma-separated indices in [0, n). Tokens that are
// not integers or fall out of range are dropped; duplicates are collapsed.
func ParseIndexList(content string, n int) []int {
	content = StripCodeFence(content)
	fields := strings.FieldsFunc(content, func(r rune) bool {
		return r == ',' || r == '\n' || r == ' ' || r == ';'
	})

	seen := make(map[int]struct{}, len(fields))
	indices := make([]int, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, "[](). ")
		idx, err := strconv.Atoi(f)
		if err != nil || idx < 0 || idx >= n {
			continue
		}
		if _, ok := seen[idx]; ok {
			continue
		}
		seen[idx] = struct{}{}
		indices = append(indices, idx)
	}
	return indices
}

// ParseScore extracts the first number in content and normalizes it from
// [0, scale] to [0, 1]. A zero scale accepts either a 0-1 or a 0-10 answer.
func ParseScore(content string, scale float64) (float64, error) {
	m := numberPattern.FindString(content)
	if m == "" {
		return 0, ErrMalformed
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, ErrMalformed
	}
	switch {
	case scale <= 0 && v > 1:
		v /= 10
	case scale > 0:
		v /= scale
	}
	return min(max(v, 0), 1), nil
}

// ParseTermList splits a comma-separated answer into at most limit
// lower-cased, unique, non-empty terms.
func ParseTermList(content string, limit int) []string {
	content = StripCodeFence(content)
	seen := make(map[string]struct{})
	terms := make([]string, 0, limit)
	for _, part := range strings.Split(content, ",") {
		term := strings.ToLower(strings.Trim(strings.TrimSpace(part), `."'-*`))
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
		if len(terms) == limit {
			break
		}
	}
	return terms
}
