package relevance

import (
	"strings"

	"github.com/neu-planner/backend/internal/catalog"
	"github.com/neu-planner/backend/internal/interest"
)

const (
	phraseScore  = 0.9
	keywordScore = 0.6
)

var subjectTiers = map[string]float64{
	"CS": 0.6, "DS": 0.6, "IS": 0.6, "BUSN": 0.6, "STAT": 0.6,
	"ECON": 0.6, "MGMT": 0.6, "ACCT": 0.6, "FINA": 0.6,
	"MATH": 0.4, "PHIL": 0.4, "ENGW": 0.4,
}

const defaultSubjectScore = 0.2

// Matcher scores titles against a fixed interest list without the LLM.
type Matcher struct {
	phrases  []string
	keywords [][]string
}

func NewMatcher(interests []string) *Matcher {
	m := &Matcher{}
	for _, in := range interests {
		phrase := strings.ToLower(strings.TrimSpace(in))
		if phrase == "" {
			continue
		}
		m.phrases = append(m.phrases, phrase)
		m.keywords = append(m.keywords, interest.Keywords([]string{phrase}))
	}
	return m
}

// KeywordScore is 0.9 when a whole interest phrase appears in the title,
// 0.6 when any of its content words does, otherwise 0.
func (m *Matcher) KeywordScore(title string) float64 {
	lower := strings.ToLower(title)
	tokens := make(map[string]struct{})
	for _, tok := range interest.Tokenize(lower) {
		tokens[tok] = struct{}{}
	}

	best := 0.0
	for i, phrase := range m.phrases {
		if strings.Contains(lower, phrase) {
			return phraseScore
		}
		for _, kw := range m.keywords[i] {
			if _, ok := tokens[kw]; ok {
				best = keywordScore
				break
			}
		}
	}
	return best
}

// SubjectScore ranks subjects by how broadly they support most interests.
func SubjectScore(subject string) float64 {
	if s, ok := subjectTiers[subject]; ok {
		return s
	}
	return defaultSubjectScore
}

// Heuristic is the deterministic keyword and subject-tier score.
func (m *Matcher) Heuristic(c catalog.CourseRecord) float64 {
	return max(m.KeywordScore(c.Title), SubjectScore(c.Subject))
}
