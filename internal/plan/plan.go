// Package plan holds the data model shared by sequencing, validation and
// the planning API.
package plan

import (
	"strings"
)

type Term string

const (
	Fall   Term = "Fall"
	Spring Term = "Spring"
	Summer Term = "Summer"
)

var termOrder = map[Term]int{Fall: 0, Spring: 1, Summer: 2}

// ParseTerm accepts any casing and "Summer 1"/"Summer 2" style names.
func ParseTerm(s string) (Term, bool) {
	lower := strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.HasPrefix(lower, "fall"):
		return Fall, true
	case strings.HasPrefix(lower, "spring"):
		return Spring, true
	case strings.HasPrefix(lower, "summer"):
		return Summer, true
	}
	return "", false
}

// Order ranks terms within an academic year: Fall, Spring, then Summer.
func (t Term) Order() int {
	if o, ok := termOrder[t]; ok {
		return o
	}
	return len(termOrder)
}

// Before reports whether (year, term) strictly precedes (otherYear, other).
func Before(year int, term Term, otherYear int, other Term) bool {
	if year != otherYear {
		return year < otherYear
	}
	return term.Order() < other.Order()
}

// SemesterEntry is one term of one year in a plan. Courses are either
// "CODE - Title" labels or synthesized elective names.
type SemesterEntry struct {
	Year    int      `json:"year"`
	Term    Term     `json:"term"`
	Courses []string `json:"courses"`
	Credits int      `json:"credits"`
	IsCoop  bool     `json:"is_coop"`
	Notes   string   `json:"notes,omitempty"`
}

type Validation struct {
	IsValid            bool     `json:"is_valid"`
	GraduationFeasible bool     `json:"graduation_feasible"`
	Warnings           []string `json:"warnings"`
	Recommendations    []string `json:"recommendations"`
}

// TotalCredits sums credits over non-co-op semesters.
func TotalCredits(semesters []SemesterEntry) int {
	total := 0
	for _, s := range semesters {
		if !s.IsCoop {
			total += s.Credits
		}
	}
	return total
}
