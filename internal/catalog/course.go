// Package catalog normalizes scraped sections into a deduplicated,
// code-addressable course index.
package catalog

import (
	"math"
	"sort"
	"strings"

	"github.com/neu-planner/backend/internal/registry"
)

// DefaultCredits is assumed when the portal reports no credit hours.
const DefaultCredits = 4

type Semester string

const (
	Fall    Semester = "fall"
	Spring  Semester = "spring"
	Summer1 Semester = "summer1"
	Summer2 Semester = "summer2"
	Unknown Semester = "unknown"
)

var semesterOrder = map[Semester]int{Fall: 0, Spring: 1, Summer1: 2, Summer2: 3, Unknown: 4}

func ParseSemester(s string) (Semester, bool) {
	sem := Semester(strings.ToLower(strings.TrimSpace(s)))
	_, ok := semesterOrder[sem]
	return sem, ok
}

// ParseSemesters maps a portal term description such as "Fall 2025
// Semester" or "Summer 1 2026 Semester" to the semesters it covers.
// A summer term without a half ("Summer Full 2026") covers both halves.
func ParseSemesters(termDesc string) []Semester {
	desc := strings.ToLower(termDesc)
	switch {
	case desc == "":
		return []Semester{Unknown}
	case strings.Contains(desc, "fall"):
		return []Semester{Fall}
	case strings.Contains(desc, "spring"):
		return []Semester{Spring}
	case strings.Contains(desc, "summer"):
		fields := strings.Fields(desc)
		for _, f := range fields {
			switch f {
			case "1", "i", "first":
				return []Semester{Summer1}
			case "2", "ii", "second":
				return []Semester{Summer2}
			}
		}
		return []Semester{Summer1, Summer2}
	}
	return []Semester{Unknown}
}

type CourseRecord struct {
	Subject          string     `json:"subject"`
	Number           string     `json:"number"`
	Title            string     `json:"title"`
	Credits          int        `json:"credits"`
	CRN              string     `json:"crn,omitempty"`
	NUPathAttributes []string   `json:"nupath_attributes,omitempty"`
	OfferedSemesters []Semester `json:"offered_semesters,omitempty"`
}

func (c CourseRecord) Code() string {
	return c.Subject + c.Number
}

// Label is the "CODE - Title" form used in plans.
func (c CourseRecord) Label() string {
	return c.Code() + " - " + c.Title
}

// Level is the leading digit of the course number, or 0 when absent.
func (c CourseRecord) Level() int {
	if c.Number == "" || c.Number[0] < '0' || c.Number[0] > '9' {
		return 0
	}
	return int(c.Number[0] - '0')
}

// OfferedIn treats an unknown schedule as offered.
func (c CourseRecord) OfferedIn(s Semester) bool {
	if len(c.OfferedSemesters) == 0 {
		return true
	}
	for _, o := range c.OfferedSemesters {
		if o == s || o == Unknown {
			return true
		}
	}
	return false
}

// FromRaw converts one portal section into a CourseRecord.
func FromRaw(raw registry.RawCourseRecord) CourseRecord {
	credits := DefaultCredits
	if raw.CreditHourLow != nil && *raw.CreditHourLow > 0 {
		credits = int(math.Round(*raw.CreditHourLow))
	}

	var nupath []string
	for _, attr := range raw.SectionAttributes {
		if strings.Contains(attr.Description, "NUpath") {
			nupath = append(nupath, attr.Description)
		}
	}
	sort.Strings(nupath)

	return CourseRecord{
		Subject:          strings.ToUpper(strings.TrimSpace(raw.Subject)),
		Number:           strings.TrimSpace(raw.CourseNumber),
		Title:            strings.TrimSpace(raw.CourseTitle),
		Credits:          credits,
		CRN:              raw.CourseReferenceNumber,
		NUPathAttributes: nupath,
		OfferedSemesters: ParseSemesters(raw.TermDesc),
	}
}

// ScoredCourse is a catalog entry with a relevance score in [0, 1].
type ScoredCourse struct {
	CourseRecord
	Score float64 `json:"relevance_score"`
}
