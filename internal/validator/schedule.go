package validator

import (
	"fmt"

	"github.com/neu-planner/backend/internal/catalog"
)

type ScheduleResult struct {
	Valid        bool     `json:"valid"`
	Errors       []string `json:"errors"`
	Warnings     []string `json:"warnings"`
	Suggestions  []string `json:"suggestions"`
	TotalCredits int      `json:"total_credits"`
}

// ValidateSchedule checks one semester's course list. unknown holds the
// requested codes that are not in the catalog; each is an error.
func ValidateSchedule(courses []catalog.CourseRecord, unknown []string, semester catalog.Semester, rules Rules) ScheduleResult {
	rules = rules.withDefaults()
	res := ScheduleResult{
		Errors:      []string{},
		Warnings:    []string{},
		Suggestions: []string{},
	}

	for _, code := range unknown {
		res.Errors = append(res.Errors, fmt.Sprintf("%s: course not found in the catalog", code))
	}

	for _, c := range courses {
		credits := c.Credits
		if credits <= 0 {
			credits = catalog.DefaultCredits
		}
		res.TotalCredits += credits
		if semester != catalog.Unknown && !c.OfferedIn(semester) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s is not offered in %s", c.Code(), semester))
		}
	}

	switch {
	case res.TotalCredits > rules.MaxLoad:
		res.Warnings = append(res.Warnings, fmt.Sprintf("Heavy course load: %d credits", res.TotalCredits))
		res.Suggestions = append(res.Suggestions, "Consider reducing course load or spreading courses across multiple semesters")
	case res.TotalCredits > 0 && res.TotalCredits < rules.MinLoad:
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"Light course load: %d credits may not meet full-time requirements", res.TotalCredits))
	}

	res.Valid = len(res.Errors) == 0
	return res
}
