// Package validator checks built plans and single-semester schedules
// against credit and requirement rules. Findings are returned as data.
package validator

import (
	"fmt"
	"slices"

	"github.com/neu-planner/backend/internal/catalog"
	"github.com/neu-planner/backend/internal/plan"
)

type Rules struct {
	RequiredCredits int
	RequiredCore    []string
	// MinLoad and MaxLoad bound the per-semester soft band.
	MinLoad int
	MaxLoad int
	// MaxSemesters is the academic-semester count of a four-year plan.
	MaxSemesters int
	// MaxSpread is the largest acceptable gap between semester loads.
	MaxSpread int
}

func DefaultRules() Rules {
	return Rules{
		RequiredCredits: 128,
		MinLoad:         12,
		MaxLoad:         20,
		MaxSemesters:    8,
		MaxSpread:       6,
	}
}

func (r Rules) withDefaults() Rules {
	def := DefaultRules()
	if r.MinLoad <= 0 {
		r.MinLoad = def.MinLoad
	}
	if r.MaxLoad <= 0 {
		r.MaxLoad = def.MaxLoad
	}
	if r.MaxSemesters <= 0 {
		r.MaxSemesters = def.MaxSemesters
	}
	if r.MaxSpread <= 0 {
		r.MaxSpread = def.MaxSpread
	}
	return r
}

// Validate checks a whole plan. IsValid turns false on missing core
// courses, repeated codes or out-of-order semesters; GraduationFeasible
// turns false on a credit shortfall. Load findings are warnings only.
func Validate(semesters []plan.SemesterEntry, rules Rules) plan.Validation {
	rules = rules.withDefaults()
	v := plan.Validation{
		IsValid:            true,
		GraduationFeasible: true,
		Warnings:           []string{},
		Recommendations:    []string{},
	}

	total := plan.TotalCredits(semesters)
	if total < rules.RequiredCredits {
		v.GraduationFeasible = false
		v.Warnings = append(v.Warnings, fmt.Sprintf(
			"Plan includes %d credits, %d short of the %d required for graduation",
			total, rules.RequiredCredits-total, rules.RequiredCredits))
	}

	placed := make(map[string]int)
	for i, sem := range semesters {
		for _, entry := range sem.Courses {
			code, ok := catalog.ExtractCourseCode(entry)
			if !ok {
				continue
			}
			if first, dup := placed[code]; dup {
				v.IsValid = false
				v.Warnings = append(v.Warnings, fmt.Sprintf(
					"%s appears in both %s and %s", code, label(semesters[first]), label(sem)))
				continue
			}
			placed[code] = i
		}
	}

	for _, core := range rules.RequiredCore {
		code := catalog.NormalizeCode(core)
		if _, ok := placed[code]; !ok {
			v.IsValid = false
			v.Warnings = append(v.Warnings, fmt.Sprintf("Required core course %s is missing from the plan", code))
		}
	}

	for i := 1; i < len(semesters); i++ {
		prev, cur := semesters[i-1], semesters[i]
		if !plan.Before(prev.Year, prev.Term, cur.Year, cur.Term) {
			v.IsValid = false
			v.Warnings = append(v.Warnings, fmt.Sprintf("%s does not come after %s", label(cur), label(prev)))
		}
	}

	var loads []int
	for _, sem := range semesters {
		if sem.IsCoop {
			continue
		}
		loads = append(loads, sem.Credits)
		switch {
		case sem.Credits > rules.MaxLoad:
			v.Warnings = append(v.Warnings, fmt.Sprintf(
				"Heavy load in %s: %d credits exceeds %d", label(sem), sem.Credits, rules.MaxLoad))
		case sem.Credits > 0 && sem.Credits < rules.MinLoad:
			v.Warnings = append(v.Warnings, fmt.Sprintf(
				"Light load in %s: %d credits may not meet full-time requirements", label(sem), sem.Credits))
		}
	}

	if len(loads) > rules.MaxSemesters {
		v.Warnings = append(v.Warnings, fmt.Sprintf(
			"Plan has %d academic semesters and extends beyond the typical four years", len(loads)))
	}

	if len(loads) > 1 && slices.Max(loads)-slices.Min(loads) > rules.MaxSpread {
		v.Recommendations = append(v.Recommendations, fmt.Sprintf(
			"Consider redistributing courses: semester loads range from %d to %d credits",
			slices.Min(loads), slices.Max(loads)))
	}
	if rules.RequiredCredits > 0 && total > rules.RequiredCredits && len(loads) <= rules.MaxSemesters {
		v.Recommendations = append(v.Recommendations, "You may be able to graduate early with your current plan")
	}
	if len(loads) == len(semesters) {
		v.Recommendations = append(v.Recommendations, "Consider adding a co-op semester to gain practical experience")
	}

	return v
}

func label(sem plan.SemesterEntry) string {
	return fmt.Sprintf("Year %d %s", sem.Year, sem.Term)
}
