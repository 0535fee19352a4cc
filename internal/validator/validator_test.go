package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/neu-planner/backend/internal/catalog"
	"github.com/neu-planner/backend/internal/plan"
)

func semester(year int, term plan.Term, credits int, courses ...string) plan.SemesterEntry {
	return plan.SemesterEntry{Year: year, Term: term, Credits: credits, Courses: courses}
}

func containsWarning(warnings []string, needle string) bool {
	for _, w := range warnings {
		if strings.Contains(strings.ToLower(w), strings.ToLower(needle)) {
			return true
		}
	}
	return false
}

// eightSemesters is a 96-credit four-year plan of 12-credit semesters.
func eightSemesters() []plan.SemesterEntry {
	var out []plan.SemesterEntry
	for year := 1; year <= 4; year++ {
		out = append(out, semester(year, plan.Fall, 12), semester(year, plan.Spring, 12))
	}
	return out
}

func TestValidateCreditShortfall(t *testing.T) {
	v := Validate(eightSemesters(), Rules{RequiredCredits: 128})

	assert.False(t, v.GraduationFeasible)
	assert.True(t, v.IsValid)
	assert.True(t, containsWarning(v.Warnings, "96 credits, 32 short of the 128 required"), v.Warnings)
}

func TestValidateLoadBand(t *testing.T) {
	semesters := []plan.SemesterEntry{
		semester(1, plan.Fall, 22),
		semester(1, plan.Spring, 8),
		semester(2, plan.Fall, 0),
		semester(2, plan.Spring, 16),
	}
	v := Validate(semesters, Rules{})

	assert.True(t, containsWarning(v.Warnings, "heavy load in year 1 fall"), v.Warnings)
	assert.True(t, containsWarning(v.Warnings, "light load in year 1 spring"), v.Warnings)
	assert.False(t, containsWarning(v.Warnings, "year 2 fall"), "an empty semester is not a light load")
	assert.True(t, containsWarning(v.Recommendations, "redistributing"))
}

func TestValidateCoopSemesterSkipsLoadAndTotal(t *testing.T) {
	semesters := []plan.SemesterEntry{
		semester(1, plan.Fall, 16),
		{Year: 1, Term: plan.Spring, Credits: 4, IsCoop: true},
	}
	v := Validate(semesters, Rules{RequiredCredits: 16})

	assert.True(t, v.GraduationFeasible)
	assert.Empty(t, v.Warnings)
	assert.False(t, containsWarning(v.Recommendations, "co-op"))
}

func TestValidateMissingCoreAndDuplicates(t *testing.T) {
	semesters := []plan.SemesterEntry{
		semester(1, plan.Fall, 12, "CS2500 - Fundamentals", "MATH1341 - Calculus 1", "Research Project"),
		semester(1, plan.Spring, 12, "CS2500 - Fundamentals", "CS3500 - OOD", "Data Governance"),
	}
	v := Validate(semesters, Rules{RequiredCore: []string{"cs 2500", "ENGW1111"}})

	assert.False(t, v.IsValid)
	assert.True(t, containsWarning(v.Warnings, "ENGW1111 is missing"))
	assert.False(t, containsWarning(v.Warnings, "CS2500 is missing"))
	assert.True(t, containsWarning(v.Warnings, "CS2500 appears in both Year 1 Fall and Year 1 Spring"))
}

func TestValidateChronology(t *testing.T) {
	semesters := []plan.SemesterEntry{
		semester(1, plan.Spring, 12),
		semester(1, plan.Fall, 12),
		semester(1, plan.Summer, 12),
	}
	v := Validate(semesters, Rules{})

	assert.False(t, v.IsValid)
	assert.True(t, containsWarning(v.Warnings, "Year 1 Fall does not come after Year 1 Spring"))
	assert.False(t, containsWarning(v.Warnings, "Year 1 Summer does not come after"))
}

func TestValidateRecommendations(t *testing.T) {
	semesters := eightSemesters()
	for i := range semesters {
		semesters[i].Credits = 18
	}
	v := Validate(semesters, Rules{RequiredCredits: 128})

	assert.True(t, v.GraduationFeasible)
	assert.Contains(t, v.Recommendations, "You may be able to graduate early with your current plan")
	assert.True(t, containsWarning(v.Recommendations, "co-op"))

	long := append(eightSemesters(), semester(5, plan.Fall, 12))
	v = Validate(long, Rules{})
	assert.True(t, containsWarning(v.Warnings, "9 academic semesters"))
}

func TestValidateSchedule(t *testing.T) {
	courses := []catalog.CourseRecord{
		{Subject: "CS", Number: "2500", Credits: 4, OfferedSemesters: []catalog.Semester{catalog.Fall}},
		{Subject: "CS", Number: "3500", Credits: 4, OfferedSemesters: []catalog.Semester{catalog.Spring}},
		{Subject: "MATH", Number: "1341", Credits: 0},
	}

	res := ValidateSchedule(courses, nil, catalog.Fall, Rules{})
	assert.True(t, res.Valid)
	assert.Equal(t, 12, res.TotalCredits)
	assert.Equal(t, []string{"CS3500 is not offered in fall"}, res.Warnings)

	res = ValidateSchedule(courses[:1], []string{"XX9999"}, catalog.Unknown, Rules{})
	assert.False(t, res.Valid)
	assert.Equal(t, []string{"XX9999: course not found in the catalog"}, res.Errors)
	assert.True(t, containsWarning(res.Warnings, "light course load: 4 credits"))

	heavy := make([]catalog.CourseRecord, 6)
	for i := range heavy {
		heavy[i] = catalog.CourseRecord{Subject: "CS", Number: "100" + string(rune('0'+i)), Credits: 4}
	}
	res = ValidateSchedule(heavy, nil, catalog.Fall, Rules{})
	assert.True(t, containsWarning(res.Warnings, "heavy course load: 24 credits"))
	assert.NotEmpty(t, res.Suggestions)
}
