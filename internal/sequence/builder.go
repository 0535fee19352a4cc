package sequence

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/neu-planner/backend/internal/catalog"
	"github.com/neu-planner/backend/internal/plan"
)

// MinEntries is the fewest entries a semester may hold; short semesters
// are padded with synthesized electives.
const MinEntries = 3

const electiveCredits = catalog.DefaultCredits

var (
	businessElectives = []string{
		"Business Strategy", "Marketing Analytics", "Financial Analysis",
		"Operations Research", "Corporate Finance", "Supply Chain Analytics",
	}
	dataElectives = []string{
		"Advanced Analytics", "Data Warehousing", "Predictive Modeling",
		"Business Intelligence", "Data Governance", "Machine Learning Applications",
	}
	generalElectives = []string{
		"Professional Skills", "Industry Applications", "Research Project",
		"Technical Writing", "Capstone Experience", "Leadership Development",
	}
)

// ElectiveRotation picks the elective name list for an interest.
func ElectiveRotation(interest string) []string {
	lower := strings.ToLower(interest)
	switch {
	case strings.Contains(lower, "business"):
		return businessElectives
	case strings.Contains(lower, "data") || strings.Contains(lower, "intelligence"):
		return dataElectives
	default:
		return generalElectives
	}
}

// builder assembles semesters while keeping every course code and every
// entry name unique across the plan.
type builder struct {
	title      string
	rotation   []string
	candidates map[string]catalog.CourseRecord

	usedCodes   map[string]struct{}
	usedEntries map[string]struct{}
	rotationPos int
	focusPos    int
}

func newBuilder(interest string, candidates []catalog.ScoredCourse) *builder {
	title := cases.Title(language.English).String(strings.TrimSpace(interest))
	if title == "" {
		title = "General"
	}
	b := &builder{
		title:       title,
		rotation:    ElectiveRotation(interest),
		candidates:  make(map[string]catalog.CourseRecord, len(candidates)),
		usedCodes:   make(map[string]struct{}),
		usedEntries: make(map[string]struct{}),
	}
	for _, c := range candidates {
		b.candidates[c.Code()] = c.CourseRecord
	}
	return b
}

// addCourse places c unless its code is already in the plan.
func (b *builder) addCourse(sem *plan.SemesterEntry, c catalog.CourseRecord) bool {
	code := c.Code()
	if _, ok := b.usedCodes[code]; ok {
		return false
	}
	b.usedCodes[code] = struct{}{}
	label := c.Label()
	b.usedEntries[label] = struct{}{}
	sem.Courses = append(sem.Courses, label)
	credits := c.Credits
	if credits <= 0 {
		credits = catalog.DefaultCredits
	}
	sem.Credits += credits
	return true
}

// addEntry resolves one free-text entry from a model answer. Known unused
// codes become course labels, elective placeholders become named
// electives, anything else is dropped.
func (b *builder) addEntry(sem *plan.SemesterEntry, entry string) {
	if code, ok := catalog.ExtractCourseCode(strings.ToUpper(entry)); ok {
		if c, known := b.candidates[code]; known {
			b.addCourse(sem, c)
			return
		}
	}
	lower := strings.ToLower(entry)
	if strings.Contains(lower, "elective") || strings.Contains(lower, "general") {
		b.addElective(sem, b.nextRotationName())
	}
}

func (b *builder) addElective(sem *plan.SemesterEntry, name string) {
	b.usedEntries[name] = struct{}{}
	sem.Courses = append(sem.Courses, name)
	sem.Credits += electiveCredits
}

// nextRotationName walks the interest's rotation list, then continues
// with numbered specializations, skipping names already in the plan.
func (b *builder) nextRotationName() string {
	for {
		var name string
		if b.rotationPos < len(b.rotation) {
			name = b.rotation[b.rotationPos]
		} else {
			name = fmt.Sprintf("%s Specialization %d", b.title, b.rotationPos-len(b.rotation)+1)
		}
		b.rotationPos++
		if _, used := b.usedEntries[name]; !used {
			return name
		}
	}
}

func (b *builder) nextFocusName() string {
	for {
		b.focusPos++
		name := fmt.Sprintf("%s Focus Area %d", b.title, b.focusPos)
		if _, used := b.usedEntries[name]; !used {
			return name
		}
	}
}

// fill adds unplaced candidates in order until sem holds want entries and
// reports how many it added.
func (b *builder) fill(sem *plan.SemesterEntry, candidates []catalog.ScoredCourse, want int) int {
	added := 0
	for _, c := range candidates {
		if len(sem.Courses) >= want {
			break
		}
		if b.addCourse(sem, c.CourseRecord) {
			added++
		}
	}
	return added
}

// topUp pads sem to MinEntries with focus-area electives.
func (b *builder) topUp(sem *plan.SemesterEntry) {
	for len(sem.Courses) < MinEntries {
		b.addElective(sem, b.nextFocusName())
	}
}
