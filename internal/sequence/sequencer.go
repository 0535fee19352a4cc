// Package sequence orders scored candidates into semesters.
package sequence

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/neu-planner/backend/internal/catalog"
	"github.com/neu-planner/backend/internal/llm"
	"github.com/neu-planner/backend/internal/plan"
	"github.com/neu-planner/backend/internal/stage"
	"github.com/neu-planner/backend/pkg/logger"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxCourses = 5
)

type Config struct {
	Timeout time.Duration
	// MaxCourses caps the courses per semester on the deterministic path.
	MaxCourses int
}

type Sequencer struct {
	llm llm.Completer
	cfg Config
}

// NewSequencer accepts a nil completer; every plan is then leveled
// deterministically.
func NewSequencer(completer llm.Completer, cfg Config) *Sequencer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxCourses < MinEntries {
		cfg.MaxCourses = defaultMaxCourses
	}
	return &Sequencer{llm: completer, cfg: cfg}
}

// Sequence builds years*2 Fall/Spring semesters from candidates. No course
// code appears twice in the result and every semester has at least
// MinEntries entries.
func (s *Sequencer) Sequence(ctx context.Context, candidates []catalog.ScoredCourse, years int, interest string) stage.Outcome[[]plan.SemesterEntry] {
	if len(candidates) == 0 {
		return stage.Failed[[]plan.SemesterEntry]("no candidates to sequence")
	}
	if years <= 0 {
		return stage.Failed[[]plan.SemesterEntry](fmt.Sprintf("invalid number of years: %d", years))
	}

	if s.llm == nil {
		return stage.Degraded(Level(candidates, years, interest, s.cfg.MaxCourses), "llm not configured")
	}

	semesters, err := s.sequenceWithLLM(ctx, candidates, years, interest)
	if err != nil {
		logger.Warn("LLM sequencing failed, leveling deterministically",
			zap.String("interest", interest),
			zap.Error(err),
		)
		return stage.Degraded(Level(candidates, years, interest, s.cfg.MaxCourses), llm.FailureReason(err))
	}
	return stage.Success(semesters)
}

type modelSemester struct {
	Year    int      `json:"year"`
	Term    string   `json:"term"`
	Courses []string `json:"courses"`
	Notes   string   `json:"notes"`
	IsCoop  bool     `json:"is_coop"`
}

func (s *Sequencer) sequenceWithLLM(ctx context.Context, candidates []catalog.ScoredCourse, years int, interest string) ([]plan.SemesterEntry, error) {
	resp, err := s.llm.Complete(ctx, llm.CompletionRequest{
		UserPrompt:  sequencePrompt(candidates, years, interest),
		Temperature: 0.3,
		MaxTokens:   1500,
		Timeout:     s.cfg.Timeout,
		Purpose:     "sequence",
	})
	if err != nil {
		return nil, err
	}

	var answer []modelSemester
	if err := json.Unmarshal([]byte(llm.StripCodeFence(resp.Content)), &answer); err != nil {
		return nil, fmt.Errorf("%w: %v", llm.ErrMalformed, err)
	}
	if len(answer) == 0 {
		return nil, fmt.Errorf("%w: empty semester list", llm.ErrMalformed)
	}
	return clean(answer, candidates, years, interest), nil
}

// clean lays model-proposed semesters into years*2 Fall/Spring slots. A
// semester naming a free in-range slot takes it; the rest fill the earliest
// free slots in answer order and any beyond that are dropped. Slots the
// model left empty get unplaced candidates in ranked order. Courses are resolved
// in slot order, so a code the model repeats stays in its earliest semester.
func clean(answer []modelSemester, candidates []catalog.ScoredCourse, years int, interest string) []plan.SemesterEntry {
	count := years * 2
	slots := make([]*modelSemester, count)
	var unslotted []*modelSemester
	for i := range answer {
		ms := &answer[i]
		if idx, ok := slotIndex(ms, years); ok && slots[idx] == nil {
			slots[idx] = ms
			continue
		}
		unslotted = append(unslotted, ms)
	}
	dropped := 0
	for _, ms := range unslotted {
		free := slices.Index(slots, nil)
		if free < 0 {
			dropped++
			continue
		}
		slots[free] = ms
	}
	if dropped > 0 {
		logger.Debug("Dropped semesters beyond the plan length",
			zap.Int("dropped", dropped),
			zap.Int("semesters", count),
		)
	}

	b := newBuilder(interest, candidates)
	semesters := make([]plan.SemesterEntry, count)
	for i, ms := range slots {
		sem := plan.SemesterEntry{Year: i/2 + 1, Term: positionTerm(i)}
		if ms != nil {
			sem.Notes = ms.Notes
			sem.IsCoop = ms.IsCoop
			for _, entry := range ms.Courses {
				b.addEntry(&sem, entry)
			}
		}
		semesters[i] = sem
	}
	for i, ms := range slots {
		if ms == nil {
			core := b.fill(&semesters[i], candidates, MinEntries)
			semesters[i].Notes = fmt.Sprintf("%d core courses for %s", core, strings.TrimSpace(interest))
		}
		b.topUp(&semesters[i])
	}
	return semesters
}

func slotIndex(ms *modelSemester, years int) (int, bool) {
	if ms.Year < 1 || ms.Year > years {
		return 0, false
	}
	switch term, _ := plan.ParseTerm(ms.Term); term {
	case plan.Fall:
		return (ms.Year - 1) * 2, true
	case plan.Spring:
		return (ms.Year-1)*2 + 1, true
	}
	return 0, false
}

// Level is the LLM-free sequencer: foundation (levels 0-2), intermediate
// (3) and advanced (4+) tiers, each by descending score, laid into
// semesters in order.
func Level(candidates []catalog.ScoredCourse, years int, interest string, maxCourses int) []plan.SemesterEntry {
	var foundation, intermediate, advanced []catalog.ScoredCourse
	for _, c := range candidates {
		switch lvl := c.Level(); {
		case lvl <= 2:
			foundation = append(foundation, c)
		case lvl == 3:
			intermediate = append(intermediate, c)
		default:
			advanced = append(advanced, c)
		}
	}
	byScore := func(tier []catalog.ScoredCourse) {
		sort.SliceStable(tier, func(i, j int) bool { return tier[i].Score > tier[j].Score })
	}
	byScore(foundation)
	byScore(intermediate)
	byScore(advanced)

	ordered := make([]catalog.ScoredCourse, 0, len(candidates))
	ordered = append(ordered, foundation...)
	ordered = append(ordered, intermediate...)
	ordered = append(ordered, advanced...)

	total := len(ordered)
	count := years * 2
	perSemester := min(max(MinEntries, total/count), maxCourses)
	// the remainder goes one apiece to the earliest semesters
	extra := 0
	if perSemester == total/count && perSemester < maxCourses {
		extra = total % count
	}

	b := newBuilder(interest, candidates)
	semesters := make([]plan.SemesterEntry, 0, count)
	next := 0
	for i := range count {
		sem := plan.SemesterEntry{Year: i/2 + 1, Term: positionTerm(i)}
		want := perSemester
		if i < extra {
			want++
		}
		for len(sem.Courses) < want && next < total {
			b.addCourse(&sem, ordered[next].CourseRecord)
			next++
		}
		core := len(sem.Courses)
		b.topUp(&sem)
		sem.Notes = fmt.Sprintf("%d core courses for %s", core, strings.TrimSpace(interest))
		semesters = append(semesters, sem)
	}

	if next < total {
		logger.Debug("Leveling left candidates unplaced",
			zap.Int("unplaced", total-next),
			zap.Int("semesters", count),
		)
	}
	return semesters
}

func positionTerm(i int) plan.Term {
	if i%2 == 0 {
		return plan.Fall
	}
	return plan.Spring
}

func sequencePrompt(candidates []catalog.ScoredCourse, years int, interest string) string {
	lines := make([]string, 0, len(candidates))
	for _, c := range candidates {
		lines = append(lines, fmt.Sprintf("%s: %s (%d credits)", c.Code(), c.Title, c.Credits))
	}

	return fmt.Sprintf(`You are an academic advisor creating an optimal %[1]d-year course sequence for a student interested in "%[2]s".

Available courses:
%[3]s

Create an optimal semester-by-semester plan with these guidelines:
1. Prerequisites should be taken before advanced courses
2. Foundation courses (1000-2000 level) should come early
3. Advanced courses (3000+ level) should come later
4. Aim for 12-18 credits (3-4 courses) per semester
5. Balance difficulty across semesters
6. Consider logical learning progression for "%[2]s"
7. IMPORTANT: Never repeat the same course - each course should appear only once
8. If you need electives, create specific meaningful names (not generic "General Elective")

Format the response as a JSON array:
[
  {
    "year": 1,
    "term": "Fall",
    "courses": ["CS1200 - Introduction to Computer Science", "MATH1341 - Calculus I", "ENGW1111 - First-Year Writing"],
    "credits": 12,
    "notes": "Foundation semester focusing on..."
  }
]

Include exactly %[4]d semesters (Fall and Spring for each year).
Ensure NO duplicate courses across all semesters.`, years, interest, strings.Join(lines, "\n"), years*2)
}
