package relevance

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neu-planner/backend/internal/catalog"
	"github.com/neu-planner/backend/internal/llm"
	"github.com/neu-planner/backend/internal/llm/llmtest"
	"github.com/neu-planner/backend/internal/stage"
)

func course(subject, number, title string) catalog.CourseRecord {
	return catalog.CourseRecord{Subject: subject, Number: number, Title: title, Credits: 4}
}

// prioritySubjectCatalog has two courses in each quota subject plus some
// unrelated ones at the end.
func prioritySubjectCatalog() []catalog.CourseRecord {
	var courses []catalog.CourseRecord
	for _, subject := range quotaSubjects {
		courses = append(courses,
			course(subject, "1000", subject+" Foundations"),
			course(subject, "2000", subject+" Methods"),
		)
	}
	return append(courses, course("ARTH", "1100", "Art History"), course("MUSC", "1200", "Music Theory"))
}

func codes(scored []catalog.ScoredCourse) []string {
	out := make([]string, len(scored))
	for i, s := range scored {
		out[i] = s.Code()
	}
	return out
}

func TestSelectLLMPath(t *testing.T) {
	courses := []catalog.CourseRecord{
		course("CS", "2500", "Fundamentals of Computer Science"),
		course("CS", "4100", "Artificial Intelligence"),
		course("MATH", "1341", "Calculus 1"),
		course("ARTH", "1000", "Art History"),
	}
	fake := llmtest.ByPurpose(map[string]func(string) (string, error){
		"batch_scan": func(string) (string, error) { return "1, 0, 99, x, 1", nil },
		"course_score": func(prompt string) (string, error) {
			if llmtest.Contains(prompt, "CS4100") {
				return "0.95", nil
			}
			return "", errors.New("timeout")
		},
	})

	cfg := DefaultConfig()
	cfg.MinCandidates = 2
	cfg.ExpansionTrigger = 2
	cfg.TargetCandidates = 4
	out := NewScorer(fake, cfg).Select(context.Background(), courses, []string{"machine learning", "artificial intelligence"})

	require.Equal(t, stage.StatusSuccess, out.Status, out.Reason)
	assert.Equal(t, []string{"CS4100", "CS2500"}, codes(out.Data))
	assert.InDelta(t, 0.95, out.Data[0].Score, 1e-9)
	// failed refinement falls back to the subject tier
	assert.InDelta(t, 0.6, out.Data[1].Score, 1e-9)
	assert.Equal(t, 1, fake.CallsFor("batch_scan"))
	assert.Equal(t, 2, fake.CallsFor("course_score"))
}

func TestSelectRefinementNeverLowersHeuristic(t *testing.T) {
	courses := []catalog.CourseRecord{course("CS", "4100", "Machine Learning")}
	fake := llmtest.ByPurpose(map[string]func(string) (string, error){
		"batch_scan":   func(string) (string, error) { return "0", nil },
		"course_score": func(string) (string, error) { return "0.1", nil },
	})

	cfg := DefaultConfig()
	cfg.MinCandidates = 1
	cfg.ExpansionTrigger = 1
	out := NewScorer(fake, cfg).Select(context.Background(), courses, []string{"machine learning"})

	require.True(t, out.OK())
	require.Len(t, out.Data, 1)
	assert.InDelta(t, 0.9, out.Data[0].Score, 1e-9)
}

func TestSelectFallsBackToSubjectQuota(t *testing.T) {
	fake := llmtest.Failing(errors.New("503 service unavailable"))
	courses := prioritySubjectCatalog()

	out := NewScorer(fake, DefaultConfig()).Select(context.Background(), courses, []string{"machine learning"})

	require.Equal(t, stage.StatusDegraded, out.Status)
	assert.Contains(t, out.Reason, "subject quota")
	assert.GreaterOrEqual(t, len(out.Data), 8)
	assert.Len(t, out.Data, 14)
	for _, s := range out.Data {
		assert.InDelta(t, quotaScore, s.Score, 1e-9)
		assert.NotEqual(t, "ARTH", s.Subject)
	}
	assert.Equal(t, 0, fake.CallsFor("course_score"))
}

func TestSelectOutageUsesEmergencyTier(t *testing.T) {
	courses := prioritySubjectCatalog()

	for name, completer := range map[string]llm.Completer{
		"unavailable": llmtest.Failing(fmt.Errorf("breaker open: %w", llm.ErrUnavailable)),
		"nil":         nil,
	} {
		t.Run(name, func(t *testing.T) {
			out := NewScorer(completer, DefaultConfig()).Select(context.Background(), courses, []string{"finance"})

			require.Equal(t, stage.StatusDegraded, out.Status)
			assert.Contains(t, out.Reason, "emergency")
			assert.Len(t, out.Data, 14)
			for _, s := range out.Data {
				assert.InDelta(t, emergencyScore, s.Score, 1e-9)
			}
		})
	}
}

func TestSelectEmergencyFillsFromAnySubject(t *testing.T) {
	courses := []catalog.CourseRecord{
		course("CS", "1800", "Discrete Structures"),
		course("ARTH", "1100", "Art History"),
		course("MUSC", "1200", "Music Theory"),
	}

	out := NewScorer(nil, DefaultConfig()).Select(context.Background(), courses, []string{"anything"})

	require.True(t, out.OK())
	assert.Equal(t, []string{"CS1800", "ARTH1100", "MUSC1200"}, codes(out.Data))
	assert.InDelta(t, emergencyFillScore, out.Data[2].Score, 1e-9)
}

func TestSelectFallbackIsDeterministic(t *testing.T) {
	courses := prioritySubjectCatalog()
	scorer := NewScorer(llmtest.Failing(errors.New("boom")), DefaultConfig())

	first := scorer.Select(context.Background(), courses, []string{"statistics"})
	second := scorer.Select(context.Background(), courses, []string{"statistics"})
	assert.Equal(t, first, second)
}

func TestSelectScanWindowAndExpansion(t *testing.T) {
	courses := []catalog.CourseRecord{
		course("ARTH", "1000", "Drawing"),
		course("ARTH", "1001", "Painting"),
		course("CS", "3200", "Database Design"),
		course("ARTH", "1002", "Sculpture"),
		course("CS", "9999", "Beyond The Window"),
	}
	fake := llmtest.ByPurpose(map[string]func(string) (string, error){
		"batch_scan":   func(string) (string, error) { return "", nil },
		"course_score": func(string) (string, error) { return "1", nil },
	})

	cfg := DefaultConfig()
	cfg.ScanWindow = 2
	cfg.BatchSize = 1
	cfg.ExpansionWindow = 2
	cfg.MinCandidates = 1
	cfg.ExpansionTrigger = 5
	out := NewScorer(fake, cfg).Select(context.Background(), courses, []string{"databases"})

	assert.Equal(t, 2, fake.CallsFor("batch_scan"))
	require.True(t, out.OK())
	// only CS3200 in the expansion window clears the threshold
	assert.Equal(t, []string{"CS3200"}, codes(out.Data))
	assert.Contains(t, out.Reason, "expansion pass added 1")
}

func TestSelectEmptyCatalog(t *testing.T) {
	out := NewScorer(nil, DefaultConfig()).Select(context.Background(), nil, []string{"x"})
	assert.Equal(t, stage.StatusFailed, out.Status)
	assert.False(t, out.OK())
}

func TestSelectionKeepsHighestScore(t *testing.T) {
	sel := newSelection()
	sel.add(course("CS", "2500", "Fundies"), 0.3)
	sel.add(course("MATH", "1341", "Calculus"), 0.5)
	sel.add(course("CS", "2500", "Fundies"), 0.8)
	sel.add(course("MATH", "1341", "Calculus"), 0.1)
	sel.add(course("DS", "2000", "Programming"), 0.5)
	sel.add(course("CS", "1200", "Overflow"), 3)

	ranked := sel.ranked()
	assert.Equal(t, []string{"CS1200", "CS2500", "MATH1341", "DS2000"}, codes(ranked))
	assert.Equal(t, 1.0, ranked[0].Score)
	assert.InDelta(t, 0.8, ranked[1].Score, 1e-9)
}

func TestHeuristic(t *testing.T) {
	m := NewMatcher([]string{"Machine Learning", "statistics"})

	assert.Equal(t, phraseScore, m.KeywordScore("Intro to Machine Learning"))
	assert.Equal(t, keywordScore, m.KeywordScore("Learning Theory"))
	assert.Equal(t, 0.0, m.KeywordScore("Art History"))

	assert.Equal(t, 0.6, SubjectScore("CS"))
	assert.Equal(t, 0.4, SubjectScore("ENGW"))
	assert.Equal(t, defaultSubjectScore, SubjectScore("ARTH"))

	assert.Equal(t, 0.9, m.Heuristic(course("ARTH", "2000", "Statistics for Artists")))
	assert.Equal(t, 0.4, m.Heuristic(course("MATH", "1341", "Calculus")))
}

func TestRankWithoutLLM(t *testing.T) {
	courses := []catalog.CourseRecord{
		course("ARTH", "1100", "Art History"),
		course("MATH", "1341", "Calculus"),
		course("CS", "4100", "Machine Learning"),
	}

	ranked := NewScorer(nil, DefaultConfig()).Rank(context.Background(), courses, []string{"machine learning"}, 10)
	assert.Equal(t, []string{"CS4100", "MATH1341", "ARTH1100"}, codes(ranked))
}
