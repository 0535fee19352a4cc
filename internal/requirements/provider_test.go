package requirements

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neu-planner/backend/internal/cache"
	"github.com/neu-planner/backend/internal/llm"
	"github.com/neu-planner/backend/internal/llm/llmtest"
	"github.com/neu-planner/backend/internal/stage"
)

func answer(content string) *llmtest.Fake {
	return &llmtest.Fake{Respond: func(llm.CompletionRequest) (string, error) { return content, nil }}
}

func TestLLMProvider(t *testing.T) {
	fake := answer("```json\n" + `{
  "name": "Computer Science",
  "total_credits": 134,
  "subjects": ["cs", "MATH", "XYZ", "ENGW", "CS", "PHIL"],
  "core_courses": ["CS2500 - Fundamentals", "cs 2510", "Writing", "CS2500"]
}` + "\n```")

	req, err := NewLLMProvider(fake, 0).Requirements(context.Background(), "computer-science")
	require.NoError(t, err)
	assert.Equal(t, Requirements{
		MajorID:      "computer-science",
		Name:         "Computer Science",
		TotalCredits: 134,
		CoreCourses:  []string{"CS2500", "CS2510"},
		Subjects:     []string{"CS", "MATH", "ENGW", "PHIL"},
	}, req)
	assert.Equal(t, 1, fake.CallsFor("requirements"))
}

func TestLLMProviderRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"not json":     "I think about 128 credits",
		"credits low":  `{"total_credits": 40, "subjects": ["CS", "MATH", "ENGW"]}`,
		"credits high": `{"total_credits": 400, "subjects": ["CS", "MATH", "ENGW"]}`,
		"few subjects": `{"total_credits": 128, "subjects": ["CS", "NOPE"]}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewLLMProvider(answer(content), 0).Requirements(context.Background(), "x")
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}

	_, err := NewLLMProvider(nil, 0).Requirements(context.Background(), "x")
	assert.ErrorIs(t, err, llm.ErrUnavailable)
}

func TestFallbackAndStatic(t *testing.T) {
	p := Fallback(NewLLMProvider(llmtest.Failing(errors.New("boom")), 0), StaticProvider{})

	req, err := p.Requirements(context.Background(), "biology")
	require.NoError(t, err)
	assert.Equal(t, 128, req.TotalCredits)
	assert.Equal(t, []string{"CS", "MATH", "ENGW", "PHIL"}, req.Subjects)
	assert.Empty(t, req.CoreCourses)
	assert.Equal(t, "biology", req.Name)
}

func TestCached(t *testing.T) {
	fake := answer(`{"total_credits": 130, "subjects": ["DS", "CS", "MATH"]}`)
	store := cache.NewMemoryStore()
	p := Cached(NewLLMProvider(fake, 0), store, 0)

	first, err := p.Requirements(context.Background(), "Data Science")
	require.NoError(t, err)
	second, err := p.Requirements(context.Background(), "data science ")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, fake.CallsFor("requirements"))

	keys, err := store.Keys(context.Background(), cache.PrefixRequirements)
	require.NoError(t, err)
	assert.Equal(t, []string{"requirements:data science"}, keys)
}

func TestCachedDoesNotStoreFailures(t *testing.T) {
	store := cache.NewMemoryStore()
	p := Cached(NewLLMProvider(llmtest.Failing(llm.ErrUnavailable), 0), store, 0)

	_, err := p.Requirements(context.Background(), "x")
	assert.ErrorIs(t, err, llm.ErrUnavailable)

	keys, err := store.Keys(context.Background(), cache.PrefixRequirements)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestSubjectSelector(t *testing.T) {
	out := NewSubjectSelector(answer(`"DS, stat, CS, ZZZ, ECON, MATH, BUSN, FINA"`), 0).
		Select(context.Background(), []string{"data science"})
	require.Equal(t, stage.StatusSuccess, out.Status)
	assert.Equal(t, []string{"DS", "STAT", "CS", "ECON", "MATH", "BUSN"}, out.Data)

	out = NewSubjectSelector(answer("CS"), 0).Select(context.Background(), []string{"x"})
	assert.Equal(t, stage.StatusDegraded, out.Status)
	assert.Equal(t, DefaultInterestSubjects, out.Data)

	out = NewSubjectSelector(nil, 0).Select(context.Background(), nil)
	assert.Equal(t, "no interests given", out.Reason)
	assert.Equal(t, DefaultInterestSubjects, out.Data)
}
