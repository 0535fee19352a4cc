package interest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neu-planner/backend/internal/llm"
	"github.com/neu-planner/backend/internal/llm/llmtest"
	"github.com/neu-planner/backend/internal/stage"
)

func TestExpandUsesLLM(t *testing.T) {
	fake := &llmtest.Fake{Respond: func(req llm.CompletionRequest) (string, error) {
		assert.Contains(t, req.UserPrompt, `"machine learning"`)
		return "Statistics, Linear Algebra, programming, optimization, data mining, probability, algorithms, ethics, extra", nil
	}}

	out := NewExpander(fake, 0).Expand(context.Background(), "machine learning")

	require.Equal(t, stage.StatusSuccess, out.Status)
	assert.Len(t, out.Data, MaxTerms)
	assert.Equal(t, "statistics", out.Data[0])
	assert.Equal(t, "linear algebra", out.Data[1])
	assert.Equal(t, 1, fake.CallsFor("expand"))
}

func TestExpandFallsBackOnError(t *testing.T) {
	out := NewExpander(llmtest.Failing(errors.New("boom")), 0).Expand(context.Background(), "Business Intelligence")

	assert.Equal(t, stage.StatusDegraded, out.Status)
	assert.Equal(t, "llm error", out.Reason)
	assert.Equal(t, []string{"data analytics", "business analysis", "statistics", "databases", "reporting", "decision making", "management"}, out.Data)
}

func TestExpandFallsBackOnEmptyAnswer(t *testing.T) {
	fake := &llmtest.Fake{Respond: func(llm.CompletionRequest) (string, error) { return " , ,", nil }}

	out := NewExpander(fake, 0).Expand(context.Background(), "poetry")
	assert.Equal(t, stage.StatusDegraded, out.Status)
	assert.Equal(t, []string{"mathematics", "statistics", "programming", "writing"}, out.Data)
}

func TestExpandWithoutLLM(t *testing.T) {
	out := NewExpander(nil, 0).Expand(context.Background(), "data engineering")
	assert.Equal(t, stage.StatusDegraded, out.Status)
	assert.Equal(t, "llm not configured", out.Reason)
	assert.Contains(t, out.Data, "databases")
}

func TestFallbackTerms(t *testing.T) {
	assert.Equal(t, []string{"management", "economics", "finance", "accounting", "marketing", "statistics"}, FallbackTerms("business"))
	assert.Equal(t, FallbackTerms("AI"), FallbackTerms("artificial intelligence"))
	assert.Contains(t, FallbackTerms("AI ethics"), "machine learning")
	// "ai" inside another word does not count
	assert.Equal(t, []string{"mathematics", "statistics", "programming", "writing"}, FallbackTerms("retail"))
	// deterministic
	assert.Equal(t, FallbackTerms("Data Science"), FallbackTerms("data science"))
}

func TestKeywords(t *testing.T) {
	got := Keywords([]string{"Machine Learning", "introduction to statistics", "machine learning"})
	assert.Equal(t, []string{"machine", "learning", "statistics"}, got)

	assert.Equal(t, []string{"fundamentals", "computer", "science"}, Keywords([]string{"Fundamentals of Computer Science 1"}))
}
