// Package interest broadens a free-text interest into related query terms.
package interest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/neu-planner/backend/internal/llm"
	"github.com/neu-planner/backend/internal/stage"
	"github.com/neu-planner/backend/pkg/logger"
)

const MaxTerms = 8

const expandPrompt = `A student is interested in "%s". What related academic areas, skills, and concepts would be relevant for university course selection?

Provide 5-8 related terms that would help identify relevant courses, including:
- Foundational subjects
- Related technical skills
- Business/industry applications
- Supporting knowledge areas

For example, if the interest is "data science", related terms might include: statistics, programming, machine learning, databases, visualization, business analytics

Return only the related terms separated by commas.`

type Expander struct {
	llm     llm.Completer
	timeout time.Duration
}

// NewExpander accepts a nil completer, in which case every call uses the
// static table.
func NewExpander(completer llm.Completer, timeout time.Duration) *Expander {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Expander{llm: completer, timeout: timeout}
}

// Expand returns up to MaxTerms lower-cased terms related to interest.
// It never fails: LLM trouble yields the static expansion, marked degraded.
func (e *Expander) Expand(ctx context.Context, interest string) stage.Outcome[[]string] {
	interest = strings.TrimSpace(interest)
	if e.llm == nil {
		return stage.Degraded(FallbackTerms(interest), "llm not configured")
	}

	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		UserPrompt:  fmt.Sprintf(expandPrompt, interest),
		Temperature: 0.3,
		MaxTokens:   150,
		Timeout:     e.timeout,
		Purpose:     "expand",
	})
	if err != nil {
		logger.Warn("Interest expansion failed, using static table",
			zap.String("interest", interest),
			zap.Error(err),
		)
		return stage.Degraded(FallbackTerms(interest), llm.FailureReason(err))
	}

	terms := llm.ParseTermList(resp.Content, MaxTerms)
	if len(terms) == 0 {
		return stage.Degraded(FallbackTerms(interest), "llm returned no usable terms")
	}
	return stage.Success(terms)
}

// FallbackTerms is the static, substring-keyed expansion table.
func FallbackTerms(interest string) []string {
	lower := strings.ToLower(interest)
	hasAI := false
	for _, tok := range Tokenize(lower) {
		if tok == "ai" {
			hasAI = true
			break
		}
	}

	switch {
	case strings.Contains(lower, "business") && strings.Contains(lower, "intelligence"):
		return []string{"data analytics", "business analysis", "statistics", "databases", "reporting", "decision making", "management"}
	case strings.Contains(lower, "business"):
		return []string{"management", "economics", "finance", "accounting", "marketing", "statistics"}
	case strings.Contains(lower, "data"):
		return []string{"statistics", "programming", "databases", "analytics", "visualization", "machine learning"}
	case strings.Contains(lower, "intelligence") || hasAI:
		return []string{"machine learning", "programming", "algorithms", "statistics", "mathematics"}
	default:
		return []string{"mathematics", "statistics", "programming", "writing"}
	}
}
