package requirements

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

var DefaultInterestSubjects = []string{"CS", "MATH", "ENGW"}

const (
	maxInterestSubjects = 6
	minInterestSubjects = 2
)

const subjectsPrompt = `For a student interested in: %s

Which university subject codes would be most relevant for courses?
Available subjects: %s

Select the 3-6 most relevant subject codes, considering courses that would:
- Directly relate to these interests
- Provide foundational knowledge
- Offer complementary skills

Return only the subject codes separated by commas.
Example: "CS, MATH, STAT"`

// SubjectSelector picks the subjects worth fetching for a set of interests.
type SubjectSelector struct {
	llm     llm.Completer
	timeout time.Duration
}

func NewSubjectSelector(completer llm.Completer, timeout time.Duration) *SubjectSelector {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &SubjectSelector{llm: completer, timeout: timeout}
}

func (s *SubjectSelector) Select(ctx context.Context, interests []string) stage.Outcome[[]string] {
	defaults := append([]string(nil), DefaultInterestSubjects...)
	if len(interests) == 0 {
		return stage.Degraded(defaults, "no interests given")
	}
	if s.llm == nil {
		return stage.Degraded(defaults, "llm not configured")
	}

	resp, err := s.llm.Complete(ctx, llm.CompletionRequest{
		UserPrompt:  fmt.Sprintf(subjectsPrompt, strings.Join(interests, ", "), strings.Join(KnownSubjects, ", ")),
		Temperature: 0.2,
		MaxTokens:   80,
		Timeout:     s.timeout,
		Purpose:     "subjects",
	})
	if err != nil {
		logger.Warn("Subject selection failed, using defaults",
			zap.Strings("interests", interests),
			zap.Error(err),
		)
		return stage.Degraded(defaults, llm.FailureReason(err))
	}

	subjects := knownSubjects(strings.Split(strings.Trim(llm.StripCodeFence(resp.Content), `"`), ","), maxInterestSubjects)
	if len(subjects) < minInterestSubjects {
		return stage.Degraded(defaults, "llm returned too few known subjects")
	}
	return stage.Success(subjects)
}
