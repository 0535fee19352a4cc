// Package requirements resolves degree requirements and subject lists for
// majors and interests.
package requirements

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/neu-planner/backend/internal/cache"
	"github.com/neu-planner/backend/internal/catalog"
	"github.com/neu-planner/backend/internal/llm"
	"github.com/neu-planner/backend/pkg/logger"
)

const (
	DefaultTotalCredits = 128
	minTotalCredits     = 96
	maxTotalCredits     = 200
	minSubjects         = 3
	maxSubjects         = 8
)

// KnownSubjects are the subject codes a model may choose from.
var KnownSubjects = []string{
	"CS", "DS", "IS", "MATH", "PHYS", "CHEM", "BIOL", "EECE", "PHIL",
	"ENGW", "BUSN", "ACCT", "FINA", "MGMT", "ECON", "STAT", "CY", "PSYC",
	"HIST", "ENGL", "MUSC", "ARTF", "THTR", "POLS", "SOCL", "ANTH",
}

var DefaultSubjects = []string{"CS", "MATH", "ENGW", "PHIL"}

var ErrInvalid = errors.New("invalid requirements")

type Requirements struct {
	MajorID      string   `json:"major_id"`
	Name         string   `json:"name"`
	TotalCredits int      `json:"total_credits"`
	CoreCourses  []string `json:"core_courses"`
	Subjects     []string `json:"subjects"`
}

type Provider interface {
	Requirements(ctx context.Context, majorID string) (Requirements, error)
}

// StaticProvider returns the same default structure for every major.
type StaticProvider struct {
	TotalCredits int
	Subjects     []string
}

func (p StaticProvider) Requirements(_ context.Context, majorID string) (Requirements, error) {
	credits := p.TotalCredits
	if credits <= 0 {
		credits = DefaultTotalCredits
	}
	subjects := p.Subjects
	if len(subjects) == 0 {
		subjects = DefaultSubjects
	}
	return Requirements{
		MajorID:      majorID,
		Name:         majorID,
		TotalCredits: credits,
		CoreCourses:  []string{},
		Subjects:     slices.Clone(subjects),
	}, nil
}

const requirementsPrompt = `For a university student majoring in "%s", describe the degree requirements.

Available subject codes: %s

Respond with only a JSON object of this shape:
{
  "name": "full major name",
  "total_credits": 128,
  "subjects": ["CS", "MATH", "ENGW", "PHIL"],
  "core_courses": ["CS2500", "MATH1341"]
}

Choose the 4-8 most relevant subject codes, in order of importance, considering core requirements, prerequisite subjects, common electives and general education.
List only core courses you are confident about, as subject code plus four-digit number.`

// LLMProvider asks the model for a requirements structure and validates it.
type LLMProvider struct {
	llm     llm.Completer
	timeout time.Duration
}

func NewLLMProvider(completer llm.Completer, timeout time.Duration) *LLMProvider {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &LLMProvider{llm: completer, timeout: timeout}
}

func (p *LLMProvider) Requirements(ctx context.Context, majorID string) (Requirements, error) {
	if p.llm == nil {
		return Requirements{}, llm.ErrUnavailable
	}

	resp, err := p.llm.Complete(ctx, llm.CompletionRequest{
		UserPrompt:  fmt.Sprintf(requirementsPrompt, majorID, strings.Join(KnownSubjects, ", ")),
		Temperature: 0.2,
		MaxTokens:   400,
		Timeout:     p.timeout,
		Purpose:     "requirements",
	})
	if err != nil {
		return Requirements{}, err
	}
	return parseRequirements(majorID, resp.Content)
}

func parseRequirements(majorID, content string) (Requirements, error) {
	var raw struct {
		Name         string   `json:"name"`
		TotalCredits int      `json:"total_credits"`
		Subjects     []string `json:"subjects"`
		CoreCourses  []string `json:"core_courses"`
	}
	if err := json.Unmarshal([]byte(llm.StripCodeFence(content)), &raw); err != nil {
		return Requirements{}, fmt.Errorf("%w: %w: %v", ErrInvalid, llm.ErrMalformed, err)
	}

	if raw.TotalCredits < minTotalCredits || raw.TotalCredits > maxTotalCredits {
		return Requirements{}, fmt.Errorf("%w: total credits %d outside [%d, %d]",
			ErrInvalid, raw.TotalCredits, minTotalCredits, maxTotalCredits)
	}

	subjects := knownSubjects(raw.Subjects, maxSubjects)
	if len(subjects) < minSubjects {
		return Requirements{}, fmt.Errorf("%w: only %d known subjects", ErrInvalid, len(subjects))
	}

	core := []string{}
	seen := make(map[string]struct{})
	for _, entry := range raw.CoreCourses {
		code, ok := catalog.ExtractCourseCode(strings.ToUpper(entry))
		if !ok {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		core = append(core, code)
	}

	name := strings.TrimSpace(raw.Name)
	if name == "" {
		name = majorID
	}
	return Requirements{
		MajorID:      majorID,
		Name:         name,
		TotalCredits: raw.TotalCredits,
		CoreCourses:  core,
		Subjects:     subjects,
	}, nil
}

// knownSubjects upper-cases and filters codes against KnownSubjects,
// keeping order and dropping repeats.
func knownSubjects(codes []string, limit int) []string {
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		code = strings.ToUpper(strings.TrimSpace(code))
		if !slices.Contains(KnownSubjects, code) || slices.Contains(out, code) {
			continue
		}
		out = append(out, code)
		if len(out) == limit {
			break
		}
	}
	return out
}

type fallback struct {
	primary, secondary Provider
}

// Fallback answers from secondary whenever primary fails.
func Fallback(primary, secondary Provider) Provider {
	return &fallback{primary: primary, secondary: secondary}
}

func (f *fallback) Requirements(ctx context.Context, majorID string) (Requirements, error) {
	req, err := f.primary.Requirements(ctx, majorID)
	if err == nil {
		return req, nil
	}
	logger.Warn("Requirements lookup failed, using fallback",
		zap.String("major", majorID),
		zap.Error(err),
	)
	return f.secondary.Requirements(ctx, majorID)
}

type cached struct {
	provider Provider
	store    cache.Store
	ttl      time.Duration
}

// Cached stores successful lookups for ttl. Cache trouble is logged and
// otherwise ignored.
func Cached(provider Provider, store cache.Store, ttl time.Duration) Provider {
	return &cached{provider: provider, store: store, ttl: ttl}
}

func (c *cached) Requirements(ctx context.Context, majorID string) (Requirements, error) {
	key := cache.RequirementsKey(strings.ToLower(strings.TrimSpace(majorID)))

	var req Requirements
	hit, err := cache.GetJSON(ctx, c.store, "requirements", key, &req)
	if err != nil {
		logger.Warn("Requirements cache read failed", zap.String("key", key), zap.Error(err))
	}
	if hit {
		return req, nil
	}

	req, err = c.provider.Requirements(ctx, majorID)
	if err != nil {
		return Requirements{}, err
	}
	if err := cache.SetJSON(ctx, c.store, key, req, c.ttl); err != nil {
		logger.Warn("Requirements cache write failed", zap.String("key", key), zap.Error(err))
	}
	return req, nil
}
