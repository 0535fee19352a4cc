// Package relevance selects and scores catalog courses against a set of
// interests, degrading through cheaper tiers when the LLM under-delivers.
package relevance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/neu-planner/backend/internal/catalog"
	"github.com/neu-planner/backend/internal/llm"
	"github.com/neu-planner/backend/internal/metrics"
	"github.com/neu-planner/backend/internal/stage"
	"github.com/neu-planner/backend/pkg/logger"
)

var ErrInsufficient = errors.New("insufficient relevant courses")

const (
	quotaScore          = 0.4
	emergencyScore      = 0.5
	emergencyFillScore  = 0.3
	expansionThreshold  = 0.2
	perSubjectQuota     = 3
	refineConcurrency   = 8
	defaultBatchTimeout = 30 * time.Second
	defaultScoreTimeout = 10 * time.Second
)

var (
	quotaSubjects     = []string{"MATH", "ENGW", "CS", "DS", "BUSN", "STAT", "ECON"}
	emergencySubjects = []string{"MATH", "ENGW", "CS", "DS", "BUSN", "STAT", "PHIL", "ECON"}
)

type Config struct {
	// ScanWindow bounds how many catalog entries the batched scan reads.
	// Entries beyond it are only reached by the expansion pass.
	ScanWindow      int
	BatchSize       int
	ExpansionWindow int
	// ExpansionTrigger starts the expansion pass below this many candidates.
	ExpansionTrigger int
	// MinCandidates starts the subject quota below this many candidates.
	MinCandidates    int
	TargetCandidates int
	BatchTimeout     time.Duration
	ScoreTimeout     time.Duration
}

func DefaultConfig() Config {
	return Config{
		ScanWindow:       200,
		BatchSize:        50,
		ExpansionWindow:  100,
		ExpansionTrigger: 12,
		MinCandidates:    8,
		TargetCandidates: 16,
		BatchTimeout:     defaultBatchTimeout,
		ScoreTimeout:     defaultScoreTimeout,
	}
}

type Scorer struct {
	llm llm.Completer
	cfg Config
}

// NewScorer accepts a nil completer; selection then goes straight to the
// emergency tier.
func NewScorer(completer llm.Completer, cfg Config) *Scorer {
	def := DefaultConfig()
	if cfg.ScanWindow <= 0 {
		cfg.ScanWindow = def.ScanWindow
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.ExpansionWindow <= 0 {
		cfg.ExpansionWindow = def.ExpansionWindow
	}
	if cfg.MinCandidates <= 0 {
		cfg.MinCandidates = def.MinCandidates
	}
	if cfg.ExpansionTrigger < cfg.MinCandidates {
		cfg.ExpansionTrigger = max(def.ExpansionTrigger, cfg.MinCandidates)
	}
	if cfg.TargetCandidates < cfg.MinCandidates {
		cfg.TargetCandidates = max(def.TargetCandidates, cfg.MinCandidates)
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = def.BatchTimeout
	}
	if cfg.ScoreTimeout <= 0 {
		cfg.ScoreTimeout = def.ScoreTimeout
	}
	return &Scorer{llm: completer, cfg: cfg}
}

// selection accumulates candidates, keeping the highest score per code.
type selection struct {
	order  []string
	byCode map[string]catalog.ScoredCourse
}

func newSelection() *selection {
	return &selection{byCode: make(map[string]catalog.ScoredCourse)}
}

func (s *selection) add(c catalog.CourseRecord, score float64) {
	code := c.Code()
	score = min(max(score, 0), 1)
	if prev, ok := s.byCode[code]; ok {
		if score > prev.Score {
			prev.Score = score
			s.byCode[code] = prev
		}
		return
	}
	s.order = append(s.order, code)
	s.byCode[code] = catalog.ScoredCourse{CourseRecord: c, Score: score}
}

func (s *selection) has(code string) bool {
	_, ok := s.byCode[code]
	return ok
}

func (s *selection) len() int { return len(s.order) }

// ranked is sorted by descending score; ties keep insertion order.
func (s *selection) ranked() []catalog.ScoredCourse {
	out := make([]catalog.ScoredCourse, 0, len(s.order))
	for _, code := range s.order {
		out = append(out, s.byCode[code])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Select returns a deduplicated candidate set ordered by descending score.
// interests[0] is the student's own wording; the rest are expansions.
// It fails only when no tier yields a single candidate.
func (s *Scorer) Select(ctx context.Context, courses []catalog.CourseRecord, interests []string) stage.Outcome[[]catalog.ScoredCourse] {
	if len(courses) == 0 {
		return stage.Failed[[]catalog.ScoredCourse]("catalog is empty")
	}

	matcher := NewMatcher(interests)
	sel := newSelection()
	var tiers []string

	outage := s.llm == nil
	if !outage {
		picks, failed, unavailable, batches := s.batchScan(ctx, courses, interests)
		outage = batches > 0 && unavailable == batches
		if failed > 0 && !outage {
			tiers = append(tiers, fmt.Sprintf("%d of %d scan batches failed", failed, batches))
		}
		if !outage {
			for i, score := range s.refine(ctx, matcher, picks, interests) {
				sel.add(picks[i], score)
			}
		}
	}

	if outage {
		s.emergency(courses, sel)
		tiers = append(tiers, "llm unavailable: emergency selection")
	} else {
		if sel.len() < s.cfg.ExpansionTrigger {
			added := s.expansion(courses, matcher, sel)
			tiers = append(tiers, fmt.Sprintf("expansion pass added %d", added))
		}
		if sel.len() < s.cfg.MinCandidates {
			added := s.subjectQuota(courses, sel)
			tiers = append(tiers, fmt.Sprintf("subject quota added %d", added))
		}
		if sel.len() < s.cfg.MinCandidates {
			s.emergency(courses, sel)
			tiers = append(tiers, "emergency selection")
		}
	}

	ranked := sel.ranked()
	metrics.CandidatesSelected.Observe(float64(len(ranked)))

	if len(ranked) == 0 {
		return stage.Failed[[]catalog.ScoredCourse](ErrInsufficient.Error())
	}
	if len(tiers) > 0 {
		return stage.Degraded(ranked, strings.Join(tiers, "; "))
	}
	return stage.Success(ranked)
}

// batchScan asks the LLM which entries of each batch in the scan window
// are relevant. A failed batch contributes nothing.
func (s *Scorer) batchScan(ctx context.Context, courses []catalog.CourseRecord, interests []string) (picks []catalog.CourseRecord, failed, unavailable, batches int) {
	window := courses[:min(len(courses), s.cfg.ScanWindow)]
	interestsText := strings.Join(interests, " OR ")

	for start := 0; start < len(window); start += s.cfg.BatchSize {
		if ctx.Err() != nil {
			remaining := (len(window) - start + s.cfg.BatchSize - 1) / s.cfg.BatchSize
			failed += remaining
			batches += remaining
			break
		}
		end := min(start+s.cfg.BatchSize, len(window))
		batch := window[start:end]
		batches++

		resp, err := s.llm.Complete(ctx, llm.CompletionRequest{
			UserPrompt:  batchPrompt(interestsText, batch),
			Temperature: 0.3,
			MaxTokens:   300,
			Timeout:     s.cfg.BatchTimeout,
			Purpose:     "batch_scan",
		})
		if err != nil {
			failed++
			if errors.Is(err, llm.ErrUnavailable) {
				unavailable++
			}
			logger.Warn("Batch scan failed",
				zap.Int("batch_start", start),
				zap.Int("batch_end", end),
				zap.Error(err),
			)
			continue
		}

		indices := llm.ParseIndexList(resp.Content, len(batch))
		for _, idx := range indices {
			picks = append(picks, batch[idx])
		}
		logger.Debug("Batch scanned",
			zap.Int("batch_start", start),
			zap.Int("batch_end", end),
			zap.Int("selected", len(indices)),
		)
	}
	return picks, failed, unavailable, batches
}

// refine scores every pick individually. The result is max(heuristic,
// llm score), or the heuristic alone when the call fails.
func (s *Scorer) refine(ctx context.Context, matcher *Matcher, picks []catalog.CourseRecord, interests []string) []float64 {
	scores := make([]float64, len(picks))
	interestsText := strings.Join(interests, ", ")

	var mu sync.Mutex
	fallbacks := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(refineConcurrency)
	for i, c := range picks {
		g.Go(func() error {
			heuristic := matcher.Heuristic(c)
			ai, err := s.scoreWithLLM(gctx, c, interestsText)
			if err != nil {
				mu.Lock()
				fallbacks++
				mu.Unlock()
				scores[i] = heuristic
				return nil
			}
			scores[i] = max(heuristic, ai)
			return nil
		})
	}
	_ = g.Wait()

	if fallbacks > 0 {
		logger.Info("Per-course scoring used heuristic for some courses",
			zap.Int("fallbacks", fallbacks),
			zap.Int("courses", len(picks)),
		)
	}
	return scores
}

func (s *Scorer) scoreWithLLM(ctx context.Context, c catalog.CourseRecord, interestsText string) (float64, error) {
	resp, err := s.llm.Complete(ctx, llm.CompletionRequest{
		UserPrompt:  scorePrompt(interestsText, c),
		Temperature: 0.2,
		MaxTokens:   10,
		Timeout:     s.cfg.ScoreTimeout,
		Purpose:     "course_score",
	})
	if err != nil {
		return 0, err
	}
	return llm.ParseScore(resp.Content, 0)
}

// expansion scans entries just past the window with the heuristic alone.
func (s *Scorer) expansion(courses []catalog.CourseRecord, matcher *Matcher, sel *selection) int {
	start := min(len(courses), s.cfg.ScanWindow)
	end := min(len(courses), start+s.cfg.ExpansionWindow)

	added := 0
	for _, c := range courses[start:end] {
		score := matcher.Heuristic(c)
		if score <= expansionThreshold || sel.has(c.Code()) {
			continue
		}
		sel.add(c, score)
		added++
	}
	return added
}

// subjectQuota adds up to three unselected courses from each foundational
// subject until the target size is reached.
func (s *Scorer) subjectQuota(courses []catalog.CourseRecord, sel *selection) int {
	added := 0
	for _, subject := range quotaSubjects {
		taken := 0
		for _, c := range courses {
			if sel.len() >= s.cfg.TargetCandidates {
				return added
			}
			if taken == perSubjectQuota {
				break
			}
			if c.Subject != subject || sel.has(c.Code()) {
				continue
			}
			sel.add(c, quotaScore)
			taken++
			added++
		}
	}
	return added
}

// emergency is the LLM-free selection: priority subjects first, then any
// course, until the target size.
func (s *Scorer) emergency(courses []catalog.CourseRecord, sel *selection) {
	for _, subject := range emergencySubjects {
		taken := 0
		for _, c := range courses {
			if sel.len() >= s.cfg.TargetCandidates {
				return
			}
			if taken == perSubjectQuota {
				break
			}
			if c.Subject != subject || sel.has(c.Code()) {
				continue
			}
			sel.add(c, emergencyScore)
			taken++
		}
	}

	if sel.len() >= s.cfg.ExpansionTrigger {
		return
	}
	for _, c := range courses {
		if sel.len() >= s.cfg.TargetCandidates {
			return
		}
		if sel.has(c.Code()) {
			continue
		}
		sel.add(c, emergencyFillScore)
	}
}

// Rank scores every course for recommendation lists: the first llmLimit
// courses get an LLM score, the rest the heuristic. Output is sorted by
// descending score.
func (s *Scorer) Rank(ctx context.Context, courses []catalog.CourseRecord, interests []string, llmLimit int) []catalog.ScoredCourse {
	matcher := NewMatcher(interests)
	sel := newSelection()

	head := courses[:min(len(courses), max(llmLimit, 0))]
	if s.llm != nil && len(head) > 0 {
		for i, score := range s.refine(ctx, matcher, head, interests) {
			sel.add(head[i], score)
		}
	} else {
		for _, c := range head {
			sel.add(c, matcher.Heuristic(c))
		}
	}
	for _, c := range courses[len(head):] {
		sel.add(c, matcher.Heuristic(c))
	}
	return sel.ranked()
}

func batchPrompt(interestsText string, batch []catalog.CourseRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze which university courses could be relevant for a student interested in any of these areas: %s\n\n", interestsText)
	b.WriteString("Courses to analyze:\n")
	for i, c := range batch {
		fmt.Fprintf(&b, "%d: %s - %s (Subject: %s)\n", i, c.Code(), c.Title, c.Subject)
	}
	b.WriteString(`
Consider courses that provide:
1. Direct skills for these interest areas
2. Foundational knowledge (math, statistics, programming, writing)
3. Supporting business or technical skills
4. General education that builds analytical thinking
5. Data analysis, visualization, or decision-making skills

Rate each course 0-10 where:
- 0-3: Not helpful
- 4-5: Somewhat useful (foundational/supporting)
- 6-7: Moderately relevant
- 8-10: Highly relevant

Return ALL course numbers (0,1,2,etc) that score 4 or higher, separated by commas.
Be generous - include foundational courses that build relevant skills.`)
	return b.String()
}

func scorePrompt(interestsText string, c catalog.CourseRecord) string {
	return fmt.Sprintf(`Rate how this course could help a student interested in: %s

Course: %s - %s

Consider if this course provides direct relevant skills, important foundational concepts, supporting business or analytical skills, or general critical thinking and communication skills.

Rate 0.0-1.0 where:
0.0-0.2: Not helpful
0.3-0.4: Foundational/supporting value
0.5-0.6: Moderately relevant
0.7-0.8: Highly relevant
0.9-1.0: Perfect match

Respond with only a number.`, interestsText, c.Code(), c.Title)
}
