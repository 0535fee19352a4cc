// Package planner runs the course-planning pipeline behind bounded
// timeouts and a fingerprint-keyed result cache.
package planner

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/neu-planner/backend/internal/cache"
	"github.com/neu-planner/backend/internal/catalog"
	"github.com/neu-planner/backend/internal/interest"
	"github.com/neu-planner/backend/internal/metrics"
	"github.com/neu-planner/backend/internal/plan"
	"github.com/neu-planner/backend/internal/relevance"
	"github.com/neu-planner/backend/internal/requirements"
	"github.com/neu-planner/backend/internal/sequence"
	"github.com/neu-planner/backend/internal/stage"
	"github.com/neu-planner/backend/internal/validator"
	"github.com/neu-planner/backend/pkg/logger"
	"github.com/neu-planner/backend/pkg/utils"
)

const (
	MaxYears          = 6
	maxInterestLength = 200
)

// Catalog loads course catalogs; *catalog.Loader implements it.
type Catalog interface {
	Load(ctx context.Context, req catalog.LoadRequest) (*catalog.LoadResult, error)
}

// Describer fetches section descriptions; *registry.Client implements it.
type Describer interface {
	CourseDescription(ctx context.Context, term, crn string) (string, error)
}

type Deps struct {
	Catalog      Catalog
	Describer    Describer
	Store        cache.Store
	Expander     *interest.Expander
	Scorer       *relevance.Scorer
	Sequencer    *sequence.Sequencer
	Requirements requirements.Provider
	Subjects     *requirements.SubjectSelector
}

type Config struct {
	DefaultYears     int
	RequiredCredits  int
	MinLoad          int
	MaxLoad          int
	PlanTTL          time.Duration
	DescriptionTTL   time.Duration
	CatalogTimeout   time.Duration
	PlanTimeout      time.Duration
	RecommendTimeout time.Duration
	// RecommendWindow is how many recommendation candidates get an LLM
	// score; the rest are scored heuristically.
	RecommendWindow int
}

type Runner struct {
	deps Deps
	cfg  Config
}

func NewRunner(deps Deps, cfg Config) *Runner {
	if cfg.DefaultYears <= 0 {
		cfg.DefaultYears = 2
	}
	if cfg.RequiredCredits <= 0 {
		cfg.RequiredCredits = requirements.DefaultTotalCredits
	}
	if cfg.PlanTTL <= 0 {
		cfg.PlanTTL = 30 * time.Minute
	}
	if cfg.DescriptionTTL <= 0 {
		cfg.DescriptionTTL = 30 * time.Minute
	}
	if cfg.CatalogTimeout <= 0 {
		cfg.CatalogTimeout = 90 * time.Second
	}
	if cfg.PlanTimeout <= 0 {
		cfg.PlanTimeout = 120 * time.Second
	}
	if cfg.RecommendTimeout <= 0 {
		cfg.RecommendTimeout = 180 * time.Second
	}
	if cfg.RecommendWindow <= 0 {
		cfg.RecommendWindow = 200
	}
	if deps.Requirements == nil {
		deps.Requirements = requirements.StaticProvider{TotalCredits: cfg.RequiredCredits}
	}
	if deps.Subjects == nil {
		deps.Subjects = requirements.NewSubjectSelector(nil, 0)
	}
	if deps.Expander == nil {
		deps.Expander = interest.NewExpander(nil, 0)
	}
	if deps.Scorer == nil {
		deps.Scorer = relevance.NewScorer(nil, relevance.DefaultConfig())
	}
	if deps.Sequencer == nil {
		deps.Sequencer = sequence.NewSequencer(nil, sequence.Config{})
	}
	if deps.Store == nil {
		deps.Store = cache.NewMemoryStore()
	}
	return &Runner{deps: deps, cfg: cfg}
}

type Preferences struct {
	MinCredits int `json:"min_credits,omitempty"`
	MaxCredits int `json:"max_credits,omitempty"`
}

type PlanRequest struct {
	Interest         string      `json:"interest"`
	Major            string      `json:"major,omitempty"`
	Concentration    string      `json:"concentration,omitempty"`
	Years            int         `json:"years,omitempty"`
	StartYear        int         `json:"start_year,omitempty"`
	Term             string      `json:"term,omitempty"`
	CompletedCourses []string    `json:"completed_courses,omitempty"`
	InterestAreas    []string    `json:"interest_areas,omitempty"`
	Preferences      Preferences `json:"preferences"`
}

type Insights struct {
	Stages          []stage.Report `json:"stages"`
	Subjects        []string       `json:"subjects"`
	FailedSubjects  []string       `json:"failed_subjects,omitempty"`
	ExpandedTerms   []string       `json:"expanded_terms"`
	CoursesAnalyzed int            `json:"courses_analyzed"`
	CoursesSelected int            `json:"courses_selected"`
}

type PlanResult struct {
	ID           string               `json:"id"`
	Fingerprint  string               `json:"fingerprint"`
	Interest     string               `json:"interest"`
	Major        string               `json:"major,omitempty"`
	TermCode     string               `json:"term_code"`
	Years        int                  `json:"years"`
	StartYear    int                  `json:"start_year,omitempty"`
	Semesters    []plan.SemesterEntry `json:"semesters"`
	TotalCredits int                  `json:"total_credits"`
	Validation   plan.Validation      `json:"validation"`
	Insights     Insights             `json:"insights"`
	CreatedAt    time.Time            `json:"created_at"`
}

// Fingerprint is the cache key of a planning request. Order, case and
// repeats in course lists do not change it.
func Fingerprint(req PlanRequest) string {
	major := utils.Slug(req.Major)
	if major == "" {
		major = "none"
	}
	concentration := utils.Slug(req.Concentration)
	if concentration == "" {
		concentration = "none"
	}

	areas := make([]string, 0, len(req.InterestAreas))
	for _, a := range req.InterestAreas {
		areas = append(areas, strings.ToLower(strings.TrimSpace(a)))
	}
	slices.Sort(areas)
	identity := strings.Join([]string{
		strings.ToLower(strings.TrimSpace(req.Interest)),
		strings.Join(areas, ","),
		req.Term,
		fmt.Sprint(req.StartYear),
		fmt.Sprint(req.Preferences.MinCredits),
		fmt.Sprint(req.Preferences.MaxCredits),
	}, "|")

	return cache.PlanKey(major, concentration, req.Years, utils.HashSet(req.CompletedCourses), utils.HashString(identity)[:12])
}

func (r *Runner) normalize(req PlanRequest) (PlanRequest, error) {
	req.Interest = strings.TrimSpace(req.Interest)
	req.Major = strings.TrimSpace(req.Major)
	if req.Interest == "" && req.Major == "" {
		return req, invalid("interest or major is required")
	}
	if len(req.Interest) > maxInterestLength {
		return req, invalid("interest must be at most %d characters", maxInterestLength)
	}
	if req.Years == 0 {
		req.Years = r.cfg.DefaultYears
	}
	if req.Years < 1 || req.Years > MaxYears {
		return req, invalid("years must be between 1 and %d", MaxYears)
	}
	p := req.Preferences
	if p.MinCredits < 0 || p.MaxCredits < 0 || (p.MaxCredits > 0 && p.MinCredits > p.MaxCredits) {
		return req, invalid("invalid credit preferences")
	}
	return req, nil
}

// GeneratePlan builds or returns the cached plan for req. Failures are
// *PlanError values.
func (r *Runner) GeneratePlan(ctx context.Context, req PlanRequest) (*PlanResult, error) {
	req, err := r.normalize(req)
	if err != nil {
		metrics.PlansGenerated.WithLabelValues("invalid").Inc()
		return nil, err
	}

	key := Fingerprint(req)
	var cached PlanResult
	hit, err := cache.GetJSON(ctx, r.deps.Store, "plan", key, &cached)
	if err != nil {
		logger.Warn("Plan cache read failed", zap.String("fingerprint", key), zap.Error(err))
	}
	if hit {
		metrics.PlansGenerated.WithLabelValues("cached").Inc()
		logger.Info("Returning cached plan", zap.String("fingerprint", key), zap.String("plan_id", cached.ID))
		return &cached, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.PlanTimeout)
	defer cancel()

	result, err := r.generate(ctx, req, key)
	if err != nil {
		metrics.PlansGenerated.WithLabelValues("failed").Inc()
		logger.Error("Plan generation failed", zap.String("fingerprint", key), zap.Error(err))
		return nil, err
	}

	if err := cache.SetJSON(ctx, r.deps.Store, key, result, r.cfg.PlanTTL); err != nil {
		logger.Warn("Failed to cache plan", zap.String("fingerprint", key), zap.Error(err))
	}
	metrics.PlansGenerated.WithLabelValues("success").Inc()
	return result, nil
}

func (r *Runner) generate(ctx context.Context, req PlanRequest, key string) (*PlanResult, error) {
	planID := uuid.New().String()
	label := req.Interest
	if label == "" {
		label = req.Major
	}
	logger.Info("Generating plan",
		zap.String("plan_id", planID),
		zap.String("fingerprint", key),
		zap.String("interest", label),
		zap.Int("years", req.Years),
	)

	var reports []stage.Report
	reqs, subjects, subjectReports := r.resolveRequirements(ctx, req, label)
	reports = append(reports, subjectReports...)

	started := time.Now()
	loaded, err := r.loadCatalog(ctx, req.Term, subjects)
	if err != nil {
		return nil, err
	}
	if loaded.Index.Len() == 0 {
		return nil, insufficient("catalog", fmt.Sprintf("no courses found for term %s", loaded.Term))
	}

	completed := normalizeCodes(req.CompletedCourses)
	available := loaded.Index.Without(completed)
	catalogOutcome := stage.Success(available.All())
	if len(loaded.FailedSubjects) > 0 {
		catalogOutcome = stage.Degraded(available.All(), "failed subjects: "+strings.Join(loaded.FailedSubjects, ", "))
	}
	reports = append(reports, stage.Record("catalog", catalogOutcome, available.Len(), started))
	if available.Len() == 0 {
		return nil, insufficient("catalog", "every catalog course is already completed")
	}

	started = time.Now()
	expanded := r.deps.Expander.Expand(ctx, label)
	reports = append(reports, stage.Record("expand", expanded, len(expanded.Data), started))
	interests := mergeInterests(label, req.Major, req.Concentration, req.InterestAreas, expanded.Data)

	started = time.Now()
	selected := r.deps.Scorer.Select(ctx, available.All(), interests)
	reports = append(reports, stage.Record("select", selected, len(selected.Data), started))
	if !selected.OK() {
		return nil, insufficient("select", selected.Reason)
	}

	started = time.Now()
	sequenced := r.deps.Sequencer.Sequence(ctx, selected.Data, req.Years, label)
	reports = append(reports, stage.Record("sequence", sequenced, len(sequenced.Data), started))
	if !sequenced.OK() {
		return nil, insufficient("sequence", sequenced.Reason)
	}

	rules := validator.Rules{
		RequiredCredits: max(0, reqs.TotalCredits-completedCredits(loaded.Index, completed)),
		RequiredCore:    without(reqs.CoreCourses, completed),
		MinLoad:         firstPositive(req.Preferences.MinCredits, r.cfg.MinLoad),
		MaxLoad:         firstPositive(req.Preferences.MaxCredits, r.cfg.MaxLoad),
	}
	validation := validator.Validate(sequenced.Data, rules)

	result := &PlanResult{
		ID:           planID,
		Fingerprint:  key,
		Interest:     label,
		Major:        req.Major,
		TermCode:     loaded.Term,
		Years:        req.Years,
		StartYear:    req.StartYear,
		Semesters:    sequenced.Data,
		TotalCredits: plan.TotalCredits(sequenced.Data),
		Validation:   validation,
		Insights: Insights{
			Stages:          reports,
			Subjects:        loaded.Subjects,
			FailedSubjects:  loaded.FailedSubjects,
			ExpandedTerms:   expanded.Data,
			CoursesAnalyzed: available.Len(),
			CoursesSelected: len(selected.Data),
		},
		CreatedAt: time.Now().UTC(),
	}

	logger.Info("Plan generated",
		zap.String("plan_id", planID),
		zap.Int("semesters", len(result.Semesters)),
		zap.Int("total_credits", result.TotalCredits),
		zap.Bool("valid", validation.IsValid),
	)
	return result, nil
}

// resolveRequirements picks the degree requirements and the subjects to
// load. A major drives both; otherwise subjects come from the interests.
func (r *Runner) resolveRequirements(ctx context.Context, req PlanRequest, label string) (requirements.Requirements, []string, []stage.Report) {
	if req.Major != "" {
		started := time.Now()
		reqs, err := r.deps.Requirements.Requirements(ctx, req.Major)
		if err != nil {
			logger.Warn("Requirements unavailable, using defaults", zap.String("major", req.Major), zap.Error(err))
			reqs, _ = requirements.StaticProvider{TotalCredits: r.cfg.RequiredCredits}.Requirements(ctx, req.Major)
			o := stage.Degraded(reqs.Subjects, err.Error())
			return reqs, reqs.Subjects, []stage.Report{stage.Record("requirements", o, len(reqs.Subjects), started)}
		}
		o := stage.Success(reqs.Subjects)
		return reqs, reqs.Subjects, []stage.Report{stage.Record("requirements", o, len(reqs.Subjects), started)}
	}

	reqs := requirements.Requirements{TotalCredits: r.cfg.RequiredCredits}
	started := time.Now()
	subjects := r.deps.Subjects.Select(ctx, append([]string{label}, req.InterestAreas...))
	return reqs, subjects.Data, []stage.Report{stage.Record("subjects", subjects, len(subjects.Data), started)}
}

func (r *Runner) loadCatalog(ctx context.Context, term string, subjects []string) (*catalog.LoadResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.CatalogTimeout)
	defer cancel()

	loaded, err := r.deps.Catalog.Load(ctx, catalog.LoadRequest{Term: term, Subjects: subjects})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, unavailable("catalog", fmt.Errorf("catalog load timed out: %w", err))
		}
		return nil, unavailable("catalog", err)
	}
	return loaded, nil
}

// mergeInterests lists the student's own wording first, then everything
// else without repeats.
func mergeInterests(label, major, concentration string, areas, expanded []string) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(s string) {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" {
			return
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	add(label)
	add(major)
	add(concentration)
	for _, a := range areas {
		add(a)
	}
	for _, e := range expanded {
		add(e)
	}
	return out
}

func normalizeCodes(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if n := catalog.NormalizeCode(c); n != "" && !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	return out
}

func completedCredits(idx *catalog.Index, completed []string) int {
	total := 0
	for _, code := range completed {
		if c, ok := idx.Lookup(code); ok {
			total += c.Credits
			continue
		}
		total += catalog.DefaultCredits
	}
	return total
}

func without(codes, exclude []string) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if !slices.Contains(exclude, catalog.NormalizeCode(c)) {
			out = append(out, c)
		}
	}
	return out
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
