package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/neu-planner/backend/internal/cache"
	"github.com/neu-planner/backend/internal/metrics"
	"github.com/neu-planner/backend/internal/registry"
	"github.com/neu-planner/backend/pkg/logger"
	"github.com/neu-planner/backend/pkg/retry"
	"github.com/neu-planner/backend/pkg/utils"
)

// ErrNoTerm is returned when neither the portal, the default term nor the
// fallback terms name a term to load.
var ErrNoTerm = errors.New("no term to load")

// Source is the registration portal as seen by the loader.
type Source interface {
	Terms(ctx context.Context, max int) ([]registry.Term, error)
	Subjects(ctx context.Context, term string) ([]registry.Subject, error)
	FetchCourses(ctx context.Context, term, subject string) (*registry.SearchResult, error)
}

type LoaderConfig struct {
	DefaultTerm     string
	FallbackTerms   []string
	DefaultSubjects []string
	Concurrency     int
	RequestInterval time.Duration
	Retries         int
	RetryDelay      time.Duration
	SubjectTTL      time.Duration
	CatalogTTL      time.Duration
	TermTTL         time.Duration
}

type Loader struct {
	source  Source
	store   cache.Store
	cfg     LoaderConfig
	limiter *rate.Limiter
}

type LoadRequest struct {
	Term     string
	Subjects []string
	// Refresh bypasses every cached layer and rewrites it.
	Refresh bool
}

type LoadResult struct {
	Index          *Index
	Term           string
	Subjects       []string
	FailedSubjects []string
	FromCache      bool
}

type cachedCatalog struct {
	Term      string         `json:"term"`
	Courses   []CourseRecord `json:"courses"`
	FetchedAt time.Time      `json:"fetched_at"`
}

type Status struct {
	CachedSubjects int      `json:"cached_subjects"`
	CachedCatalogs int      `json:"cached_catalogs"`
	Keys           []string `json:"keys"`
}

func NewLoader(source Source, store cache.Store, cfg LoaderConfig) *Loader {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.SubjectTTL <= 0 {
		cfg.SubjectTTL = time.Hour
	}
	if cfg.CatalogTTL <= 0 {
		cfg.CatalogTTL = 30 * time.Minute
	}
	if cfg.TermTTL <= 0 {
		cfg.TermTTL = 2 * time.Hour
	}

	limit := rate.Inf
	if cfg.RequestInterval > 0 {
		limit = rate.Every(cfg.RequestInterval)
	}

	return &Loader{
		source:  source,
		store:   store,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Load returns the catalog for the requested term and subjects. When the
// term yields nothing, the configured fallback terms are tried in order.
// A catalog with zero courses is returned without error; callers decide
// whether that is fatal.
func (l *Loader) Load(ctx context.Context, req LoadRequest) (*LoadResult, error) {
	subjects := normalizeSubjects(req.Subjects)
	if len(subjects) == 0 {
		subjects = normalizeSubjects(l.cfg.DefaultSubjects)
	}

	term := req.Term
	if term == "" {
		term = l.currentTerm(ctx, req.Refresh)
	}
	terms := l.termsToTry(term)
	if len(terms) == 0 {
		return nil, ErrNoTerm
	}

	subjectsHash := utils.HashSet(subjects)
	if !req.Refresh {
		var cached cachedCatalog
		found, err := cache.GetJSON(ctx, l.store, "catalog", cache.CatalogKey(term, subjectsHash), &cached)
		if err != nil {
			logger.Warn("Catalog cache read failed", zap.Error(err))
		}
		if found && len(cached.Courses) > 0 {
			idx := Ingest(cached.Courses)
			metrics.CatalogCourses.Set(float64(idx.Len()))
			return &LoadResult{Index: idx, Term: cached.Term, Subjects: subjects, FromCache: true}, nil
		}
	}

	var last *LoadResult
	for attempt, tryTerm := range terms {
		logger.Info("Loading catalog",
			zap.Int("attempt", attempt+1),
			zap.String("term", tryTerm),
			zap.Int("subjects", len(subjects)),
		)

		result, err := l.loadTerm(ctx, tryTerm, subjects, req.Refresh)
		if err != nil {
			return nil, err
		}
		last = result
		if result.Index.Len() > 0 {
			break
		}
		logger.Warn("No courses found for term, trying next", zap.String("term", tryTerm))
	}

	metrics.CatalogCourses.Set(float64(last.Index.Len()))
	if last.Index.Len() == 0 {
		return last, nil
	}

	entry := cachedCatalog{Term: last.Term, Courses: last.Index.All(), FetchedAt: time.Now().UTC()}
	if err := cache.SetJSON(ctx, l.store, cache.CatalogKey(term, subjectsHash), entry, l.cfg.CatalogTTL); err != nil {
		logger.Warn("Failed to cache catalog", zap.Error(err))
	}

	logger.Info("Catalog loaded",
		zap.String("term", last.Term),
		zap.Int("courses", last.Index.Len()),
		zap.Strings("failed_subjects", last.FailedSubjects),
	)
	return last, nil
}

func (l *Loader) loadTerm(ctx context.Context, term string, subjects []string, refresh bool) (*LoadResult, error) {
	perSubject := make([][]CourseRecord, len(subjects))
	failed := make([]bool, len(subjects))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.Concurrency)
	for i, subject := range subjects {
		g.Go(func() error {
			records, err := l.subjectCourses(gctx, term, subject, refresh)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed[i] = true
				logger.Error("Failed to fetch subject courses",
					zap.String("term", term),
					zap.String("subject", subject),
					zap.Error(err),
				)
				return nil
			}
			perSubject[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("catalog load cancelled: %w", err)
	}

	var all []CourseRecord
	var failedSubjects []string
	for i, records := range perSubject {
		all = append(all, records...)
		if failed[i] {
			failedSubjects = append(failedSubjects, subjects[i])
		}
	}

	return &LoadResult{
		Index:          Ingest(all),
		Term:           term,
		Subjects:       subjects,
		FailedSubjects: failedSubjects,
	}, nil
}

func (l *Loader) subjectCourses(ctx context.Context, term, subject string, refresh bool) ([]CourseRecord, error) {
	key := cache.SubjectCoursesKey(term, subject)
	if !refresh {
		var cached []CourseRecord
		found, err := cache.GetJSON(ctx, l.store, "subject_courses", key, &cached)
		if err != nil {
			logger.Warn("Subject cache read failed", zap.String("key", key), zap.Error(err))
		}
		if found {
			return cached, nil
		}
	}

	cfg := retry.Fixed(l.cfg.Retries, l.cfg.RetryDelay)
	cfg.Retryable = registry.IsTransient
	cfg.Logger = logger.GetLogger()

	result, err := retry.DoWithResult(ctx, cfg, func() (*registry.SearchResult, error) {
		if err := l.limiter.Wait(ctx); err != nil {
			return nil, retry.Permanent(err)
		}
		return l.source.FetchCourses(ctx, term, subject)
	})
	if err != nil {
		metrics.RegistryFetches.WithLabelValues("error").Inc()
		return nil, err
	}
	if !result.Success {
		metrics.RegistryFetches.WithLabelValues("unsuccessful").Inc()
		return nil, fmt.Errorf("portal reported an unsuccessful search for %s", subject)
	}
	metrics.RegistryFetches.WithLabelValues("success").Inc()

	records := IngestRaw(result.Records).All()
	if err := cache.SetJSON(ctx, l.store, key, records, l.cfg.SubjectTTL); err != nil {
		logger.Warn("Failed to cache subject courses", zap.String("key", key), zap.Error(err))
	}
	return records, nil
}

func (l *Loader) currentTerm(ctx context.Context, refresh bool) string {
	var terms []registry.Term
	found := false
	if !refresh {
		var err error
		found, err = cache.GetJSON(ctx, l.store, "terms", cache.TermsKey(), &terms)
		if err != nil {
			logger.Warn("Term cache read failed", zap.Error(err))
		}
	}

	if !found {
		fetched, err := l.source.Terms(ctx, 10)
		if err != nil {
			logger.Warn("Failed to fetch terms, using default", zap.String("term", l.cfg.DefaultTerm), zap.Error(err))
			return l.cfg.DefaultTerm
		}
		terms = fetched
		if len(terms) > 0 {
			if err := cache.SetJSON(ctx, l.store, cache.TermsKey(), terms, l.cfg.TermTTL); err != nil {
				logger.Warn("Failed to cache terms", zap.Error(err))
			}
		}
	}

	if len(terms) == 0 || terms[0].Code == "" {
		return l.cfg.DefaultTerm
	}
	logger.Info("Using most recent term", zap.String("term", terms[0].Code), zap.String("description", terms[0].Description))
	return terms[0].Code
}

func (l *Loader) termsToTry(term string) []string {
	terms := make([]string, 0, len(l.cfg.FallbackTerms)+1)
	seen := make(map[string]struct{})
	for _, t := range append([]string{term}, l.cfg.FallbackTerms...) {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
	}
	return terms
}

// Subjects lists the subjects the portal offers for term.
func (l *Loader) Subjects(ctx context.Context, term string) ([]registry.Subject, error) {
	if term == "" {
		term = l.currentTerm(ctx, false)
	}

	var subjects []registry.Subject
	found, err := cache.GetJSON(ctx, l.store, "subjects", cache.SubjectsKey(term), &subjects)
	if err != nil {
		logger.Warn("Subject list cache read failed", zap.Error(err))
	}
	if found {
		return subjects, nil
	}

	subjects, err = l.source.Subjects(ctx, term)
	if err != nil {
		return nil, err
	}
	if err := cache.SetJSON(ctx, l.store, cache.SubjectsKey(term), subjects, l.cfg.TermTTL); err != nil {
		logger.Warn("Failed to cache subject list", zap.Error(err))
	}
	return subjects, nil
}

func (l *Loader) Status(ctx context.Context) (*Status, error) {
	subjectKeys, err := l.store.Keys(ctx, cache.PrefixSubjectCourses)
	if err != nil {
		return nil, fmt.Errorf("failed to list subject keys: %w", err)
	}
	catalogKeys, err := l.store.Keys(ctx, cache.PrefixCatalog)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog keys: %w", err)
	}

	return &Status{
		CachedSubjects: len(subjectKeys),
		CachedCatalogs: len(catalogKeys),
		Keys:           append(subjectKeys, catalogKeys...),
	}, nil
}

func normalizeSubjects(subjects []string) []string {
	seen := make(map[string]struct{}, len(subjects))
	out := make([]string, 0, len(subjects))
	for _, s := range subjects {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
