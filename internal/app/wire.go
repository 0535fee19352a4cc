// Package app builds the planner's object graph from configuration.
package app

import (
	"time"

	"go.uber.org/zap"

	"github.com/neu-planner/backend/internal/cache"
	"github.com/neu-planner/backend/internal/cache/redis"
	"github.com/neu-planner/backend/internal/catalog"
	"github.com/neu-planner/backend/internal/interest"
	"github.com/neu-planner/backend/internal/llm"
	"github.com/neu-planner/backend/internal/planner"
	"github.com/neu-planner/backend/internal/registry"
	"github.com/neu-planner/backend/internal/relevance"
	"github.com/neu-planner/backend/internal/requirements"
	"github.com/neu-planner/backend/internal/sequence"
	"github.com/neu-planner/backend/pkg/config"
	"github.com/neu-planner/backend/pkg/logger"
)

const requirementsTTL = 24 * time.Hour

type App struct {
	Store    cache.Store
	Registry *registry.Client
	Loader   *catalog.Loader
	Runner   *planner.Runner

	closers []func() error
}

// Build wires every component. Redis is used when enabled and reachable;
// otherwise the in-process store. Without an API key the LLM stages run
// their fallbacks only.
func Build(cfg *config.Config) *App {
	a := &App{}

	a.Store = cache.NewMemoryStore()
	if cfg.Redis.Enabled {
		client, err := redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warn("Redis unavailable, using in-memory cache", zap.Error(err))
		} else {
			a.Store = client
			a.closers = append(a.closers, client.Close)
		}
	}

	var completer llm.Completer
	if cfg.LLM.APIKey != "" {
		completer = llm.NewClient(llm.Config{
			APIKey:           cfg.LLM.APIKey,
			BaseURL:          cfg.LLM.BaseURL,
			Model:            cfg.LLM.Model,
			Temperature:      cfg.LLM.Temperature,
			MaxTokens:        cfg.LLM.MaxTokens,
			MaxAttempts:      cfg.LLM.MaxAttempts,
			FailureThreshold: cfg.LLM.FailureThreshold,
			Cooldown:         time.Duration(cfg.LLM.CooldownSec) * time.Second,
		})
	} else {
		logger.Warn("No LLM API key configured, planning runs on fallbacks only")
	}

	r := cfg.Registry
	a.Registry = registry.NewClient(registry.Config{
		BaseURL:  r.BaseURL,
		Timeout:  time.Duration(r.TimeoutSec) * time.Second,
		PageSize: r.PageSize,
	})

	p := cfg.Planner
	a.Loader = catalog.NewLoader(a.Registry, a.Store, catalog.LoaderConfig{
		DefaultTerm:     r.DefaultTerm,
		FallbackTerms:   r.FallbackTerms,
		DefaultSubjects: r.DefaultSubjects,
		Concurrency:     r.FetchConcurrency,
		RequestInterval: time.Duration(r.RequestIntervalMs) * time.Millisecond,
		Retries:         r.FetchRetries,
		RetryDelay:      time.Duration(r.RetryDelayMs) * time.Millisecond,
		SubjectTTL:      p.SubjectTTL(),
		CatalogTTL:      p.CatalogTTL(),
		TermTTL:         p.TermTTL(),
	})

	t := p.Timeouts
	seconds := func(n int) time.Duration { return time.Duration(n) * time.Second }

	scorerCfg := relevance.DefaultConfig()
	scorerCfg.ScanWindow = p.ScanWindow
	scorerCfg.BatchSize = p.BatchSize
	scorerCfg.ExpansionWindow = p.ExpansionWindow
	scorerCfg.MinCandidates = p.MinCandidates
	scorerCfg.TargetCandidates = p.TargetCandidates
	if t.Score > 0 {
		scorerCfg.BatchTimeout = seconds(t.Score)
	}

	a.Runner = planner.NewRunner(planner.Deps{
		Catalog:   a.Loader,
		Describer: a.Registry,
		Store:     a.Store,
		Expander:  interest.NewExpander(completer, seconds(t.Expand)),
		Scorer:    relevance.NewScorer(completer, scorerCfg),
		Sequencer: sequence.NewSequencer(completer, sequence.Config{Timeout: seconds(t.Sequence)}),
		Requirements: requirements.Fallback(
			requirements.Cached(requirements.NewLLMProvider(completer, seconds(t.Expand)), a.Store, requirementsTTL),
			requirements.StaticProvider{TotalCredits: p.RequiredCredits},
		),
		Subjects: requirements.NewSubjectSelector(completer, seconds(t.Expand)),
	}, planner.Config{
		DefaultYears:     p.DefaultYears,
		RequiredCredits:  p.RequiredCredits,
		MinLoad:          p.MinSemesterLoad,
		MaxLoad:          p.MaxSemesterLoad,
		PlanTTL:          p.PlanTTL(),
		DescriptionTTL:   p.CatalogTTL(),
		CatalogTimeout:   seconds(t.Catalog),
		PlanTimeout:      seconds(t.Plan),
		RecommendTimeout: seconds(t.Recommendations),
		RecommendWindow:  p.ScanWindow,
	})

	return a
}

func (a *App) Close() {
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			logger.Warn("Failed to close resource", zap.Error(err))
		}
	}
}
