package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	StageOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_stage_outcomes_total",
			Help: "Pipeline stage outcomes by status",
		},
		[]string{"stage", "status"},
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "planner_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)

	PlansGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_plans_total",
			Help: "Plan generation requests by result",
		},
		[]string{"status"},
	)

	LLMRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_llm_requests_total",
			Help: "LLM completion calls by purpose and result",
		},
		[]string{"purpose", "status"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	CircuitState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "planner_circuit_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	RegistryFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_registry_fetches_total",
			Help: "Registration portal subject fetches by result",
		},
		[]string{"status"},
	)

	CatalogCourses = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "planner_catalog_courses",
			Help: "Courses in the most recently loaded catalog",
		},
	)

	CandidatesSelected = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "planner_candidates_selected",
			Help:    "Scored candidates per relevance run",
			Buckets: []float64{0, 4, 8, 12, 16, 24, 32, 64},
		},
	)
)

var initOnce sync.Once

func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(StageOutcomes)
		prometheus.MustRegister(StageDuration)
		prometheus.MustRegister(PlansGenerated)
		prometheus.MustRegister(LLMRequests)
		prometheus.MustRegister(LLMTokensUsed)
		prometheus.MustRegister(CircuitState)
		prometheus.MustRegister(CacheHits)
		prometheus.MustRegister(CacheMisses)
		prometheus.MustRegister(RegistryFetches)
		prometheus.MustRegister(CatalogCourses)
		prometheus.MustRegister(CandidatesSelected)
	})
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
