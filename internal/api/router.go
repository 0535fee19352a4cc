// Package api assembles the HTTP surface of the planner.
package api

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/neu-planner/backend/internal/api/handlers"
	"github.com/neu-planner/backend/internal/metrics"
	"github.com/neu-planner/backend/internal/middleware/ratelimit"
	"github.com/neu-planner/backend/internal/middleware/security"
	"github.com/neu-planner/backend/internal/middleware/validation"
	"github.com/neu-planner/backend/pkg/logger"
)

type Options struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	BodyLimit         int
	AllowedOrigins    []string
	Development       bool
	RequestsPerMinute int
	// RefreshesPerMinute bounds catalog refreshes across all clients.
	RefreshesPerMinute int
	Metrics            bool
	AccessLog          bool
}

type Handlers struct {
	Plans   *handlers.PlanHandler
	Courses *handlers.CourseHandler
	Health  *handlers.HealthHandler
}

type Server struct {
	App     *fiber.App
	limiter *ratelimit.RateLimiter
}

func NewServer(opts Options, h Handlers) *Server {
	if opts.RefreshesPerMinute <= 0 {
		opts.RefreshesPerMinute = 2
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		BodyLimit:    opts.BodyLimit,
	})

	rl := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: opts.RequestsPerMinute,
		Logger:               logger.GetLogger(),
	})

	app.Use(recover.New())
	if opts.AccessLog {
		app.Use(fiberlogger.New())
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(opts.AllowedOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Client-ID",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: opts.AllowedOrigins,
		IsDevelopment:  opts.Development,
	}))

	if opts.Metrics {
		app.Get("/metrics", metrics.MetricsHandler())
	}

	api := app.Group("/api/v1")

	api.Get("/health", h.Health.Health)
	api.Get("/ready", h.Health.Ready)

	api.Use(rl.Middleware())
	api.Use(validation.Middleware(validation.Config{Logger: logger.GetLogger()}))

	api.Post("/plans", h.Plans.GeneratePlan)
	api.Post("/schedules/validate", h.Plans.ValidateSchedule)
	api.Post("/recommendations", h.Plans.Recommendations)

	api.Get("/courses/:code", h.Courses.GetCourse)
	api.Get("/catalog/status", h.Courses.CatalogStatus)
	api.Post("/catalog/refresh", limiter.New(limiter.Config{
		Max:        opts.RefreshesPerMinute,
		Expiration: time.Minute,
		KeyGenerator: func(*fiber.Ctx) string {
			return "catalog-refresh"
		},
	}), h.Courses.RefreshCatalog)

	return &Server{App: app, limiter: rl}
}

func (s *Server) Listen(addr string) error {
	return s.App.Listen(addr)
}

func (s *Server) Shutdown() error {
	s.limiter.Stop()
	return s.App.Shutdown()
}
