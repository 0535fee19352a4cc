package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/neu-planner/backend/internal/api"
	"github.com/neu-planner/backend/internal/api/handlers"
	"github.com/neu-planner/backend/internal/app"
	"github.com/neu-planner/backend/internal/metrics"
	"github.com/neu-planner/backend/pkg/config"
	appLogger "github.com/neu-planner/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(appLogger.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting course planner API server",
		zap.String("environment", cfg.Server.Environment),
	)

	if cfg.Metrics.Enabled {
		metrics.Init()
	}

	a := app.Build(cfg)
	defer a.Close()

	server := api.NewServer(api.Options{
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:         cfg.Server.BodyLimit,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		Development:       cfg.Server.Environment == "development",
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Metrics:           cfg.Metrics.Enabled,
		AccessLog:         true,
	}, api.Handlers{
		Plans:   handlers.NewPlanHandler(a.Runner),
		Courses: handlers.NewCourseHandler(a.Runner, a.Loader),
		Health:  handlers.NewHealthHandler(a.Store),
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := server.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	if err := server.Shutdown(); err != nil {
		appLogger.Error("Server shutdown failed", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}
