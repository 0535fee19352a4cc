package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/neu-planner/backend/internal/cache"
	"github.com/neu-planner/backend/pkg/logger"
)

type HealthHandler struct {
	store cache.Store
}

func NewHealthHandler(store cache.Store) *HealthHandler {
	return &HealthHandler{store: store}
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// Ready reports whether the cache store answers.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	if _, err := h.store.Keys(ctx, cache.PrefixTerms); err != nil {
		logger.Warn("Readiness check failed", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unavailable",
			"error":  "cache store unreachable",
		})
	}

	return c.JSON(fiber.Map{
		"status": "ready",
	})
}
