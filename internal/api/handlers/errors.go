package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/neu-planner/backend/internal/planner"
	"github.com/neu-planner/backend/pkg/logger"
)

// respondError maps planner failures to status codes. A *PlanError body
// carries its kind, stage and reason.
func respondError(c *fiber.Ctx, action string, err error) error {
	var planErr *planner.PlanError
	switch {
	case errors.Is(err, planner.ErrCourseNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.As(err, &planErr):
		status := fiber.StatusUnprocessableEntity
		switch planErr.Kind {
		case planner.KindInvalidRequest:
			status = fiber.StatusBadRequest
		case planner.KindUpstreamUnavailable:
			logger.Error("Upstream unavailable", zap.String("action", action), zap.Error(err))
		}
		return c.Status(status).JSON(fiber.Map{
			"error":  planErr.Error(),
			"kind":   planErr.Kind,
			"stage":  planErr.Stage,
			"reason": planErr.Reason,
		})
	default:
		logger.Error("Request failed", zap.String("action", action), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to " + action,
		})
	}
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": message,
	})
}
