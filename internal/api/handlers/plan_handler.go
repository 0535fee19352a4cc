package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/neu-planner/backend/internal/planner"
	"github.com/neu-planner/backend/pkg/logger"
)

type PlanHandler struct {
	runner *planner.Runner
}

func NewPlanHandler(runner *planner.Runner) *PlanHandler {
	return &PlanHandler{
		runner: runner,
	}
}

func (h *PlanHandler) GeneratePlan(c *fiber.Ctx) error {
	var req planner.PlanRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return badRequest(c, "Invalid request body")
	}

	if req.Interest == "" && req.Major == "" {
		return badRequest(c, "Interest or major is required")
	}

	result, err := h.runner.GeneratePlan(c.UserContext(), req)
	if err != nil {
		return respondError(c, "generate plan", err)
	}

	return c.JSON(result)
}

func (h *PlanHandler) ValidateSchedule(c *fiber.Ctx) error {
	var req planner.ScheduleRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return badRequest(c, "Invalid request body")
	}

	if len(req.Courses) == 0 || req.Semester == "" {
		return badRequest(c, "Courses and semester are required")
	}

	result, err := h.runner.ValidateSchedule(c.UserContext(), req)
	if err != nil {
		return respondError(c, "validate schedule", err)
	}

	return c.JSON(result)
}

func (h *PlanHandler) Recommendations(c *fiber.Ctx) error {
	var req planner.RecommendationRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return badRequest(c, "Invalid request body")
	}

	if len(req.Interests) == 0 {
		return badRequest(c, "At least one interest is required")
	}

	result, err := h.runner.GetRecommendations(c.UserContext(), req)
	if err != nil {
		return respondError(c, "get recommendations", err)
	}

	return c.JSON(result)
}
