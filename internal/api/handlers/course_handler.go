package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/neu-planner/backend/internal/catalog"
	"github.com/neu-planner/backend/internal/planner"
	"github.com/neu-planner/backend/pkg/logger"
)

// CatalogService is the part of *catalog.Loader the course routes use.
type CatalogService interface {
	Load(ctx context.Context, req catalog.LoadRequest) (*catalog.LoadResult, error)
	Status(ctx context.Context) (*catalog.Status, error)
}

type CourseHandler struct {
	runner  *planner.Runner
	catalog CatalogService
}

func NewCourseHandler(runner *planner.Runner, catalog CatalogService) *CourseHandler {
	return &CourseHandler{
		runner:  runner,
		catalog: catalog,
	}
}

func (h *CourseHandler) GetCourse(c *fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return badRequest(c, "Course code is required")
	}

	info, err := h.runner.CourseInfo(c.UserContext(), code, c.Query("term"))
	if err != nil {
		return respondError(c, "look up course", err)
	}

	return c.JSON(info)
}

// RefreshCatalog reloads the requested subjects from the portal, bypassing
// every cache layer.
func (h *CourseHandler) RefreshCatalog(c *fiber.Ctx) error {
	var req struct {
		Term     string   `json:"term"`
		Subjects []string `json:"subjects"`
	}

	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			logger.Error("Failed to parse request body", zap.Error(err))
			return badRequest(c, "Invalid request body")
		}
	}

	result, err := h.catalog.Load(c.UserContext(), catalog.LoadRequest{
		Term:     strings.TrimSpace(req.Term),
		Subjects: req.Subjects,
		Refresh:  true,
	})
	if err != nil {
		logger.Error("Failed to refresh catalog", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to refresh catalog",
		})
	}

	return c.JSON(fiber.Map{
		"message":         "Catalog refreshed",
		"term":            result.Term,
		"subjects":        result.Subjects,
		"failed_subjects": result.FailedSubjects,
		"courses":         result.Index.Len(),
	})
}

func (h *CourseHandler) CatalogStatus(c *fiber.Ctx) error {
	status, err := h.catalog.Status(c.UserContext())
	if err != nil {
		logger.Error("Failed to read catalog status", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read catalog status",
		})
	}

	return c.JSON(status)
}
