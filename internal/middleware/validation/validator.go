package validation

import (
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var scriptPattern = regexp.MustCompile(`(?i)(<script|<iframe|javascript:|onerror\s*=|onload\s*=|onclick\s*=)`)

type Config struct {
	MaxInterestLength   int
	MaxInterests        int
	MaxCourses          int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

// Middleware screens request bodies of the planning routes before they
// reach the handlers.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxInterestLength == 0 {
		cfg.MaxInterestLength = 200
	}
	if cfg.MaxInterests == 0 {
		cfg.MaxInterests = 20
	}
	if cfg.MaxCourses == 0 {
		cfg.MaxCourses = 64
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json"}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost && c.Method() != fiber.MethodPut {
			return c.Next()
		}

		contentType := c.Get(fiber.HeaderContentType)
		if contentType != "" {
			allowed := false
			for _, allowedType := range cfg.AllowedContentTypes {
				if strings.Contains(contentType, allowedType) {
					allowed = true
					break
				}
			}
			if !allowed {
				return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
					"error": "Unsupported content type",
				})
			}
		}

		var fields []string
		path := c.Path()
		switch {
		case strings.HasSuffix(path, "/plans"):
			req, err := parseBody(c)
			if err != nil {
				return invalidJSON(c)
			}
			for _, key := range []string{"interest", "major", "concentration"} {
				value, ok := req[key]
				if !ok || value == nil {
					continue
				}
				s, ok := value.(string)
				if !ok {
					return badRequest(c, key+" must be a string")
				}
				fields = append(fields, s)
			}
			areas, err := stringList(req, "interest_areas", cfg.MaxInterests)
			if err != nil {
				return badRequest(c, err.Error())
			}
			fields = append(fields, areas...)

		case strings.HasSuffix(path, "/recommendations"):
			req, err := parseBody(c)
			if err != nil {
				return invalidJSON(c)
			}
			interests, err := stringList(req, "interests", cfg.MaxInterests)
			if err != nil {
				return badRequest(c, err.Error())
			}
			fields = append(fields, interests...)

		case strings.HasSuffix(path, "/schedules/validate"):
			req, err := parseBody(c)
			if err != nil {
				return invalidJSON(c)
			}
			courses, err := stringList(req, "courses", cfg.MaxCourses)
			if err != nil {
				return badRequest(c, err.Error())
			}
			fields = append(fields, courses...)
		}

		for _, field := range fields {
			if len(field) > cfg.MaxInterestLength {
				return badRequest(c, "Field exceeds maximum length")
			}
			if containsScript(field) {
				cfg.Logger.Warn("Potential script injection attempt",
					zap.String("ip", c.IP()),
					zap.String("path", path),
					zap.String("value", field),
				)
				return badRequest(c, "Invalid request content")
			}
		}

		return c.Next()
	}
}

func parseBody(c *fiber.Ctx) (map[string]interface{}, error) {
	var req map[string]interface{}
	if err := c.BodyParser(&req); err != nil {
		return nil, err
	}
	return req, nil
}

type listError string

func (e listError) Error() string { return string(e) }

// stringList reads an optional array of strings from the body.
func stringList(req map[string]interface{}, key string, max int) ([]string, error) {
	raw, ok := req[key]
	if !ok || raw == nil {
		return nil, nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil, listError(key + " must be an array of strings")
	}
	if len(items) > max {
		return nil, listError(key + " has too many entries")
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, listError(key + " must be an array of strings")
		}
		out = append(out, s)
	}
	return out, nil
}

func containsScript(input string) bool {
	return scriptPattern.MatchString(input)
}

func invalidJSON(c *fiber.Ctx) error {
	return badRequest(c, "Invalid JSON format")
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": message,
	})
}
