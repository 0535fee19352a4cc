package validation

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp() *fiber.App {
	app := fiber.New()
	app.Use(Middleware(Config{MaxInterestLength: 20, MaxInterests: 2}))
	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) }
	app.Post("/api/v1/plans", ok)
	app.Post("/api/v1/recommendations", ok)
	app.Post("/api/v1/schedules/validate", ok)
	app.Get("/api/v1/courses/:code", ok)
	return app
}

func post(t *testing.T, app *fiber.App, path, contentType, body string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestMiddleware(t *testing.T) {
	app := newApp()
	const jsonType = "application/json"

	tests := []struct {
		name        string
		path        string
		contentType string
		body        string
		want        int
	}{
		{"valid plan", "/api/v1/plans", jsonType, `{"interest": "data science"}`, http.StatusNoContent},
		{"major only", "/api/v1/plans", jsonType, `{"major": "Computer Science"}`, http.StatusNoContent},
		{"long interest", "/api/v1/plans", jsonType, `{"interest": "` + strings.Repeat("x", 21) + `"}`, http.StatusBadRequest},
		{"script in major", "/api/v1/plans", jsonType, `{"major": "javascript:alert(1)"}`, http.StatusBadRequest},
		{"numeric interest", "/api/v1/plans", jsonType, `{"interest": 5}`, http.StatusBadRequest},
		{"iframe in interest area", "/api/v1/plans", jsonType, `{"interest": "ai", "interest_areas": ["<iframe>"]}`, http.StatusBadRequest},
		{"broken json", "/api/v1/plans", jsonType, `{"interest":`, http.StatusBadRequest},
		{"form body", "/api/v1/plans", "application/x-www-form-urlencoded", `interest=ai`, http.StatusUnsupportedMediaType},
		{"recommendations", "/api/v1/recommendations", jsonType, `{"interests": ["ai", "security"]}`, http.StatusNoContent},
		{"too many interests", "/api/v1/recommendations", jsonType, `{"interests": ["a", "b", "c"]}`, http.StatusBadRequest},
		{"interests not strings", "/api/v1/recommendations", jsonType, `{"interests": [1, 2]}`, http.StatusBadRequest},
		{"schedule", "/api/v1/schedules/validate", jsonType, `{"courses": ["CS2500"], "semester": "fall"}`, http.StatusNoContent},
		{"schedule courses not a list", "/api/v1/schedules/validate", jsonType, `{"courses": "CS2500"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, post(t, app, tt.path, tt.contentType, tt.body))
		})
	}
}

func TestMiddlewareSkipsReads(t *testing.T) {
	app := newApp()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/courses/CS2500", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
