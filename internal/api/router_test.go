package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neu-planner/backend/internal/api/handlers"
	"github.com/neu-planner/backend/internal/cache"
	"github.com/neu-planner/backend/internal/catalog"
	"github.com/neu-planner/backend/internal/planner"
)

type fakeCatalog struct {
	courses   []catalog.CourseRecord
	err       error
	refreshes int
}

func (f *fakeCatalog) Load(_ context.Context, req catalog.LoadRequest) (*catalog.LoadResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if req.Refresh {
		f.refreshes++
	}
	var courses []catalog.CourseRecord
	for _, c := range f.courses {
		if len(req.Subjects) == 0 || slices.Contains(req.Subjects, c.Subject) {
			courses = append(courses, c)
		}
	}
	return &catalog.LoadResult{Index: catalog.Ingest(courses), Term: "202540", Subjects: req.Subjects}, nil
}

func (f *fakeCatalog) Status(context.Context) (*catalog.Status, error) {
	return &catalog.Status{CachedSubjects: 3, CachedCatalogs: 1, Keys: []string{"catalog:202540:abc"}}, nil
}

type brokenStore struct{ cache.Store }

func (brokenStore) Keys(context.Context, string) ([]string, error) {
	return nil, errors.New("connection refused")
}

func testCourses() []catalog.CourseRecord {
	return []catalog.CourseRecord{
		{Subject: "CS", Number: "1800", Title: "Discrete Structures", Credits: 4, OfferedSemesters: []catalog.Semester{catalog.Fall}},
		{Subject: "CS", Number: "2500", Title: "Fundamentals of Computer Science 1", Credits: 4, CRN: "10001"},
		{Subject: "CS", Number: "3500", Title: "Object-Oriented Design", Credits: 4, OfferedSemesters: []catalog.Semester{catalog.Spring}},
		{Subject: "CS", Number: "4100", Title: "Artificial Intelligence", Credits: 4},
		{Subject: "MATH", Number: "1341", Title: "Calculus 1", Credits: 4},
		{Subject: "MATH", Number: "2331", Title: "Linear Algebra", Credits: 4},
		{Subject: "ENGW", Number: "1111", Title: "First-Year Writing", Credits: 4},
	}
}

type describer struct{}

func (describer) CourseDescription(context.Context, string, string) (string, error) {
	return "Introduces systematic design of programs.", nil
}

func newTestServer(t *testing.T, cat *fakeCatalog, store cache.Store) *Server {
	t.Helper()
	if store == nil {
		store = cache.NewMemoryStore()
	}
	runner := planner.NewRunner(planner.Deps{Catalog: cat, Describer: describer{}, Store: store}, planner.Config{})
	srv := NewServer(Options{RequestsPerMinute: 100, AllowedOrigins: []string{"*"}}, Handlers{
		Plans:   handlers.NewPlanHandler(runner),
		Courses: handlers.NewCourseHandler(runner, cat),
		Health:  handlers.NewHealthHandler(store),
	})
	t.Cleanup(func() { _ = srv.Shutdown() })
	return srv
}

func do(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), string(raw))
	}
	return resp, decoded
}

func TestGeneratePlanEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeCatalog{courses: testCourses()}, nil)

	resp, body := do(t, srv.App, http.MethodPost, "/api/v1/plans", `{"interest": "artificial intelligence", "years": 1}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	semesters, ok := body["semesters"].([]any)
	require.True(t, ok)
	assert.Len(t, semesters, 2)
	assert.Equal(t, "202540", body["term_code"])
	assert.NotEmpty(t, body["fingerprint"])
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}

func TestGeneratePlanEndpointErrors(t *testing.T) {
	t.Run("empty catalog", func(t *testing.T) {
		srv := newTestServer(t, &fakeCatalog{}, nil)
		resp, body := do(t, srv.App, http.MethodPost, "/api/v1/plans", `{"interest": "robotics"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Equal(t, "insufficient_data", body["kind"])
		assert.Equal(t, "catalog", body["stage"])
		assert.Contains(t, body["error"], "unable to generate plan")
	})

	t.Run("portal down", func(t *testing.T) {
		srv := newTestServer(t, &fakeCatalog{err: errors.New("portal down")}, nil)
		resp, body := do(t, srv.App, http.MethodPost, "/api/v1/plans", `{"interest": "robotics"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Equal(t, "upstream_unavailable", body["kind"])
	})

	srv := newTestServer(t, &fakeCatalog{courses: testCourses()}, nil)

	t.Run("years out of range", func(t *testing.T) {
		resp, body := do(t, srv.App, http.MethodPost, "/api/v1/plans", `{"interest": "robotics", "years": 9}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "invalid_request", body["kind"])
	})

	t.Run("missing interest", func(t *testing.T) {
		resp, _ := do(t, srv.App, http.MethodPost, "/api/v1/plans", `{"years": 2}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("script in interest", func(t *testing.T) {
		resp, body := do(t, srv.App, http.MethodPost, "/api/v1/plans", `{"interest": "<script>alert(1)</script>"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Invalid request content", body["error"])
	})

	t.Run("interest too long", func(t *testing.T) {
		resp, _ := do(t, srv.App, http.MethodPost, "/api/v1/plans", `{"interest": "`+strings.Repeat("a", 201)+`"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unsupported content type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/plans", strings.NewReader("interest=x"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		resp, err := srv.App.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
	})
}

func TestScheduleAndRecommendationEndpoints(t *testing.T) {
	srv := newTestServer(t, &fakeCatalog{courses: testCourses()}, nil)

	resp, body := do(t, srv.App, http.MethodPost, "/api/v1/schedules/validate",
		`{"courses": ["CS1800", "CS3500", "CS9999"], "semester": "fall", "year": 2026}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, false, body["valid"])
	assert.Equal(t, []any{"CS9999: course not found in the catalog"}, body["errors"])
	assert.Contains(t, body["warnings"], "CS3500 is not offered in fall")
	assert.EqualValues(t, 8, body["total_credits"])

	resp, body = do(t, srv.App, http.MethodPost, "/api/v1/schedules/validate", `{"courses": "CS1800", "semester": "fall"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)

	resp, body = do(t, srv.App, http.MethodPost, "/api/v1/recommendations",
		`{"interests": ["artificial intelligence"], "completed_courses": ["CS1800"], "max_results": 2}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	recs, ok := body["recommendations"].([]any)
	require.True(t, ok)
	require.Len(t, recs, 2)
	assert.Equal(t, "CS4100", recs[0].(map[string]any)["code"])

	resp, _ = do(t, srv.App, http.MethodPost, "/api/v1/recommendations", `{"interests": []}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCourseEndpoints(t *testing.T) {
	cat := &fakeCatalog{courses: testCourses()}
	srv := newTestServer(t, cat, nil)

	resp, body := do(t, srv.App, http.MethodGet, "/api/v1/courses/cs2500", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "CS2500", body["code"])
	assert.Equal(t, "Introduces systematic design of programs.", body["description"])

	resp, _ = do(t, srv.App, http.MethodGet, "/api/v1/courses/CS9999", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, srv.App, http.MethodGet, "/api/v1/courses/nonsense", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = do(t, srv.App, http.MethodGet, "/api/v1/catalog/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 3, body["cached_subjects"])

	resp, body = do(t, srv.App, http.MethodPost, "/api/v1/catalog/refresh", `{"subjects": ["CS"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.EqualValues(t, 4, body["courses"])
	assert.Equal(t, 1, cat.refreshes)

	resp, _ = do(t, srv.App, http.MethodPost, "/api/v1/catalog/refresh", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = do(t, srv.App, http.MethodPost, "/api/v1/catalog/refresh", "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, &fakeCatalog{}, nil)

	resp, body := do(t, srv.App, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])

	resp, body = do(t, srv.App, http.MethodGet, "/api/v1/ready", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", body["status"])

	broken := newTestServer(t, &fakeCatalog{}, brokenStore{Store: cache.NewMemoryStore()})
	resp, _ = do(t, broken.App, http.MethodGet, "/api/v1/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRateLimitedClient(t *testing.T) {
	store := cache.NewMemoryStore()
	runner := planner.NewRunner(planner.Deps{Catalog: &fakeCatalog{}, Store: store}, planner.Config{})
	srv := NewServer(Options{RequestsPerMinute: 2}, Handlers{
		Plans:   handlers.NewPlanHandler(runner),
		Courses: handlers.NewCourseHandler(runner, &fakeCatalog{}),
		Health:  handlers.NewHealthHandler(store),
	})
	defer srv.Shutdown()

	var last int
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog/status", nil)
		req.Header.Set("X-Client-ID", "student-1")
		resp, err := srv.App.Test(req, int(time.Second/time.Millisecond))
		require.NoError(t, err)
		last = resp.StatusCode
	}
	assert.Equal(t, http.StatusTooManyRequests, last)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog/status", nil)
	req.Header.Set("X-Client-ID", "student-2")
	resp, err := srv.App.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
