package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tahfeez/internal/auth"
	"tahfeez/internal/model"
	"tahfeez/internal/seed"
	"tahfeez/internal/view"
)

const (
	testKey    = "handler-test-signing-key"
	testIssuer = "tahfeez-test"
)

type brokenCatalog struct{ *seed.Dataset }

func (brokenCatalog) Students(context.Context) ([]model.Student, error) {
	return nil, errors.New("db down")
}

func (brokenCatalog) Courses(context.Context) ([]model.Course, error) {
	return nil, errors.New("db down")
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
	token  string
}

func newServer(t *testing.T, mutate ...func(*Config, *view.Options)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	d, err := seed.Default()
	require.NoError(t, err)
	now := func() time.Time { return time.Date(2025, 6, 3, 10, 0, 0, 0, time.UTC) }
	opts := view.Options{Catalog: d, Attendance: d, Recitations: d, Now: now}
	cfg := Config{Issuer: testIssuer, Key: testKey, AccessTTL: time.Hour, DevTokens: true}
	for _, m := range mutate {
		m(&cfg, &opts)
	}
	cfg.Views = view.NewService(opts)

	r := gin.New()
	New(cfg).Register(r)

	tok, err := auth.Issue("1", auth.RoleStudent, testIssuer, testKey, time.Hour)
	require.NoError(t, err)
	return &testServer{t: t, router: r, token: tok.AccessToken}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestRoutesRequireToken(t *testing.T) {
	s := newServer(t)
	s.token = ""
	for _, path := range []string{"/v1/courses", "/v1/students/1/profile"} {
		assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, path, nil).Code, path)
	}
}

func TestDevToken(t *testing.T) {
	s := newServer(t)
	s.token = ""

	w := s.do(http.MethodPost, "/v1/dev/token", map[string]string{"subject": "2", "role": "teacher"})
	require.Equal(t, http.StatusCreated, w.Code)
	body := decode[struct {
		AccessToken string `json:"access_token"`
	}](t, w)
	claims, err := auth.Parse(body.AccessToken, testKey, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleTeacher, claims.Role)

	w = s.do(http.MethodPost, "/v1/dev/token", map[string]string{"subject": "2", "role": "admin"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	prod := newServer(t, func(c *Config, _ *view.Options) { c.DevTokens = false })
	prod.token = ""
	assert.Equal(t, http.StatusNotFound, prod.do(http.MethodPost, "/v1/dev/token", map[string]string{"subject": "2", "role": "student"}).Code)
}

func TestCatalogRoutes(t *testing.T) {
	s := newServer(t)

	w := s.do(http.MethodGet, "/v1/courses", nil)
	require.Equal(t, http.StatusOK, w.Code)
	courses := decode[struct {
		Courses []model.Course `json:"courses"`
	}](t, w)
	assert.Len(t, courses.Courses, 2)

	w = s.do(http.MethodGet, "/v1/students", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[struct {
		Students []model.Student `json:"students"`
	}](t, w).Students, 4)

	w = s.do(http.MethodGet, "/v1/instructors", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[struct {
		Instructors []model.Instructor `json:"instructors"`
	}](t, w).Instructors, 2)
}

func TestHalaqahSessionLifecycle(t *testing.T) {
	s := newServer(t)

	w := s.do(http.MethodPost, "/v1/halaqat/100/views", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	opened := decode[map[string]any](t, w)
	session, _ := opened["session_id"].(string)
	require.NotEmpty(t, session)
	assert.Equal(t, "/v1/views/"+session, w.Header().Get("Location"))

	w = s.do(http.MethodPost, "/v1/views/"+session+"/lessons/101/toggle", nil)
	require.Equal(t, http.StatusOK, w.Code)
	lesson := decode[map[string]any](t, w)
	assert.Equal(t, "expanded", lesson["state"])
	assert.EqualValues(t, 67, lesson["attendance_percent"])
	assert.Len(t, lesson["roster"], 4)

	w = s.do(http.MethodGet, "/v1/views/"+session, nil)
	require.Equal(t, http.StatusOK, w.Code)
	full := decode[map[string]any](t, w)
	lessons, _ := full["lessons"].([]any)
	require.NotEmpty(t, lessons)
	assert.Equal(t, "expanded", lessons[0].(map[string]any)["state"])

	w = s.do(http.MethodPost, "/v1/views/"+session+"/lessons/999/toggle", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/v1/views/"+session, nil).Code)
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/v1/views/"+session, nil).Code)

	w = s.do(http.MethodGet, "/v1/views/"+session, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, CoursesPage, decode[map[string]any](t, w)["redirect"])
}

func TestOpenUnknownHalaqahRedirects(t *testing.T) {
	s := newServer(t)
	w := s.do(http.MethodPost, "/v1/halaqat/nope/views", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, CoursesPage, decode[map[string]any](t, w)["redirect"])
}

func TestProfileRoutes(t *testing.T) {
	s := newServer(t)

	w := s.do(http.MethodGet, "/v1/students/1/profile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	p := decode[view.Profile](t, w)
	assert.Equal(t, "عبدالله", p.Name)
	require.NotNil(t, p.Age)
	assert.Equal(t, 13, *p.Age)

	w = s.do(http.MethodGet, "/v1/students/404/profile", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, StudentsPage, decode[map[string]any](t, w)["redirect"])

	w = s.do(http.MethodGet, "/v1/students/1/courses/10/attendance", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[view.CourseAttendance](t, w).Rows, 3)

	w = s.do(http.MethodGet, "/v1/students/1/courses/20/attendance", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUnavailableCatalogAnswersBadGateway(t *testing.T) {
	s := newServer(t, func(_ *Config, o *view.Options) {
		o.Catalog = brokenCatalog{o.Catalog.(*seed.Dataset)}
	})

	w := s.do(http.MethodGet, "/v1/students/1/profile", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, StudentsPage, body["redirect"])
	assert.NotContains(t, body["error"], "db down")

	w = s.do(http.MethodPost, "/v1/halaqat/100/views", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, CoursesPage, decode[map[string]any](t, w)["redirect"])
}

func TestHealthz(t *testing.T) {
	s := newServer(t, func(c *Config, _ *view.Options) {
		c.Health = map[string]HealthCheck{
			"db":    func(context.Context) bool { return true },
			"redis": func(context.Context) bool { return false },
		}
	})
	s.token = ""
	w := s.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, true, body["db"])
	assert.Equal(t, false, body["redis"])

	ok := newServer(t)
	ok.token = ""
	assert.Equal(t, http.StatusOK, ok.do(http.MethodGet, "/healthz", nil).Code)
}
