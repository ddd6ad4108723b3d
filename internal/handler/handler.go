// Package handler exposes the school views over HTTP.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"tahfeez/internal/auth"
	"tahfeez/internal/httpmiddleware"
	"tahfeez/internal/model"
	"tahfeez/internal/view"
)

// Redirect targets sent with not-found and load failures.
const (
	StudentsPage = "/students"
	CoursesPage  = "/courses"
)

// HealthCheck reports whether one backend is reachable.
type HealthCheck func(ctx context.Context) bool

// Config wires a Handler.
type Config struct {
	Views     *view.Service
	Logger    *zap.Logger
	Issuer    string
	Key       string
	AccessTTL time.Duration
	// DevTokens enables POST /v1/dev/token.
	DevTokens bool
	Health    map[string]HealthCheck
	Metrics   http.Handler
	Limiter   *httpmiddleware.SimpleTokenBucket
}

// Handler serves the HTTP API.
type Handler struct {
	cfg Config
	log *zap.Logger
}

// New creates a Handler.
func New(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Handler{cfg: cfg, log: cfg.Logger}
}

// Register mounts every route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", h.Healthz)
	if h.cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.cfg.Metrics))
	}

	limit := func(c *gin.Context) { c.Next() }
	if h.cfg.Limiter != nil {
		limit = h.cfg.Limiter.GinMiddleware()
	}

	if h.cfg.DevTokens {
		r.POST("/v1/dev/token", limit, h.DevToken)
	}

	v1 := r.Group("/v1", auth.RequireUser(h.cfg.Key, h.cfg.Issuer), limit)
	v1.GET("/courses", h.Courses)
	v1.GET("/instructors", h.Instructors)
	v1.GET("/students", h.Students)
	v1.POST("/halaqat/:id/views", h.OpenHalaqah)
	v1.GET("/views/:session", h.HalaqahView)
	v1.POST("/views/:session/lessons/:lesson/toggle", h.ToggleLesson)
	v1.DELETE("/views/:session", h.CloseHalaqah)
	v1.GET("/students/:id/profile", h.Profile)
	v1.GET("/students/:id/courses/:course/attendance", h.CourseAttendance)
}

// Healthz reports the state of each configured backend.
func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	body := gin.H{"status": "ok"}
	status := http.StatusOK
	for name, check := range h.cfg.Health {
		ok := check(ctx)
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

type tokenRequest struct {
	Subject string `json:"subject" binding:"required"`
	Role    string `json:"role" binding:"required,oneof=student teacher"`
}

// DevToken issues an access token without credentials. Only mounted outside
// production.
func (h *Handler) DevToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tok, err := auth.Issue(req.Subject, req.Role, h.cfg.Issuer, h.cfg.Key, h.cfg.AccessTTL)
	if err != nil {
		h.log.Error("token issue failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"access_token": tok.AccessToken,
		"expires_at":   tok.ExpiresAt.Unix(),
	})
}

// Courses lists the course catalog.
func (h *Handler) Courses(c *gin.Context) {
	courses, err := h.cfg.Views.Courses(c.Request.Context())
	if err != nil {
		h.fail(c, err, CoursesPage)
		return
	}
	c.JSON(http.StatusOK, gin.H{"courses": courses})
}

// Instructors lists the instructor catalog.
func (h *Handler) Instructors(c *gin.Context) {
	instructors, err := h.cfg.Views.Instructors(c.Request.Context())
	if err != nil {
		h.fail(c, err, CoursesPage)
		return
	}
	c.JSON(http.StatusOK, gin.H{"instructors": instructors})
}

// Students lists the student catalog.
func (h *Handler) Students(c *gin.Context) {
	students, err := h.cfg.Views.Students(c.Request.Context())
	if err != nil {
		h.fail(c, err, StudentsPage)
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": students})
}

// OpenHalaqah starts a view session.
func (h *Handler) OpenHalaqah(c *gin.Context) {
	v, err := h.cfg.Views.OpenHalaqah(c.Request.Context(), model.ID(c.Param("id")))
	if err != nil {
		h.fail(c, err, CoursesPage)
		return
	}
	c.Header("Location", "/v1/views/"+v.SessionID)
	c.JSON(http.StatusCreated, v)
}

// HalaqahView renders an open session.
func (h *Handler) HalaqahView(c *gin.Context) {
	v, err := h.cfg.Views.Halaqah(c.Param("session"))
	if err != nil {
		h.fail(c, err, CoursesPage)
		return
	}
	c.JSON(http.StatusOK, v)
}

// ToggleLesson expands or collapses one lesson of a session.
func (h *Handler) ToggleLesson(c *gin.Context) {
	lv, err := h.cfg.Views.ToggleLesson(c.Request.Context(), c.Param("session"), model.ID(c.Param("lesson")))
	if err != nil {
		h.fail(c, err, CoursesPage)
		return
	}
	c.JSON(http.StatusOK, lv)
}

// CloseHalaqah discards a session. Closing an unknown session is not an
// error.
func (h *Handler) CloseHalaqah(c *gin.Context) {
	h.cfg.Views.CloseHalaqah(c.Param("session"))
	c.Status(http.StatusNoContent)
}

// Profile renders a student's profile.
func (h *Handler) Profile(c *gin.Context) {
	p, err := h.cfg.Views.Profile(c.Request.Context(), model.ID(c.Param("id")))
	if err != nil {
		h.fail(c, err, StudentsPage)
		return
	}
	c.JSON(http.StatusOK, p)
}

// CourseAttendance renders a student's attendance table for one course.
func (h *Handler) CourseAttendance(c *gin.Context) {
	ca, err := h.cfg.Views.CourseAttendance(c.Request.Context(), model.ID(c.Param("id")), model.ID(c.Param("course")))
	if err != nil {
		h.fail(c, err, StudentsPage)
		return
	}
	c.JSON(http.StatusOK, ca)
}

// fail maps view errors to responses that tell the client where to go.
func (h *Handler) fail(c *gin.Context, err error, redirect string) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, view.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "redirect": redirect})
	case errors.Is(err, view.ErrUnavailable):
		h.log.Warn("view unavailable", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "data could not be loaded", "redirect": redirect})
	default:
		h.log.Error("unexpected view error", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
