package view

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"tahfeez/internal/attendance"
	"tahfeez/internal/catalog"
	"tahfeez/internal/media"
	"tahfeez/internal/model"
	"tahfeez/internal/recitation"
	"tahfeez/internal/telemetry"
)

var (
	// ErrNotFound means the requested record does not exist; the caller
	// should navigate away.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable means the record could not be loaded.
	ErrUnavailable = errors.New("unavailable")
)

// Options wires a Service.
type Options struct {
	Catalog     catalog.Source
	Attendance  attendance.Source
	Recitations recitation.Store
	Media       *media.Resolver
	Registry    *Registry
	Logger      *zap.Logger
	Metrics     *telemetry.Metrics
	// FetchTimeout bounds each lesson attendance fetch.
	FetchTimeout time.Duration
	// Duplicates decides reconciliation conflicts.
	Duplicates attendance.DuplicatePolicy
	// Prefetch, when set, is told the lessons of every newly opened halaqah.
	Prefetch func(ctx context.Context, halaqahID model.ID, lessons []model.ID)
	Now      func() time.Time
}

// Service assembles the halaqah and student views.
type Service struct {
	opts Options
	log  *zap.Logger
}

// NewService creates a view service.
func NewService(opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Media == nil {
		opts.Media = media.New("", "", "")
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry(0, opts.Now, opts.Metrics, opts.Logger)
	}
	return &Service{opts: opts, log: opts.Logger}
}

// Registry returns the session registry.
func (s *Service) Registry() *Registry { return s.opts.Registry }

// Courses returns the course catalog.
func (s *Service) Courses(ctx context.Context) ([]model.Course, error) {
	courses, err := s.opts.Catalog.Courses(ctx)
	if err != nil {
		return nil, errors.Wrap(ErrUnavailable, err.Error())
	}
	return courses, nil
}

// Students returns the student catalog.
func (s *Service) Students(ctx context.Context) ([]model.Student, error) {
	students, err := s.opts.Catalog.Students(ctx)
	if err != nil {
		return nil, errors.Wrap(ErrUnavailable, err.Error())
	}
	return students, nil
}

// Instructors returns the instructor catalog.
func (s *Service) Instructors(ctx context.Context) ([]model.Instructor, error) {
	instructors, err := s.opts.Catalog.Instructors(ctx)
	if err != nil {
		return nil, errors.Wrap(ErrUnavailable, err.Error())
	}
	return instructors, nil
}
