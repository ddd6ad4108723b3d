package view

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tahfeez/internal/attendance"
	"tahfeez/internal/model"
	"tahfeez/internal/telemetry"
)

// Session is one open halaqah view. It owns the view's attendance cache and
// lesson expansion state; nothing is shared between sessions.
type Session struct {
	ID          string
	halaqah     model.Halaqah
	course      model.Course
	recitations []model.Recitation
	cache       *attendance.Cache
	expander    *attendance.Expander

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Registry holds open sessions and drops the ones left idle.
type Registry struct {
	idle    time.Duration
	now     func() time.Time
	metrics *telemetry.Metrics
	log     *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry. Sessions idle longer than idle are
// removed by Sweep.
func NewRegistry(idle time.Duration, now func() time.Time, metrics *telemetry.Metrics, log *zap.Logger) *Registry {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{idle: idle, now: now, metrics: metrics, log: log, sessions: map[string]*Session{}}
}

func (r *Registry) add(s *Session) {
	s.ID = uuid.NewString()
	s.touch(r.now())
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	r.metrics.SessionOpened()
}

// Get returns a session and marks it as used.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if ok {
		s.touch(r.now())
	}
	return s, ok
}

// Remove discards a session. It reports whether the session existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		r.metrics.SessionClosed()
	}
	return ok
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep removes idle sessions and returns how many were dropped.
func (r *Registry) Sweep() int {
	if r.idle <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.idle)
	var stale []string
	r.mu.Lock()
	for id, s := range r.sessions {
		if s.idleSince().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	r.mu.Unlock()
	for _, id := range stale {
		r.Remove(id)
	}
	return len(stale)
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := r.Sweep(); n > 0 {
				r.log.Info("swept idle view sessions", zap.Int("count", n))
			}
		}
	}
}
