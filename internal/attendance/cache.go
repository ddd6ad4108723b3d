package attendance

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"tahfeez/internal/model"
	"tahfeez/internal/telemetry"
)

// EntryStatus is the state of one lesson in the cache.
type EntryStatus int

const (
	EntryMissing EntryStatus = iota
	EntryPending
	EntryResolved
)

// Cache stores the resolved roster of each lesson for the lifetime of a view
// session. Each lesson is fetched at most once; concurrent callers share the
// in-flight fetch. Entries are never evicted.
type Cache struct {
	source  Source
	log     *zap.Logger
	metrics *telemetry.Metrics
	timeout time.Duration

	mu      sync.Mutex
	rosters map[model.ID][]model.AttendanceRecord
	pending map[model.ID]struct{}
	flight  singleflight.Group
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithLogger sets the logger failures are reported to.
func WithLogger(l *zap.Logger) CacheOption {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMetrics records hits, misses and failures.
func WithMetrics(m *telemetry.Metrics) CacheOption {
	return func(c *Cache) { c.metrics = m }
}

// WithFetchTimeout bounds each source fetch.
func WithFetchTimeout(d time.Duration) CacheOption {
	return func(c *Cache) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewCache creates an empty cache in front of src.
func NewCache(src Source, opts ...CacheOption) *Cache {
	c := &Cache{
		source:  src,
		log:     zap.NewNop(),
		timeout: 10 * time.Second,
		rosters: make(map[model.ID][]model.AttendanceRecord),
		pending: make(map[model.ID]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the roster of a lesson, fetching it on first use. A failed
// fetch is logged and cached as an empty roster; Get never fails.
func (c *Cache) Get(ctx context.Context, lessonID model.ID) []model.AttendanceRecord {
	if roster, ok := c.Lookup(lessonID); ok {
		c.metrics.RosterHit()
		return roster
	}
	v, _, _ := c.flight.Do(string(lessonID), func() (interface{}, error) {
		if roster, ok := c.lookup(lessonID); ok {
			return roster, nil
		}
		c.markPending(lessonID)
		c.metrics.RosterMiss()
		roster := c.fetch(ctx, lessonID)
		c.store(lessonID, roster)
		return roster, nil
	})
	return slices.Clone(v.([]model.AttendanceRecord))
}

// Lookup returns a resolved roster without fetching.
func (c *Cache) Lookup(lessonID model.ID) ([]model.AttendanceRecord, bool) {
	roster, ok := c.lookup(lessonID)
	if !ok {
		return nil, false
	}
	return slices.Clone(roster), true
}

// Status reports whether a lesson is missing, being fetched or resolved.
func (c *Cache) Status(lessonID model.ID) EntryStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.rosters[lessonID]; ok {
		return EntryResolved
	}
	if _, ok := c.pending[lessonID]; ok {
		return EntryPending
	}
	return EntryMissing
}

// Len returns the number of resolved lessons.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rosters)
}

func (c *Cache) lookup(lessonID model.ID) ([]model.AttendanceRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	roster, ok := c.rosters[lessonID]
	return roster, ok
}

func (c *Cache) markPending(lessonID model.ID) {
	c.mu.Lock()
	c.pending[lessonID] = struct{}{}
	c.mu.Unlock()
}

func (c *Cache) store(lessonID model.ID, roster []model.AttendanceRecord) {
	c.mu.Lock()
	c.rosters[lessonID] = roster
	delete(c.pending, lessonID)
	c.mu.Unlock()
}

// fetch is detached from the caller's cancellation so a result that arrives
// after the caller left is still cached.
func (c *Cache) fetch(ctx context.Context, lessonID model.ID) []model.AttendanceRecord {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.source.FetchLessonAttendance(ctx, lessonID)
	c.metrics.ObserveFetch(time.Since(start))
	if err != nil {
		c.metrics.RosterFailure()
		c.log.Warn("lesson attendance fetch failed",
			zap.String("lesson_id", lessonID.String()),
			zap.Error(err))
		return []model.AttendanceRecord{}
	}
	return NormalizeAll(resp)
}
