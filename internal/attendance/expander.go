package attendance

import (
	"context"
	"slices"
	"sync"

	"tahfeez/internal/model"
)

// LessonState is the UI state of one lesson row.
type LessonState int

const (
	Collapsed LessonState = iota
	Loading
	Expanded
)

func (s LessonState) String() string {
	switch s {
	case Loading:
		return "loading"
	case Expanded:
		return "expanded"
	default:
		return "collapsed"
	}
}

func (s LessonState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Expander tracks which lessons of a view are expanded and populates the
// cache on first expansion. Collapsing never clears the cache. Several
// lessons may be loading at once.
type Expander struct {
	cache *Cache

	mu       sync.Mutex
	expanded []model.ID
	loading  []model.ID
}

// NewExpander creates a controller with every lesson collapsed.
func NewExpander(cache *Cache) *Expander {
	return &Expander{cache: cache}
}

// Toggle flips a lesson. A collapsed lesson whose roster is not resolved
// goes through Loading and always ends Expanded, even when the fetch failed;
// a fetch already in flight for it is joined, not repeated. Toggling a
// lesson that is still loading does nothing.
func (x *Expander) Toggle(ctx context.Context, lessonID model.ID) LessonState {
	x.mu.Lock()
	if indexOf(x.loading, lessonID) >= 0 {
		x.mu.Unlock()
		return Loading
	}
	if i := indexOf(x.expanded, lessonID); i >= 0 {
		x.expanded = append(x.expanded[:i], x.expanded[i+1:]...)
		x.mu.Unlock()
		return Collapsed
	}
	if x.cache.Status(lessonID) == EntryResolved {
		x.expanded = append(x.expanded, lessonID)
		x.mu.Unlock()
		return Expanded
	}
	x.loading = append(x.loading, lessonID)
	x.mu.Unlock()

	x.cache.Get(ctx, lessonID)

	x.mu.Lock()
	defer x.mu.Unlock()
	if i := indexOf(x.loading, lessonID); i >= 0 {
		x.loading = append(x.loading[:i], x.loading[i+1:]...)
	}
	if indexOf(x.expanded, lessonID) < 0 {
		x.expanded = append(x.expanded, lessonID)
	}
	return Expanded
}

// State returns the current state of a lesson.
func (x *Expander) State(lessonID model.ID) LessonState {
	x.mu.Lock()
	defer x.mu.Unlock()
	switch {
	case indexOf(x.loading, lessonID) >= 0:
		return Loading
	case indexOf(x.expanded, lessonID) >= 0:
		return Expanded
	default:
		return Collapsed
	}
}

// Expanded returns the expanded lessons in expansion order.
func (x *Expander) Expanded() []model.ID {
	x.mu.Lock()
	defer x.mu.Unlock()
	return slices.Clone(x.expanded)
}

// Loading returns the lessons currently loading in the order their
// toggles started.
func (x *Expander) Loading() []model.ID {
	x.mu.Lock()
	defer x.mu.Unlock()
	return slices.Clone(x.loading)
}

func indexOf(ids []model.ID, lessonID model.ID) int {
	return slices.Index(ids, lessonID)
}
