package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tahfeez/internal/model"
)

func TestExpanderTransitions(t *testing.T) {
	src := newCountingSource()
	src.rosters["L1"] = roster(1, 0)
	cache := NewCache(src)
	x := NewExpander(cache)
	ctx := context.Background()

	assert.Equal(t, Collapsed, x.State("L1"))

	assert.Equal(t, Expanded, x.Toggle(ctx, "L1"))
	assert.Equal(t, 1, src.count("L1"))
	assert.Equal(t, Expanded, x.State("L1"))

	assert.Equal(t, Collapsed, x.Toggle(ctx, "L1"))
	assert.Equal(t, EntryResolved, cache.Status("L1"), "collapsing keeps the roster")

	assert.Equal(t, Expanded, x.Toggle(ctx, "L1"))
	assert.Equal(t, 1, src.count("L1"), "re-expanding does not re-fetch")
}

func TestExpanderFailedFetchStillExpands(t *testing.T) {
	src := newCountingSource()
	src.fail["L2"] = true
	cache := NewCache(src)
	x := NewExpander(cache)

	assert.Equal(t, Expanded, x.Toggle(context.Background(), "L2"))
	got, ok := cache.Lookup("L2")
	require.True(t, ok)
	assert.Empty(t, got)
	assert.Empty(t, x.Loading())
}

func TestExpanderMultipleLessonsExpanded(t *testing.T) {
	src := newCountingSource()
	x := NewExpander(NewCache(src))
	ctx := context.Background()

	x.Toggle(ctx, "L1")
	x.Toggle(ctx, "L3")
	x.Toggle(ctx, "L2")
	x.Toggle(ctx, "L3")

	assert.Equal(t, []model.ID{"L1", "L2"}, x.Expanded())
}

func TestExpanderToggleWhileLoading(t *testing.T) {
	src := newCountingSource()
	src.rosters["L1"] = roster(1)
	src.gate = make(chan struct{})
	cache := NewCache(src)
	x := NewExpander(cache)

	done := make(chan LessonState)
	go func() { done <- x.Toggle(context.Background(), "L1") }()

	require.Eventually(t, func() bool { return x.State("L1") == Loading }, time.Second, time.Millisecond)
	assert.Equal(t, []model.ID{"L1"}, x.Loading())

	assert.Equal(t, Loading, x.Toggle(context.Background(), "L1"))

	close(src.gate)
	assert.Equal(t, Expanded, <-done)
	assert.Equal(t, 1, src.count("L1"))
}

func TestExpanderPendingEntryJoinsFetch(t *testing.T) {
	src := newCountingSource()
	src.rosters["L1"] = roster(1)
	src.gate = make(chan struct{})
	cache := NewCache(src)

	go cache.Get(context.Background(), "L1")
	require.Eventually(t, func() bool { return cache.Status("L1") == EntryPending }, time.Second, time.Millisecond)

	x := NewExpander(cache)
	done := make(chan LessonState)
	go func() { done <- x.Toggle(context.Background(), "L1") }()

	require.Eventually(t, func() bool { return x.State("L1") == Loading }, time.Second, time.Millisecond)
	assert.NotEqual(t, Expanded, x.State("L1"), "an unresolved roster is never shown expanded")

	close(src.gate)
	assert.Equal(t, Expanded, <-done)
	got, ok := cache.Lookup("L1")
	require.True(t, ok)
	assert.Len(t, got, 1)
	assert.Equal(t, 1, src.count("L1"))
}

func TestExpanderConcurrentLessonsLoadIndependently(t *testing.T) {
	src := newCountingSource()
	src.rosters["A"] = roster(1, 1)
	src.rosters["B"] = roster(0)
	src.gate = make(chan struct{})
	cache := NewCache(src)
	x := NewExpander(cache)
	ctx := context.Background()

	doneA := make(chan LessonState)
	doneB := make(chan LessonState)
	go func() { doneA <- x.Toggle(ctx, "A") }()
	require.Eventually(t, func() bool { return x.State("A") == Loading }, time.Second, time.Millisecond)
	go func() { doneB <- x.Toggle(ctx, "B") }()
	require.Eventually(t, func() bool { return x.State("B") == Loading }, time.Second, time.Millisecond)

	assert.Equal(t, Loading, x.State("A"), "a second toggle does not hide the first")
	assert.Equal(t, []model.ID{"A", "B"}, x.Loading())
	assert.Equal(t, Loading, x.Toggle(ctx, "A"))
	assert.Empty(t, x.Expanded())

	close(src.gate)
	assert.Equal(t, Expanded, <-doneA)
	assert.Equal(t, Expanded, <-doneB)
	assert.ElementsMatch(t, []model.ID{"A", "B"}, x.Expanded())
	assert.Empty(t, x.Loading())
	assert.Equal(t, 1, src.count("A"))
	assert.Equal(t, 1, src.count("B"))
}
