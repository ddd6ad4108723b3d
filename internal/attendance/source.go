package attendance

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"tahfeez/internal/model"
)

// Source is the external read-only attendance collaborator.
type Source interface {
	FetchLessonAttendance(ctx context.Context, lessonID model.ID) (RawResponse, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, lessonID model.ID) (RawResponse, error)

func (f SourceFunc) FetchLessonAttendance(ctx context.Context, lessonID model.ID) (RawResponse, error) {
	return f(ctx, lessonID)
}

// RawResponse is the attendance payload of one lesson as the source sends it.
type RawResponse struct {
	Attendances []RawEntry `json:"attendances"`
}

// RawStudent is the nested student reference of a raw entry.
type RawStudent struct {
	ID   model.ID `json:"id"`
	Name *string  `json:"name"`
}

// RawEntry is one attendance row before normalization. Any field may be
// missing.
type RawEntry struct {
	LessonID   model.ID    `json:"lesson_id,omitempty"`
	Attendance RawFlag     `json:"student_attendance"`
	Time       *string     `json:"student_attendance_time"`
	Student    *RawStudent `json:"students"`
}

// RawFlag is the source attendance flag: 1, 0 or absent. Booleans and
// numeric strings are coerced.
type RawFlag struct {
	Value int
	Set   bool
}

// MarkedAs returns a set raw flag.
func MarkedAs(v int) RawFlag { return RawFlag{Value: v, Set: true} }

func (f *RawFlag) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*f = RawFlag{}
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		return nil
	case bytes.Equal(b, []byte("true")):
		*f = MarkedAs(1)
	case bytes.Equal(b, []byte("false")):
		*f = MarkedAs(0)
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			*f = MarkedAs(n)
		}
	default:
		var n float64
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		if n == float64(int(n)) {
			*f = MarkedAs(int(n))
		}
	}
	return nil
}

func (f RawFlag) MarshalJSON() ([]byte, error) {
	if !f.Set {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(f.Value)), nil
}
