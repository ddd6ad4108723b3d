package attendance

import (
	"strings"

	"tahfeez/internal/model"
)

// Normalize maps a raw entry to its canonical record. Missing fields
// default instead of failing.
func Normalize(raw RawEntry) model.AttendanceRecord {
	rec := model.AttendanceRecord{
		LessonID: raw.LessonID,
		Flag:     normalizeFlag(raw.Attendance),
		Student:  model.StudentRef{Name: model.UnknownLabel},
	}
	if raw.Student != nil {
		rec.Student.ID = raw.Student.ID
		if raw.Student.Name != nil && strings.TrimSpace(*raw.Student.Name) != "" {
			rec.Student.Name = *raw.Student.Name
		}
	}
	if raw.Time != nil && strings.TrimSpace(*raw.Time) != "" {
		t := *raw.Time
		rec.Time = &t
	}
	return rec
}

// NormalizeAll normalizes a lesson payload. The result is never nil.
func NormalizeAll(resp RawResponse) []model.AttendanceRecord {
	out := make([]model.AttendanceRecord, 0, len(resp.Attendances))
	for _, raw := range resp.Attendances {
		out = append(out, Normalize(raw))
	}
	return out
}

func normalizeFlag(f RawFlag) model.Flag {
	if !f.Set {
		return model.Unmarked
	}
	switch f.Value {
	case 1:
		return model.Present
	case 0:
		return model.Absent
	default:
		return model.Unmarked
	}
}
