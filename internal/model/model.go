package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Display defaults shared by the halaqah and profile views.
const (
	UnknownLabel      = "غير معروف"
	UntitledLesson    = "جلسة بدون عنوان"
	UnspecifiedLabel  = "غير محدد"
	NotAvailableLabel = "غير متوفر"
)

// ID identifies any catalog record. Source data carries ids as numbers or
// strings, both decode to the same ID.
type ID string

// UnmarshalJSON accepts a JSON string, number or null, or a reference
// object such as {"id": 10}.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	switch b[0] {
	case '{':
		var ref struct {
			ID *ID `json:"id"`
		}
		if err := json.Unmarshal(b, &ref); err != nil {
			return err
		}
		if ref.ID == nil {
			*id = ""
			return nil
		}
		*id = *ref.ID
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Instructor teaches one or more halaqat.
type Instructor struct {
	ID             ID       `json:"id"`
	Name           string   `json:"name"`
	Email          string   `json:"email,omitempty"`
	Phone          string   `json:"phone_number,omitempty"`
	Certificate    string   `json:"certificate,omitempty"`
	Qualifications []string `json:"religious_qualifications,omitempty"`
	Image          string   `json:"image,omitempty"`
}

// Lesson is a single scheduled session of a halaqah. Its ID keys the
// attendance cache.
type Lesson struct {
	ID        ID      `json:"id"`
	HalaqahID ID      `json:"halaqah_id,omitempty"`
	CourseID  ID      `json:"course_id,omitempty"`
	Title     *string `json:"lesson_title"`
	Date      string  `json:"lesson_date"`
}

// DisplayTitle returns the lesson title or the untitled placeholder.
func (l Lesson) DisplayTitle() string {
	if l.Title == nil || strings.TrimSpace(*l.Title) == "" {
		return UntitledLesson
	}
	return *l.Title
}

// Upcoming reports whether the lesson is scheduled today or later. Lessons
// with an unparseable date are never upcoming.
func (l Lesson) Upcoming(now time.Time) bool {
	d, ok := ParseDate(l.Date)
	if !ok {
		return false
	}
	y, m, day := now.Date()
	today := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	return !d.Before(today)
}

// ParseDate parses the calendar dates used by lessons and birth dates.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006/01/02"} {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// StudentRef is the student reference embedded in rosters and halaqat.
type StudentRef struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// Halaqah is a study circle.
type Halaqah struct {
	ID          ID           `json:"id"`
	CourseID    ID           `json:"course_id,omitempty"`
	Instructors []Instructor `json:"instructors"`
	Students    []StudentRef `json:"students"`
	Lessons     []Lesson     `json:"lessons"`
	StartTime   string       `json:"course_start_time,omitempty"`
	Image       string       `json:"image,omitempty"`
}

// StudentIDs returns the ids of the enrolled students in roster order.
func (h Halaqah) StudentIDs() []ID {
	ids := make([]ID, 0, len(h.Students))
	for _, s := range h.Students {
		ids = append(ids, s.ID)
	}
	return ids
}

// Course groups halaqat and the lessons students attend.
type Course struct {
	ID          ID           `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	StartDate   string       `json:"start_date,omitempty"`
	StartTime   string       `json:"course_start_time,omitempty"`
	Image       string       `json:"image,omitempty"`
	Instructors []Instructor `json:"instructors"`
	Lessons     []Lesson     `json:"lessons"`
	Halaqat     []Halaqah    `json:"halaqat,omitempty"`
}

// InstructorNames joins instructor names for display.
func InstructorNames(instructors []Instructor) string {
	names := make([]string, 0, len(instructors))
	for _, in := range instructors {
		if n := strings.TrimSpace(in.Name); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return UnknownLabel
	}
	return strings.Join(names, ", ")
}

// Student is the read-only projection of a student record.
type Student struct {
	ID             ID                 `json:"id"`
	Name           string             `json:"name"`
	BirthDate      *time.Time         `json:"birth_date,omitempty"`
	Image          string             `json:"student_img,omitempty"`
	Courses        []ID               `json:"courses"`
	Attendances    []AttendanceRecord `json:"attendances"`
	MemorizedParts int                `json:"quran_memorized_parts"`
	PassedParts    PassedParts        `json:"quran_passed_parts"`
	Progress       *float64           `json:"progress,omitempty"`
	Notes          *string            `json:"notes,omitempty"`
	Instructor     *Instructor        `json:"instructors,omitempty"`
}

// EnrolledIn reports whether the student lists the course.
func (s Student) EnrolledIn(courseID ID) bool {
	for _, id := range s.Courses {
		if id == courseID {
			return true
		}
	}
	return false
}

// Recitation is one logged evaluation of a student's memorization.
type Recitation struct {
	ID             ID        `json:"id,omitempty"`
	StudentID      ID        `json:"student_id"`
	StudentName    string    `json:"student_name"`
	CurrentJuz     string    `json:"current_juz"`
	CurrentJuzPage int       `json:"current_juz_page"`
	Evaluation     *string   `json:"recitation_evaluation"`
	Pages          []int     `json:"recitation_per_page"`
	RecordedAt     time.Time `json:"recorded_at,omitempty"`
}

// PageList renders recited pages, comma separated.
func (r Recitation) PageList() string {
	if len(r.Pages) == 0 {
		return ""
	}
	parts := make([]string, len(r.Pages))
	for i, p := range r.Pages {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ", ")
}
