package model

import "fmt"

// Flag is the attendance state of one student for one lesson.
type Flag int

const (
	// Unmarked means no attendance event was recorded. It is not absence.
	Unmarked Flag = iota
	Present
	Absent
)

func (f Flag) String() string {
	switch f {
	case Present:
		return "present"
	case Absent:
		return "absent"
	default:
		return "unmarked"
	}
}

// Definite reports whether the flag counts towards attendance rates.
func (f Flag) Definite() bool { return f == Present || f == Absent }

// MarshalText encodes the flag by name.
func (f Flag) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// UnmarshalText decodes a flag name.
func (f *Flag) UnmarshalText(b []byte) error {
	switch string(b) {
	case "present":
		*f = Present
	case "absent":
		*f = Absent
	case "unmarked", "":
		*f = Unmarked
	default:
		return fmt.Errorf("unknown attendance flag %q", string(b))
	}
	return nil
}

// AttendanceRecord is the canonical attendance of one student for one lesson.
// Time is nil when no timestamp was recorded.
type AttendanceRecord struct {
	LessonID ID         `json:"lesson_id,omitempty"`
	Student  StudentRef `json:"student"`
	Flag     Flag       `json:"attendance"`
	Time     *string    `json:"time"`
}
