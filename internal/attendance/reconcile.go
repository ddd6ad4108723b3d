package attendance

import "tahfeez/internal/model"

// Status labels of the reconciled attendance table.
const (
	PresentLabel = "حاضر"
	AbsentLabel  = "غائب"
	Dash         = "—"
)

// DuplicatePolicy decides which record wins when a student has several
// attendance records for the same lesson.
type DuplicatePolicy int

const (
	FirstWins DuplicatePolicy = iota
	LastWins
)

// Row is one lesson of a course with the student's attendance on it.
type Row struct {
	LessonID    model.ID   `json:"lesson_id"`
	Date        string     `json:"date"`
	Session     string     `json:"session"`
	Status      model.Flag `json:"status"`
	StatusLabel string     `json:"status_label"`
	Time        string     `json:"time"`
}

// Reconciliation is the per-lesson table of one student in one course.
type Reconciliation struct {
	Rows []Row `json:"rows"`
	// Duplicates lists lessons that had more than one attendance record.
	Duplicates []model.ID `json:"duplicates,omitempty"`
}

// Reconcile builds one row per lesson, in lesson order. Lessons without a
// matching record are reported with an unknown status.
func Reconcile(lessons []model.Lesson, history []model.AttendanceRecord, policy DuplicatePolicy) Reconciliation {
	byLesson := make(map[model.ID]model.AttendanceRecord, len(history))
	seen := make(map[model.ID]int, len(history))
	var dups []model.ID
	for _, rec := range history {
		seen[rec.LessonID]++
		if seen[rec.LessonID] == 2 {
			dups = append(dups, rec.LessonID)
		}
		if _, ok := byLesson[rec.LessonID]; ok && policy == FirstWins {
			continue
		}
		byLesson[rec.LessonID] = rec
	}

	rows := make([]Row, 0, len(lessons))
	for _, l := range lessons {
		row := Row{
			LessonID:    l.ID,
			Date:        l.Date,
			Session:     l.DisplayTitle(),
			StatusLabel: Dash,
			Time:        Dash,
		}
		if rec, ok := byLesson[l.ID]; ok {
			row.Status = rec.Flag
			row.StatusLabel = StatusLabel(rec.Flag)
			if rec.Time != nil {
				row.Time = *rec.Time
			}
		}
		rows = append(rows, row)
	}
	return Reconciliation{Rows: rows, Duplicates: dups}
}

// StatusLabel is the display label of a flag; unmarked shows as a dash.
func StatusLabel(f model.Flag) string {
	switch f {
	case model.Present:
		return PresentLabel
	case model.Absent:
		return AbsentLabel
	default:
		return Dash
	}
}
