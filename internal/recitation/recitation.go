package recitation

import (
	"context"

	"tahfeez/internal/model"
	"tahfeez/internal/progress"
)

// Store queries the recitation log.
type Store interface {
	// ForStudent returns a student's recitations in log order.
	ForStudent(ctx context.Context, studentID model.ID) ([]model.Recitation, error)
	// ForStudents returns the recitations of any of the students, in log order.
	ForStudents(ctx context.Context, studentIDs []model.ID) ([]model.Recitation, error)
}

// FilterByStudent keeps the recitations of one student, preserving order.
func FilterByStudent(all []model.Recitation, studentID model.ID) []model.Recitation {
	out := make([]model.Recitation, 0)
	for _, r := range all {
		if r.StudentID == studentID {
			out = append(out, r)
		}
	}
	return out
}

// Progress is the student's position in the juz currently being memorized.
type Progress struct {
	Juz         string `json:"current_juz"`
	Pages       int    `json:"pages_completed"`
	PagesPerJuz int    `json:"pages_per_juz"`
	Percent     int    `json:"percent"`
	Available   bool   `json:"available"`
}

// Current derives progress from the first recitation of a filtered log.
// An empty log yields the not-available placeholder.
func Current(filtered []model.Recitation) Progress {
	p := Progress{Juz: model.NotAvailableLabel, PagesPerJuz: progress.DefaultPagesPerJuz}
	if len(filtered) == 0 {
		return p
	}
	cur := filtered[0]
	if cur.CurrentJuz != "" {
		p.Juz = cur.CurrentJuz
	}
	p.Pages = cur.CurrentJuzPage
	p.Percent = progress.JuzProgress(cur.CurrentJuzPage, progress.DefaultPagesPerJuz)
	p.Available = true
	return p
}

// Entry is a recitation formatted for the halaqah panel.
type Entry struct {
	StudentID   model.ID `json:"student_id"`
	StudentName string   `json:"student_name"`
	Evaluation  string   `json:"evaluation"`
	Pages       string   `json:"pages"`
}

const (
	notEvaluated = "غير مقيّم"
	noPages      = "لا يوجد"
)

// Entries formats recitations for display.
func Entries(recs []model.Recitation) []Entry {
	out := make([]Entry, 0, len(recs))
	for _, r := range recs {
		e := Entry{StudentID: r.StudentID, StudentName: r.StudentName, Evaluation: notEvaluated, Pages: noPages}
		if r.Evaluation != nil && *r.Evaluation != "" {
			e.Evaluation = *r.Evaluation
		}
		if pages := r.PageList(); pages != "" {
			e.Pages = pages
		}
		out = append(out, e)
	}
	return out
}
