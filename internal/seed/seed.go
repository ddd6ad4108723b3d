// Package seed is an in-memory backend loaded from a JSON document. It
// serves catalogs, lesson attendance and recitations for local runs and
// tests.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"io"
	"os"
	"slices"

	"github.com/pkg/errors"

	"tahfeez/internal/attendance"
	"tahfeez/internal/model"
)

//go:embed school.json
var defaultDocument []byte

// Dataset is an immutable in-memory school.
type Dataset struct {
	instructors []model.Instructor
	courses     []model.Course
	students    []model.Student
	recitations []model.Recitation
	lessons     map[model.ID][]attendance.RawEntry
}

type document struct {
	Instructors []model.Instructor `json:"instructors"`
	Courses     []courseDoc        `json:"courses"`
	Students    []studentDoc       `json:"students"`
	Recitations []model.Recitation `json:"recitations"`
}

type courseDoc struct {
	model.Course
	InstructorIDs []model.ID   `json:"instructor_ids"`
	Halaqat       []halaqahDoc `json:"halaqat"`
}

type halaqahDoc struct {
	ID            model.ID       `json:"id"`
	InstructorIDs []model.ID     `json:"instructor_ids"`
	StudentIDs    []model.ID     `json:"student_ids"`
	Lessons       []model.Lesson `json:"lessons"`
	StartTime     string         `json:"course_start_time"`
	Image         string         `json:"image"`
}

type studentDoc struct {
	ID             model.ID              `json:"id"`
	Name           string                `json:"name"`
	BirthDate      string                `json:"birth_date"`
	Image          string                `json:"student_img"`
	Courses        []model.ID            `json:"courses"`
	Attendances    []attendance.RawEntry `json:"attendances"`
	MemorizedParts int                   `json:"quran_memorized_parts"`
	PassedParts    model.PassedParts     `json:"quran_passed_parts"`
	Progress       *float64              `json:"progress"`
	Notes          *string               `json:"notes"`
	InstructorID   model.ID              `json:"instructor_id"`
}

// Default returns the dataset bundled with the binary.
func Default() (*Dataset, error) {
	return Parse(bytes.NewReader(defaultDocument))
}

// Load reads a dataset from a JSON file.
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open seed file")
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a dataset document.
func Parse(r io.Reader) (*Dataset, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "decode seed document")
	}

	d := &Dataset{
		instructors: doc.Instructors,
		recitations: doc.Recitations,
		lessons:     map[model.ID][]attendance.RawEntry{},
	}
	if d.instructors == nil {
		d.instructors = []model.Instructor{}
	}
	if d.recitations == nil {
		d.recitations = []model.Recitation{}
	}
	instructors := map[model.ID]model.Instructor{}
	for _, in := range d.instructors {
		instructors[in.ID] = in
	}

	names := map[model.ID]string{}
	for _, sd := range doc.Students {
		names[sd.ID] = sd.Name
	}

	for _, sd := range doc.Students {
		s := model.Student{
			ID:             sd.ID,
			Name:           sd.Name,
			Image:          sd.Image,
			Courses:        sd.Courses,
			MemorizedParts: sd.MemorizedParts,
			PassedParts:    sd.PassedParts,
			Progress:       sd.Progress,
			Notes:          sd.Notes,
			Attendances:    make([]model.AttendanceRecord, 0, len(sd.Attendances)),
		}
		if s.PassedParts == nil {
			s.PassedParts = model.PassedParts{}
		}
		if b, ok := model.ParseDate(sd.BirthDate); ok {
			s.BirthDate = &b
		}
		if in, ok := instructors[sd.InstructorID]; ok {
			s.Instructor = &in
		}
		for _, raw := range sd.Attendances {
			if raw.Student == nil {
				name := sd.Name
				raw.Student = &attendance.RawStudent{ID: sd.ID, Name: &name}
			}
			s.Attendances = append(s.Attendances, attendance.Normalize(raw))
			d.lessons[raw.LessonID] = append(d.lessons[raw.LessonID], raw)
		}
		d.students = append(d.students, s)
	}
	if d.students == nil {
		d.students = []model.Student{}
	}

	for _, cd := range doc.Courses {
		c := cd.Course
		c.Instructors = pick(instructors, cd.InstructorIDs)
		if c.Lessons == nil {
			c.Lessons = []model.Lesson{}
		}
		c.Halaqat = []model.Halaqah{}
		for _, hd := range cd.Halaqat {
			h := model.Halaqah{
				ID:          hd.ID,
				CourseID:    c.ID,
				Instructors: pick(instructors, hd.InstructorIDs),
				Students:    make([]model.StudentRef, 0, len(hd.StudentIDs)),
				Lessons:     hd.Lessons,
				StartTime:   hd.StartTime,
				Image:       hd.Image,
			}
			if h.Lessons == nil {
				h.Lessons = []model.Lesson{}
			}
			for _, sid := range hd.StudentIDs {
				h.Students = append(h.Students, model.StudentRef{ID: sid, Name: names[sid]})
			}
			c.Halaqat = append(c.Halaqat, h)
		}
		d.courses = append(d.courses, c)
	}
	if d.courses == nil {
		d.courses = []model.Course{}
	}
	return d, nil
}

func pick(idx map[model.ID]model.Instructor, ids []model.ID) []model.Instructor {
	out := make([]model.Instructor, 0, len(ids))
	for _, id := range ids {
		if in, ok := idx[id]; ok {
			out = append(out, in)
		}
	}
	return out
}

// Students implements catalog.Source.
func (d *Dataset) Students(context.Context) ([]model.Student, error) {
	return slices.Clone(d.students), nil
}

// Courses implements catalog.Source.
func (d *Dataset) Courses(context.Context) ([]model.Course, error) {
	return slices.Clone(d.courses), nil
}

// Instructors implements catalog.Source.
func (d *Dataset) Instructors(context.Context) ([]model.Instructor, error) {
	return slices.Clone(d.instructors), nil
}

// FetchLessonAttendance implements attendance.Source. Lessons nobody has
// attendance for return an empty payload.
func (d *Dataset) FetchLessonAttendance(ctx context.Context, lessonID model.ID) (attendance.RawResponse, error) {
	if err := ctx.Err(); err != nil {
		return attendance.RawResponse{}, err
	}
	entries := d.lessons[lessonID]
	if entries == nil {
		entries = []attendance.RawEntry{}
	}
	return attendance.RawResponse{Attendances: slices.Clone(entries)}, nil
}

// ForStudent implements recitation.Store.
func (d *Dataset) ForStudent(_ context.Context, studentID model.ID) ([]model.Recitation, error) {
	out := []model.Recitation{}
	for _, r := range d.recitations {
		if r.StudentID == studentID {
			out = append(out, r)
		}
	}
	return out, nil
}

// ForStudents implements recitation.Store.
func (d *Dataset) ForStudents(_ context.Context, studentIDs []model.ID) ([]model.Recitation, error) {
	out := []model.Recitation{}
	for _, r := range d.recitations {
		if slices.Contains(studentIDs, r.StudentID) {
			out = append(out, r)
		}
	}
	return out, nil
}
