package catalog

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"tahfeez/internal/attendance"
	"tahfeez/internal/model"
)

// Repository loads catalogs from Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Instructors implements Source.
func (r *Repository) Instructors(ctx context.Context) ([]model.Instructor, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(email, ''), COALESCE(phone_number, ''), COALESCE(certificate, ''),
		       COALESCE(religious_qualifications, '{}'), COALESCE(image, '')
		FROM instructors
		ORDER BY id
	`)
	if err != nil {
		return nil, errors.Wrap(err, "query instructors")
	}
	defer rows.Close()

	out := []model.Instructor{}
	for rows.Next() {
		var (
			in model.Instructor
			id string
			qs pq.StringArray
		)
		if err := rows.Scan(&id, &in.Name, &in.Email, &in.Phone, &in.Certificate, &qs, &in.Image); err != nil {
			return nil, errors.Wrap(err, "scan instructor")
		}
		in.ID, in.Qualifications = model.ID(id), []string(qs)
		out = append(out, in)
	}
	return out, errors.Wrap(rows.Err(), "iterate instructors")
}

// Courses implements Source. Each course carries its instructors, lessons
// and halaqat; each halaqah carries its own instructors, students and
// lessons.
func (r *Repository) Courses(ctx context.Context) ([]model.Course, error) {
	instructors, err := r.instructorIndex(ctx)
	if err != nil {
		return nil, err
	}
	courseInstructors, err := r.links(ctx, `SELECT course_id, instructor_id FROM course_instructors ORDER BY course_id, instructor_id`)
	if err != nil {
		return nil, err
	}
	halaqahInstructors, err := r.links(ctx, `SELECT halaqah_id, instructor_id FROM halaqah_instructors ORDER BY halaqah_id, instructor_id`)
	if err != nil {
		return nil, err
	}
	members, err := r.halaqahStudents(ctx)
	if err != nil {
		return nil, err
	}
	lessons, err := r.lessons(ctx)
	if err != nil {
		return nil, err
	}

	halaqat := map[model.ID][]model.Halaqah{}
	hrows, err := r.db.QueryContext(ctx, `
		SELECT id, course_id, COALESCE(course_start_time, ''), COALESCE(image, '')
		FROM halaqat
		ORDER BY id
	`)
	if err != nil {
		return nil, errors.Wrap(err, "query halaqat")
	}
	defer hrows.Close()
	for hrows.Next() {
		var id, courseID string
		var h model.Halaqah
		if err := hrows.Scan(&id, &courseID, &h.StartTime, &h.Image); err != nil {
			return nil, errors.Wrap(err, "scan halaqah")
		}
		h.ID, h.CourseID = model.ID(id), model.ID(courseID)
		h.Instructors = pick(instructors, halaqahInstructors[h.ID])
		h.Students = nonNil(members[h.ID])
		h.Lessons = filterLessons(lessons, func(l model.Lesson) bool { return l.HalaqahID == h.ID })
		halaqat[h.CourseID] = append(halaqat[h.CourseID], h)
	}
	if err := hrows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate halaqat")
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, COALESCE(description, ''), COALESCE(to_char(start_date, 'YYYY-MM-DD'), ''),
		       COALESCE(course_start_time, ''), COALESCE(image, '')
		FROM courses
		ORDER BY id
	`)
	if err != nil {
		return nil, errors.Wrap(err, "query courses")
	}
	defer rows.Close()

	out := []model.Course{}
	for rows.Next() {
		var id string
		var c model.Course
		if err := rows.Scan(&id, &c.Title, &c.Description, &c.StartDate, &c.StartTime, &c.Image); err != nil {
			return nil, errors.Wrap(err, "scan course")
		}
		c.ID = model.ID(id)
		c.Instructors = pick(instructors, courseInstructors[c.ID])
		c.Lessons = filterLessons(lessons, func(l model.Lesson) bool { return l.CourseID == c.ID })
		c.Halaqat = halaqat[c.ID]
		out = append(out, c)
	}
	return out, errors.Wrap(rows.Err(), "iterate courses")
}

// Students implements Source. Attendance history is attached to each
// student in recording order.
func (r *Repository) Students(ctx context.Context) ([]model.Student, error) {
	instructors, err := r.instructorIndex(ctx)
	if err != nil {
		return nil, err
	}
	enrollments, err := r.links(ctx, `SELECT student_id, course_id FROM enrollments ORDER BY student_id, course_id`)
	if err != nil {
		return nil, err
	}
	history, err := r.attendanceByStudent(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, birth_date, COALESCE(image, ''), quran_memorized_parts,
		       COALESCE(quran_passed_parts, ''), progress, notes, instructor_id
		FROM students
		ORDER BY id
	`)
	if err != nil {
		return nil, errors.Wrap(err, "query students")
	}
	defer rows.Close()

	out := []model.Student{}
	for rows.Next() {
		var (
			s            model.Student
			id, parts    string
			birth        sql.NullTime
			prog         sql.NullFloat64
			notes, instr sql.NullString
		)
		if err := rows.Scan(&id, &s.Name, &birth, &s.Image, &s.MemorizedParts, &parts, &prog, &notes, &instr); err != nil {
			return nil, errors.Wrap(err, "scan student")
		}
		s.ID = model.ID(id)
		s.PassedParts = model.ParsePassedParts(parts)
		s.Courses = enrollments[s.ID]
		s.Attendances = nonNil(history[s.ID])
		if birth.Valid {
			b := time.Date(birth.Time.Year(), birth.Time.Month(), birth.Time.Day(), 0, 0, 0, 0, time.UTC)
			s.BirthDate = &b
		}
		if prog.Valid {
			s.Progress = &prog.Float64
		}
		if notes.Valid {
			s.Notes = &notes.String
		}
		if instr.Valid {
			if in, ok := instructors[model.ID(instr.String)]; ok {
				s.Instructor = &in
			}
		}
		out = append(out, s)
	}
	return out, errors.Wrap(rows.Err(), "iterate students")
}

func (r *Repository) instructorIndex(ctx context.Context) (map[model.ID]model.Instructor, error) {
	list, err := r.Instructors(ctx)
	if err != nil {
		return nil, err
	}
	idx := make(map[model.ID]model.Instructor, len(list))
	for _, in := range list {
		idx[in.ID] = in
	}
	return idx, nil
}

// links reads a two-column id association table.
func (r *Repository) links(ctx context.Context, q string) (map[model.ID][]model.ID, error) {
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, "query links")
	}
	defer rows.Close()
	out := map[model.ID][]model.ID{}
	for rows.Next() {
		var from, to string
		if err := rows.Scan(&from, &to); err != nil {
			return nil, errors.Wrap(err, "scan link")
		}
		out[model.ID(from)] = append(out[model.ID(from)], model.ID(to))
	}
	return out, errors.Wrap(rows.Err(), "iterate links")
}

func (r *Repository) halaqahStudents(ctx context.Context) (map[model.ID][]model.StudentRef, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT hs.halaqah_id, s.id, s.name
		FROM halaqah_students hs
		JOIN students s ON s.id = hs.student_id
		ORDER BY hs.halaqah_id, s.name
	`)
	if err != nil {
		return nil, errors.Wrap(err, "query halaqah students")
	}
	defer rows.Close()
	out := map[model.ID][]model.StudentRef{}
	for rows.Next() {
		var hid, sid, name string
		if err := rows.Scan(&hid, &sid, &name); err != nil {
			return nil, errors.Wrap(err, "scan halaqah student")
		}
		out[model.ID(hid)] = append(out[model.ID(hid)], model.StudentRef{ID: model.ID(sid), Name: name})
	}
	return out, errors.Wrap(rows.Err(), "iterate halaqah students")
}

func (r *Repository) lessons(ctx context.Context) ([]model.Lesson, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, COALESCE(halaqah_id, ''), COALESCE(course_id, ''), lesson_title, to_char(lesson_date, 'YYYY-MM-DD')
		FROM lessons
		ORDER BY lesson_date, id
	`)
	if err != nil {
		return nil, errors.Wrap(err, "query lessons")
	}
	defer rows.Close()
	out := []model.Lesson{}
	for rows.Next() {
		var (
			id, hid, cid, date string
			title              sql.NullString
		)
		if err := rows.Scan(&id, &hid, &cid, &title, &date); err != nil {
			return nil, errors.Wrap(err, "scan lesson")
		}
		l := model.Lesson{ID: model.ID(id), HalaqahID: model.ID(hid), CourseID: model.ID(cid), Date: date}
		if title.Valid {
			l.Title = &title.String
		}
		out = append(out, l)
	}
	return out, errors.Wrap(rows.Err(), "iterate lessons")
}

func (r *Repository) attendanceByStudent(ctx context.Context) (map[model.ID][]model.AttendanceRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.lesson_id, a.student_id, s.name, a.student_attendance, a.student_attendance_time
		FROM attendances a
		LEFT JOIN students s ON s.id = a.student_id
		ORDER BY a.created_at, a.lesson_id
	`)
	if err != nil {
		return nil, errors.Wrap(err, "query attendance history")
	}
	defer rows.Close()
	out := map[model.ID][]model.AttendanceRecord{}
	for rows.Next() {
		var (
			lesson, student string
			name, when      sql.NullString
			flag            sql.NullInt16
		)
		if err := rows.Scan(&lesson, &student, &name, &flag, &when); err != nil {
			return nil, errors.Wrap(err, "scan attendance history")
		}
		raw := attendance.RawEntry{
			LessonID: model.ID(lesson),
			Student:  &attendance.RawStudent{ID: model.ID(student)},
		}
		if name.Valid {
			raw.Student.Name = &name.String
		}
		if flag.Valid {
			raw.Attendance = attendance.MarkedAs(int(flag.Int16))
		}
		if when.Valid {
			raw.Time = &when.String
		}
		out[model.ID(student)] = append(out[model.ID(student)], attendance.Normalize(raw))
	}
	return out, errors.Wrap(rows.Err(), "iterate attendance history")
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

func filterLessons(all []model.Lesson, keep func(model.Lesson) bool) []model.Lesson {
	out := make([]model.Lesson, 0)
	for _, l := range all {
		if keep(l) {
			out = append(out, l)
		}
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
