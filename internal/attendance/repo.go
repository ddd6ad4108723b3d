package attendance

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"tahfeez/internal/model"
)

// Repository reads lesson attendance from Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// FetchLessonAttendance returns the raw attendance rows of a lesson. Student
// names come from a left join so rows of deleted students keep a nil name.
func (r *Repository) FetchLessonAttendance(ctx context.Context, lessonID model.ID) (RawResponse, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.lesson_id, a.student_id, s.name, a.student_attendance, a.student_attendance_time
		FROM attendances a
		LEFT JOIN students s ON s.id = a.student_id
		WHERE a.lesson_id = $1
		ORDER BY a.created_at, a.student_id
	`, string(lessonID))
	if err != nil {
		return RawResponse{}, errors.Wrapf(err, "query attendance of lesson %s", lessonID)
	}
	defer rows.Close()

	resp := RawResponse{Attendances: []RawEntry{}}
	for rows.Next() {
		var (
			lesson, student string
			name, when      sql.NullString
			flag            sql.NullInt16
		)
		if err := rows.Scan(&lesson, &student, &name, &flag, &when); err != nil {
			return RawResponse{}, errors.Wrap(err, "scan attendance row")
		}
		entry := RawEntry{
			LessonID: model.ID(lesson),
			Student:  &RawStudent{ID: model.ID(student)},
		}
		if name.Valid {
			entry.Student.Name = &name.String
		}
		if flag.Valid {
			entry.Attendance = MarkedAs(int(flag.Int16))
		}
		if when.Valid {
			entry.Time = &when.String
		}
		resp.Attendances = append(resp.Attendances, entry)
	}
	return resp, errors.Wrap(rows.Err(), "iterate attendance rows")
}
