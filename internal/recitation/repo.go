package recitation

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"tahfeez/internal/model"
)

// Repository reads the recitation log from Postgres. Log order is
// recorded_at descending, newest first.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const selectRecitations = `
	SELECT r.id, r.student_id, COALESCE(s.name, ''), r.current_juz, r.current_juz_page,
	       r.recitation_evaluation, r.recitation_per_page, r.recorded_at
	FROM recitations r
	LEFT JOIN students s ON s.id = r.student_id
`

// ForStudent implements Store.
func (r *Repository) ForStudent(ctx context.Context, studentID model.ID) ([]model.Recitation, error) {
	return r.query(ctx, selectRecitations+` WHERE r.student_id = $1 ORDER BY r.recorded_at DESC, r.id`, string(studentID))
}

// ForStudents implements Store.
func (r *Repository) ForStudents(ctx context.Context, studentIDs []model.ID) ([]model.Recitation, error) {
	if len(studentIDs) == 0 {
		return []model.Recitation{}, nil
	}
	ids := make([]string, len(studentIDs))
	for i, id := range studentIDs {
		ids[i] = string(id)
	}
	return r.query(ctx, selectRecitations+` WHERE r.student_id = ANY($1) ORDER BY r.recorded_at DESC, r.id`, pq.Array(ids))
}

func (r *Repository) query(ctx context.Context, q string, args ...any) ([]model.Recitation, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query recitations")
	}
	defer rows.Close()

	out := []model.Recitation{}
	for rows.Next() {
		var (
			rec        model.Recitation
			id, sid    string
			evaluation sql.NullString
			pages      pq.Int64Array
		)
		if err := rows.Scan(&id, &sid, &rec.StudentName, &rec.CurrentJuz, &rec.CurrentJuzPage, &evaluation, &pages, &rec.RecordedAt); err != nil {
			return nil, errors.Wrap(err, "scan recitation")
		}
		rec.ID, rec.StudentID = model.ID(id), model.ID(sid)
		if evaluation.Valid {
			rec.Evaluation = &evaluation.String
		}
		rec.Pages = make([]int, len(pages))
		for i, p := range pages {
			rec.Pages[i] = int(p)
		}
		out = append(out, rec)
	}
	return out, errors.Wrap(rows.Err(), "iterate recitations")
}
