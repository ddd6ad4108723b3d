package view

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"tahfeez/internal/attendance"
	"tahfeez/internal/catalog"
	"tahfeez/internal/model"
	"tahfeez/internal/progress"
	"tahfeez/internal/recitation"
)

const noTime = "-"

// HalaqahView is the rendered study-circle detail page.
type HalaqahView struct {
	SessionID    string             `json:"session_id"`
	HalaqahID    model.ID           `json:"halaqah_id"`
	CourseID     model.ID           `json:"course_id"`
	CourseTitle  string             `json:"course_title"`
	Instructors  string             `json:"instructors"`
	StudentCount int                `json:"student_count"`
	LessonCount  int                `json:"lesson_count"`
	StartTime    string             `json:"start_time"`
	Image        string             `json:"image"`
	Lessons      []LessonView       `json:"lessons"`
	Recitations  []recitation.Entry `json:"recitations"`
}

// LessonView is one lesson row. Attendance fields are filled only while the
// lesson is expanded.
type LessonView struct {
	ID                model.ID               `json:"id"`
	Title             string                 `json:"title"`
	Date              string                 `json:"date"`
	Upcoming          bool                   `json:"upcoming"`
	State             attendance.LessonState `json:"state"`
	StartTime         string                 `json:"start_time"`
	AttendanceRate    float64                `json:"attendance_rate"`
	AttendancePercent int                    `json:"attendance_percent"`
	Count             int                    `json:"count"`
	Roster            []RosterRow            `json:"roster,omitempty"`
}

// RosterRow is one student of an expanded lesson.
type RosterRow struct {
	StudentID model.ID   `json:"student_id"`
	Name      string     `json:"name"`
	Status    model.Flag `json:"status"`
	Absent    bool       `json:"absent"`
	Time      string     `json:"time"`
}

// OpenHalaqah loads a halaqah and starts a view session for it.
func (s *Service) OpenHalaqah(ctx context.Context, halaqahID model.ID) (HalaqahView, error) {
	courses, err := s.opts.Catalog.Courses(ctx)
	if err != nil {
		s.log.Error("loading courses for halaqah view", zap.String("halaqah_id", halaqahID.String()), zap.Error(err))
		return HalaqahView{}, errors.Wrap(ErrUnavailable, err.Error())
	}
	h, c, ok := catalog.FindHalaqah(courses, halaqahID)
	if !ok {
		return HalaqahView{}, errors.Wrapf(ErrNotFound, "halaqah %s", halaqahID)
	}

	recs, err := s.opts.Recitations.ForStudents(ctx, h.StudentIDs())
	if err != nil {
		s.log.Warn("loading halaqah recitations", zap.String("halaqah_id", halaqahID.String()), zap.Error(err))
		recs = []model.Recitation{}
	}

	sess := &Session{
		halaqah:     h,
		course:      c,
		recitations: recs,
		cache: attendance.NewCache(s.opts.Attendance,
			attendance.WithLogger(s.log),
			attendance.WithMetrics(s.opts.Metrics),
			attendance.WithFetchTimeout(s.opts.FetchTimeout)),
	}
	sess.expander = attendance.NewExpander(sess.cache)
	s.opts.Registry.add(sess)

	if s.opts.Prefetch != nil && len(h.Lessons) > 0 {
		ids := make([]model.ID, len(h.Lessons))
		for i, l := range h.Lessons {
			ids[i] = l.ID
		}
		s.opts.Prefetch(ctx, h.ID, ids)
	}
	return s.render(sess), nil
}

// Halaqah renders an open session.
func (s *Service) Halaqah(sessionID string) (HalaqahView, error) {
	sess, ok := s.opts.Registry.Get(sessionID)
	if !ok {
		return HalaqahView{}, errors.Wrapf(ErrNotFound, "session %s", sessionID)
	}
	return s.render(sess), nil
}

// ToggleLesson expands or collapses a lesson of an open session and returns
// the lesson's new row.
func (s *Service) ToggleLesson(ctx context.Context, sessionID string, lessonID model.ID) (LessonView, error) {
	sess, ok := s.opts.Registry.Get(sessionID)
	if !ok {
		return LessonView{}, errors.Wrapf(ErrNotFound, "session %s", sessionID)
	}
	lesson, ok := findLesson(sess.halaqah.Lessons, lessonID)
	if !ok {
		return LessonView{}, errors.Wrapf(ErrNotFound, "lesson %s", lessonID)
	}
	sess.expander.Toggle(ctx, lessonID)
	return s.lessonView(sess, lesson), nil
}

// CloseHalaqah discards a session when the user navigates away.
func (s *Service) CloseHalaqah(sessionID string) bool {
	return s.opts.Registry.Remove(sessionID)
}

func (s *Service) render(sess *Session) HalaqahView {
	h := sess.halaqah
	v := HalaqahView{
		SessionID:    sess.ID,
		HalaqahID:    h.ID,
		CourseID:     sess.course.ID,
		CourseTitle:  sess.course.Title,
		Instructors:  model.InstructorNames(h.Instructors),
		StudentCount: len(h.Students),
		LessonCount:  len(h.Lessons),
		StartTime:    startTime(h.StartTime),
		Image:        s.opts.Media.Banner(h.Image),
		Lessons:      make([]LessonView, 0, len(h.Lessons)),
		Recitations:  recitation.Entries(sess.recitations),
	}
	for _, l := range h.Lessons {
		v.Lessons = append(v.Lessons, s.lessonView(sess, l))
	}
	return v
}

func (s *Service) lessonView(sess *Session, l model.Lesson) LessonView {
	lv := LessonView{
		ID:        l.ID,
		Title:     l.DisplayTitle(),
		Date:      l.Date,
		Upcoming:  l.Upcoming(s.opts.Now()),
		State:     sess.expander.State(l.ID),
		StartTime: startTime(sess.halaqah.StartTime),
	}
	if lv.State != attendance.Expanded {
		return lv
	}
	records, ok := sess.cache.Lookup(l.ID)
	if !ok {
		lv.State = attendance.Loading
		return lv
	}
	lv.AttendanceRate = progress.AttendanceRate(records)
	lv.AttendancePercent = progress.Percent(lv.AttendanceRate)
	lv.Count = len(records)
	lv.Roster = make([]RosterRow, 0, len(records))
	for _, r := range records {
		row := RosterRow{
			StudentID: r.Student.ID,
			Name:      r.Student.Name,
			Status:    r.Flag,
			Absent:    r.Flag == model.Absent,
			Time:      noTime,
		}
		if r.Flag == model.Present && r.Time != nil {
			row.Time = *r.Time
		}
		lv.Roster = append(lv.Roster, row)
	}
	return lv
}

func findLesson(lessons []model.Lesson, id model.ID) (model.Lesson, bool) {
	for _, l := range lessons {
		if l.ID == id {
			return l, true
		}
	}
	return model.Lesson{}, false
}

func startTime(t string) string {
	if t == "" {
		return model.UnspecifiedLabel
	}
	return t
}
