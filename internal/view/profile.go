package view

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"tahfeez/internal/attendance"
	"tahfeez/internal/catalog"
	"tahfeez/internal/model"
	"tahfeez/internal/progress"
	"tahfeez/internal/recitation"
)

// Profile is the rendered student profile page.
type Profile struct {
	ID              model.ID            `json:"id"`
	Name            string              `json:"name"`
	Avatar          string              `json:"avatar"`
	Age             *int                `json:"age"`
	AgeLabel        string              `json:"age_label"`
	MemorizedParts  int                 `json:"memorized_parts"`
	Instructor      InstructorSummary   `json:"instructor"`
	Current         recitation.Progress `json:"current"`
	PassedParts     model.PassedParts   `json:"passed_parts"`
	PassedCount     int                 `json:"passed_count"`
	Courses         []CourseCard        `json:"courses"`
	CourseCount     int                 `json:"course_count"`
	Progress        float64             `json:"progress"`
	ProgressPercent int                 `json:"progress_percent"`
	Notes           *string             `json:"notes,omitempty"`
}

// InstructorSummary is the supervising instructor panel.
type InstructorSummary struct {
	Linked         bool   `json:"linked"`
	Name           string `json:"name"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Certificate    string `json:"certificate,omitempty"`
	Qualifications string `json:"qualifications"`
	Avatar         string `json:"avatar"`
}

// CourseCard is one enrolled course.
type CourseCard struct {
	ID          model.ID `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Instructors string   `json:"instructors"`
	StartDate   string   `json:"start_date,omitempty"`
	StartTime   string   `json:"start_time,omitempty"`
	Image       string   `json:"image"`
	LessonCount int      `json:"lesson_count"`
}

// CourseAttendance is a student's reconciled attendance table for a course.
type CourseAttendance struct {
	StudentID   model.ID         `json:"student_id"`
	CourseID    model.ID         `json:"course_id"`
	CourseTitle string           `json:"course_title"`
	Rows        []attendance.Row `json:"rows"`
	Duplicates  []model.ID       `json:"duplicates,omitempty"`
}

// Profile assembles a student's profile. Course and recitation failures
// degrade to empty sections; a missing student is ErrNotFound.
func (s *Service) Profile(ctx context.Context, studentID model.ID) (Profile, error) {
	student, err := s.student(ctx, studentID)
	if err != nil {
		return Profile{}, err
	}

	p := Profile{
		ID:             student.ID,
		Name:           student.Name,
		Avatar:         s.opts.Media.Avatar(student.Image),
		Age:            progress.Age(student.BirthDate, s.opts.Now()),
		AgeLabel:       model.UnknownLabel,
		MemorizedParts: student.MemorizedParts,
		Instructor:     s.instructorSummary(student.Instructor),
		PassedParts:    student.PassedParts,
		Courses:        []CourseCard{},
		Notes:          student.Notes,
	}
	if p.PassedParts == nil {
		p.PassedParts = model.PassedParts{}
	}
	p.PassedCount = len(p.PassedParts)
	if p.Age != nil {
		p.AgeLabel = strconv.Itoa(*p.Age) + " سنة"
	}
	if student.Progress != nil {
		p.Progress = *student.Progress
	}
	p.ProgressPercent = progress.Percent(p.Progress)

	recs, err := s.opts.Recitations.ForStudent(ctx, student.ID)
	if err != nil {
		s.log.Warn("loading student recitations", zap.String("student_id", student.ID.String()), zap.Error(err))
	}
	p.Current = recitation.Current(recitation.FilterByStudent(recs, student.ID))

	courses, err := s.opts.Catalog.Courses(ctx)
	if err != nil {
		s.log.Error("loading student courses", zap.String("student_id", student.ID.String()), zap.Error(err))
	}
	for _, c := range catalog.CoursesFor(courses, student) {
		p.Courses = append(p.Courses, CourseCard{
			ID:          c.ID,
			Title:       c.Title,
			Description: c.Description,
			Instructors: model.InstructorNames(c.Instructors),
			StartDate:   c.StartDate,
			StartTime:   c.StartTime,
			Image:       s.opts.Media.Banner(c.Image),
			LessonCount: len(c.Lessons),
		})
	}
	p.CourseCount = len(p.Courses)
	return p, nil
}

// CourseAttendance reconciles a student's attendance against the lessons of
// one of the student's courses.
func (s *Service) CourseAttendance(ctx context.Context, studentID, courseID model.ID) (CourseAttendance, error) {
	student, err := s.student(ctx, studentID)
	if err != nil {
		return CourseAttendance{}, err
	}
	if !student.EnrolledIn(courseID) {
		return CourseAttendance{}, errors.Wrapf(ErrNotFound, "student %s is not enrolled in course %s", studentID, courseID)
	}
	courses, err := s.opts.Catalog.Courses(ctx)
	if err != nil {
		s.log.Error("loading courses for attendance table", zap.String("course_id", courseID.String()), zap.Error(err))
		return CourseAttendance{}, errors.Wrap(ErrUnavailable, err.Error())
	}
	course, ok := catalog.FindCourse(courses, courseID)
	if !ok {
		return CourseAttendance{}, errors.Wrapf(ErrNotFound, "course %s", courseID)
	}

	rec := attendance.Reconcile(course.Lessons, student.Attendances, s.opts.Duplicates)
	if len(rec.Duplicates) > 0 {
		s.log.Warn("duplicate attendance records",
			zap.String("student_id", studentID.String()),
			zap.String("course_id", courseID.String()),
			zap.Int("lessons", len(rec.Duplicates)))
	}
	return CourseAttendance{
		StudentID:   student.ID,
		CourseID:    course.ID,
		CourseTitle: course.Title,
		Rows:        rec.Rows,
		Duplicates:  rec.Duplicates,
	}, nil
}

func (s *Service) student(ctx context.Context, id model.ID) (model.Student, error) {
	students, err := s.opts.Catalog.Students(ctx)
	if err != nil {
		s.log.Error("loading students", zap.String("student_id", id.String()), zap.Error(err))
		return model.Student{}, errors.Wrap(ErrUnavailable, err.Error())
	}
	student, ok := catalog.FindStudent(students, id)
	if !ok {
		s.log.Info("student not found", zap.String("student_id", id.String()))
		return model.Student{}, errors.Wrapf(ErrNotFound, "student %s", id)
	}
	return student, nil
}

func (s *Service) instructorSummary(in *model.Instructor) InstructorSummary {
	sum := InstructorSummary{
		Name:           model.UnknownLabel,
		Qualifications: model.UnspecifiedLabel,
		Avatar:         s.opts.Media.Avatar(""),
	}
	if in == nil {
		return sum
	}
	sum.Linked = true
	if strings.TrimSpace(in.Name) != "" {
		sum.Name = in.Name
	}
	sum.Email, sum.Phone, sum.Certificate = in.Email, in.Phone, in.Certificate
	sum.Avatar = s.opts.Media.Avatar(in.Image)
	if len(in.Qualifications) > 0 {
		sum.Qualifications = strings.Join(in.Qualifications, ", ")
	}
	return sum
}
