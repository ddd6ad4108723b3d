// Package catalog reads the school's course, student and instructor
// catalogs. Sources return full catalogs; filtering by id is done by the
// caller with the lookups below.
package catalog

import (
	"context"

	"tahfeez/internal/model"
)

// Source is a full-catalog reader.
type Source interface {
	Students(ctx context.Context) ([]model.Student, error)
	Courses(ctx context.Context) ([]model.Course, error)
	Instructors(ctx context.Context) ([]model.Instructor, error)
}

// FindStudent returns the student with the given id.
func FindStudent(students []model.Student, id model.ID) (model.Student, bool) {
	for _, s := range students {
		if s.ID == id {
			return s, true
		}
	}
	return model.Student{}, false
}

// FindCourse returns the course with the given id.
func FindCourse(courses []model.Course, id model.ID) (model.Course, bool) {
	for _, c := range courses {
		if c.ID == id {
			return c, true
		}
	}
	return model.Course{}, false
}

// FindHalaqah returns a halaqah and the course it belongs to.
func FindHalaqah(courses []model.Course, id model.ID) (model.Halaqah, model.Course, bool) {
	for _, c := range courses {
		for _, h := range c.Halaqat {
			if h.ID == id {
				return h, c, true
			}
		}
	}
	return model.Halaqah{}, model.Course{}, false
}

// CoursesFor keeps the courses a student is enrolled in, in catalog order.
func CoursesFor(courses []model.Course, student model.Student) []model.Course {
	out := make([]model.Course, 0, len(student.Courses))
	for _, c := range courses {
		if student.EnrolledIn(c.ID) {
			out = append(out, c)
		}
	}
	return out
}
