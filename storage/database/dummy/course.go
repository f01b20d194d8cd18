package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/maoni-app/maoni/core/course"
)

type courseRepository struct {
	db *courseTable
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) *courseRepository {
	return &courseRepository{db: db.course}
}

func (repo *courseRepository) GetCourseByCode(ctx context.Context, code string) (course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, crs := range repo.db.courses {
		if strings.EqualFold(crs.Code, code) {
			return *crs, nil
		}
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	crs.ID = uuid.New().String()
	repo.db.courses[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) QueryCourses(ctx context.Context) ([]course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	courses := make([]course.Course, 0, len(repo.db.courses))
	for _, crs := range repo.db.courses {
		courses = append(courses, *crs)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].Code < courses[j].Code })
	return courses, nil
}

func (repo *courseRepository) GetAssignmentTeacher(ctx context.Context, courseID string) (string, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	// assignments keep insertion order; first match wins
	for _, asg := range repo.db.assignments {
		if asg.CourseID == courseID {
			return asg.TeacherID, nil
		}
	}
	return "", course.ErrNoAssignment
}

func (repo *courseRepository) CreateAssignment(ctx context.Context, asg course.Assignment) (course.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	asg.ID = uuid.New().String()
	repo.db.assignments = append(repo.db.assignments, &asg)
	return asg, nil
}

func (repo *courseRepository) QueryAssignmentsByTeacher(ctx context.Context, teacherID string) ([]course.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	asgs := make([]course.Assignment, 0)
	for _, asg := range repo.db.assignments {
		if asg.TeacherID == teacherID {
			asgs = append(asgs, *asg)
		}
	}
	return asgs, nil
}
