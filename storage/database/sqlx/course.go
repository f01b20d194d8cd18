package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/maoni-app/maoni/core/course"
)

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) *courseRepository {
	return &courseRepository{db: db}
}

type courseRow struct {
	ID         string    `db:"id"`
	Code       string    `db:"course_code"`
	Name       string    `db:"course_name"`
	Department string    `db:"department"`
	Year       int       `db:"year"`
	Semester   int       `db:"semester"`
	IsActive   bool      `db:"is_active"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

type assignmentRow struct {
	ID        string    `db:"id"`
	CourseID  string    `db:"course_id"`
	TeacherID string    `db:"teacher_id"`
	CreatedAt time.Time `db:"created_at"`
}

func (repo courseRepository) GetCourseByCode(ctx context.Context, code string) (course.Course, error) {
	var row courseRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM courses WHERE course_code = $1`, code); err != nil {
		if err == sql.ErrNoRows {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, errors.Wrap(err, "getting course by code")
	}
	return course.Course(row), nil
}

func (repo courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	crs.ID = uuid.New().String()
	const query = `
INSERT INTO courses (id, course_code, course_name, department, year, semester, is_active, created_at, updated_at)
VALUES (:id, :course_code, :course_name, :department, :year, :semester, :is_active, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, query, courseRow(crs)); err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return crs, nil
}

func (repo courseRepository) QueryCourses(ctx context.Context) ([]course.Course, error) {
	rows := []courseRow{}
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM courses ORDER BY course_code`); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, course.Course(row))
	}
	return courses, nil
}

func (repo courseRepository) GetAssignmentTeacher(ctx context.Context, courseID string) (string, error) {
	var teacherID string
	const query = `SELECT teacher_id FROM course_assignments WHERE course_id = $1 ORDER BY created_at LIMIT 1`
	if err := repo.db.GetContext(ctx, &teacherID, query, courseID); err != nil {
		if err == sql.ErrNoRows {
			return "", course.ErrNoAssignment
		}
		return "", errors.Wrap(err, "getting course assignment")
	}
	return teacherID, nil
}

func (repo courseRepository) CreateAssignment(ctx context.Context, asg course.Assignment) (course.Assignment, error) {
	asg.ID = uuid.New().String()
	const query = `
INSERT INTO course_assignments (id, course_id, teacher_id, created_at)
VALUES (:id, :course_id, :teacher_id, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, query, assignmentRow(asg)); err != nil {
		return course.Assignment{}, errors.Wrap(err, "inserting course assignment")
	}
	return asg, nil
}

func (repo courseRepository) QueryAssignmentsByTeacher(ctx context.Context, teacherID string) ([]course.Assignment, error) {
	rows := []assignmentRow{}
	const query = `SELECT * FROM course_assignments WHERE teacher_id = $1 ORDER BY created_at`
	if err := repo.db.SelectContext(ctx, &rows, query, teacherID); err != nil {
		return nil, errors.Wrap(err, "querying course assignments")
	}
	asgs := make([]course.Assignment, 0, len(rows))
	for _, row := range rows {
		asgs = append(asgs, course.Assignment(row))
	}
	return asgs, nil
}
