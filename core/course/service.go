package course

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/maoni-app/maoni/core"
	"github.com/maoni-app/maoni/core/user"
)

var (
	// errors
	ErrNotFound     = errors.New("course not found")
	ErrCodeExists   = errors.New("a course with this code already exists")
	ErrNoAssignment = errors.New("no teacher assigned to course")
)

type (
	Repository interface {
		GetCourseByCode(ctx context.Context, code string) (Course, error)
		CreateCourse(ctx context.Context, crs Course) (Course, error)
		QueryCourses(ctx context.Context) ([]Course, error)
		// GetAssignmentTeacher returns the teacher of the oldest Assignment row
		// for the course. When multiple assignments exist the choice is
		// first-match; tie-break intent is deliberately left unresolved.
		GetAssignmentTeacher(ctx context.Context, courseID string) (string, error)
		CreateAssignment(ctx context.Context, asg Assignment) (Assignment, error)
		QueryAssignmentsByTeacher(ctx context.Context, teacherID string) ([]Assignment, error)
	}

	// TeacherFinder resolves teacher profiles by display name.
	TeacherFinder interface {
		FindTeacherByName(ctx context.Context, fullName string) (user.Profile, error)
	}

	Service struct {
		repo     Repository
		teachers TeacherFinder
	}
)

func NewService(repo Repository, teachers TeacherFinder) *Service {
	return &Service{repo: repo, teachers: teachers}
}

func (svc *Service) GetByCode(ctx context.Context, code string) (Course, error) {
	return svc.repo.GetCourseByCode(ctx, core.CleanString(code))
}

// EnsureByCode resolves the Course with the given code, creating it with
// placeholder metadata when absent. Re-running with the same code converges
// on the same row.
func (svc *Service) EnsureByCode(ctx context.Context, code, name string) (Course, error) {
	code = core.CleanString(code)
	crs, err := svc.repo.GetCourseByCode(ctx, code)
	if err == nil {
		return crs, nil
	}
	if errors.Cause(err) != ErrNotFound {
		return Course{}, errors.Wrap(err, "looking up course")
	}

	name = core.CleanString(name)
	if name == "" {
		name = code
	}
	now := time.Now().UTC()
	crs = Course{
		Code:       code,
		Name:       name,
		Department: PlaceholderDepartment,
		Year:       PlaceholderYear,
		Semester:   PlaceholderSemester,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	crs, err = svc.repo.CreateCourse(ctx, crs)
	if err != nil {
		return Course{}, errors.Wrap(err, "creating course")
	}
	return crs, nil
}

// ResolveTeacher finds the teacher a feedback response should be attributed
// to: the course's assignment when one exists, otherwise a case-insensitive
// full-name match on teacher profiles when an instructor name was supplied.
// Returns "" when neither yields a teacher; the response is then recorded
// unattributed.
func (svc *Service) ResolveTeacher(ctx context.Context, courseID, instructorName string) (string, error) {
	teacherID, err := svc.repo.GetAssignmentTeacher(ctx, courseID)
	if err == nil {
		return teacherID, nil
	}
	if errors.Cause(err) != ErrNoAssignment {
		return "", errors.Wrap(err, "looking up course assignment")
	}

	if name := core.CleanString(instructorName); name != "" {
		prof, err := svc.teachers.FindTeacherByName(ctx, name)
		if err == nil {
			return prof.ID, nil
		}
		if errors.Cause(err) != user.ErrNotFound {
			return "", errors.Wrap(err, "matching instructor name")
		}
	}
	return "", nil
}

func (svc *Service) Create(ctx context.Context, nc NewCourse) (Course, error) {
	nc.Code = core.CleanString(nc.Code)
	nc.Name = core.CleanString(nc.Name)
	if err := core.Validate.Struct(nc); err != nil {
		return Course{}, err
	}
	if _, err := svc.repo.GetCourseByCode(ctx, nc.Code); err == nil {
		return Course{}, core.NewValidationError(ErrCodeExists, core.FieldError{Field: "course_code", Error: ErrCodeExists.Error()})
	} else if errors.Cause(err) != ErrNotFound {
		return Course{}, err
	}

	if nc.Department == "" {
		nc.Department = PlaceholderDepartment
	}
	if nc.Year == 0 {
		nc.Year = PlaceholderYear
	}
	if nc.Semester == 0 {
		nc.Semester = PlaceholderSemester
	}
	now := time.Now().UTC()
	return svc.repo.CreateCourse(ctx, Course{
		Code:       nc.Code,
		Name:       nc.Name,
		Department: nc.Department,
		Year:       nc.Year,
		Semester:   nc.Semester,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

func (svc *Service) QueryAll(ctx context.Context) ([]Course, error) {
	return svc.repo.QueryCourses(ctx)
}

func (svc *Service) Assign(ctx context.Context, na NewAssignment) (Assignment, error) {
	if err := core.Validate.Struct(na); err != nil {
		return Assignment{}, err
	}
	return svc.repo.CreateAssignment(ctx, Assignment{
		CourseID:  na.CourseID,
		TeacherID: na.TeacherID,
		CreatedAt: time.Now().UTC(),
	})
}

func (svc *Service) AssignedCourseIDs(ctx context.Context, teacherID string) ([]string, error) {
	asgs, err := svc.repo.QueryAssignmentsByTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(asgs))
	seen := make(map[string]struct{}, len(asgs))
	for _, asg := range asgs {
		if _, ok := seen[asg.CourseID]; ok {
			continue
		}
		seen[asg.CourseID] = struct{}{}
		ids = append(ids, asg.CourseID)
	}
	return ids, nil
}
