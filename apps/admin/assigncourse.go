package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/maoni-app/maoni/core/course"
)

// assignCourse links a teacher to a course, creating the course with
// placeholder metadata when it does not exist yet.
func (cli *commandLine) assignCourse(courseCode, teacherUname string) error {
	ctx := context.Background()

	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, teacherUname)
	if err != nil {
		return err
	}
	if !usr.IsTeacher() {
		return errors.Errorf("user %q is not a teacher", usr.Username)
	}

	crs, err := cli.crsSvc.EnsureByCode(ctx, courseCode, "")
	if err != nil {
		return err
	}

	_, err = cli.crsSvc.Assign(ctx, course.NewAssignment{CourseID: crs.ID, TeacherID: usr.ID})
	return err
}
