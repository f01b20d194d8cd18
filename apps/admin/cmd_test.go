package main

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/maoni-app/maoni/core/course"
	"github.com/maoni-app/maoni/core/user"
	dummydb "github.com/maoni-app/maoni/storage/database/dummy"
)

var (
	usrRepo user.Repository
	crsRepo course.Repository
)

func setup(t *testing.T) *commandLine {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed, %v", err)
	}
	usrRepo = dummydb.NewUserRepository(db)
	crsRepo = dummydb.NewCourseRepository(db)

	usrSvc := user.NewService(usrRepo, nil)
	crsSvc := course.NewService(crsRepo, usrRepo)

	return &commandLine{
		usrRepo: usrRepo,
		usrSvc:  usrSvc,
		crsSvc:  crsSvc,
	}
}

func createUser(t *testing.T, name, uname, email, pwd, role string) user.User {
	t.Helper()

	now := time.Now().UTC()
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(pwd); err != nil {
		t.Fatalf("SetPassword() failed, %v", err)
	}
	usr, err := usrRepo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed, %v", err)
	}
	if _, err := usrRepo.UpsertProfile(context.Background(), user.ProfileOf(usr)); err != nil {
		t.Fatalf("UpsertProfile() failed, %v", err)
	}
	return usr
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	migrateRunFunc = func(command string, db *sqlx.DB, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s requires a VERSION argument", command)
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create requires a NAME argument")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to requires a VERSION argument"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to requires a VERSION argument"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create requires a NAME argument"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "course", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			}
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "username but no email", args: []string{"adduser", "-username", "awe123"}, wantErr: errHelp},
		{name: "username and email but no password", args: []string{"adduser", "-username", "awe123", "-email", "awe@test.cd"}, wantErr: errHelp},
		{name: "create student", args: []string{"adduser", "-username", "awe123", "-email", "awe@test.cd"}, extra: extra{pwd: "mdr"}},
		{name: "create admin", args: []string{"adduser", "-username", "root66", "-email", "root@test.cd", "-admin"}, extra: extra{pwd: "mdr"}},
		{name: "update existing", args: []string{"adduser", "-username", "awe123", "-email", "awe@test.cd", "-admin"}, extra: extra{pwd: "lol"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err != nil {
				if err != tt.wantErr {
					t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}

			usr, err := usrRepo.GetUserByUsernameOrEmail(context.Background(), args[3])
			if err != nil {
				t.Fatalf("GetUserByUsernameOrEmail() failed, %v", err)
			}
			wantAdmin := false
			for _, arg := range args {
				if arg == "-admin" {
					wantAdmin = true
				}
			}
			if wantAdmin && !usr.IsAdmin() {
				t.Error("expected an admin user")
			}
			if extra, ok := tt.extra.(extra); ok {
				if err := usr.CheckPassword(extra.pwd); err != nil {
					t.Error("failed to set password")
				}
			}
		})
	}
}

func Test_commandLine_addTeacher(t *testing.T) {
	cli := setup(t)

	tests := []cliTest{
		{name: "no args", args: []string{"addteacher"}, wantErr: errHelp},
		{name: "missing employee-id", args: []string{"addteacher", "-name", "Wangari Maathai", "-department", "CS"}, wantErr: errHelp},
		{name: "provision", args: []string{"addteacher", "-name", "Wangari Maathai", "-employee-id", "EMP-1", "-department", "CS"}},
		{name: "collision gets a suffix", args: []string{"addteacher", "-name", "Wangari Muta", "-employee-id", "EMP-2", "-department", "CS"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err != nil {
				if err != tt.wantErr {
					t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
		})
	}

	// first provision claims the bare first name, second gets a suffix
	if _, err := usrRepo.GetUserByUsernameOrEmail(context.Background(), "wangari"); err != nil {
		t.Errorf("GetUserByUsernameOrEmail(wangari) failed, %v", err)
	}
	usr, err := usrRepo.GetUserByUsernameOrEmail(context.Background(), "wangari1")
	if err != nil {
		t.Fatalf("GetUserByUsernameOrEmail(wangari1) failed, %v", err)
	}
	if !usr.IsTeacher() {
		t.Errorf("expected a teacher, got role %q", usr.Role)
	}
}

func Test_commandLine_assignCourse(t *testing.T) {
	cli := setup(t)

	teacher := createUser(t, "Alan Turing", "turing1", "turing@test.cd", "mdr", user.RoleTeacher)
	student := createUser(t, "Ada Student", "adastud", "ada@test.cd", "mdr", user.RoleStudent)

	tests := []cliTest{
		{name: "no args", args: []string{"assigncourse"}, wantErr: errHelp},
		{name: "missing teacher", args: []string{"assigncourse", "-course-code", "CS101"}, wantErr: errHelp},
		{name: "teacher not found", args: []string{"assigncourse", "-course-code", "CS101", "-teacher", "lol"}, wantErr: user.ErrNotFound},
		{name: "not a teacher", args: []string{"assigncourse", "-course-code", "CS101", "-teacher", student.Username}, wantErrStr: fmt.Sprintf("user %q is not a teacher", student.Username)},
		{name: "assign by username", args: []string{"assigncourse", "-course-code", "CS101", "-teacher", teacher.Username}},
		{name: "assign by email", args: []string{"assigncourse", "-course-code", "CS102", "-teacher", teacher.Email}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
				return
			}
		})
	}

	crs, err := crsRepo.GetCourseByCode(context.Background(), "CS101")
	if err != nil {
		t.Fatalf("GetCourseByCode() failed, %v", err)
	}
	teacherID, err := crsRepo.GetAssignmentTeacher(context.Background(), crs.ID)
	if err != nil {
		t.Fatalf("GetAssignmentTeacher() failed, %v", err)
	}
	if teacherID != teacher.ID {
		t.Errorf("assignment teacher = %s, want %s", teacherID, teacher.ID)
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr := createUser(t, "User", "awerty", "awe@test.cd", "mdr", user.RoleStudent)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: extra{pwd: "lol"}},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, extra: extra{pwd: "lmao"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				refreshedUsr, err := usrRepo.GetUserByID(context.Background(), usr.ID)
				if err != nil {
					t.Fatalf("GetUserByID() failed, %v", err)
				}
				if bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash) {
					t.Error("failed to update new password")
				}
			} else if err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
