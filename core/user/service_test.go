package user

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maoni-app/maoni/core"
)

// ---- fakes ----

type fakeUserRepo struct {
	seq      int
	users    []User
	profiles map[string]Profile
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{profiles: make(map[string]Profile)}
}

func (r *fakeUserRepo) nextID() string {
	r.seq++
	return "id-" + strconv.Itoa(r.seq)
}

func (r *fakeUserRepo) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...User) error {
	excluded := func(usr User) bool {
		for _, ex := range excludedUsers {
			if ex.ID == usr.ID {
				return true
			}
		}
		return false
	}
	for _, usr := range r.users {
		if excluded(usr) {
			continue
		}
		if strings.EqualFold(usr.Username, username) {
			return ErrUsernameExists
		}
		if strings.EqualFold(usr.Email, email) {
			return ErrEmailExists
		}
	}
	return nil
}

func (r *fakeUserRepo) CreateUser(ctx context.Context, usr User) (User, error) {
	usr.ID = r.nextID()
	r.users = append(r.users, usr)
	return usr, nil
}

func (r *fakeUserRepo) GetUserByID(ctx context.Context, id string) (User, error) {
	for _, usr := range r.users {
		if usr.ID == id {
			return usr, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *fakeUserRepo) GetUserByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	for _, usr := range r.users {
		if strings.EqualFold(usr.Username, uname) || strings.EqualFold(usr.Email, uname) {
			return usr, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *fakeUserRepo) FilterUsers(ctx context.Context, filter QueryFilter) ([]User, error) {
	return r.users, nil
}

func (r *fakeUserRepo) UpdateUser(ctx context.Context, usr User) (User, error) {
	for i, existing := range r.users {
		if existing.ID == usr.ID {
			r.users[i] = usr
			return usr, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *fakeUserRepo) DeleteUsersByID(ctx context.Context, ids ...string) error {
	kept := r.users[:0]
	for _, usr := range r.users {
		keep := true
		for _, id := range ids {
			if usr.ID == id {
				keep = false
			}
		}
		if keep {
			kept = append(kept, usr)
		}
	}
	r.users = kept
	return nil
}

func (r *fakeUserRepo) UpsertProfile(ctx context.Context, prof Profile) (Profile, error) {
	r.profiles[prof.ID] = prof
	return prof, nil
}

func (r *fakeUserRepo) GetProfileByID(ctx context.Context, id string) (Profile, error) {
	if prof, ok := r.profiles[id]; ok {
		return prof, nil
	}
	return Profile{}, ErrNotFound
}

func (r *fakeUserRepo) FindTeacherByName(ctx context.Context, fullName string) (Profile, error) {
	for _, prof := range r.profiles {
		if prof.Role == RoleTeacher && strings.EqualFold(prof.FullName, fullName) {
			return prof, nil
		}
	}
	return Profile{}, ErrNotFound
}

var _ Repository = (*fakeUserRepo)(nil)

func seedUser(t *testing.T, repo *fakeUserRepo, uname, email, role string) User {
	t.Helper()
	usr, err := repo.CreateUser(context.Background(), User{
		Name:     uname,
		Username: uname,
		Email:    email,
		Role:     role,
		IsActive: true,
	})
	require.NoError(t, err)
	return usr
}

// ---- tests ----

func TestProvisionTeacherGeneratesCredentials(t *testing.T) {
	ctx := context.Background()
	repo := newFakeUserRepo()
	svc := NewService(repo, nil)

	creds, err := svc.ProvisionTeacher(ctx, NewTeacher{
		FullName:   "Santiago Ramon",
		EmployeeID: "EMP-7",
		Department: "Biology",
	})
	require.NoError(t, err)

	assert.Equal(t, "santiago", creds.Username)
	assert.Equal(t, "santiago@"+core.Conf.Provision.TeacherEmailDomain, creds.Email)
	assert.NotEmpty(t, creds.Password)

	usr, err := repo.GetUserByID(ctx, creds.UserID)
	require.NoError(t, err)
	assert.Equal(t, RoleTeacher, usr.Role)
	assert.Equal(t, "Santiago Ramon", usr.Name)
	assert.True(t, usr.IsActive)
	assert.NoError(t, usr.CheckPassword(creds.Password))

	prof, err := repo.GetProfileByID(ctx, creds.UserID)
	require.NoError(t, err)
	assert.Equal(t, RoleTeacher, prof.Role)
	assert.Equal(t, "EMP-7", prof.EmployeeID)
	assert.Equal(t, "Biology", prof.Department)
}

func TestProvisionTeacherStripsNonAlphanumerics(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewService(repo, nil)

	creds, err := svc.ProvisionTeacher(context.Background(), NewTeacher{
		FullName:   "Jean-Luc Picard",
		EmployeeID: "EMP-1",
		Department: "Astronomy",
	})
	require.NoError(t, err)
	assert.Equal(t, "jeanluc", creds.Username)
}

func TestProvisionTeacherShortFirstName(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewService(repo, nil)

	_, err := svc.ProvisionTeacher(context.Background(), NewTeacher{
		FullName:   "Al Khwarizmi",
		EmployeeID: "EMP-1",
		Department: "Mathematics",
	})

	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Len(t, vErr.Fields, 1)
	assert.Equal(t, "fullName", vErr.Fields[0].Field)
}

func TestProvisionTeacherCollisionSuffix(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewService(repo, nil)

	domain := core.Conf.Provision.TeacherEmailDomain
	seedUser(t, repo, "santiago", "santiago@"+domain, RoleTeacher)
	seedUser(t, repo, "santiago1", "santiago1@"+domain, RoleTeacher)

	creds, err := svc.ProvisionTeacher(context.Background(), NewTeacher{
		FullName:   "Santiago Cajal",
		EmployeeID: "EMP-2",
		Department: "Biology",
	})
	require.NoError(t, err)
	assert.Equal(t, "santiago2", creds.Username)
	assert.Equal(t, "santiago2@"+domain, creds.Email)
}

func TestProvisionTeacherRetriesExhausted(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewService(repo, nil)

	domain := core.Conf.Provision.TeacherEmailDomain
	seedUser(t, repo, "santiago", "santiago@"+domain, RoleTeacher)
	for i := 1; i < provisionAttempts; i++ {
		uname := "santiago" + strconv.Itoa(i)
		seedUser(t, repo, uname, uname+"@"+domain, RoleTeacher)
	}

	_, err := svc.ProvisionTeacher(context.Background(), NewTeacher{
		FullName:   "Santiago Nasar",
		EmployeeID: "EMP-3",
		Department: "Literature",
	})
	assert.Equal(t, core.ErrConflict, errors.Cause(err))
}

func TestProvisionTeacherDefaultPassword(t *testing.T) {
	orig := core.Conf.Provision.DefaultTeacherPassword
	core.Conf.Provision.DefaultTeacherPassword = "changeme123"
	defer func() { core.Conf.Provision.DefaultTeacherPassword = orig }()

	repo := newFakeUserRepo()
	svc := NewService(repo, nil)

	creds, err := svc.ProvisionTeacher(context.Background(), NewTeacher{
		FullName:   "Rosalind Franklin",
		EmployeeID: "EMP-4",
		Department: "Chemistry",
	})
	require.NoError(t, err)
	assert.Equal(t, "changeme123", creds.Password)
}

func TestResolveRole(t *testing.T) {
	ctx := context.Background()
	repo := newFakeUserRepo()
	svc := NewService(repo, nil)

	usr := seedUser(t, repo, "teach1", "teach1@test.cd", RoleStudent)
	_, err := repo.UpsertProfile(ctx, Profile{ID: usr.ID, Role: RoleTeacher})
	require.NoError(t, err)

	noProfile := seedUser(t, repo, "newbie1", "newbie1@test.cd", RoleStudent)

	tests := []struct {
		name string
		id   string
		hint string
		want string
	}{
		{name: "profile role wins over hint", id: usr.ID, hint: RoleAdmin, want: RoleTeacher},
		{name: "missing profile falls back to valid hint", id: noProfile.ID, hint: RoleStudent, want: RoleStudent},
		{name: "missing profile and bogus hint", id: noProfile.ID, hint: "superuser", want: ""},
		{name: "unknown account and no hint", id: "nope", hint: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, svc.ResolveRole(ctx, tt.id, tt.hint))
		})
	}
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	repo := newFakeUserRepo()
	svc := NewService(repo, nil)

	active := User{Name: "Active", Username: "active1", Email: "active@test.cd", Role: RoleStudent, IsActive: true}
	require.NoError(t, active.SetPassword("s3cret"))
	active, err := repo.CreateUser(ctx, active)
	require.NoError(t, err)

	inactive := User{Name: "Inactive", Username: "inactive1", Email: "inactive@test.cd", Role: RoleStudent}
	require.NoError(t, inactive.SetPassword("s3cret"))
	_, err = repo.CreateUser(ctx, inactive)
	require.NoError(t, err)

	tests := []struct {
		name    string
		uname   string
		pwd     string
		wantErr error
	}{
		{name: "by username", uname: "active1", pwd: "s3cret"},
		{name: "by email", uname: "active@test.cd", pwd: "s3cret"},
		{name: "case-insensitive", uname: "ACTIVE1", pwd: "s3cret"},
		{name: "wrong password", uname: "active1", pwd: "nope", wantErr: ErrNotFound},
		{name: "unknown user", uname: "ghost", pwd: "s3cret", wantErr: ErrNotFound},
		{name: "deactivated account", uname: "inactive1", pwd: "s3cret", wantErr: core.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usr, err := svc.Authenticate(ctx, tt.uname, tt.pwd)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, active.ID, usr.ID)
			assert.False(t, usr.LastLogin.IsZero())
		})
	}
}
