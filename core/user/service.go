package user

import (
	"context"
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/maoni-app/maoni/core"
)

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")

	usernameMinLen    = 6
	provisionAttempts = 5
	nonAlphaNumRegex  = regexp.MustCompile(`[^a-z0-9]+`)
)

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		// FilterUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		FilterUsers(ctx context.Context, filter QueryFilter) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUsersByID(ctx context.Context, ids ...string) error

		UpsertProfile(ctx context.Context, prof Profile) (Profile, error)
		GetProfileByID(ctx context.Context, id string) (Profile, error)
		// FindTeacherByName does a case-insensitive full-name match on teacher
		// profiles; first match wins.
		FindTeacherByName(ctx context.Context, fullName string) (Profile, error)
	}

	Service interface {
		CheckUniqueness(uname, email string, exclUsers ...User) error
		Create(ctx context.Context, nu NewUser) (User, error)
		Authenticate(ctx context.Context, uname, pwd string) (User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		GetProfile(ctx context.Context, id string) (Profile, error)
		// ResolveRole returns the authoritative role for an account: the Profile
		// row's role when present, otherwise the provided hint (e.g. from session
		// claims) when it is a known role, otherwise "".
		ResolveRole(ctx context.Context, id, hint string) string
		Filter(ctx context.Context, filter QueryFilter) ([]User, error)
		Update(ctx context.Context, id string, uu UpdateUser) (User, error)
		Delete(ctx context.Context, ids ...string) error
		ProvisionTeacher(ctx context.Context, nt NewTeacher) (TeacherCredentials, error)
		RequestPasswordReset(ctx context.Context, email string) error
		ConfirmPasswordReset(ctx context.Context, rp PasswordReset) error
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService) Service {
	return &service{repo: repo, mailSvc: mailSvc}
}

func (svc *service) CheckUniqueness(uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(context.Background(), uname, email, exclUsers...); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		Role:      nu.Role,
		Meta:      nu.Meta,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, err
	}
	// mirror the account; the account row is authoritative if this fails,
	// role resolution falls back to the account's role hint.
	if _, err := svc.repo.UpsertProfile(ctx, ProfileOf(usr)); err != nil {
		return User{}, errors.Wrap(err, "upserting profile")
	}
	return usr, nil
}

func (svc *service) Authenticate(ctx context.Context, uname, pwd string) (User, error) {
	usr, err := svc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return User{}, err
	}
	if err := usr.CheckPassword(pwd); err != nil {
		return User{}, ErrNotFound
	}
	if !usr.IsActive {
		return User{}, core.ErrForbidden
	}

	usr.LastLogin = time.Now().UTC()
	if usr, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return User{}, errors.Wrap(err, "setting lastLogin")
	}
	return usr, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUserByUsernameOrEmail(ctx, core.CleanString(uname, true /* lower */))
}

func (svc *service) GetProfile(ctx context.Context, id string) (Profile, error) {
	return svc.repo.GetProfileByID(ctx, id)
}

func (svc *service) ResolveRole(ctx context.Context, id, hint string) string {
	if prof, err := svc.repo.GetProfileByID(ctx, id); err == nil && ValidRole(prof.Role) {
		return prof.Role
	}
	// tolerate provisioning races where the account exists before its profile
	if ValidRole(hint) {
		return hint
	}
	return ""
}

func (svc *service) Filter(ctx context.Context, filter QueryFilter) ([]User, error) {
	filter.Clean()
	return svc.repo.FilterUsers(ctx, filter)
}

func (svc *service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr := User{
		ID:        id,
		Name:      uu.Name,
		Username:  uu.Username,
		Email:     uu.Email,
		Role:      uu.Role,
		UpdatedAt: time.Now().UTC(),
	}
	if uu.Meta != nil {
		usr.Meta = *uu.Meta
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	} else {
		usr.IsActive = true
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, err
		}
	}
	usr, err := svc.repo.UpdateUser(ctx, usr)
	if err != nil {
		return User{}, err
	}
	if _, err := svc.repo.UpsertProfile(ctx, ProfileOf(usr)); err != nil {
		return User{}, errors.Wrap(err, "upserting profile")
	}
	return usr, nil
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteUsersByID(ctx, ids...)
}

// ProvisionTeacher creates a teacher Account + Profile pair with a generated
// username and password. The username is the lower-cased first name stripped
// of non-alphanumerics; on collision a numeric suffix is appended and the
// attempt retried, up to 5 attempts.
func (svc *service) ProvisionTeacher(ctx context.Context, nt NewTeacher) (TeacherCredentials, error) {
	first := nt.FullName
	if i := strings.IndexAny(first, " \t"); i > 0 {
		first = first[:i]
	}
	base := nonAlphaNumRegex.ReplaceAllString(strings.ToLower(first), "")
	if len(base) < usernameMinLen {
		return TeacherCredentials{}, core.NewValidationError(
			errors.Errorf("first name too short to derive a username (min %d characters)", usernameMinLen),
			core.FieldError{Field: "fullName", Error: "first name too short to derive a username"},
		)
	}

	var uname, email string
	for i := 0; i < provisionAttempts; i++ {
		candidate := base
		if i > 0 {
			candidate += strconv.Itoa(i)
		}
		candidateEmail := candidate + "@" + core.Conf.Provision.TeacherEmailDomain

		err := svc.repo.CheckUsernameUniqueness(ctx, candidate, candidateEmail)
		if err == nil {
			uname, email = candidate, candidateEmail
			break
		}
		if cause := errors.Cause(err); cause != ErrUsernameExists && cause != ErrEmailExists {
			return TeacherCredentials{}, err
		}
	}
	if uname == "" {
		return TeacherCredentials{}, errors.Wrapf(core.ErrConflict,
			"could not find a free username for %q after %d attempts", base, provisionAttempts)
	}

	pwd := core.Conf.Provision.DefaultTeacherPassword
	if pwd == "" {
		pwd = core.RandomString(12)
	}

	now := time.Now().UTC()
	usr := User{
		Name:     nt.FullName,
		Username: uname,
		Email:    email,
		Role:     RoleTeacher,
		Meta: Metadata{
			Department: nt.Department,
			EmployeeID: nt.EmployeeID,
		},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(pwd); err != nil {
		return TeacherCredentials{}, err
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return TeacherCredentials{}, err
	}
	if _, err := svc.repo.UpsertProfile(ctx, ProfileOf(usr)); err != nil {
		return TeacherCredentials{}, errors.Wrap(err, "upserting profile")
	}

	creds := TeacherCredentials{
		UserID:   usr.ID,
		Username: usr.Username,
		Email:    usr.Email,
		Password: pwd,
	}
	svc.sendTeacherCredentialsMail(usr, creds)
	return creds, nil
}

func (svc *service) sendTeacherCredentialsMail(usr User, creds TeacherCredentials) {
	if svc.mailSvc == nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Welcome to " + core.Conf.AppName,
		TemplateName: "teacher-credentials",
		TemplateData: creds,
	})
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByUsernameOrEmail(ctx, email)
	if err != nil {
		return err
	}
	svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *service) sendPasswordResetMail(usr User) {
	if svc.mailSvc == nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password-reset",
		TemplateData: struct {
			UID   string
			Token string
		}{EncodeUID(usr), makeToken(usr)},
	})
}

func (svc *service) ConfirmPasswordReset(ctx context.Context, rp PasswordReset) error {
	uid, err := decodeUID(rp.UID)
	if err != nil {
		return core.NewValidationError(errInvalidToken)
	}
	usr, err := svc.repo.GetUserByID(ctx, uid)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return core.NewValidationError(errInvalidToken)
		}
		return err
	}
	if err := verifyToken(usr, rp.Token); err != nil {
		return core.NewValidationError(err)
	}
	if err := usr.SetPassword(rp.Password); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()
	if _, err := svc.repo.UpdateUser(ctx, usr); err != nil {
		return errors.Wrap(err, fmt.Sprintf("resetting password for user %s", usr.ID))
	}
	return nil
}
