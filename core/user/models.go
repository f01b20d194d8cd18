package user

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/maoni-app/maoni/core"
)

// Roles
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

var (
	AllRoles = []string{RoleStudent, RoleTeacher, RoleAdmin}

	rolePriorities = map[string]int{
		RoleAdmin:   30,
		RoleTeacher: 20,
		RoleStudent: 10,
	}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Admin", Value: RoleAdmin},
	}
)

func RolePriority(role string) int {
	return rolePriorities[role]
}

func ValidRole(role string) bool {
	_, ok := rolePriorities[role]
	return ok
}

// RoleHome maps a role to its portal home path.
func RoleHome(role string) string {
	switch role {
	case RoleTeacher:
		return "/teacher"
	case RoleAdmin:
		return "/admin"
	default:
		return "/student"
	}
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Metadata carries role-specific account attributes. It doubles as the
// role hint fallback when the Profile row is missing (accounts can exist
// before their profile during provisioning).
type Metadata struct {
	Department       string `json:"department,omitempty"`
	EmployeeID       string `json:"employee_id,omitempty"`
	EnrollmentNumber string `json:"enrollment_number,omitempty"`
	Year             int    `json:"year,omitempty"`
}

// User is an identity-provider account.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	Meta         Metadata  `json:"meta"`
	IsActive     bool      `json:"is_active"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u *User) IsTeacher() bool { return u.Role == RoleTeacher }
func (u *User) IsStudent() bool { return u.Role == RoleStudent }

// Profile is the 1:1 application mirror of an account: same ID,
// denormalized email/role/name plus the role-specific attributes.
// Kept in sync by explicit upsert in account-provisioning code paths.
type Profile struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	FullName         string    `json:"full_name"`
	Role             string    `json:"role"`
	Department       string    `json:"department,omitempty"`
	EmployeeID       string    `json:"employee_id,omitempty"`
	EnrollmentNumber string    `json:"enrollment_number,omitempty"`
	Year             int       `json:"year,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ProfileOf derives the mirror Profile for an account.
func ProfileOf(usr User) Profile {
	return Profile{
		ID:               usr.ID,
		Email:            usr.Email,
		FullName:         usr.Name,
		Role:             usr.Role,
		Department:       usr.Meta.Department,
		EmployeeID:       usr.Meta.EmployeeID,
		EnrollmentNumber: usr.Meta.EnrollmentNumber,
		Year:             usr.Meta.Year,
	}
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string   `json:"name" validate:"required"`
	Username        string   `json:"username" validate:"omitempty,min=6,alphanum_"`
	Email           string   `json:"email" validate:"omitempty,email"`
	Role            string   `json:"role" validate:"omitempty,role"`
	Meta            Metadata `json:"meta"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(svc Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	if nu.Role == "" {
		nu.Role = RoleStudent
	}

	if err := core.Validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(nu.Username, nu.Email)
}

// NewTeacher is the admin-supplied input to teacher provisioning.
// Username and password are generated, not supplied.
type NewTeacher struct {
	FullName   string `json:"fullName" validate:"required"`
	EmployeeID string `json:"employeeId" validate:"required"`
	Department string `json:"department" validate:"required"`
}

func (nt *NewTeacher) Validate() error {
	nt.FullName = core.CleanString(nt.FullName)
	nt.EmployeeID = core.CleanString(nt.EmployeeID)
	nt.Department = core.CleanString(nt.Department)
	return core.Validate.Struct(nt)
}

// TeacherCredentials is returned to the provisioning admin to relay to the
// teacher; the password is plaintext by design.
type TeacherCredentials struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name            string    `json:"name"`
	Username        string    `json:"username" validate:"omitempty,min=6,alphanum_"`
	Email           string    `json:"email" validate:"omitempty,email"`
	IsActive        *bool     `json:"is_active"`
	Role            string    `json:"role" validate:"omitempty,role"`
	Meta            *Metadata `json:"meta"`
	Password        string    `json:"password" validate:"omitempty"`
	PasswordConfirm string    `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(origUsr User, svc Service) error {
	if name := core.CleanString(uu.Name); name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}
	if uname := core.CleanString(uu.Username, true /* lower */); uname != "" {
		uu.Username = uname
	} else {
		uu.Username = origUsr.Username
	}
	if email := core.CleanString(uu.Email, true /* lower */); email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if err := core.Validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckUniqueness(uu.Username, uu.Email, origUsr)
}

type PasswordReset struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp PasswordReset) Validate() error { return core.Validate.Struct(rp) }

type QueryFilter struct {
	Search      string    `query:"search"`
	Role        string    `query:"role"`
	IsActive    *bool     `query:"is_active"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Role == "" && qf.IsActive == nil && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
