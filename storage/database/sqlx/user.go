package sqlxrepos

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/maoni-app/maoni/core/user"
)

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

type userRow struct {
	ID               string    `db:"id"`
	Name             string    `db:"name"`
	Username         string    `db:"username"`
	Email            string    `db:"email"`
	Role             string    `db:"role"`
	Department       string    `db:"department"`
	EmployeeID       string    `db:"employee_id"`
	EnrollmentNumber string    `db:"enrollment_number"`
	Year             int       `db:"year"`
	IsActive         bool      `db:"is_active"`
	PasswordHash     []byte    `db:"password_hash"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
	LastLogin        null.Time `db:"last_login"`
}

func (r userRow) user() user.User {
	return user.User{
		ID:       r.ID,
		Name:     r.Name,
		Username: r.Username,
		Email:    r.Email,
		Role:     r.Role,
		Meta: user.Metadata{
			Department:       r.Department,
			EmployeeID:       r.EmployeeID,
			EnrollmentNumber: r.EnrollmentNumber,
			Year:             r.Year,
		},
		IsActive:     r.IsActive,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		LastLogin:    r.LastLogin.Time,
	}
}

func rowOf(usr user.User) userRow {
	return userRow{
		ID:               usr.ID,
		Name:             usr.Name,
		Username:         usr.Username,
		Email:            usr.Email,
		Role:             usr.Role,
		Department:       usr.Meta.Department,
		EmployeeID:       usr.Meta.EmployeeID,
		EnrollmentNumber: usr.Meta.EnrollmentNumber,
		Year:             usr.Meta.Year,
		IsActive:         usr.IsActive,
		PasswordHash:     usr.PasswordHash,
		CreatedAt:        usr.CreatedAt.UTC(),
		UpdatedAt:        usr.UpdatedAt.UTC(),
		LastLogin:        null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	query := `SELECT username, email FROM users WHERE (lower(username) = lower(?) OR lower(email) = lower(?))`
	args := []interface{}{username, email}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		var err error
		query, args, err = sqlx.In(query+` AND id NOT IN (?)`, username, email, ids)
		if err != nil {
			return errors.Wrap(err, "building uniqueness query")
		}
	}
	query = repo.db.Rebind(query)

	rows := []userRow{}
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, row := range rows {
		if strings.EqualFold(row.Username, username) {
			return user.ErrUsernameExists
		}
		if strings.EqualFold(row.Email, email) {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	row := rowOf(usr)
	const query = `
INSERT INTO users (id, name, username, email, role, department, employee_id, enrollment_number, year, is_active, password_hash, created_at, updated_at, last_login)
VALUES (:id, :name, :username, :email, :role, :department, :employee_id, :enrollment_number, :year, :is_active, :password_hash, :created_at, :updated_at, :last_login)`
	if _, err := repo.db.NamedExecContext(ctx, query, row); err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return row.user(), nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	var row userRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM users WHERE id = $1`, id); err != nil {
		return user.User{}, trapNoRowsErr(err, "getting user by id")
	}
	return row.user(), nil
}

func (repo userRepository) GetUserByUsernameOrEmail(ctx context.Context, uname string) (user.User, error) {
	var row userRow
	const query = `SELECT * FROM users WHERE lower(username) = lower($1) OR lower(email) = lower($1) LIMIT 1`
	if err := repo.db.GetContext(ctx, &row, query, uname); err != nil {
		return user.User{}, trapNoRowsErr(err, "getting user by username or email")
	}
	return row.user(), nil
}

func (repo userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	query := `SELECT * FROM users WHERE 1=1`
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		query += ` AND (name ILIKE ` + p + ` OR username ILIKE ` + p + ` OR email ILIKE ` + p + `)`
	}
	if filter.Role != "" {
		query += ` AND role = ` + arg(filter.Role)
	}
	if filter.IsActive != nil {
		query += ` AND is_active = ` + arg(*filter.IsActive)
	}
	if !filter.CreatedFrom.IsZero() {
		query += ` AND created_at >= ` + arg(filter.CreatedFrom.UTC())
	}
	if !filter.CreatedTo.IsZero() {
		query += ` AND created_at <= ` + arg(filter.CreatedTo.UTC())
	}
	query += ` ORDER BY created_at DESC`

	rows := []userRow{}
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.user())
	}
	return users, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.UpdatedAt = time.Now().UTC()
	row := rowOf(usr)
	res, err := repo.db.NamedExecContext(ctx, updateUserQuery(row), row)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return row.user(), nil
}

// updateUserQuery leaves password_hash untouched when no new hash was
// supplied; a profile update must never clear a stored credential.
func updateUserQuery(row userRow) string {
	query := `
UPDATE users
SET name = :name, username = :username, email = :email, role = :role,
    department = :department, employee_id = :employee_id, enrollment_number = :enrollment_number, year = :year,
    is_active = :is_active, updated_at = :updated_at, last_login = :last_login`
	if len(row.PasswordHash) > 0 {
		query += `, password_hash = :password_hash`
	}
	return query + `
WHERE id = :id`
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err := repo.db.ExecContext(ctx, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}

type profileRow struct {
	ID               string    `db:"id"`
	Email            string    `db:"email"`
	FullName         string    `db:"full_name"`
	Role             string    `db:"role"`
	Department       string    `db:"department"`
	EmployeeID       string    `db:"employee_id"`
	EnrollmentNumber string    `db:"enrollment_number"`
	Year             int       `db:"year"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func (r profileRow) profile() user.Profile {
	return user.Profile(r)
}

func (repo userRepository) UpsertProfile(ctx context.Context, prof user.Profile) (user.Profile, error) {
	now := time.Now().UTC()
	if prof.CreatedAt.IsZero() {
		prof.CreatedAt = now
	}
	prof.UpdatedAt = now
	const query = `
INSERT INTO profiles (id, email, full_name, role, department, employee_id, enrollment_number, year, created_at, updated_at)
VALUES (:id, :email, :full_name, :role, :department, :employee_id, :enrollment_number, :year, :created_at, :updated_at)
ON CONFLICT (id)
DO UPDATE SET email = EXCLUDED.email, full_name = EXCLUDED.full_name, role = EXCLUDED.role,
    department = EXCLUDED.department, employee_id = EXCLUDED.employee_id,
    enrollment_number = EXCLUDED.enrollment_number, year = EXCLUDED.year, updated_at = EXCLUDED.updated_at`
	if _, err := repo.db.NamedExecContext(ctx, query, profileRow(prof)); err != nil {
		return user.Profile{}, errors.Wrap(err, "upserting profile")
	}
	return prof, nil
}

func (repo userRepository) GetProfileByID(ctx context.Context, id string) (user.Profile, error) {
	var row profileRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM profiles WHERE id = $1`, id); err != nil {
		return user.Profile{}, trapNoRowsErr(err, "getting profile by id")
	}
	return row.profile(), nil
}

func (repo userRepository) FindTeacherByName(ctx context.Context, fullName string) (user.Profile, error) {
	var row profileRow
	const query = `
SELECT * FROM profiles
WHERE role = $1 AND lower(full_name) = lower($2)
ORDER BY created_at
LIMIT 1`
	if err := repo.db.GetContext(ctx, &row, query, user.RoleTeacher, fullName); err != nil {
		return user.Profile{}, trapNoRowsErr(err, "finding teacher by name")
	}
	return row.profile(), nil
}
