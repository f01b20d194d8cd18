package dummydb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/maoni-app/maoni/core/user"
)

type userRepository struct {
	users    *userTable
	profiles *profileTable
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{users: db.user, profiles: db.profile}
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.users.table))
	for _, u := range repo.users.table {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	repo.users.RLock()
	defer repo.users.RUnlock()

	excluded := make(map[string]struct{}, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded[u.ID] = struct{}{}
	}

	for _, usr := range repo.query() {
		if _, skip := excluded[usr.ID]; skip {
			continue
		}
		if strings.EqualFold(usr.Username, username) {
			return user.ErrUsernameExists
		}
		if strings.EqualFold(usr.Email, email) {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	repo.users.Lock()
	defer repo.users.Unlock()

	usr.ID = uuid.New().String()
	repo.users.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	repo.users.RLock()
	defer repo.users.RUnlock()

	if usr, ok := repo.users.table[id]; ok {
		return *usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByUsernameOrEmail(ctx context.Context, uname string) (user.User, error) {
	repo.users.RLock()
	defer repo.users.RUnlock()

	for _, usr := range repo.query() {
		if strings.EqualFold(usr.Username, uname) || strings.EqualFold(usr.Email, uname) {
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	repo.users.RLock()
	defer repo.users.RUnlock()

	match := func(usr user.User) bool {
		if filter.Search != "" {
			s := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(usr.Name), s) &&
				!strings.Contains(strings.ToLower(usr.Username), s) &&
				!strings.Contains(strings.ToLower(usr.Email), s) {
				return false
			}
		}
		if filter.Role != "" && usr.Role != filter.Role {
			return false
		}
		if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
			return false
		}
		if !filter.CreatedFrom.IsZero() && usr.CreatedAt.Before(filter.CreatedFrom) {
			return false
		}
		if !filter.CreatedTo.IsZero() && usr.CreatedAt.After(filter.CreatedTo) {
			return false
		}
		return true
	}

	users := make([]user.User, 0)
	for _, usr := range repo.query() {
		if match(usr) {
			users = append(users, usr)
		}
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	repo.users.Lock()
	defer repo.users.Unlock()

	orig, ok := repo.users.table[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	usr.CreatedAt = orig.CreatedAt
	if usr.PasswordHash == nil {
		usr.PasswordHash = orig.PasswordHash
	}
	usr.UpdatedAt = time.Now().UTC()
	repo.users.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	repo.users.Lock()
	defer repo.users.Unlock()
	repo.profiles.Lock()
	defer repo.profiles.Unlock()

	for _, id := range ids {
		delete(repo.users.table, id)
		delete(repo.profiles.table, id)
	}
	return nil
}

func (repo *userRepository) UpsertProfile(ctx context.Context, prof user.Profile) (user.Profile, error) {
	repo.profiles.Lock()
	defer repo.profiles.Unlock()

	now := time.Now().UTC()
	if existing, ok := repo.profiles.table[prof.ID]; ok {
		prof.CreatedAt = existing.CreatedAt
	} else if prof.CreatedAt.IsZero() {
		prof.CreatedAt = now
	}
	prof.UpdatedAt = now
	repo.profiles.table[prof.ID] = &prof
	return prof, nil
}

func (repo *userRepository) GetProfileByID(ctx context.Context, id string) (user.Profile, error) {
	repo.profiles.RLock()
	defer repo.profiles.RUnlock()

	if prof, ok := repo.profiles.table[id]; ok {
		return *prof, nil
	}
	return user.Profile{}, user.ErrNotFound
}

func (repo *userRepository) FindTeacherByName(ctx context.Context, fullName string) (user.Profile, error) {
	repo.profiles.RLock()
	defer repo.profiles.RUnlock()

	profiles := make([]user.Profile, 0, len(repo.profiles.table))
	for _, prof := range repo.profiles.table {
		profiles = append(profiles, *prof)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].CreatedAt.Before(profiles[j].CreatedAt) })

	for _, prof := range profiles {
		if prof.Role == user.RoleTeacher && strings.EqualFold(prof.FullName, fullName) {
			return prof, nil
		}
	}
	return user.Profile{}, user.ErrNotFound
}
