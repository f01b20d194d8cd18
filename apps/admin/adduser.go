package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/maoni-app/maoni/core"
	"github.com/maoni-app/maoni/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(uname, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	role := user.RoleStudent
	if isAdmin {
		role = user.RoleAdmin
	}

	usr, err := cli.usrRepo.GetUserByUsernameOrEmail(ctx, uname)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		now := time.Now().UTC()
		usr = user.User{
			Name:      uname,
			Username:  uname,
			Email:     email,
			Role:      role,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := usr.SetPassword(pwd); err != nil {
			return err
		}
		if usr, err = cli.usrRepo.CreateUser(ctx, usr); err != nil {
			return err
		}
		_, err = cli.usrRepo.UpsertProfile(ctx, user.ProfileOf(usr))
		return err
	}

	if isAdmin {
		usr.Role = user.RoleAdmin
	}
	usr.IsActive = true
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	if usr, err = cli.usrRepo.UpdateUser(ctx, usr); err != nil {
		return err
	}
	_, err = cli.usrRepo.UpsertProfile(ctx, user.ProfileOf(usr))
	return err
}
