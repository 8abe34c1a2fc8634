package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"photoattend/internal/apperr"
	"photoattend/internal/attendance"
	"photoattend/internal/auth"
	"photoattend/internal/store"
)

// addUser creates a user, or resets the password and role of an existing one.
func (cli *commandLine) addUser(ctx context.Context, email, fullName, pwd string, role attendance.Role) error {
	email, err := auth.NormalizeEmail(email)
	if err != nil {
		return err
	}
	p, err := store.NewProfiles(cli.db.X).GetByEmail(ctx, email)
	if err != nil {
		if !apperr.Is(err, apperr.KindNotFound) {
			return err
		}
		id, err := cli.auth.CreateUser(ctx, email, pwd, fullName, role)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "created %s (%s) as %s\n", email, id, role)
		return nil
	}

	if err := cli.auth.SetPassword(ctx, p.ID, pwd); err != nil {
		return err
	}
	roles := store.NewRoles(cli.db.X)
	n, err := roles.SetAll(ctx, p.ID, role)
	if err != nil {
		return err
	}
	if n == 0 {
		err = roles.Assign(ctx, attendance.RoleAssignment{
			ID:        uuid.NewString(),
			UserID:    p.ID,
			Role:      role,
			CreatedAt: cli.now().UTC(),
		})
		if err != nil {
			return err
		}
	}
	fmt.Fprintf(cli.out, "updated %s (%s) as %s\n", email, p.ID, role)
	return nil
}
