package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/trezvolt/darasa/core"
	"github.com/trezvolt/darasa/core/account"
)

// addAccount updates or creates an account.Account
func (cli *commandLine) addAccount(uname, email, name, role, pwd string) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	valid := false
	for _, r := range account.AllRoles {
		if role == r {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("unknown role %q", role)
	}
	if name == "" {
		name = uname
	}

	now := time.Now().UTC()
	acct, err := cli.acctRepo.GetAccountByUsername(ctx, uname)
	if err != nil {
		if err != account.ErrNotFound {
			return err
		}
		acct = account.Account{
			ID:        uuid.NewString(),
			Username:  uname,
			Email:     email,
			FullName:  name,
			Role:      role,
			DOB:       now,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := acct.SetPassword(pwd); err != nil {
			return err
		}
		_, err = cli.acctRepo.CreateAccount(ctx, acct)
		return err
	}

	acct.Email = email
	acct.FullName = name
	acct.Role = role
	acct.UpdatedAt = now
	if err := acct.SetPassword(pwd); err != nil {
		return err
	}
	if _, err := cli.acctRepo.UpdateAccount(ctx, acct); err != nil {
		return err
	}
	// the password hash has its own op; UpdateAccount covers profile fields
	return cli.acctRepo.SetPasswordHash(ctx, acct.ID, acct.PasswordHash)
}
