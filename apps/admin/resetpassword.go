package main

import (
	"context"

	"github.com/trezvolt/darasa/core/account"
)

func (cli *commandLine) resetPassword(uname, pwd string) error {
	ctx := context.Background()

	var acct account.Account
	var err error
	ident := account.ParseIdentifier(cli.validate, uname)
	if ident.Kind == account.IdentifierEmail {
		acct, err = cli.acctRepo.GetAccountByEmail(ctx, ident.Value)
	} else {
		acct, err = cli.acctRepo.GetAccountByUsername(ctx, ident.Value)
	}
	if err != nil {
		return err
	}
	if err := acct.SetPassword(pwd); err != nil {
		return err
	}
	return cli.acctRepo.SetPasswordHash(ctx, acct.ID, acct.PasswordHash)
}
