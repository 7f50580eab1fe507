package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/trezvolt/darasa/core"
	"github.com/trezvolt/darasa/core/account"
	inmemdb "github.com/trezvolt/darasa/storage/database/inmem"
)

func setup(t *testing.T) (*commandLine, account.Repository) {
	t.Helper()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatal(err)
	}
	repo := inmemdb.NewAccountRepository(db)
	validate, _ := core.NewValidator()
	return &commandLine{
		acctRepo: repo,
		validate: validate,
	}, repo
}

type cliTest struct {
	name    string
	args    []string // without program name
	pwd     string
	wantErr error
}

func Test_commandLine_addAccount(t *testing.T) {
	cli, repo := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"addaccount"}, wantErr: errHelp},
		{name: "username but no email", args: []string{"addaccount", "-username", "boss"}, wantErr: errHelp},
		{name: "empty password", args: []string{"addaccount", "-username", "boss", "-email", "boss@x.com"}, wantErr: errHelp},
		{name: "create", args: []string{"addaccount", "-username", "boss", "-email", "boss@x.com"}, pwd: "s3cret"},
		{name: "update", args: []string{"addaccount", "-username", "boss", "-email", "boss@y.com", "-role", "teacher"}, pwd: "newpwd"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			return []byte(tt.pwd), nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err != tt.wantErr {
				t.Fatalf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	acct, err := repo.GetAccountByUsername(context.Background(), "boss")
	if err != nil {
		t.Fatalf("GetAccountByUsername() failed, %v", err)
	}
	if acct.ID == "" {
		t.Error("created account has no id")
	}
	if acct.Email != "boss@y.com" || acct.Role != account.RoleTeacher {
		t.Errorf("update not applied: email=%s role=%s", acct.Email, acct.Role)
	}
	if ok, _ := acct.CheckPassword("newpwd"); !ok {
		t.Error("failed to update password")
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, repo := setup(t)

	seed := account.Account{Username: "awe", Email: "awe@test.cd", FullName: "Awe", Role: account.RoleStudent}
	if err := seed.SetPassword("mdr"); err != nil {
		t.Fatal(err)
	}
	usr, err := repo.CreateAccount(context.Background(), seed)
	if err != nil {
		t.Fatal(err)
	}

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "account not found", args: []string{"resetpassword", "-username", "lol"}, pwd: "lol", wantErr: account.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, pwd: "lol123"},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, pwd: "lmao12"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			return []byte(tt.pwd), nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err != nil {
				if err != tt.wantErr {
					t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
			refreshed, err := repo.GetAccountByID(context.Background(), usr.ID)
			if err != nil {
				t.Fatalf("GetAccountByID() failed, %v", err)
			}
			if bytes.Equal(refreshed.PasswordHash, usr.PasswordHash) {
				t.Error("failed to update password")
			}
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	var called bool
	migrateFunc = func(db *sqlx.DB) error {
		called = true
		return nil
	}
	if err := cli.run([]string{"admin", "migrate"}); err != nil {
		t.Fatalf("cli.run() unexpected error = %v", err)
	}
	if !called {
		t.Error("migrate was not invoked")
	}
}
