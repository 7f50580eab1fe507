package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezvolt/darasa/core/account"
)

type accountRow struct {
	ID           string      `db:"id"`
	FullName     string      `db:"full_name"`
	Username     string      `db:"username"`
	Email        string      `db:"email"`
	DOB          time.Time   `db:"dob"`
	Role         string      `db:"role"`
	Avatar       string      `db:"avatar"`
	PasswordHash []byte      `db:"password_hash"`
	RefreshToken null.String `db:"refresh_token"`
	OTP          null.String `db:"otp"`
	OTPExpires   null.Time   `db:"otp_expires"`
	OTPEmail     null.String `db:"otp_email"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

func rowFromAccount(acct account.Account) accountRow {
	return accountRow{
		ID:           acct.ID,
		FullName:     acct.FullName,
		Username:     acct.Username,
		Email:        acct.Email,
		DOB:          acct.DOB,
		Role:         acct.Role,
		Avatar:       acct.Avatar,
		PasswordHash: acct.PasswordHash,
		RefreshToken: null.NewString(acct.RefreshToken, acct.RefreshToken != ""),
		OTP:          null.NewString(acct.OTP, acct.OTP != ""),
		OTPExpires:   null.NewTime(acct.OTPExpires, !acct.OTPExpires.IsZero()),
		OTPEmail:     null.NewString(acct.OTPEmail, acct.OTPEmail != ""),
		CreatedAt:    acct.CreatedAt.UTC(),
		UpdatedAt:    acct.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(acct.LastLogin.UTC(), !acct.LastLogin.IsZero()),
	}
}

func (row accountRow) toAccount() account.Account {
	return account.Account{
		ID:           row.ID,
		FullName:     row.FullName,
		Username:     row.Username,
		Email:        row.Email,
		DOB:          row.DOB,
		Role:         row.Role,
		Avatar:       row.Avatar,
		PasswordHash: row.PasswordHash,
		RefreshToken: row.RefreshToken.String,
		OTP:          row.OTP.String,
		OTPExpires:   row.OTPExpires.Time,
		OTPEmail:     row.OTPEmail.String,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
		LastLogin:    row.LastLogin.Time,
	}
}

type accountRepository struct {
	db *sqlx.DB
}

var _ account.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *sqlx.DB) account.Repository {
	return &accountRepository{db: db}
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation on the named constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" && strings.Contains(pqErr.Constraint, constraint)
	}
	return false
}

func (repo *accountRepository) CheckUniqueness(ctx context.Context, username, email string, excluded ...account.Account) error {
	exclIDs := make([]string, 0, len(excluded))
	for _, acct := range excluded {
		exclIDs = append(exclIDs, acct.ID)
	}

	query := `SELECT username, email FROM account WHERE (username = $1 OR email = $2)`
	args := []interface{}{username, email}
	if len(exclIDs) > 0 {
		query += ` AND NOT (id = ANY($3))`
		args = append(args, pq.Array(exclIDs))
	}
	query += ` LIMIT 1`

	var row struct {
		Username string `db:"username"`
		Email    string `db:"email"`
	}
	err := repo.db.GetContext(ctx, &row, query, args...)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "checking uniqueness")
	}
	if row.Username == username {
		return account.ErrUsernameExists
	}
	return account.ErrEmailExists
}

func (repo *accountRepository) CreateAccount(ctx context.Context, acct account.Account) (account.Account, error) {
	const query = `
		INSERT INTO account (
			id, full_name, username, email, dob, role, avatar, password_hash,
			refresh_token, otp, otp_expires, otp_email, created_at, updated_at, last_login
		) VALUES (
			:id, :full_name, :username, :email, :dob, :role, :avatar, :password_hash,
			:refresh_token, :otp, :otp_expires, :otp_email, :created_at, :updated_at, :last_login
		)`
	if _, err := repo.db.NamedExecContext(ctx, query, rowFromAccount(acct)); err != nil {
		// the store's uniqueness constraint is the authority
		if isUniqueViolation(err, "username") {
			return account.Account{}, account.ErrUsernameExists
		}
		if isUniqueViolation(err, "email") {
			return account.Account{}, account.ErrEmailExists
		}
		return account.Account{}, errors.Wrap(err, "creating account")
	}
	acct.Classrooms = []string{}
	return acct, nil
}

func (repo *accountRepository) getWhere(ctx context.Context, clause string, args ...interface{}) (account.Account, error) {
	var row accountRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM account WHERE `+clause, args...)
	if err == sql.ErrNoRows {
		return account.Account{}, account.ErrNotFound
	}
	if err != nil {
		return account.Account{}, errors.Wrap(err, "querying account")
	}

	acct := row.toAccount()
	// membership is derived from the classroom store, never written through
	// the account table
	acct.Classrooms = []string{}
	const memberQuery = `SELECT classroom_id FROM classroom_member WHERE account_id = $1 ORDER BY joined_at`
	if err := repo.db.SelectContext(ctx, &acct.Classrooms, memberQuery, acct.ID); err != nil {
		return account.Account{}, errors.Wrap(err, "querying account memberships")
	}
	return acct, nil
}

func (repo *accountRepository) GetAccountByID(ctx context.Context, id string) (account.Account, error) {
	return repo.getWhere(ctx, `id = $1`, id)
}

func (repo *accountRepository) GetAccountByUsername(ctx context.Context, username string) (account.Account, error) {
	return repo.getWhere(ctx, `username = $1`, username)
}

func (repo *accountRepository) GetAccountByEmail(ctx context.Context, email string) (account.Account, error) {
	return repo.getWhere(ctx, `email = $1`, email)
}

func (repo *accountRepository) GetAccountByOTP(ctx context.Context, code string) (account.Account, error) {
	return repo.getWhere(ctx, `otp = $1`, code)
}

func (repo *accountRepository) UpdateAccount(ctx context.Context, acct account.Account) (account.Account, error) {
	const query = `
		UPDATE account
		SET full_name = $2, email = $3, avatar = $4, role = $5, updated_at = $6
		WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, query,
		acct.ID, acct.FullName, acct.Email, acct.Avatar, acct.Role, acct.UpdatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err, "email") {
			return account.Account{}, account.ErrEmailExists
		}
		return account.Account{}, errors.Wrap(err, "updating account")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return account.Account{}, account.ErrNotFound
	}
	return repo.GetAccountByID(ctx, acct.ID)
}

func (repo *accountRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	res, err := repo.db.ExecContext(ctx, `UPDATE account SET refresh_token = $2 WHERE id = $1`, id, token)
	if err != nil {
		return errors.Wrap(err, "setting refresh token")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return account.ErrNotFound
	}
	return nil
}

// RotateRefreshToken is a single-statement compare-and-set: the WHERE clause
// on the old value is the serialization point for concurrent refresh calls.
func (repo *accountRepository) RotateRefreshToken(ctx context.Context, id, old, new string) error {
	const query = `UPDATE account SET refresh_token = $3 WHERE id = $1 AND refresh_token = $2`
	res, err := repo.db.ExecContext(ctx, query, id, old, new)
	if err != nil {
		return errors.Wrap(err, "rotating refresh token")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return account.ErrTokenMismatch
	}
	return nil
}

func (repo *accountRepository) ClearRefreshToken(ctx context.Context, id string) error {
	// idempotent by design: clearing an already-clear slot succeeds
	_, err := repo.db.ExecContext(ctx, `UPDATE account SET refresh_token = NULL WHERE id = $1`, id)
	return errors.Wrap(err, "clearing refresh token")
}

func (repo *accountRepository) SetLastLogin(ctx context.Context, id string, t time.Time) error {
	res, err := repo.db.ExecContext(ctx, `UPDATE account SET last_login = $2 WHERE id = $1`, id, t.UTC())
	if err != nil {
		return errors.Wrap(err, "setting last login")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return account.ErrNotFound
	}
	return nil
}

func (repo *accountRepository) SetOTP(ctx context.Context, id, code, email string, expires time.Time) error {
	const query = `UPDATE account SET otp = $2, otp_expires = $3, otp_email = $4 WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, query, id, code, expires.UTC(), email)
	if err != nil {
		return errors.Wrap(err, "setting OTP")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return account.ErrNotFound
	}
	return nil
}

// ClearOTP only clears while the stored code still matches, so a concurrent
// resend is not wiped out.
func (repo *accountRepository) ClearOTP(ctx context.Context, id, code string) error {
	const query = `
		UPDATE account SET otp = NULL, otp_expires = NULL, otp_email = NULL
		WHERE id = $1 AND otp = $2`
	_, err := repo.db.ExecContext(ctx, query, id, code)
	return errors.Wrap(err, "clearing OTP")
}

func (repo *accountRepository) SetPasswordHash(ctx context.Context, id string, hash []byte) error {
	res, err := repo.db.ExecContext(ctx, `UPDATE account SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		id, hash, time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "setting password hash")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return account.ErrNotFound
	}
	return nil
}
