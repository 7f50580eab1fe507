package account_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezvolt/darasa/core"
	"github.com/trezvolt/darasa/core/account"
	emailsvc "github.com/trezvolt/darasa/services/email"
	inmemdb "github.com/trezvolt/darasa/storage/database/inmem"
)

var codeRegex = regexp.MustCompile(`[0-9]{6}`)

func testConfig() *core.Config {
	return &core.Config{
		Debug:    true,
		TestMode: true,
		AppName:  "Darasa",
		Token: core.TokenConfig{
			AccessSecret:  "access-secret",
			AccessExpiry:  15 * time.Minute,
			RefreshSecret: "refresh-secret",
			RefreshExpiry: 7 * 24 * time.Hour,
			ResendSecret:  "resend-secret",
			ResendExpiry:  24 * time.Hour,
			ResetSecret:   "reset-secret",
			ResetExpiry:   60 * time.Minute,
		},
		OTP: core.OTPConfig{Expiry: 2 * time.Minute},
	}
}

func newTestService(t *testing.T) (*account.Service, account.Repository) {
	t.Helper()
	db, err := inmemdb.Open()
	require.NoError(t, err)
	repo := inmemdb.NewAccountRepository(db)

	conf := testConfig()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	emailsvc.ClearSentMessages()
	return account.NewService(conf, repo, mailSvc), repo
}

func register(t *testing.T, svc *account.Service, uname, email, pwd string) account.Account {
	t.Helper()
	acct, err := svc.Register(context.Background(), account.NewAccount{
		FullName:        "Alice Mwangi",
		Username:        uname,
		Email:           email,
		Password:        pwd,
		PasswordConfirm: pwd,
		DOB:             time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		Role:            account.RoleStudent,
		Avatar:          "https://cdn.test/avatars/a.png",
	})
	require.NoError(t, err)
	return acct
}

// lastEmailedCode extracts the one-time code from the most recently captured
// email.
func lastEmailedCode(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, emailsvc.SentMessages)
	msg := emailsvc.SentMessages[len(emailsvc.SentMessages)-1]
	code := codeRegex.FindString(msg.TextContent)
	require.NotEmpty(t, code, "no code found in %q", msg.TextContent)
	return code
}

func TestRegisterHashesPassword(t *testing.T) {
	svc, _ := newTestService(t)

	acct := register(t, svc, "alice", "alice@x.com", "pw123456")

	assert.NotEmpty(t, acct.PasswordHash)
	assert.NotEqual(t, "pw123456", string(acct.PasswordHash))

	ok, err := acct.CheckPassword("pw123456")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = acct.CheckPassword("wrong")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegisterUniqueness(t *testing.T) {
	svc, _ := newTestService(t)
	register(t, svc, "alice", "alice@x.com", "pw123456")

	_, err := svc.Register(context.Background(), account.NewAccount{
		FullName: "Other", Username: "alice", Email: "other@x.com",
		Password: "pw123456", PasswordConfirm: "pw123456",
		DOB:  time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		Role: account.RoleStudent, Avatar: "https://cdn.test/b.png",
	})
	assert.ErrorIs(t, err, account.ErrUsernameExists)

	_, err = svc.Register(context.Background(), account.NewAccount{
		FullName: "Other", Username: "other", Email: "alice@x.com",
		Password: "pw123456", PasswordConfirm: "pw123456",
		DOB:  time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		Role: account.RoleStudent, Avatar: "https://cdn.test/b.png",
	})
	assert.ErrorIs(t, err, account.ErrEmailExists)
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	register(t, svc, "alice", "alice@x.com", "pw123")

	tests := []struct {
		name    string
		ident   account.Identifier
		pwd     string
		wantErr error
	}{
		{name: "by username", ident: account.Identifier{Kind: account.IdentifierUsername, Value: "alice"}, pwd: "pw123"},
		{name: "by email", ident: account.Identifier{Kind: account.IdentifierEmail, Value: "alice@x.com"}, pwd: "pw123"},
		{name: "wrong password", ident: account.Identifier{Kind: account.IdentifierUsername, Value: "alice"}, pwd: "wrong", wantErr: account.ErrInvalidCredentials},
		{name: "unknown account", ident: account.Identifier{Kind: account.IdentifierUsername, Value: "nobody"}, pwd: "pw123", wantErr: account.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acct, access, refresh, err := svc.Login(ctx, tt.ident, tt.pwd)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, access)
			assert.NotEmpty(t, refresh)
			assert.False(t, acct.LastLogin.IsZero())

			// the stored slot holds the freshly issued refresh token
			stored, err := svc.GetByID(ctx, acct.ID)
			require.NoError(t, err)
			assert.Equal(t, refresh, stored.RefreshToken)
		})
	}
}

func TestRefreshRotation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	register(t, svc, "alice", "alice@x.com", "pw123")

	_, _, refresh, err := svc.Login(ctx, account.Identifier{Kind: account.IdentifierUsername, Value: "alice"}, "pw123")
	require.NoError(t, err)

	access2, refresh2, err := svc.Refresh(ctx, refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, access2)
	assert.NotEqual(t, refresh, refresh2)

	// the pre-rotation token is no longer accepted
	_, _, err = svc.Refresh(ctx, refresh)
	assert.ErrorIs(t, err, account.ErrTokenMismatch)

	// the rotated-in token still is
	_, _, err = svc.Refresh(ctx, refresh2)
	require.NoError(t, err)
}

func TestRefreshRejectsForeignTokens(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	acct := register(t, svc, "alice", "alice@x.com", "pw123")

	_, _, err := svc.Refresh(ctx, "not-a-token")
	assert.ErrorIs(t, err, account.ErrInvalidToken)

	// a signed access token is not a refresh token
	access, err := svc.Issuer().IssueAccess(acct)
	require.NoError(t, err)
	_, _, err = svc.Refresh(ctx, access)
	assert.ErrorIs(t, err, account.ErrInvalidToken)

	// a well-signed refresh token that is not the stored one fails too
	stray, err := svc.Issuer().IssueRefresh(acct)
	require.NoError(t, err)
	_, _, err = svc.Refresh(ctx, stray)
	assert.ErrorIs(t, err, account.ErrTokenMismatch)
}

func TestLogoutIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	acct := register(t, svc, "alice", "alice@x.com", "pw123")

	_, _, refresh, err := svc.Login(ctx, account.Identifier{Kind: account.IdentifierUsername, Value: "alice"}, "pw123")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, acct.ID))
	require.NoError(t, svc.Logout(ctx, acct.ID)) // twice in a row

	stored, err := svc.GetByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.RefreshToken)

	_, _, err = svc.Refresh(ctx, refresh)
	assert.ErrorIs(t, err, account.ErrTokenMismatch)
}

func TestChangePassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	register(t, svc, "alice", "alice@x.com", "pw123")

	acct, _, refresh, err := svc.Login(ctx, account.Identifier{Kind: account.IdentifierUsername, Value: "alice"}, "pw123")
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, acct, account.ChangePassword{
		OldPassword: "wrong", NewPassword: "newpw123", NewConfirmPassword: "newpw123",
	})
	assert.ErrorIs(t, err, account.ErrInvalidCredentials)

	err = svc.ChangePassword(ctx, acct, account.ChangePassword{
		OldPassword: "pw123", NewPassword: "newpw123", NewConfirmPassword: "newpw123",
	})
	require.NoError(t, err)

	// open sessions were revoked
	_, _, err = svc.Refresh(ctx, refresh)
	assert.ErrorIs(t, err, account.ErrTokenMismatch)

	// only the new password logs in
	_, _, _, err = svc.Login(ctx, account.Identifier{Kind: account.IdentifierUsername, Value: "alice"}, "pw123")
	assert.ErrorIs(t, err, account.ErrInvalidCredentials)
	_, _, _, err = svc.Login(ctx, account.Identifier{Kind: account.IdentifierUsername, Value: "alice"}, "newpw123")
	require.NoError(t, err)
}

func TestOTPFlow(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	register(t, svc, "alice", "alice@x.com", "pw123")
	ident := account.Identifier{Kind: account.IdentifierEmail, Value: "alice@x.com"}

	// wrong format fails before any lookup
	_, err := svc.VerifyOTP(ctx, "12a456")
	var vErr *core.ValidationError
	assert.ErrorAs(t, err, &vErr)

	resendToken, err := svc.GenerateOTP(ctx, ident)
	require.NoError(t, err)
	require.NotEmpty(t, resendToken)
	first := lastEmailedCode(t)

	// a resend replaces the code
	require.NoError(t, svc.ResendOTP(ctx, resendToken))
	latest := lastEmailedCode(t)

	// wrong code
	_, err = svc.VerifyOTP(ctx, "000000")
	if latest != "000000" { // one-in-a-million collision
		assert.ErrorIs(t, err, account.ErrInvalidOTP)
	}

	// the replaced code no longer verifies
	if first != latest {
		_, err = svc.VerifyOTP(ctx, first)
		assert.ErrorIs(t, err, account.ErrInvalidOTP)
	}

	resetToken, err := svc.VerifyOTP(ctx, latest)
	require.NoError(t, err)
	require.NotEmpty(t, resetToken)

	// one-time use: the code was cleared
	_, err = svc.VerifyOTP(ctx, latest)
	assert.ErrorIs(t, err, account.ErrInvalidOTP)
}

func TestOTPExpiryBoundary(t *testing.T) {
	defer func() { account.NowFunc = time.Now }()

	svc, _ := newTestService(t)
	ctx := context.Background()
	register(t, svc, "alice", "alice@x.com", "pw123")
	ident := account.Identifier{Kind: account.IdentifierEmail, Value: "alice@x.com"}

	issuedAt := time.Now().UTC()
	account.NowFunc = func() time.Time { return issuedAt }

	_, err := svc.GenerateOTP(ctx, ident)
	require.NoError(t, err)
	code := lastEmailedCode(t)

	// a code exactly 2 minutes old is still accepted
	account.NowFunc = func() time.Time { return issuedAt.Add(2 * time.Minute) }
	_, err = svc.VerifyOTP(ctx, code)
	require.NoError(t, err)

	// regenerate; 2 minutes and 1 second is too old
	account.NowFunc = func() time.Time { return issuedAt }
	_, err = svc.GenerateOTP(ctx, ident)
	require.NoError(t, err)
	code = lastEmailedCode(t)

	account.NowFunc = func() time.Time { return issuedAt.Add(2*time.Minute + time.Second) }
	_, err = svc.VerifyOTP(ctx, code)
	assert.ErrorIs(t, err, account.ErrExpiredOTP)
}

func TestResendRequiresValidToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	acct := register(t, svc, "alice", "alice@x.com", "pw123")

	err := svc.ResendOTP(ctx, "garbage")
	assert.ErrorIs(t, err, account.ErrInvalidToken)

	// a reset token cannot authorize a resend
	reset, err := svc.Issuer().IssueReset(acct)
	require.NoError(t, err)
	err = svc.ResendOTP(ctx, reset)
	assert.ErrorIs(t, err, account.ErrInvalidToken)
}

func TestResetPasswordWithToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	register(t, svc, "alice", "alice@x.com", "pw123")
	ident := account.Identifier{Kind: account.IdentifierEmail, Value: "alice@x.com"}

	_, err := svc.GenerateOTP(ctx, ident)
	require.NoError(t, err)
	code := lastEmailedCode(t)

	resetToken, err := svc.VerifyOTP(ctx, code)
	require.NoError(t, err)

	rp := account.ResetPassword{NewPassword: "brandnew1", ConfirmNewPassword: "brandnew1"}
	require.NoError(t, svc.ResetPasswordWithToken(ctx, resetToken, rp))

	// the token is single use: the password change invalidated it
	err = svc.ResetPasswordWithToken(ctx, resetToken, rp)
	assert.ErrorIs(t, err, account.ErrInvalidToken)

	_, _, _, err = svc.Login(ctx, ident, "brandnew1")
	require.NoError(t, err)
}

func TestResolveAccess(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	register(t, svc, "alice", "alice@x.com", "pw123")

	acct, access, _, err := svc.Login(ctx, account.Identifier{Kind: account.IdentifierUsername, Value: "alice"}, "pw123")
	require.NoError(t, err)

	resolved, err := svc.ResolveAccess(ctx, access)
	require.NoError(t, err)
	assert.Equal(t, acct.ID, resolved.ID)

	_, err = svc.ResolveAccess(ctx, "garbage")
	assert.ErrorIs(t, err, account.ErrInvalidToken)
}
