package account

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/trezvolt/darasa/core"
)

var (
	// errors
	ErrNotFound           = errors.New("account not found")
	ErrEmailExists        = errors.New("an account with this email already exists")
	ErrUsernameExists     = errors.New("an account with this username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenMismatch      = errors.New("refresh token is expired or already used")
	ErrInvalidOTP         = errors.New("invalid OTP")
	ErrExpiredOTP         = errors.New("OTP has expired")
)

type (
	// Repository is the persistent credential store. The Account record is the
	// only shared mutable resource; the single-statement conditional mutations
	// below (rotate, compare-and-clear) are the serialization points for the
	// races the session and OTP flows care about.
	Repository interface {
		CheckUniqueness(ctx context.Context, username, email string, excluded ...Account) error
		CreateAccount(ctx context.Context, acct Account) (Account, error)
		GetAccountByID(ctx context.Context, id string) (Account, error)
		GetAccountByUsername(ctx context.Context, username string) (Account, error)
		GetAccountByEmail(ctx context.Context, email string) (Account, error)
		// GetAccountByOTP matches on the stored code only; expiry is the
		// service's concern so that a stale code can be told apart from an
		// unknown one.
		GetAccountByOTP(ctx context.Context, code string) (Account, error)
		UpdateAccount(ctx context.Context, acct Account) (Account, error)

		// session slot: full overwrite on login, compare-and-set on rotation,
		// idempotent clear on logout
		SetRefreshToken(ctx context.Context, id, token string) error
		RotateRefreshToken(ctx context.Context, id, old, new string) error
		ClearRefreshToken(ctx context.Context, id string) error
		SetLastLogin(ctx context.Context, id string, t time.Time) error

		// OTP fields: each set fully replaces the prior code and expiry;
		// clear is a no-op when the stored code no longer matches
		SetOTP(ctx context.Context, id, code, email string, expires time.Time) error
		ClearOTP(ctx context.Context, id, code string) error

		SetPasswordHash(ctx context.Context, id string, hash []byte) error
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		issuer  *TokenIssuer
		conf    *core.Config
	}
)

func NewService(conf *core.Config, repo Repository, mailSvc core.EmailService) *Service {
	return &Service{
		repo:    repo,
		mailSvc: mailSvc,
		issuer:  NewTokenIssuer(conf),
		conf:    conf,
	}
}

func (svc *Service) Issuer() *TokenIssuer { return svc.issuer }

// CheckUniqueness surfaces ErrUsernameExists / ErrEmailExists untouched:
// duplicates are conflicts with existing state, not malformed input, and are
// reported as such at the HTTP boundary.
func (svc *Service) CheckUniqueness(uname, email string, exclAccts ...Account) error {
	return svc.repo.CheckUniqueness(context.Background(), uname, email, exclAccts...)
}

// Register creates an Account after validation and uniqueness checks passed.
// The data store's uniqueness constraint remains the authority; the prior
// existence check is a fast path only.
func (svc *Service) Register(ctx context.Context, na NewAccount) (Account, error) {
	now := NowFunc().UTC()
	acct := Account{
		ID:        uuid.NewString(),
		FullName:  na.FullName,
		Username:  na.Username,
		Email:     na.Email,
		DOB:       na.DOB,
		Role:      na.Role,
		Avatar:    na.Avatar,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := acct.SetPassword(na.Password); err != nil {
		return Account{}, err
	}
	return svc.repo.CreateAccount(ctx, acct)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Account, error) {
	return svc.repo.GetAccountByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (Account, error) {
	return svc.repo.GetAccountByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) getByIdentifier(ctx context.Context, ident Identifier) (Account, error) {
	if ident.Kind == IdentifierEmail {
		return svc.repo.GetAccountByEmail(ctx, ident.Value)
	}
	return svc.repo.GetAccountByUsername(ctx, ident.Value)
}

// Login authenticates the identifier/password pair and opens a session:
// both tokens are issued and the new refresh token overwrites any previous
// one, which becomes immediately invalid.
func (svc *Service) Login(ctx context.Context, ident Identifier, pwd string) (Account, string, string, error) {
	acct, err := svc.getByIdentifier(ctx, ident)
	if err != nil {
		return Account{}, "", "", err
	}
	ok, err := acct.CheckPassword(pwd)
	if err != nil {
		return Account{}, "", "", pkgerrors.Wrap(err, "checking password")
	}
	if !ok {
		return Account{}, "", "", ErrInvalidCredentials
	}

	access, err := svc.issuer.IssueAccess(acct)
	if err != nil {
		return Account{}, "", "", pkgerrors.Wrap(err, "issuing access token")
	}
	refresh, err := svc.issuer.IssueRefresh(acct)
	if err != nil {
		return Account{}, "", "", pkgerrors.Wrap(err, "issuing refresh token")
	}
	if err := svc.repo.SetRefreshToken(ctx, acct.ID, refresh); err != nil {
		return Account{}, "", "", pkgerrors.Wrap(err, "storing refresh token")
	}

	now := NowFunc().UTC()
	if err := svc.repo.SetLastLogin(ctx, acct.ID, now); err != nil {
		return Account{}, "", "", pkgerrors.Wrap(err, "setting last login")
	}
	acct.LastLogin = now

	return acct, access, refresh, nil
}

// Refresh rotates a refresh token. The store-level compare-and-set is the
// serialization point: of two concurrent calls presenting the same token,
// exactly one rotates, the other fails with ErrTokenMismatch.
func (svc *Service) Refresh(ctx context.Context, token string) (string, string, error) {
	claims, err := svc.issuer.Verify(token, PurposeRefresh)
	if err != nil {
		return "", "", ErrInvalidToken
	}

	acct, err := svc.repo.GetAccountByID(ctx, claims.Subject)
	if err != nil {
		return "", "", ErrInvalidToken
	}

	newRefresh, err := svc.issuer.IssueRefresh(acct)
	if err != nil {
		return "", "", pkgerrors.Wrap(err, "issuing refresh token")
	}
	if err := svc.repo.RotateRefreshToken(ctx, acct.ID, token, newRefresh); err != nil {
		if errors.Is(err, ErrTokenMismatch) {
			return "", "", ErrTokenMismatch
		}
		return "", "", pkgerrors.Wrap(err, "rotating refresh token")
	}

	access, err := svc.issuer.IssueAccess(acct)
	if err != nil {
		return "", "", pkgerrors.Wrap(err, "issuing access token")
	}
	return access, newRefresh, nil
}

// Logout clears the stored refresh token; idempotent.
func (svc *Service) Logout(ctx context.Context, acctID string) error {
	return svc.repo.ClearRefreshToken(ctx, acctID)
}

// ChangePassword rehashes and stores the new password, then clears the
// refresh-token slot so every open session must re-authenticate.
func (svc *Service) ChangePassword(ctx context.Context, acct Account, cp ChangePassword) error {
	ok, err := acct.CheckPassword(cp.OldPassword)
	if err != nil {
		return pkgerrors.Wrap(err, "checking password")
	}
	if !ok {
		return ErrInvalidCredentials
	}
	if err := acct.SetPassword(cp.NewPassword); err != nil {
		return err
	}
	if err := svc.repo.SetPasswordHash(ctx, acct.ID, acct.PasswordHash); err != nil {
		return pkgerrors.Wrap(err, "storing password hash")
	}
	return svc.repo.ClearRefreshToken(ctx, acct.ID)
}

func (svc *Service) Update(ctx context.Context, id string, ua UpdateAccount) (Account, error) {
	acct, err := svc.repo.GetAccountByID(ctx, id)
	if err != nil {
		return Account{}, err
	}
	acct.FullName = ua.FullName
	acct.Email = ua.Email
	acct.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateAccount(ctx, acct)
}

func (svc *Service) UpdateAvatar(ctx context.Context, id, url string) (Account, error) {
	acct, err := svc.repo.GetAccountByID(ctx, id)
	if err != nil {
		return Account{}, err
	}
	acct.Avatar = url
	acct.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateAccount(ctx, acct)
}

// GenerateOTP sets a fresh one-time code on the account, mails it, and
// returns a resend token scoping future resend calls to this account.
// The code is bound to the account's current email so a later email change
// cannot redirect an in-flight OTP.
func (svc *Service) GenerateOTP(ctx context.Context, ident Identifier) (string, error) {
	acct, err := svc.getByIdentifier(ctx, ident)
	if err != nil {
		return "", err
	}
	if err := svc.issueOTP(ctx, acct, acct.Email); err != nil {
		return "", err
	}
	return svc.issuer.IssueResend(acct.ID)
}

// ResendOTP regenerates the code and expiry exactly as GenerateOTP, gated by
// the resend token; the caller does not re-present the original identifier.
func (svc *Service) ResendOTP(ctx context.Context, resendToken string) error {
	claims, err := svc.issuer.Verify(resendToken, PurposeResend)
	if err != nil {
		return ErrInvalidToken
	}
	acct, err := svc.repo.GetAccountByID(ctx, claims.Subject)
	if err != nil {
		return ErrInvalidToken
	}
	return svc.issueOTP(ctx, acct, acct.Email)
}

func (svc *Service) issueOTP(ctx context.Context, acct Account, email string) error {
	code, err := generateCode()
	if err != nil {
		return pkgerrors.Wrap(err, "generating OTP")
	}
	expires := NowFunc().UTC().Add(svc.conf.OTP.Expiry)
	if err := svc.repo.SetOTP(ctx, acct.ID, code, email, expires); err != nil {
		return pkgerrors.Wrap(err, "storing OTP")
	}
	// fail-soft is not permitted: a failed send surfaces to the caller
	if err := svc.sendOTPMail(acct, email, code); err != nil {
		return pkgerrors.Wrap(err, "sending OTP mail")
	}
	return nil
}

func (svc *Service) sendOTPMail(acct Account, email, code string) error {
	return svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: acct.FullName, Address: email}},
		Subject: "Your password reset code",
		TextContent: fmt.Sprintf(
			"Hi %s,\n\nYour %s verification code is %s. It expires in %d minutes.\n\n"+
				"If you did not request a password reset, you can safely ignore this email.",
			acct.FullName, svc.conf.AppName, code, int(svc.conf.OTP.Expiry.Minutes()),
		),
	})
}

// VerifyOTP consumes a one-time code and returns a reset token. The clear is
// compare-and-clear: a code resent between load and clear is left intact.
func (svc *Service) VerifyOTP(ctx context.Context, code string) (string, error) {
	if !ValidOTPFormat(code) {
		return "", core.NewValidationError(nil, core.FieldError{Field: "otp", Error: "must be exactly 6 digits"})
	}

	acct, err := svc.repo.GetAccountByOTP(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrInvalidOTP
		}
		return "", pkgerrors.Wrap(err, "looking up OTP")
	}
	// explicit expiry check; covers clock-skew and load/clear races.
	// a code presented exactly at its expiry instant is still good.
	if NowFunc().UTC().After(acct.OTPExpires) {
		return "", ErrExpiredOTP
	}
	if acct.OTP != code {
		return "", ErrInvalidOTP
	}

	if err := svc.repo.ClearOTP(ctx, acct.ID, code); err != nil {
		return "", pkgerrors.Wrap(err, "clearing OTP")
	}
	return svc.issuer.IssueReset(acct)
}

// ResetPasswordWithToken completes the recovery flow. The reset token is
// single use: it is keyed to the password hash it was issued against, so the
// hash mutation below invalidates it.
func (svc *Service) ResetPasswordWithToken(ctx context.Context, resetToken string, rp ResetPassword) error {
	claims, err := svc.issuer.Verify(resetToken, PurposeReset)
	if err != nil {
		return ErrInvalidToken
	}
	acct, err := svc.repo.GetAccountByID(ctx, claims.Subject)
	if err != nil {
		return ErrInvalidToken
	}
	if claims.PwdFingerprint != PasswordFingerprint(acct.PasswordHash) {
		return ErrInvalidToken
	}

	if err := acct.SetPassword(rp.NewPassword); err != nil {
		return err
	}
	if err := svc.repo.SetPasswordHash(ctx, acct.ID, acct.PasswordHash); err != nil {
		return pkgerrors.Wrap(err, "storing password hash")
	}
	return svc.repo.ClearRefreshToken(ctx, acct.ID)
}

// ResolveAccess resolves the caller identity from an access token: signature
// and expiry first, then the account must still exist.
func (svc *Service) ResolveAccess(ctx context.Context, token string) (Account, error) {
	claims, err := svc.issuer.Verify(token, PurposeAccess)
	if err != nil {
		return Account{}, ErrInvalidToken
	}
	acct, err := svc.repo.GetAccountByID(ctx, claims.Subject)
	if err != nil {
		return Account{}, ErrInvalidToken
	}
	return acct, nil
}
