package account

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"

	"github.com/trezvolt/darasa/core"
)

// Purpose scopes a signed token to exactly one use. Each purpose signs with
// its own secret and expiry; purposes are not interchangeable even though the
// signing mechanism is shared.
type Purpose string

const (
	PurposeAccess  Purpose = "access"
	PurposeRefresh Purpose = "refresh"
	PurposeResend  Purpose = "resend"
	PurposeReset   Purpose = "reset"
)

var (
	ErrInvalidToken = errors.New("invalid token")

	NowFunc = jwt.TimeFunc // mockable
)

// Claims represents the signed payload of any darasa token.
type Claims struct {
	jwt.StandardClaims
	Purpose  Purpose `json:"purpose"`
	Username string  `json:"username,omitempty"`
	Email    string  `json:"email,omitempty"`
	FullName string  `json:"full_name,omitempty"`

	// PwdFingerprint is set on reset tokens only. It keys the token to the
	// password hash it was issued against, so a completed reset
	// self-invalidates the token.
	PwdFingerprint string `json:"pwdfp,omitempty"`
}

// TokenIssuer creates and verifies the four token kinds.
type TokenIssuer struct {
	conf    core.TokenConfig
	appName string
}

func NewTokenIssuer(conf *core.Config) *TokenIssuer {
	return &TokenIssuer{conf: conf.Token, appName: conf.AppName}
}

func (ti *TokenIssuer) secret(purpose Purpose) []byte {
	switch purpose {
	case PurposeAccess:
		return []byte(ti.conf.AccessSecret)
	case PurposeRefresh:
		return []byte(ti.conf.RefreshSecret)
	case PurposeResend:
		return []byte(ti.conf.ResendSecret)
	case PurposeReset:
		return []byte(ti.conf.ResetSecret)
	}
	return nil
}

func (ti *TokenIssuer) issue(claims *Claims, purpose Purpose) (string, error) {
	now := NowFunc()
	claims.Purpose = purpose
	claims.Issuer = ti.appName
	claims.IssuedAt = now.Unix()
	// iat/exp have second granularity; the jti keeps two tokens issued for
	// the same account within the same second from being byte-identical, so
	// rotating a refresh token always changes the stored slot value.
	claims.Id = uuid.NewString()

	var expiry = ti.conf.AccessExpiry
	switch purpose {
	case PurposeRefresh:
		expiry = ti.conf.RefreshExpiry
	case PurposeResend:
		expiry = ti.conf.ResendExpiry
	case PurposeReset:
		expiry = ti.conf.ResetExpiry
	}
	claims.ExpiresAt = now.Add(expiry).Unix()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(ti.secret(purpose))
	if err != nil {
		return "", err
	}
	return ss, nil
}

// IssueAccess signs a short-lived stateless credential carrying the caller's
// identity projection.
func (ti *TokenIssuer) IssueAccess(acct Account) (string, error) {
	return ti.issue(&Claims{
		StandardClaims: jwt.StandardClaims{Subject: acct.ID},
		Username:       acct.Username,
		Email:          acct.Email,
		FullName:       acct.FullName,
	}, PurposeAccess)
}

// IssueRefresh signs a longer-lived credential carrying the account id only.
// The signature check is necessary but not sufficient: the value must also
// match the single slot stored on the Account.
func (ti *TokenIssuer) IssueRefresh(acct Account) (string, error) {
	return ti.issue(&Claims{
		StandardClaims: jwt.StandardClaims{Subject: acct.ID},
	}, PurposeRefresh)
}

// IssueResend scopes OTP regeneration to the account that requested the
// initial OTP.
func (ti *TokenIssuer) IssueResend(acctID string) (string, error) {
	return ti.issue(&Claims{
		StandardClaims: jwt.StandardClaims{Subject: acctID},
	}, PurposeResend)
}

// IssueReset authorizes a single password reset for the account. The token is
// keyed to the current password hash: once the password changes, the token no
// longer verifies against the account.
func (ti *TokenIssuer) IssueReset(acct Account) (string, error) {
	return ti.issue(&Claims{
		StandardClaims: jwt.StandardClaims{Subject: acct.ID},
		PwdFingerprint: PasswordFingerprint(acct.PasswordHash),
	}, PurposeReset)
}

// Verify checks signature, expiry and purpose; any mismatch fails closed with
// ErrInvalidToken.
func (ti *TokenIssuer) Verify(token string, purpose Purpose) (Claims, error) {
	claims := new(Claims)
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return ti.secret(purpose), nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	if claims.Purpose != purpose {
		return Claims{}, ErrInvalidToken
	}
	return *claims, nil
}

// PasswordFingerprint derives a short non-reversible tag from a password hash.
func PasswordFingerprint(hash []byte) string {
	sum := sha256.Sum256(hash)
	return base64.RawURLEncoding.EncodeToString(sum[:8])
}
