package account

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezvolt/darasa/core"
)

// Roles
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

var AllRoles = []string{RoleStudent, RoleTeacher, RoleAdmin}

// Account is the identity and credential state of a user.
// Credential, session and OTP fields are never serialized.
type Account struct {
	ID           string    `json:"id"`
	FullName     string    `json:"full_name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	DOB          time.Time `json:"dob"`
	Role         string    `json:"role"`
	Avatar       string    `json:"avatar"`
	PasswordHash []byte    `json:"-"`

	// single-slot session state: at most one live refresh token at a time
	RefreshToken string `json:"-"`

	// password-recovery state: at most one non-expired OTP at a time
	OTP        string    `json:"-"`
	OTPExpires time.Time `json:"-"`
	OTPEmail   string    `json:"-"`

	Classrooms []string  `json:"classrooms"`
	CreatedAt  time.Time `json:"created_at"` // UTC
	UpdatedAt  time.Time `json:"updated_at"` // UTC
	LastLogin  time.Time `json:"last_login"` // UTC
}

func (a *Account) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	a.PasswordHash = hash
	return nil
}

// CheckPassword reports whether pwd matches the stored hash; a mismatch is
// not an error. A malformed stored hash is returned as an error since it
// signals corrupted storage.
func (a *Account) CheckPassword(pwd string) (bool, error) {
	err := bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(pwd))
	if err == nil {
		return true, nil
	}
	if err == bcrypt.ErrMismatchedHashAndPassword {
		return false, nil
	}
	return false, err
}

func (a *Account) IsAdmin() bool   { return a.Role == RoleAdmin }
func (a *Account) IsTeacher() bool { return a.Role == RoleTeacher }
func (a *Account) IsStudent() bool { return a.Role == RoleStudent }

// HasLiveOTP reports whether a non-expired OTP is pending for the account.
func (a *Account) HasLiveOTP(now time.Time) bool {
	return a.OTP != "" && !now.After(a.OTPExpires)
}

// Identifier is a login identifier tagged at the boundary: either a username
// or an email, determined once by a strict validator.
type (
	IdentifierKind string

	Identifier struct {
		Kind  IdentifierKind
		Value string
	}
)

const (
	IdentifierUsername IdentifierKind = "username"
	IdentifierEmail    IdentifierKind = "email"
)

// ParseIdentifier classifies raw as an email or a username.
func ParseIdentifier(validate *validator.Validate, raw string) Identifier {
	val := core.CleanString(raw, true /* lower */)
	if err := validate.Var(val, "email"); err == nil {
		return Identifier{Kind: IdentifierEmail, Value: val}
	}
	return Identifier{Kind: IdentifierUsername, Value: val}
}

// NewAccount contains information needed to register a new Account.
// Avatar is set by the upload layer before the service is called.
type NewAccount struct {
	FullName        string    `json:"full_name" validate:"required"`
	Username        string    `json:"username" validate:"required,min=3,alphanum_"`
	Email           string    `json:"email" validate:"required,email"`
	Password        string    `json:"password" validate:"required,min=6"`
	PasswordConfirm string    `json:"password_confirm" validate:"required,eqfield=Password"`
	DOB             time.Time `json:"dob" validate:"required"`
	Role            string    `json:"role" validate:"required,oneof=student teacher admin"`
	Avatar          string    `json:"avatar" validate:"required,url"`
}

func (na *NewAccount) Validate(validate *validator.Validate, svc *Service) error {
	na.FullName = core.CleanString(na.FullName)
	na.Username = core.CleanString(na.Username, true /* lower */)
	na.Email = core.CleanString(na.Email, true /* lower */)

	if err := validate.Struct(na); err != nil {
		return err
	}
	return svc.CheckUniqueness(na.Username, na.Email)
}

// UpdateAccount defines what profile information may be modified.
type UpdateAccount struct {
	FullName string `json:"full_name"`
	Email    string `json:"email" validate:"omitempty,email"`
}

func (ua *UpdateAccount) Validate(orig Account, validate *validator.Validate, svc *Service) error {
	name := core.CleanString(ua.FullName)
	if name != "" {
		ua.FullName = name
	} else {
		ua.FullName = orig.FullName
	}

	email := core.CleanString(ua.Email, true /* lower */)
	if email != "" {
		ua.Email = email
	} else {
		ua.Email = orig.Email
	}

	if err := validate.Struct(ua); err != nil {
		return err
	}
	return svc.CheckUniqueness(orig.Username, ua.Email, orig)
}

// ChangePassword is the authenticated password-change input.
type ChangePassword struct {
	OldPassword        string `json:"oldPassword" validate:"required"`
	NewPassword        string `json:"newPassword" validate:"required,min=6"`
	NewConfirmPassword string `json:"newConfirmPassword" validate:"required,eqfield=NewPassword"`
}

func (cp ChangePassword) Validate(validate *validator.Validate) error {
	return validate.Struct(cp)
}

// ResetPassword is the recovery-flow password-reset input; authorization
// comes from the reset token, not from a session.
type ResetPassword struct {
	NewPassword        string `json:"newPassword" validate:"required,min=6"`
	ConfirmNewPassword string `json:"confirmNewPassword" validate:"required,eqfield=NewPassword"`
}

func (rp ResetPassword) Validate(validate *validator.Validate) error {
	return validate.Struct(rp)
}
