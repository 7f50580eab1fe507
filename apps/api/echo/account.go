package echoapi

import (
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezvolt/darasa/core"
	"github.com/trezvolt/darasa/core/account"
)

type accountApi struct {
	opts *Options
}

func registerAccountAPI(g *echo.Group, auth echo.MiddlewareFunc, opts *Options) {
	api := accountApi{opts: opts}

	ag := g.Group("/accounts")

	// un-authed endpoints
	// TODO: rate limit `/generate-otp` & `/verify-otp`
	ag.POST("/register", api.register)
	ag.POST("/login", api.login)
	ag.POST("/refresh-token", api.refreshToken)
	ag.POST("/generate-otp", api.generateOTP)
	ag.POST("/resend-otp", api.resendOTP)
	ag.POST("/verify-otp", api.verifyOTP)
	ag.POST("/reset-password", api.resetPassword)

	// authed endpoints
	sg := ag.Group("", auth)
	sg.POST("/logout", api.logout)
	sg.POST("/change-password", api.changePassword)
	sg.GET("/current-user", api.currentUser)
	sg.PATCH("/update-account", api.updateAccount)
	sg.PATCH("/avatar", api.updateAvatar)
}

// Handlers

func (api *accountApi) register(ctx echo.Context) error {
	data := account.NewAccount{
		FullName:        ctx.FormValue("full_name"),
		Username:        ctx.FormValue("username"),
		Email:           ctx.FormValue("email"),
		Password:        ctx.FormValue("password"),
		PasswordConfirm: ctx.FormValue("password_confirm"),
		Role:            ctx.FormValue("role"),
	}
	if rawDOB := ctx.FormValue("dob"); rawDOB != "" {
		dob, err := time.Parse("2006-01-02", rawDOB)
		if err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "dob", Error: "must be a valid date (YYYY-MM-DD)"})
		}
		data.DOB = dob
	}

	avatarURL, err := api.uploadAvatar(ctx)
	if err != nil {
		return err
	}
	data.Avatar = avatarURL

	if err := data.Validate(api.opts.Validate, api.opts.AccountSvc); err != nil {
		return err
	}

	acct, err := api.opts.AccountSvc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering account")
	}
	return respond(ctx, http.StatusCreated, acct, "account registered")
}

// uploadAvatar stores the submitted avatar file and returns its URL.
func (api *accountApi) uploadAvatar(ctx echo.Context) (string, error) {
	fh, err := ctx.FormFile("avatar")
	if err != nil {
		return "", core.NewValidationError(nil, core.FieldError{Field: "avatar", Error: "avatar file is required"})
	}
	src, err := fh.Open()
	if err != nil {
		return "", errors.Wrap(err, "opening avatar upload")
	}
	defer src.Close()

	key := fmt.Sprintf("avatars/%s%s", uuid.NewString(), filepath.Ext(fh.Filename))
	contentType := fh.Header.Get(echo.HeaderContentType)
	url, err := api.opts.FileStorage.Upload(ctx.Request().Context(), key, src, contentType)
	if err != nil {
		return "", errors.Wrap(err, "uploading avatar")
	}
	return url, nil
}

func (api *accountApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.opts.Validate); err != nil {
		return err
	}

	ident := account.ParseIdentifier(api.opts.Validate, data.Identifier)
	acct, access, refresh, err := api.opts.AccountSvc.Login(ctx.Request().Context(), ident, data.Password)
	if err != nil {
		return errors.Wrap(err, "logging in")
	}

	setSessionCookies(ctx, api.opts.Conf, access, refresh)
	return respond(ctx, http.StatusOK, LoginResponse{
		Account:      acct,
		AccessToken:  access,
		RefreshToken: refresh,
	}, "logged in")
}

func (api *accountApi) refreshToken(ctx echo.Context) error {
	token := ""
	if cookie, err := ctx.Cookie(refreshTokenCookie); err == nil {
		token = cookie.Value
	}
	if token == "" {
		var data RefreshRequest
		if err := ctx.Bind(&data); err == nil {
			token = data.RefreshToken
		}
	}
	if token == "" {
		return errUnauthenticated
	}

	access, refresh, err := api.opts.AccountSvc.Refresh(ctx.Request().Context(), token)
	if err != nil {
		return errors.Wrap(err, "refreshing session")
	}

	setSessionCookies(ctx, api.opts.Conf, access, refresh)
	return respond(ctx, http.StatusOK, LoginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
	}, "session refreshed")
}

func (api *accountApi) logout(ctx echo.Context) error {
	acct, err := getContextAccount(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}
	if err := api.opts.AccountSvc.Logout(ctx.Request().Context(), acct.ID); err != nil {
		return errors.Wrap(err, "logging out")
	}
	clearSessionCookies(ctx, api.opts.Conf)
	return respond(ctx, http.StatusOK, nil, "logged out")
}

func (api *accountApi) changePassword(ctx echo.Context) error {
	acct, err := getContextAccount(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}

	var data account.ChangePassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChangePassword")
	}
	if err := data.Validate(api.opts.Validate); err != nil {
		return err
	}

	if err := api.opts.AccountSvc.ChangePassword(ctx.Request().Context(), acct, data); err != nil {
		return errors.Wrap(err, "changing password")
	}
	// the refresh slot was cleared; the session cookies are now stale
	clearSessionCookies(ctx, api.opts.Conf)
	return respond(ctx, http.StatusOK, nil, "password changed, please log in again")
}

func (api *accountApi) currentUser(ctx echo.Context) error {
	acct, err := getContextAccount(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}
	return respond(ctx, http.StatusOK, acct, "current account")
}

func (api *accountApi) updateAccount(ctx echo.Context) error {
	acct, err := getContextAccount(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}

	var data account.UpdateAccount
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAccount")
	}
	if err := data.Validate(acct, api.opts.Validate, api.opts.AccountSvc); err != nil {
		return err
	}

	acct, err = api.opts.AccountSvc.Update(ctx.Request().Context(), acct.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating account")
	}
	return respond(ctx, http.StatusOK, acct, "account updated")
}

func (api *accountApi) updateAvatar(ctx echo.Context) error {
	acct, err := getContextAccount(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}

	url, err := api.uploadAvatar(ctx)
	if err != nil {
		return err
	}
	acct, err = api.opts.AccountSvc.UpdateAvatar(ctx.Request().Context(), acct.ID, url)
	if err != nil {
		return errors.Wrap(err, "updating avatar")
	}
	return respond(ctx, http.StatusOK, acct, "avatar updated")
}

func (api *accountApi) generateOTP(ctx echo.Context) error {
	var data OTPRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to OTPRequest")
	}
	if err := data.Validate(api.opts.Validate); err != nil {
		return err
	}

	ident := account.ParseIdentifier(api.opts.Validate, data.Identifier)
	resendToken, err := api.opts.AccountSvc.GenerateOTP(ctx.Request().Context(), ident)
	if err != nil {
		return errors.Wrap(err, "generating OTP")
	}

	ctx.SetCookie(newRecoveryCookie(api.opts.Conf, resendTokenCookie, resendToken, api.opts.Conf.Token.ResendExpiry))
	return respond(ctx, http.StatusOK, nil, "an OTP has been sent to the account's email address")
}

func (api *accountApi) resendOTP(ctx echo.Context) error {
	cookie, err := ctx.Cookie(resendTokenCookie)
	if err != nil || cookie.Value == "" {
		return core.NewValidationError(errors.New("no pending OTP request"))
	}

	if err := api.opts.AccountSvc.ResendOTP(ctx.Request().Context(), cookie.Value); err != nil {
		return errors.Wrap(err, "resending OTP")
	}
	return respond(ctx, http.StatusOK, nil, "a fresh OTP has been sent to the account's email address")
}

func (api *accountApi) verifyOTP(ctx echo.Context) error {
	var data VerifyOTPRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyOTPRequest")
	}
	if err := data.Validate(api.opts.Validate); err != nil {
		return err
	}

	resetToken, err := api.opts.AccountSvc.VerifyOTP(ctx.Request().Context(), data.OTP)
	if err != nil {
		return errors.Wrap(err, "verifying OTP")
	}

	// the resend window is over either way
	ctx.SetCookie(newRecoveryCookie(api.opts.Conf, resendTokenCookie, "", 0))
	ctx.SetCookie(newRecoveryCookie(api.opts.Conf, resetTokenCookie, resetToken, api.opts.Conf.Token.ResetExpiry))
	return respond(ctx, http.StatusOK, nil, "OTP verified")
}

func (api *accountApi) resetPassword(ctx echo.Context) error {
	cookie, err := ctx.Cookie(resetTokenCookie)
	if err != nil || cookie.Value == "" {
		return errUnauthenticated
	}

	var data account.ResetPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetPassword")
	}
	if err := data.Validate(api.opts.Validate); err != nil {
		return err
	}

	if err := api.opts.AccountSvc.ResetPasswordWithToken(ctx.Request().Context(), cookie.Value, data); err != nil {
		return errors.Wrap(err, "resetting password")
	}

	ctx.SetCookie(newRecoveryCookie(api.opts.Conf, resetTokenCookie, "", 0))
	return respond(ctx, http.StatusOK, nil, "password has been reset, please log in")
}

type (
	LoginRequest struct {
		Identifier string `json:"identifier" validate:"required"`
		Password   string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Account      interface{} `json:"account,omitempty"`
		AccessToken  string      `json:"accessToken"`
		RefreshToken string      `json:"refreshToken"`
	}

	RefreshRequest struct {
		RefreshToken string `json:"refreshToken"`
	}

	OTPRequest struct {
		Identifier string `json:"identifier" validate:"required"`
	}

	VerifyOTPRequest struct {
		OTP string `json:"otp" validate:"required,otp"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Identifier = core.CleanString(lr.Identifier, true /* lower */)
	return validate.Struct(lr)
}

func (or *OTPRequest) Validate(validate *validator.Validate) error {
	or.Identifier = core.CleanString(or.Identifier, true /* lower */)
	return validate.Struct(or)
}

func (vr *VerifyOTPRequest) Validate(validate *validator.Validate) error {
	vr.OTP = core.CleanString(vr.OTP)
	return validate.Struct(vr)
}
