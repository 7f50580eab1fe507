package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezvolt/darasa/core"
)

const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"
	resendTokenCookie  = "resendToken"
	resetTokenCookie   = "resetToken"
)

// response is the uniform envelope every endpoint replies with.
type response struct {
	StatusCode int         `json:"statusCode"`
	Data       interface{} `json:"data"`
	Message    string      `json:"message"`
	Success    bool        `json:"success"`
}

func respond(ctx echo.Context, code int, data interface{}, message string) error {
	return ctx.JSON(code, response{
		StatusCode: code,
		Data:       data,
		Message:    message,
		Success:    code < http.StatusBadRequest,
	})
}

func newCookie(conf *core.Config, name, value string, maxAge time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   !(conf.Debug || conf.TestMode),
	}
	if value == "" {
		c.MaxAge = -1
	} else {
		c.MaxAge = int(maxAge / time.Second)
	}
	return c
}

// newRecoveryCookie scopes recovery tokens tighter than session ones.
func newRecoveryCookie(conf *core.Config, name, value string, maxAge time.Duration) *http.Cookie {
	c := newCookie(conf, name, value, maxAge)
	c.SameSite = http.SameSiteStrictMode
	return c
}

func setSessionCookies(ctx echo.Context, conf *core.Config, access, refresh string) {
	ctx.SetCookie(newCookie(conf, accessTokenCookie, access, conf.Token.AccessExpiry))
	ctx.SetCookie(newCookie(conf, refreshTokenCookie, refresh, conf.Token.RefreshExpiry))
}

func clearSessionCookies(ctx echo.Context, conf *core.Config) {
	ctx.SetCookie(newCookie(conf, accessTokenCookie, "", 0))
	ctx.SetCookie(newCookie(conf, refreshTokenCookie, "", 0))
}
