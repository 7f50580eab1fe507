package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezvolt/darasa/core"
	"github.com/trezvolt/darasa/core/account"
	"github.com/trezvolt/darasa/core/classroom"
)

var (
	errUnauthenticated = echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	errHTTPForbidden   = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHTTPNotFound    = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that maps our
// errors onto the response envelope.
// signalShutdown is called in order to gracefully shut the Server down
// whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var data interface{}
		var message string

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			if msg, ok := origErr.Message.(string); ok {
				message = msg
			} else {
				message = http.StatusText(code)
			}
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			data = fldErrs
			message = "invalid input"
		case *core.ValidationError:
			code = http.StatusBadRequest
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				data = fldErrs
				message = "invalid input"
			} else {
				message = origErr.Error()
			}
		default:
			switch origErr {
			case account.ErrInvalidCredentials, account.ErrInvalidOTP, account.ErrExpiredOTP:
				code = http.StatusBadRequest
				message = origErr.Error()
			case account.ErrInvalidToken, account.ErrTokenMismatch:
				code = http.StatusUnauthorized
				message = origErr.Error()
			case classroom.ErrForbidden:
				code = http.StatusForbidden
				message = origErr.Error()
			case account.ErrNotFound, classroom.ErrNotFound:
				code = http.StatusNotFound
				message = origErr.Error()
			case account.ErrEmailExists, account.ErrUsernameExists, classroom.ErrCodeExists:
				code = http.StatusConflict
				message = origErr.Error()
			default: // any other error is a server error
				code = http.StatusInternalServerError
				message = http.StatusText(code)

				var acct account.Account
				if ctxAcct, ok := ctx.Get(contextAccountKey).(account.Account); ok {
					acct = ctxAcct
				}
				logger.Error(message, errors.Wrap(err, message), acct)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}

		// Send response
		if !ctx.Response().Committed {
			var sendErr error
			if ctx.Request().Method == http.MethodHead {
				sendErr = ctx.NoContent(code)
			} else {
				sendErr = respond(ctx, code, data, message)
			}
			if sendErr != nil {
				ctx.Echo().Logger.Error(sendErr)
			}
		}
	}
}
