package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezvolt/darasa/core/account"
)

const contextAccountKey = "account"

var errAcctNotFoundInCtx = errors.New("account object not found in echo.Context")

// extractAccessToken looks for the session token in the accessToken cookie
// first, then in the Authorization header.
func extractAccessToken(ctx echo.Context) string {
	if cookie, err := ctx.Cookie(accessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := ctx.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// authMiddleware resolves the caller's access token to a live Account and
// stores it in the request context. Requests with a missing, expired or
// off-purpose token are rejected.
func authMiddleware(svc *account.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			token := extractAccessToken(ctx)
			if token == "" {
				return errUnauthenticated
			}
			acct, err := svc.ResolveAccess(ctx.Request().Context(), token)
			if err != nil {
				if errors.Cause(err) == account.ErrInvalidToken {
					return errUnauthenticated
				}
				return errors.Wrap(err, "resolving access token")
			}
			ctx.Set(contextAccountKey, acct)
			return next(ctx)
		}
	}
}

func getContextAccount(ctx echo.Context) (account.Account, error) {
	if acct, ok := ctx.Get(contextAccountKey).(account.Account); ok {
		return acct, nil
	}
	return account.Account{}, errAcctNotFoundInCtx
}
