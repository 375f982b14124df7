package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/jmehdipour/titletester/internal/model"
	echo "github.com/labstack/echo/v4"
)

const ctxIdentity = "identity"

// IdentityVerifier turns a bearer token into the caller's identity.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (model.Identity, error)
}

// IdentityFromCtx returns the identity stored by Authenticator.
func IdentityFromCtx(c echo.Context) (model.Identity, bool) {
	id, ok := c.Get(ctxIdentity).(model.Identity)
	return id, ok && id.UID != ""
}

// BearerToken extracts the credential of an "Authorization: Bearer <token>" header.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Authenticator requires a verified bearer token. Requests without one are
// rejected before the verifier is called; verifier errors are returned as is
// for the server's error handler to map.
func Authenticator(v IdentityVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
				return echo.NewHTTPError(http.StatusUnauthorized, "Not authenticated")
			}

			id, err := v.Verify(c.Request().Context(), token)
			if err != nil {
				return err
			}

			c.Set(ctxIdentity, id)
			return next(c)
		}
	}
}
