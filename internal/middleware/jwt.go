package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/videotube-identity/internal/session"
)

// AccessCookie is the cookie carrying the access token for browser clients.
const AccessCookie = "accessToken"

// AccessVerifier checks an access token without touching storage.
type AccessVerifier interface {
	VerifyAccess(token string) (session.Identity, error)
}

// JWTAuth rejects requests without a valid access token. The token is read
// from the Authorization bearer header first and the access cookie second.
// On success the principal id and role are stored under CtxUserID and CtxRole.
func JWTAuth(v AccessVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := accessToken(c)
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
			}
			id, err := v.VerifyAccess(raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
			}
			c.Set(CtxUserID, id.PrincipalID)
			c.Set(CtxRole, id.Role)
			return next(c)
		}
	}
}

// OptionalJWT identifies the caller when a valid access token is present and
// lets the request through anonymously otherwise.
func OptionalJWT(v AccessVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if raw := accessToken(c); raw != "" {
				if id, err := v.VerifyAccess(raw); err == nil {
					c.Set(CtxUserID, id.PrincipalID)
					c.Set(CtxRole, id.Role)
				}
			}
			return next(c)
		}
	}
}

func accessToken(c echo.Context) string {
	if auth := c.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if ck, err := c.Cookie(AccessCookie); err == nil {
		return strings.TrimSpace(ck.Value)
	}
	return ""
}
