package middleware

import "github.com/labstack/echo/v4"

// Context keys populated by JWTAuth and OptionalJWT.
const (
	CtxUserID = "user_id"
	CtxRole   = "role"
)

// CurrentUserID returns the authenticated principal id, or "" when the request
// carries no valid access token.
func CurrentUserID(c echo.Context) string {
	if s, ok := c.Get(CtxUserID).(string); ok {
		return s
	}
	return ""
}

// viewerKey is CurrentUserID with a placeholder for anonymous callers, for use
// in rate limit and cache keys.
func viewerKey(c echo.Context) string {
	if id := CurrentUserID(c); id != "" {
		return id
	}
	return "anon"
}
