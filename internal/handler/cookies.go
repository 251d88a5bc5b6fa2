package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/videotube-identity/internal/session"
)

const (
	accessCookie  = "accessToken"
	refreshCookie = "refreshToken"
)

// CookieOptions controls the session cookies. Secure is only turned off for
// local development over plain HTTP.
type CookieOptions struct {
	Secure bool
}

func (o CookieOptions) set(c echo.Context, pair session.TokenPair) {
	c.SetCookie(o.cookie(accessCookie, pair.AccessToken, pair.AccessExpires))
	c.SetCookie(o.cookie(refreshCookie, pair.RefreshToken, pair.RefreshExpires))
}

func (o CookieOptions) cookie(name, value string, exp time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func clearSessionCookies(c echo.Context) {
	for _, name := range []string{accessCookie, refreshCookie} {
		c.SetCookie(&http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
		})
	}
}
