// Package router wires handlers and middleware onto the Echo instance.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/videotube-identity/internal/handler"
	"github.com/iliyamo/videotube-identity/internal/middleware"
	"github.com/iliyamo/videotube-identity/internal/model"
)

// Middlewares are the optional, Redis-backed layers. Nil entries are
// skipped.
type Middlewares struct {
	RateLimit       echo.MiddlewareFunc
	Cache           echo.MiddlewareFunc
	CacheInvalidate echo.MiddlewareFunc
}

func nonNil(fns ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	out := make([]echo.MiddlewareFunc, 0, len(fns))
	for _, fn := range fns {
		if fn != nil {
			out = append(out, fn)
		}
	}
	return out
}

// RegisterRoutes registers unauthenticated infrastructure routes.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth registers the session lifecycle and account routes.
// Credential-presenting endpoints sit behind the rate limiter.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, v middleware.AccessVerifier, mw Middlewares) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login, nonNil(mw.RateLimit)...)
	g.POST("/refresh", a.Refresh, nonNil(mw.RateLimit)...)
	g.POST("/logout", a.Logout, middleware.JWTAuth(v))

	me := e.Group("/v1/me", middleware.JWTAuth(v))
	me.GET("", a.Me)
	me.POST("/password", a.ChangePassword)
}

// RegisterChannels registers the social graph routes. Profiles are public
// but personalised when a valid access token is present, so the cache key
// must include the viewer.
func RegisterChannels(e *echo.Echo, h *handler.ChannelHandler, v middleware.AccessVerifier, mw Middlewares) {
	ch := e.Group("/v1/channels/:username")
	ch.GET("", h.Profile, nonNil(middleware.OptionalJWT(v), mw.Cache)...)
	ch.POST("/subscription", h.Subscribe, nonNil(middleware.JWTAuth(v), mw.CacheInvalidate)...)
	ch.DELETE("/subscription", h.Unsubscribe, nonNil(middleware.JWTAuth(v), mw.CacheInvalidate)...)

	hist := e.Group("/v1/me/history", middleware.JWTAuth(v))
	hist.GET("", h.History)
	hist.POST("", h.RecordView)
}

// RegisterAdmin registers operator routes, restricted to the ADMIN role.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, v middleware.AccessVerifier) {
	g := e.Group("/v1/admin", middleware.JWTAuth(v), middleware.RequireRole(model.RoleAdmin))
	g.POST("/principals/:id/revoke", h.RevokeSession)
}
