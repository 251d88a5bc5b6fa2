package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/videotube-identity/internal/middleware"
	"github.com/iliyamo/videotube-identity/internal/model"
	"github.com/iliyamo/videotube-identity/internal/service"
	"github.com/iliyamo/videotube-identity/internal/session"
)

// Sessions is the session lifecycle as seen by HTTP.
type Sessions interface {
	Login(ctx context.Context, in session.LoginInput) (model.Principal, session.TokenPair, error)
	Rotate(ctx context.Context, presented string) (session.TokenPair, error)
	Revoke(ctx context.Context, principalID string) error
}

// Accounts covers registration and credential changes.
type Accounts interface {
	Register(ctx context.Context, in service.RegisterInput) (model.Principal, error)
	Profile(ctx context.Context, id string) (model.Principal, error)
	ChangePassword(ctx context.Context, id, current, next string) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Sessions Sessions
	Accounts Accounts
	Cookies  CookieOptions
}

func NewAuthHandler(s Sessions, a Accounts, cookies CookieOptions) *AuthHandler {
	return &AuthHandler{Sessions: s, Accounts: a, Cookies: cookies}
}

// ----- DTOs -----

type registerReq struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	FullName   string `json:"fullName"`
	Password   string `json:"password"`
	Avatar     string `json:"avatar"`
	CoverImage string `json:"coverImage"`
}

type loginReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r loginReq) validate() string {
	if strings.TrimSpace(r.Username) == "" && strings.TrimSpace(r.Email) == "" {
		return "username or email is required"
	}
	if r.Password == "" {
		return "password is required"
	}
	return ""
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordReq struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type userResp struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	FullName   string    `json:"fullName"`
	Avatar     string    `json:"avatar"`
	CoverImage string    `json:"coverImage"`
	Role       string    `json:"role"`
	CreatedAt  time.Time `json:"createdAt"`
}

func toUserResp(p model.Principal) userResp {
	return userResp{
		ID:         p.ID,
		Username:   p.Username,
		Email:      p.Email,
		FullName:   p.FullName,
		Avatar:     p.Avatar,
		CoverImage: p.CoverImage,
		Role:       p.Role,
		CreatedAt:  p.CreatedAt,
	}
}

type tokensResp struct {
	AccessToken    string    `json:"accessToken"`
	AccessExpires  time.Time `json:"accessExpires"`
	RefreshToken   string    `json:"refreshToken"`
	RefreshExpires time.Time `json:"refreshExpires"`
}

func toTokensResp(p session.TokenPair) tokensResp {
	return tokensResp{
		AccessToken:    p.AccessToken,
		AccessExpires:  p.AccessExpires,
		RefreshToken:   p.RefreshToken,
		RefreshExpires: p.RefreshExpires,
	}
}

type loginResp struct {
	User userResp `json:"user"`
	tokensResp
}

// Register creates an account. It does not start a session.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	p, err := h.Accounts.Register(ctx, service.RegisterInput{
		Username:   req.Username,
		Email:      req.Email,
		FullName:   req.FullName,
		Password:   req.Password,
		Avatar:     req.Avatar,
		CoverImage: req.CoverImage,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toUserResp(p))
}

// Login verifies credentials and returns a fresh pair, both in the body and
// as cookies. Any previous session of the principal ends.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if msg := req.validate(); msg != "" {
		return badRequest(c, msg)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	p, pair, err := h.Sessions.Login(ctx, session.LoginInput{Username: req.Username, Email: req.Email, Password: req.Password})
	if err != nil {
		return writeError(c, err)
	}
	h.Cookies.set(c, pair)
	return c.JSON(http.StatusOK, loginResp{User: toUserResp(p), tokensResp: toTokensResp(pair)})
}

// Refresh rotates the refresh token taken from the cookie or, failing that,
// the request body.
func (h *AuthHandler) Refresh(c echo.Context) error {
	raw := ""
	if ck, err := c.Cookie(refreshCookie); err == nil {
		raw = strings.TrimSpace(ck.Value)
	}
	if raw == "" {
		var req refreshReq
		_ = c.Bind(&req)
		raw = strings.TrimSpace(req.RefreshToken)
	}
	if raw == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	pair, err := h.Sessions.Rotate(ctx, raw)
	if err != nil {
		return writeError(c, err)
	}
	h.Cookies.set(c, pair)
	return c.JSON(http.StatusOK, toTokensResp(pair))
}

// Logout ends the caller's session and clears the cookies.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Sessions.Revoke(ctx, middleware.CurrentUserID(c)); err != nil {
		return writeError(c, err)
	}
	clearSessionCookies(c)
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

// Me returns the caller's own account.
func (h *AuthHandler) Me(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	p, err := h.Accounts.Profile(ctx, middleware.CurrentUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toUserResp(p))
}

// ChangePassword replaces the caller's password and ends their session.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Accounts.ChangePassword(ctx, middleware.CurrentUserID(c), req.OldPassword, req.NewPassword); err != nil {
		return writeError(c, err)
	}
	clearSessionCookies(c)
	return c.JSON(http.StatusOK, echo.Map{"message": "password changed"})
}
