package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/videotube-identity/internal/config"
	"github.com/iliyamo/videotube-identity/internal/session"
)

type stubVerifier map[string]session.Identity

func (s stubVerifier) VerifyAccess(token string) (session.Identity, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return session.Identity{}, session.ErrUnauthenticated
}

var verifier = stubVerifier{
	"alice-token": {PrincipalID: "alice-id", Role: "USER"},
	"admin-token": {PrincipalID: "admin-id", Role: "ADMIN"},
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func whoami(c echo.Context) error {
	return c.String(http.StatusOK, CurrentUserID(c))
}

func serve(e *echo.Echo, method, path string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func bearer(tok string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set(echo.HeaderAuthorization, "Bearer "+tok) }
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, JWTAuth(verifier))

	rec := serve(e, http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(e, http.MethodGet, "/me", bearer("forged"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(e, http.MethodGet, "/me", bearer("alice-token"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice-id", rec.Body.String())

	rec = serve(e, http.MethodGet, "/me", func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: AccessCookie, Value: "alice-token"})
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice-id", rec.Body.String())
}

func TestOptionalJWT(t *testing.T) {
	e := echo.New()
	e.GET("/c", whoami, OptionalJWT(verifier))

	rec := serve(e, http.MethodGet, "/c", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = serve(e, http.MethodGet, "/c", bearer("forged"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = serve(e, http.MethodGet, "/c", bearer("alice-token"))
	assert.Equal(t, "alice-id", rec.Body.String())
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	e.POST("/admin", whoami, JWTAuth(verifier), RequireRole("ADMIN"))

	assert.Equal(t, http.StatusForbidden, serve(e, http.MethodPost, "/admin", bearer("alice-token")).Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/admin", bearer("admin-token")).Code)
}

func TestTokenBucket(t *testing.T) {
	rdb := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            2 * time.Hour,
		KeyStrategy:    "ip_route",
		Prefix:         "rl",
	}
	e := echo.New()
	e.POST("/login", whoami, NewTokenBucket(cfg, rdb, zerolog.Nop()))

	from := func(ip string) func(*http.Request) {
		return func(r *http.Request) { r.RemoteAddr = ip + ":1234" }
	}

	rec := serve(e, http.MethodPost, "/login", from("10.0.0.1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/login", from("10.0.0.1")).Code)

	rec = serve(e, http.MethodPost, "/login", from("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// buckets are per client address
	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/login", from("10.0.0.2")).Code)
}

func TestTokenBucketDisabled(t *testing.T) {
	e := echo.New()
	e.POST("/login", whoami, NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil, zerolog.Nop()))
	for range 5 {
		assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/login", nil).Code)
	}
}

func TestRedisCachePerViewer(t *testing.T) {
	rdb := newRedis(t)
	cfg := config.CacheConfig{
		Enabled:     true,
		Methods:     []string{"GET"},
		TTL:         time.Minute,
		KeyStrategy: "user_route_query",
		Prefix:      "cache",
	}
	calls := 0
	h := func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"viewer": CurrentUserID(c), "n": calls})
	}

	e := echo.New()
	e.GET("/channels/:username", h, OptionalJWT(verifier), NewRedisCache(cfg, rdb, zerolog.Nop()))
	e.POST("/channels/:username/subscription", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		JWTAuth(verifier), InvalidateViewer(cfg, rdb, zerolog.Nop()))

	first := serve(e, http.MethodGet, "/channels/bob", bearer("alice-token"))
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	again := serve(e, http.MethodGet, "/channels/bob", bearer("alice-token"))
	assert.Equal(t, "HIT", again.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), again.Body.String())
	assert.Equal(t, 1, calls)

	// another viewer must not see alice's entry
	anon := serve(e, http.MethodGet, "/channels/bob", nil)
	assert.Equal(t, "MISS", anon.Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)

	// alice's own write drops her entries
	require.Equal(t, http.StatusNoContent, serve(e, http.MethodPost, "/channels/bob/subscription", bearer("alice-token")).Code)
	after := serve(e, http.MethodGet, "/channels/bob", bearer("alice-token"))
	assert.Equal(t, "MISS", after.Header().Get("X-Cache"))
	assert.Equal(t, 3, calls)
}

func TestRedisCacheSkipsErrors(t *testing.T) {
	rdb := newRedis(t)
	cfg := config.CacheConfig{Enabled: true, Methods: []string{"GET"}, TTL: time.Minute, Prefix: "cache"}
	calls := 0
	e := echo.New()
	e.GET("/x", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
	}, NewRedisCache(cfg, rdb, zerolog.Nop()))

	serve(e, http.MethodGet, "/x", nil)
	serve(e, http.MethodGet, "/x", nil)
	assert.Equal(t, 2, calls)
}

func TestPayloadRoundTripRejectsTruncated(t *testing.T) {
	bs, err := encodePayload(http.StatusOK, http.Header{"Content-Type": {"application/json"}}, []byte(`{}`))
	require.NoError(t, err)

	status, hdr, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", hdr.Get("Content-Type"))
	assert.Equal(t, `{}`, string(body))

	_, _, _, ok = decodePayload(bs[:10])
	assert.False(t, ok)
}
