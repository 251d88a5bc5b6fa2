package model

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/mail"
	"strings"
	"time"
)

// Roles carried in the access token's role claim.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Principal represents an identity record as stored in the `users` table.
// PasswordHash and Refresh never leave the service; handlers convert a
// Principal into a public projection before responding.
type Principal struct {
	ID           string       // users.id (uuid)
	Username     string       // users.username, lowercase, unique
	Email        string       // users.email, lowercase, unique
	FullName     string       // users.full_name
	Avatar       string       // users.avatar (URL)
	CoverImage   string       // users.cover_image (URL)
	PasswordHash string       // users.password_hash
	Role         string       // users.role
	Refresh      RefreshState // users.refresh_token_hash (nullable)
	CreatedAt    time.Time    // users.created_at
	UpdatedAt    time.Time    // users.updated_at
}

// NormalizeUsername trims and lowercases a username.
func NormalizeUsername(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Validate checks the invariants a principal must satisfy before it is
// written: normalized unique keys present, a password hash, a known role.
func (p *Principal) Validate() error {
	if p.ID == "" {
		return errors.New("principal id is required")
	}
	if p.Username == "" || p.Username != NormalizeUsername(p.Username) {
		return errors.New("username must be non-empty and lowercase")
	}
	if strings.ContainsAny(p.Username, " \t@/") {
		return errors.New("username contains invalid characters")
	}
	if p.Email == "" || p.Email != NormalizeEmail(p.Email) {
		return errors.New("email must be non-empty and lowercase")
	}
	if _, err := mail.ParseAddress(p.Email); err != nil {
		return errors.New("email is malformed")
	}
	if strings.TrimSpace(p.FullName) == "" {
		return errors.New("full name is required")
	}
	if p.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if p.Role != RoleUser && p.Role != RoleAdmin {
		return errors.New("unknown role")
	}
	return nil
}

// RefreshState is the session state of a principal: either no session, or
// exactly one live refresh token identified by the SHA-256 digest of its
// raw value. The zero value is Absent.
type RefreshState struct {
	digest string
}

// Absent is the no-session state.
func Absent() RefreshState { return RefreshState{} }

// Holding returns the state whose live token has the given hex digest, as
// loaded from storage. An empty digest is Absent.
func Holding(digest string) RefreshState { return RefreshState{digest: digest} }

// HoldingToken returns the state whose live token is raw.
func HoldingToken(raw string) RefreshState { return RefreshState{digest: DigestToken(raw)} }

// Active reports whether a refresh token is live.
func (s RefreshState) Active() bool { return s.digest != "" }

// Digest returns the stored hex digest, empty when Absent.
func (s RefreshState) Digest() string { return s.digest }

// Matches reports whether raw is the live refresh token. Absent never
// matches.
func (s RefreshState) Matches(raw string) bool {
	if s.digest == "" || raw == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s.digest), []byte(DigestToken(raw))) == 1
}

// DigestToken returns the SHA-256 hex digest of a raw refresh token. Only
// the digest is stored, so a leaked users table cannot be replayed.
func DigestToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
