package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token kinds carried in the typ claim.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

// Claims is the JWT payload of both token kinds. Role is only set on
// access tokens.
type Claims struct {
	Kind string `json:"typ"`
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Signer signs and verifies one kind of token with one HMAC key.
type Signer struct {
	key    []byte
	kind   string
	issuer string
	now    func() time.Time
}

// NewSigner returns a signer for tokens of the given kind.
func NewSigner(secret, kind, issuer string, now func() time.Time) (*Signer, error) {
	if len(secret) == 0 {
		return nil, errors.New("empty signing secret")
	}
	if kind != KindAccess && kind != KindRefresh {
		return nil, fmt.Errorf("unknown token kind %q", kind)
	}
	if now == nil {
		now = time.Now
	}
	return &Signer{key: []byte(secret), kind: kind, issuer: issuer, now: now}, nil
}

// Sign mints a token for subject that expires after ttl. Every token gets
// a random jti, so two tokens minted in the same second still differ.
func (s *Signer) Sign(subject, role string, ttl time.Duration) (string, time.Time, error) {
	now := s.now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		Kind: s.kind,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse verifies signature, algorithm, issuer, expiry and kind.
func (s *Signer) Parse(token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	claims := &Claims{}
	tok, err := jwt.NewParser(opts...).ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.key, nil
	})
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Kind != s.kind {
		return nil, fmt.Errorf("token kind %q, want %q", claims.Kind, s.kind)
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}
