// Package session implements the credential lifecycle of a principal:
// minting access/refresh pairs, verifying them, rotating the refresh token
// and revoking the session.
//
// A principal has at most one live refresh token. Its SHA-256 digest is
// kept on the principal record and is the only authority on whether a
// refresh token is still valid; the token's own expiry is necessary but not
// sufficient. Access tokens are stateless and cannot be revoked before
// they expire.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/videotube-identity/internal/model"
)

// TokenPair is a freshly minted access/refresh pair. It is never persisted;
// only the refresh digest is.
type TokenPair struct {
	AccessToken    string
	AccessExpires  time.Time
	RefreshToken   string
	RefreshExpires time.Time
}

// Issuer mints token pairs and records the refresh digest.
type Issuer struct {
	store      CredentialStore
	access     *Signer
	refresh    *Signer
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewIssuer wires an issuer. access and refresh must be built from
// different secrets.
func NewIssuer(store CredentialStore, access, refresh *Signer, accessTTL, refreshTTL time.Duration) (*Issuer, error) {
	if access == nil || refresh == nil {
		return nil, errors.New("both signers are required")
	}
	if string(access.key) == string(refresh.key) {
		return nil, errors.New("access and refresh signers share a key")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("token TTLs must be positive")
	}
	return &Issuer{store: store, access: access, refresh: refresh, accessTTL: accessTTL, refreshTTL: refreshTTL}, nil
}

// IssuePair mints a pair for principalID and makes its refresh token the
// only live one, overwriting any previous value. The pair is returned only
// if that write committed.
func (i *Issuer) IssuePair(ctx context.Context, principalID string) (TokenPair, error) {
	p, err := i.store.GetByID(ctx, principalID)
	if err != nil {
		return TokenPair{}, storageFailure("load principal", err)
	}
	return i.issueFor(ctx, p)
}

func (i *Issuer) issueFor(ctx context.Context, p model.Principal) (TokenPair, error) {
	pair, err := i.mint(p)
	if err != nil {
		return TokenPair{}, err
	}
	if err := i.store.ReplaceRefresh(ctx, p.ID, model.DigestToken(pair.RefreshToken)); err != nil {
		return TokenPair{}, storageFailure("store refresh", err)
	}
	return pair, nil
}

// mint signs both tokens without touching storage.
func (i *Issuer) mint(p model.Principal) (TokenPair, error) {
	at, atExp, err := i.access.Sign(p.ID, p.Role, i.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	rt, rtExp, err := i.refresh.Sign(p.ID, "", i.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: at, AccessExpires: atExp, RefreshToken: rt, RefreshExpires: rtExp}, nil
}
