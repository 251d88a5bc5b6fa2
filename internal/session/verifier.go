package session

import (
	"context"
	"errors"

	"github.com/iliyamo/videotube-identity/internal/model"
	"github.com/iliyamo/videotube-identity/internal/repository"
)

// Identity is what a verified access token asserts.
type Identity struct {
	PrincipalID string
	Role        string
}

// Verifier checks presented tokens.
type Verifier struct {
	store   CredentialStore
	access  *Signer
	refresh *Signer
}

func NewVerifier(store CredentialStore, access, refresh *Signer) *Verifier {
	return &Verifier{store: store, access: access, refresh: refresh}
}

// VerifyAccess validates an access token without touching storage.
func (v *Verifier) VerifyAccess(token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrUnauthenticated
	}
	claims, err := v.access.Parse(token)
	if err != nil {
		return Identity{}, ErrUnauthenticated
	}
	return Identity{PrincipalID: claims.Subject, Role: claims.Role}, nil
}

// VerifyRefresh validates a refresh token and checks that it is the
// principal's live one. A valid but stale token yields a *ReuseError.
func (v *Verifier) VerifyRefresh(ctx context.Context, token string) (model.Principal, error) {
	if token == "" {
		return model.Principal{}, ErrUnauthenticated
	}
	claims, err := v.refresh.Parse(token)
	if err != nil {
		return model.Principal{}, ErrUnauthenticated
	}
	p, err := v.store.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Principal{}, ErrUnauthenticated
		}
		return model.Principal{}, storageFailure("load principal", err)
	}
	if !p.Refresh.Matches(token) {
		return model.Principal{}, &ReuseError{PrincipalID: p.ID}
	}
	return p, nil
}
