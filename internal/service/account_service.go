package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/videotube-identity/internal/model"
	"github.com/iliyamo/videotube-identity/internal/repository"
	"github.com/iliyamo/videotube-identity/internal/utils"
)

const minPasswordLen = 8

// PrincipalStore is the subset of the principal repository used by Accounts.
type PrincipalStore interface {
	Create(ctx context.Context, p *model.Principal) error
	GetByID(ctx context.Context, id string) (model.Principal, error)
	GetByUsernameOrEmail(ctx context.Context, username, email string) (model.Principal, error)
	Save(ctx context.Context, p *model.Principal, opts repository.SaveOptions) error
}

type Hasher interface {
	Hash(plain string) (string, error)
	Compare(hash, plain string) bool
}

// SessionRevoker ends a principal's session.
type SessionRevoker interface {
	Revoke(ctx context.Context, principalID string) error
}

// RegisterInput is the data needed to create an account.
type RegisterInput struct {
	Username   string
	Email      string
	FullName   string
	Password   string
	Avatar     string
	CoverImage string
}

// Accounts handles registration and credential changes.
type Accounts struct {
	store    PrincipalStore
	hasher   Hasher
	sessions SessionRevoker
}

func NewAccounts(store PrincipalStore, hasher Hasher, sessions SessionRevoker) *Accounts {
	return &Accounts{store: store, hasher: hasher, sessions: sessions}
}

// Register creates a principal with no session. Registration does not log
// the user in. A taken username or email yields repository.ErrConflict.
func (a *Accounts) Register(ctx context.Context, in RegisterInput) (model.Principal, error) {
	p := model.Principal{
		ID:         uuid.NewString(),
		Username:   model.NormalizeUsername(in.Username),
		Email:      model.NormalizeEmail(in.Email),
		FullName:   strings.TrimSpace(in.FullName),
		Avatar:     strings.TrimSpace(in.Avatar),
		CoverImage: strings.TrimSpace(in.CoverImage),
		Role:       model.RoleUser,
	}
	if err := checkPassword(in.Password); err != nil {
		return model.Principal{}, err
	}
	// placeholder so Validate only reports profile problems
	p.PasswordHash = "-"
	if err := p.Validate(); err != nil {
		return model.Principal{}, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	if _, err := a.store.GetByUsernameOrEmail(ctx, p.Username, p.Email); err == nil {
		return model.Principal{}, repository.ErrConflict
	} else if !errors.Is(err, repository.ErrNotFound) {
		return model.Principal{}, repository.StorageFailure("lookup principal", err)
	}

	hash, err := a.hasher.Hash(in.Password)
	if err != nil {
		return model.Principal{}, fmt.Errorf("hash password: %w", err)
	}
	p.PasswordHash = hash
	if err := a.store.Create(ctx, &p); err != nil {
		return model.Principal{}, repository.StorageFailure("create principal", err)
	}
	return p, nil
}

// Profile returns the principal with the given id.
func (a *Accounts) Profile(ctx context.Context, id string) (model.Principal, error) {
	p, err := a.store.GetByID(ctx, id)
	if err != nil {
		return model.Principal{}, repository.StorageFailure("load principal", err)
	}
	return p, nil
}

// ChangePassword replaces the password after checking the current one and
// then ends the session, so every device has to log in again.
func (a *Accounts) ChangePassword(ctx context.Context, id, current, next string) error {
	if current == "" {
		return fmt.Errorf("%w: current password is required", ErrValidation)
	}
	if err := checkPassword(next); err != nil {
		return err
	}
	p, err := a.store.GetByID(ctx, id)
	if err != nil {
		return repository.StorageFailure("load principal", err)
	}
	if !a.hasher.Compare(p.PasswordHash, current) {
		return ErrInvalidPassword
	}
	hash, err := a.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	p.PasswordHash = hash
	if err := a.store.Save(ctx, &p, repository.SaveOptions{SkipValidation: true}); err != nil {
		return repository.StorageFailure("save principal", err)
	}
	return a.sessions.Revoke(ctx, id)
}

func checkPassword(pw string) error {
	switch {
	case len(pw) < minPasswordLen:
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLen)
	case len(pw) > 72:
		return fmt.Errorf("%w: %s", ErrValidation, utils.ErrPasswordTooLong)
	}
	return nil
}
