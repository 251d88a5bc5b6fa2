package session

import (
	"context"

	"github.com/iliyamo/videotube-identity/internal/model"
	"github.com/iliyamo/videotube-identity/internal/queue"
)

// CredentialStore is the slice of the principal repository the session core
// needs. Lookups return repository.ErrNotFound for a missing principal; all
// other errors are transient.
type CredentialStore interface {
	GetByID(ctx context.Context, id string) (model.Principal, error)
	GetByUsernameOrEmail(ctx context.Context, username, email string) (model.Principal, error)
	ReplaceRefresh(ctx context.Context, id, digest string) error
	CompareAndSwapRefresh(ctx context.Context, id, current, next string) (bool, error)
	ClearRefresh(ctx context.Context, id string) error
}

// PasswordHasher hashes and compares passwords.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Compare(hash, plain string) bool
}

// EventPublisher receives session lifecycle events. Delivery is best
// effort; failures are logged and never fail the session operation.
type EventPublisher interface {
	PublishSessionEvent(ctx context.Context, ev queue.SessionEvent) error
}

type nopPublisher struct{}

func (nopPublisher) PublishSessionEvent(context.Context, queue.SessionEvent) error { return nil }
