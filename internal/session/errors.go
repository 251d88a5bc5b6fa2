package session

import (
	"errors"
	"fmt"

	"github.com/iliyamo/videotube-identity/internal/repository"
)

var (
	// ErrUnauthenticated covers every bad, expired, malformed or missing
	// credential. Callers never learn which check failed.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrTokenReused means a refresh token that is no longer the live one
	// was presented: it was rotated away, or the session was revoked.
	ErrTokenReused = errors.New("refresh token reused")

	// ErrStorageFailure wraps transient credential-store errors. Retrying is
	// up to the caller; rotations are never retried here because an earlier
	// attempt may already have committed. It is the same sentinel as
	// repository.ErrStorageFailure.
	ErrStorageFailure = repository.ErrStorageFailure
)

// ReuseError is returned for ErrTokenReused and names the principal whose
// stale token was presented.
type ReuseError struct {
	PrincipalID string
}

func (e *ReuseError) Error() string { return ErrTokenReused.Error() }

func (e *ReuseError) Unwrap() error { return ErrTokenReused }

func storageFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageFailure, op, err)
}
