package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/videotube-identity/internal/model"
	"github.com/iliyamo/videotube-identity/internal/queue"
	"github.com/iliyamo/videotube-identity/internal/repository"
)

// LoginInput carries login credentials. At least one of Username and Email
// must be set.
type LoginInput struct {
	Username string
	Email    string
	Password string
}

// Options tunes a Controller.
type Options struct {
	// RevokeOnReuse clears the live session when a stale refresh token is
	// presented, forcing the legitimate holder to log in again too.
	RevokeOnReuse bool
	Events        EventPublisher
	Logger        zerolog.Logger
	Now           func() time.Time
}

// Controller owns every write to a principal's refresh state: login,
// rotation and revocation.
type Controller struct {
	store    CredentialStore
	issuer   *Issuer
	verifier *Verifier
	hasher   PasswordHasher
	opts     Options

	dummyOnce sync.Once
	dummyHash string
}

func NewController(store CredentialStore, issuer *Issuer, verifier *Verifier, hasher PasswordHasher, opts Options) *Controller {
	if opts.Events == nil {
		opts.Events = nopPublisher{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{store: store, issuer: issuer, verifier: verifier, hasher: hasher, opts: opts}
}

// Login checks credentials and starts a new session, replacing any
// previous one. Unknown principal and wrong password are indistinguishable.
func (c *Controller) Login(ctx context.Context, in LoginInput) (model.Principal, TokenPair, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if (username == "" && email == "") || in.Password == "" {
		return model.Principal{}, TokenPair{}, ErrUnauthenticated
	}
	p, err := c.store.GetByUsernameOrEmail(ctx, username, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.burnCompare(in.Password)
			return model.Principal{}, TokenPair{}, ErrUnauthenticated
		}
		return model.Principal{}, TokenPair{}, storageFailure("load principal", err)
	}
	if !c.hasher.Compare(p.PasswordHash, in.Password) {
		return model.Principal{}, TokenPair{}, ErrUnauthenticated
	}
	pair, err := c.issuer.issueFor(ctx, p)
	if err != nil {
		return model.Principal{}, TokenPair{}, err
	}
	p.Refresh = model.HoldingToken(pair.RefreshToken)
	c.publish(ctx, queue.SessionEvent{Type: queue.EventLogin, PrincipalID: p.ID})
	return p, pair, nil
}

// Rotate exchanges the presented refresh token for a new pair. The swap
// is conditional on the presented token still being the live one, so of
// two concurrent rotations of the same token exactly one succeeds and the
// other gets ErrTokenReused.
func (c *Controller) Rotate(ctx context.Context, presented string) (TokenPair, error) {
	p, err := c.verifier.VerifyRefresh(ctx, presented)
	if err != nil {
		var reuse *ReuseError
		if errors.As(err, &reuse) {
			c.onReuse(ctx, reuse.PrincipalID, "stale refresh token")
		}
		return TokenPair{}, err
	}

	pair, err := c.issuer.mint(p)
	if err != nil {
		return TokenPair{}, err
	}
	swapped, err := c.store.CompareAndSwapRefresh(ctx, p.ID, p.Refresh.Digest(), model.DigestToken(pair.RefreshToken))
	if err != nil {
		return TokenPair{}, storageFailure("swap refresh", err)
	}
	if !swapped {
		c.onReuse(ctx, p.ID, "lost concurrent rotation")
		return TokenPair{}, &ReuseError{PrincipalID: p.ID}
	}
	c.publish(ctx, queue.SessionEvent{Type: queue.EventRotated, PrincipalID: p.ID})
	return pair, nil
}

// Revoke ends principalID's session. Revoking twice, or revoking an
// unknown principal, succeeds. Access tokens already handed out stay valid
// until they expire.
func (c *Controller) Revoke(ctx context.Context, principalID string) error {
	if err := c.store.ClearRefresh(ctx, principalID); err != nil {
		return storageFailure("clear refresh", err)
	}
	c.publish(ctx, queue.SessionEvent{Type: queue.EventRevoked, PrincipalID: principalID})
	return nil
}

// VerifyAccess exposes the verifier to transport middleware.
func (c *Controller) VerifyAccess(token string) (Identity, error) {
	return c.verifier.VerifyAccess(token)
}

func (c *Controller) onReuse(ctx context.Context, principalID, reason string) {
	ev := queue.SessionEvent{Type: queue.EventReuseDetected, PrincipalID: principalID, Reason: reason}
	if c.opts.RevokeOnReuse {
		if err := c.store.ClearRefresh(ctx, principalID); err != nil {
			c.opts.Logger.Error().Err(err).Str("principal_id", principalID).Msg("revoke after refresh reuse failed")
		} else {
			ev.Revoked = true
		}
	}
	c.opts.Logger.Warn().
		Str("principal_id", principalID).
		Str("reason", reason).
		Bool("revoked", ev.Revoked).
		Msg("refresh token reuse detected")
	c.publish(ctx, ev)
}

func (c *Controller) publish(ctx context.Context, ev queue.SessionEvent) {
	ev.OccurredAt = c.opts.Now().UTC()
	if err := c.opts.Events.PublishSessionEvent(context.WithoutCancel(ctx), ev); err != nil {
		c.opts.Logger.Warn().Err(err).Str("event", ev.Type).Msg("publish session event failed")
	}
}

// burnCompare spends the same hashing work as a real password check so
// that unknown usernames do not answer faster.
func (c *Controller) burnCompare(plain string) {
	c.dummyOnce.Do(func() {
		c.dummyHash, _ = c.hasher.Hash("not-a-real-password")
	})
	if c.dummyHash != "" {
		_ = c.hasher.Compare(c.dummyHash, plain)
	}
}
