package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/videotube-identity/internal/model"
	"github.com/iliyamo/videotube-identity/internal/queue"
	"github.com/iliyamo/videotube-identity/internal/repository"
)

// memStore is an in-memory CredentialStore whose refresh writes are atomic
// under a single mutex, mirroring the single-row UPDATE of the SQL store.
type memStore struct {
	mu         sync.Mutex
	principals map[string]model.Principal

	failGet     error
	failReplace error
	failSwap    error
}

func newMemStore(ps ...model.Principal) *memStore {
	s := &memStore{principals: map[string]model.Principal{}}
	for _, p := range ps {
		s.principals[p.ID] = p
	}
	return s
}

func (s *memStore) GetByID(_ context.Context, id string) (model.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet != nil {
		return model.Principal{}, s.failGet
	}
	p, ok := s.principals[id]
	if !ok {
		return model.Principal{}, repository.ErrNotFound
	}
	return p, nil
}

func (s *memStore) GetByUsernameOrEmail(_ context.Context, username, email string) (model.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet != nil {
		return model.Principal{}, s.failGet
	}
	username, email = model.NormalizeUsername(username), model.NormalizeEmail(email)
	for _, p := range s.principals {
		if (username != "" && p.Username == username) || (email != "" && p.Email == email) {
			return p, nil
		}
	}
	return model.Principal{}, repository.ErrNotFound
}

func (s *memStore) ReplaceRefresh(_ context.Context, id, digest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReplace != nil {
		return s.failReplace
	}
	p, ok := s.principals[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Refresh = model.Holding(digest)
	s.principals[id] = p
	return nil
}

func (s *memStore) CompareAndSwapRefresh(_ context.Context, id, current, next string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSwap != nil {
		return false, s.failSwap
	}
	p, ok := s.principals[id]
	if !ok || p.Refresh.Digest() != current || current == "" {
		return false, nil
	}
	p.Refresh = model.Holding(next)
	s.principals[id] = p
	return true, nil
}

func (s *memStore) ClearRefresh(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.principals[id]; ok {
		p.Refresh = model.Absent()
		s.principals[id] = p
	}
	return nil
}

func (s *memStore) refreshOf(id string) model.RefreshState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.principals[id].Refresh
}

type plainHasher struct{}

func (plainHasher) Hash(plain string) (string, error) { return "h:" + plain, nil }
func (plainHasher) Compare(hash, plain string) bool   { return hash == "h:"+plain }

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.SessionEvent
	err    error
}

func (r *recordingPublisher) PublishSessionEvent(_ context.Context, ev queue.SessionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

const (
	testAccessTTL  = 15 * time.Minute
	testRefreshTTL = 7 * 24 * time.Hour
)

type fixture struct {
	store      *memStore
	clock      *clock
	events     *recordingPublisher
	issuer     *Issuer
	verifier   *Verifier
	controller *Controller
}

func alice() model.Principal {
	return model.Principal{
		ID:           "p-alice",
		Username:     "alice",
		Email:        "alice@example.com",
		FullName:     "Alice",
		PasswordHash: "h:wonderland",
		Role:         model.RoleUser,
	}
}

func newFixture(t *testing.T, revokeOnReuse bool, ps ...model.Principal) *fixture {
	t.Helper()
	if len(ps) == 0 {
		ps = []model.Principal{alice()}
	}
	clk := &clock{t: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	store := newMemStore(ps...)
	access, err := NewSigner("access-secret", KindAccess, "test", clk.Now)
	require.NoError(t, err)
	refresh, err := NewSigner("refresh-secret", KindRefresh, "test", clk.Now)
	require.NoError(t, err)
	issuer, err := NewIssuer(store, access, refresh, testAccessTTL, testRefreshTTL)
	require.NoError(t, err)
	verifier := NewVerifier(store, access, refresh)
	events := &recordingPublisher{}
	ctrl := NewController(store, issuer, verifier, plainHasher{}, Options{
		RevokeOnReuse: revokeOnReuse,
		Events:        events,
		Logger:        zerolog.Nop(),
		Now:           clk.Now,
	})
	return &fixture{store: store, clock: clk, events: events, issuer: issuer, verifier: verifier, controller: ctrl}
}

var errDBDown = errors.New("db down")
