package router

import (
	"context"
	"iter"
	"sync"

	"github.com/iliyamo/videotube-identity/internal/model"
	"github.com/iliyamo/videotube-identity/internal/repository"
)

// memBackend stands in for MySQL: principals, subscriptions, videos and
// watch history behind one mutex.
type memBackend struct {
	mu         sync.Mutex
	principals map[string]model.Principal
	subs       map[[2]string]bool
	videos     map[string]model.Video
	history    map[string][]string
}

func newMemBackend() *memBackend {
	return &memBackend{
		principals: map[string]model.Principal{},
		subs:       map[[2]string]bool{},
		videos:     map[string]model.Video{},
		history:    map[string][]string{},
	}
}

func (b *memBackend) Create(_ context.Context, p *model.Principal) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, q := range b.principals {
		if q.Username == p.Username || q.Email == p.Email {
			return repository.ErrConflict
		}
	}
	b.principals[p.ID] = *p
	return nil
}

func (b *memBackend) GetByID(_ context.Context, id string) (model.Principal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.principals[id]
	if !ok {
		return model.Principal{}, repository.ErrNotFound
	}
	return p, nil
}

func (b *memBackend) GetByUsername(ctx context.Context, username string) (model.Principal, error) {
	return b.GetByUsernameOrEmail(ctx, username, "")
}

func (b *memBackend) GetByUsernameOrEmail(_ context.Context, username, email string) (model.Principal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	username, email = model.NormalizeUsername(username), model.NormalizeEmail(email)
	for _, p := range b.principals {
		if (username != "" && p.Username == username) || (email != "" && p.Email == email) {
			return p, nil
		}
	}
	return model.Principal{}, repository.ErrNotFound
}

func (b *memBackend) Save(_ context.Context, p *model.Principal, _ repository.SaveOptions) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur, ok := b.principals[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	refresh := cur.Refresh
	cur = *p
	cur.Refresh = refresh
	b.principals[p.ID] = cur
	return nil
}

func (b *memBackend) ReplaceRefresh(_ context.Context, id, digest string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.principals[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Refresh = model.Holding(digest)
	b.principals[id] = p
	return nil
}

func (b *memBackend) CompareAndSwapRefresh(_ context.Context, id, current, next string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.principals[id]
	if !ok || p.Refresh.Digest() != current {
		return false, nil
	}
	p.Refresh = model.Holding(next)
	b.principals[id] = p
	return true, nil
}

func (b *memBackend) ClearRefresh(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.principals[id]; ok {
		p.Refresh = model.Absent()
		b.principals[id] = p
	}
	return nil
}

func (b *memBackend) Subscribe(_ context.Context, subscriberID, channelID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[[2]string{subscriberID, channelID}] = true
	return nil
}

func (b *memBackend) Unsubscribe(_ context.Context, subscriberID, channelID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, [2]string{subscriberID, channelID})
	return nil
}

func (b *memBackend) CountSubscribers(_ context.Context, channelID string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var n int64
	for k := range b.subs {
		if k[1] == channelID {
			n++
		}
	}
	return n, nil
}

func (b *memBackend) CountSubscribedTo(_ context.Context, subscriberID string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var n int64
	for k := range b.subs {
		if k[0] == subscriberID {
			n++
		}
	}
	return n, nil
}

func (b *memBackend) IsSubscribed(_ context.Context, subscriberID, channelID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subs[[2]string{subscriberID, channelID}], nil
}

func (b *memBackend) Append(_ context.Context, userID, videoID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.videos[videoID]; !ok {
		return repository.ErrNotFound
	}
	b.history[userID] = append(b.history[userID], videoID)
	return nil
}

func (b *memBackend) Items(_ context.Context, userID string) iter.Seq2[repository.HistoryItem, error] {
	return func(yield func(repository.HistoryItem, error) bool) {
		b.mu.Lock()
		ids := append([]string(nil), b.history[userID]...)
		b.mu.Unlock()
		for i, vid := range ids {
			b.mu.Lock()
			v := b.videos[vid]
			owner, ok := b.principals[v.OwnerID]
			b.mu.Unlock()
			it := repository.HistoryItem{Seq: uint64(i + 1), Video: v}
			if ok {
				it.Owner = &repository.OwnerRow{ID: owner.ID, Username: owner.Username, FullName: owner.FullName, Avatar: owner.Avatar}
			}
			if !yield(it, nil) {
				return
			}
		}
	}
}
