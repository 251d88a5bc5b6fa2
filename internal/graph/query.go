// Package graph answers relationship questions that are keyed by a
// verified principal: who follows a channel, whether the viewer does, and
// what the viewer has watched.
package graph

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/iliyamo/videotube-identity/internal/model"
	"github.com/iliyamo/videotube-identity/internal/repository"
)

// ErrNotFound is returned when the requested channel does not exist.
var ErrNotFound = errors.New("channel not found")

// Principals looks channels up by username.
type Principals interface {
	GetByUsername(ctx context.Context, username string) (model.Principal, error)
}

// Subscriptions answers edge questions.
type Subscriptions interface {
	CountSubscribers(ctx context.Context, channelID string) (int64, error)
	CountSubscribedTo(ctx context.Context, subscriberID string) (int64, error)
	IsSubscribed(ctx context.Context, subscriberID, channelID string) (bool, error)
}

// History streams a principal's watch history in append order.
type History interface {
	Items(ctx context.Context, userID string) iter.Seq2[repository.HistoryItem, error]
}

// Profile is the public projection of a channel. It never carries the
// password hash or session state.
type Profile struct {
	ID                string    `json:"id"`
	Username          string    `json:"username"`
	FullName          string    `json:"fullName"`
	Email             string    `json:"email"`
	Avatar            string    `json:"avatar"`
	CoverImage        string    `json:"coverImage"`
	SubscribersCount  int64     `json:"subscribersCount"`
	SubscribedToCount int64     `json:"channelsSubscribedToCount"`
	IsSubscribed      bool      `json:"isSubscribed"`
	CreatedAt         time.Time `json:"createdAt"`
}

// OwnerSummary is the public face of a video owner.
type OwnerSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Avatar   string `json:"avatar"`
}

// ContentSummary is one watched video with its owner denormalized in.
// Owner is nil when the owner no longer resolves.
type ContentSummary struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	VideoFile   string        `json:"videoFile"`
	Thumbnail   string        `json:"thumbnail"`
	Duration    float64       `json:"duration"`
	Views       uint64        `json:"views"`
	IsPublished bool          `json:"isPublished"`
	CreatedAt   time.Time     `json:"createdAt"`
	Owner       *OwnerSummary `json:"owner,omitempty"`
}

// Query is the graph query layer.
type Query struct {
	principals    Principals
	subscriptions Subscriptions
	history       History
}

func NewQuery(p Principals, s Subscriptions, h History) *Query {
	return &Query{principals: p, subscriptions: s, history: h}
}

// ChannelProfile describes the channel called username as seen by viewerID.
// An empty viewerID is an anonymous viewer, who is never subscribed.
func (q *Query) ChannelProfile(ctx context.Context, viewerID, username string) (Profile, error) {
	username = model.NormalizeUsername(username)
	if username == "" {
		return Profile{}, ErrNotFound
	}
	ch, err := q.principals.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, repository.StorageFailure("load channel", err)
	}

	subscribers, err := q.subscriptions.CountSubscribers(ctx, ch.ID)
	if err != nil {
		return Profile{}, repository.StorageFailure("count subscribers", err)
	}
	subscribedTo, err := q.subscriptions.CountSubscribedTo(ctx, ch.ID)
	if err != nil {
		return Profile{}, repository.StorageFailure("count subscriptions", err)
	}
	var subscribed bool
	if viewerID != "" {
		if subscribed, err = q.subscriptions.IsSubscribed(ctx, viewerID, ch.ID); err != nil {
			return Profile{}, repository.StorageFailure("check subscription", err)
		}
	}

	return Profile{
		ID:                ch.ID,
		Username:          ch.Username,
		FullName:          ch.FullName,
		Email:             ch.Email,
		Avatar:            ch.Avatar,
		CoverImage:        ch.CoverImage,
		SubscribersCount:  subscribers,
		SubscribedToCount: subscribedTo,
		IsSubscribed:      subscribed,
		CreatedAt:         ch.CreatedAt,
	}, nil
}

// WatchHistory lazily yields principalID's watched videos in the order
// they were appended. Each range over the result runs a fresh query.
func (q *Query) WatchHistory(ctx context.Context, principalID string) iter.Seq2[ContentSummary, error] {
	return func(yield func(ContentSummary, error) bool) {
		for it, err := range q.history.Items(ctx, principalID) {
			if err != nil {
				yield(ContentSummary{}, repository.StorageFailure("read history", err))
				return
			}
			if !yield(summarize(it), nil) {
				return
			}
		}
	}
}

func summarize(it repository.HistoryItem) ContentSummary {
	v := it.Video
	cs := ContentSummary{
		ID:          v.ID,
		Title:       v.Title,
		Description: v.Description,
		VideoFile:   v.VideoFile,
		Thumbnail:   v.Thumbnail,
		Duration:    v.Duration,
		Views:       v.Views,
		IsPublished: v.IsPublished,
		CreatedAt:   v.CreatedAt,
	}
	if it.Owner != nil {
		cs.Owner = &OwnerSummary{
			ID:       it.Owner.ID,
			Username: it.Owner.Username,
			FullName: it.Owner.FullName,
			Avatar:   it.Owner.Avatar,
		}
	}
	return cs
}
