package service

import (
	"context"
	"fmt"

	"github.com/iliyamo/videotube-identity/internal/model"
	"github.com/iliyamo/videotube-identity/internal/repository"
)

type ChannelLookup interface {
	GetByUsername(ctx context.Context, username string) (model.Principal, error)
}

type SubscriptionWriter interface {
	Subscribe(ctx context.Context, subscriberID, channelID string) error
	Unsubscribe(ctx context.Context, subscriberID, channelID string) error
}

type HistoryWriter interface {
	Append(ctx context.Context, userID, videoID string) error
}

// Social records subscriptions and watch events.
type Social struct {
	channels ChannelLookup
	subs     SubscriptionWriter
	history  HistoryWriter
}

func NewSocial(channels ChannelLookup, subs SubscriptionWriter, history HistoryWriter) *Social {
	return &Social{channels: channels, subs: subs, history: history}
}

// Subscribe makes subscriberID follow the channel named channelUsername.
// Subscribing twice is a no-op; subscribing to yourself is rejected.
func (s *Social) Subscribe(ctx context.Context, subscriberID, channelUsername string) error {
	ch, err := s.resolve(ctx, subscriberID, channelUsername)
	if err != nil {
		return err
	}
	return repository.StorageFailure("subscribe", s.subs.Subscribe(ctx, subscriberID, ch.ID))
}

// Unsubscribe removes the subscription if it exists.
func (s *Social) Unsubscribe(ctx context.Context, subscriberID, channelUsername string) error {
	ch, err := s.resolve(ctx, subscriberID, channelUsername)
	if err != nil {
		return err
	}
	return repository.StorageFailure("unsubscribe", s.subs.Unsubscribe(ctx, subscriberID, ch.ID))
}

// RecordView appends videoID to the principal's watch history.
func (s *Social) RecordView(ctx context.Context, principalID, videoID string) error {
	if videoID == "" {
		return fmt.Errorf("%w: videoId is required", ErrValidation)
	}
	return repository.StorageFailure("append history", s.history.Append(ctx, principalID, videoID))
}

func (s *Social) resolve(ctx context.Context, subscriberID, channelUsername string) (model.Principal, error) {
	if model.NormalizeUsername(channelUsername) == "" {
		return model.Principal{}, fmt.Errorf("%w: channel username is required", ErrValidation)
	}
	ch, err := s.channels.GetByUsername(ctx, channelUsername)
	if err != nil {
		return model.Principal{}, repository.StorageFailure("load channel", err)
	}
	if ch.ID == subscriberID {
		return model.Principal{}, fmt.Errorf("%w: cannot subscribe to your own channel", ErrValidation)
	}
	return ch, nil
}
