package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// SubscriptionRepo stores directed subscriber -> channel edges.
type SubscriptionRepo struct{ DB *sql.DB }

func NewSubscriptionRepo(db *sql.DB) *SubscriptionRepo { return &SubscriptionRepo{DB: db} }

// Subscribe records the edge. Subscribing twice is a no-op.
func (r *SubscriptionRepo) Subscribe(ctx context.Context, subscriberID, channelID string) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT IGNORE INTO subscriptions (subscriber_id, channel_id) VALUES (?,?)",
		subscriberID, channelID)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

// Unsubscribe removes the edge. Removing a missing edge is a no-op.
func (r *SubscriptionRepo) Unsubscribe(ctx context.Context, subscriberID, channelID string) error {
	_, err := r.DB.ExecContext(ctx,
		"DELETE FROM subscriptions WHERE subscriber_id=? AND channel_id=?",
		subscriberID, channelID)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}

// CountSubscribers returns how many principals follow channelID.
func (r *SubscriptionRepo) CountSubscribers(ctx context.Context, channelID string) (int64, error) {
	return r.count(ctx, "SELECT COUNT(*) FROM subscriptions WHERE channel_id=?", channelID)
}

// CountSubscribedTo returns how many channels subscriberID follows.
func (r *SubscriptionRepo) CountSubscribedTo(ctx context.Context, subscriberID string) (int64, error) {
	return r.count(ctx, "SELECT COUNT(*) FROM subscriptions WHERE subscriber_id=?", subscriberID)
}

// IsSubscribed reports whether the (subscriberID, channelID) edge exists.
func (r *SubscriptionRepo) IsSubscribed(ctx context.Context, subscriberID, channelID string) (bool, error) {
	var ok bool
	err := r.DB.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM subscriptions WHERE subscriber_id=? AND channel_id=?)",
		subscriberID, channelID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("query subscription: %w", err)
	}
	return ok, nil
}

func (r *SubscriptionRepo) count(ctx context.Context, q string, id string) (int64, error) {
	var n int64
	if err := r.DB.QueryRowContext(ctx, q, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("count subscriptions: %w", err)
	}
	return n, nil
}
