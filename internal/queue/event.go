// Package queue defines message payloads exchanged over the message broker
// and the consumer that records them.
package queue

import "time"

// Session event types.
const (
	EventLogin         = "session.login"
	EventRotated       = "session.rotated"
	EventRevoked       = "session.revoked"
	EventReuseDetected = "session.reuse_detected"
)

// SessionEvent is published whenever a principal's session changes state,
// and when a stale refresh token is presented. It carries no credential
// material.
type SessionEvent struct {
	Type        string    `json:"type"`
	PrincipalID string    `json:"principal_id"`
	Revoked     bool      `json:"revoked,omitempty"` // reuse led to revocation
	Reason      string    `json:"reason,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}
