package session

import (
	"context"
	"time"
)

// EventType names a session transition.
type EventType string

const (
	EventIssued         EventType = "session.issued"
	EventRotated        EventType = "session.rotated"
	EventRevoked        EventType = "session.revoked"
	EventAccountDeleted EventType = "account.deleted"
)

// Terminal reports whether the event ends the account's session.
func (t EventType) Terminal() bool {
	return t == EventRevoked || t == EventAccountDeleted
}

// Event is published after a transition has been persisted.
type Event struct {
	Type   EventType `json:"type"`
	UserID string    `json:"user_id"`
	At     time.Time `json:"at"`
}

// Publisher receives session events. Implementations must not block.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) {}
