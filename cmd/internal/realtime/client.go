package realtime

import (
	"sync"
	"time"

	"authority/cmd/identity/ids"
	"authority/cmd/internal/auth/session"
)

// Client is one subscribed websocket connection.
//
// Send is never closed by the server; Close signals done instead so a
// concurrent Publish cannot panic on a closed channel.
type Client struct {
	ConnID string
	UserID string
	Send   chan session.Event

	done        chan struct{}
	closeOnce   sync.Once
	closeReason string
}

// NewClient constructs a Client with a bounded send queue.
func NewClient(userID string, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = defaultSendQueueSize
	}
	connID, err := ids.New(time.Now().UTC())
	if err != nil {
		connID = userID
	}
	return &Client{
		ConnID: connID,
		UserID: userID,
		Send:   make(chan session.Event, sendQueueSize),
		done:   make(chan struct{}),
	}
}

// Done is closed when the client is shutting down.
func (c *Client) Done() <-chan struct{} {
	if c == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.done
}

// Close is idempotent.
func (c *Client) Close() { c.closeWith("") }

// closeWith closes the client. A non-empty reason asks the connection to end with
// a policy-violation close carrying it. Only the first call takes effect.
func (c *Client) closeWith(reason string) {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		c.closeReason = reason
		close(c.done)
	})
}

// EvictReason is the reason given when the hub evicted the client. It is empty
// until Done is closed and for ordinary unsubscribes.
func (c *Client) EvictReason() string {
	select {
	case <-c.Done():
		return c.closeReason
	default:
		return ""
	}
}

// offer enqueues ev without blocking. It reports false when the queue is full
// or the client is gone.
func (c *Client) offer(ev session.Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Send <- ev:
		return true
	default:
		return false
	}
}
