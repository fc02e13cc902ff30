// Package realtime fans session events out to an account's live websocket subscribers.
package realtime

import (
	"context"
	"log/slog"
	"sync"

	"authority/cmd/internal/auth/session"
)

// Hub tracks subscribers per account. It satisfies session.Publisher.
//
// Publish never blocks: a subscriber whose queue is full misses the event. A
// full queue that misses a terminal event gets the subscriber evicted instead.
type Hub struct {
	log *slog.Logger

	mu   sync.RWMutex
	subs map[string]map[string]*Client // user id -> conn id -> client
}

var _ session.Publisher = (*Hub)(nil)

// NewHub constructs a Hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:  log,
		subs: make(map[string]map[string]*Client),
	}
}

// Subscribe registers c for events addressed to c.UserID.
func (h *Hub) Subscribe(c *Client) {
	if c == nil || c.UserID == "" {
		return
	}

	h.mu.Lock()
	m, ok := h.subs[c.UserID]
	if !ok {
		m = make(map[string]*Client)
		h.subs[c.UserID] = m
	}
	m[c.ConnID] = c
	h.mu.Unlock()

	Subscribers.Inc()
	h.log.Info("events.subscribe", "user_id", c.UserID, "conn_id", c.ConnID)
}

// Unsubscribe removes c and signals it to stop. Safe to call more than once.
func (h *Hub) Unsubscribe(c *Client) { h.remove(c, "") }

func (h *Hub) remove(c *Client, reason string) {
	if c == nil {
		return
	}

	removed := false
	h.mu.Lock()
	if m, ok := h.subs[c.UserID]; ok {
		if _, ok := m[c.ConnID]; ok {
			delete(m, c.ConnID)
			removed = true
		}
		if len(m) == 0 {
			delete(h.subs, c.UserID)
		}
	}
	h.mu.Unlock()

	// Removed from the map before Close so publishers holding a snapshot only see done.
	c.closeWith(reason)

	if removed {
		Subscribers.Dec()
		h.log.Info("events.unsubscribe", "user_id", c.UserID, "conn_id", c.ConnID)
	}
}

// Count returns the number of live subscribers for userID.
func (h *Hub) Count(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// Publish delivers ev to every subscriber of ev.UserID.
func (h *Hub) Publish(_ context.Context, ev session.Event) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.subs[ev.UserID]))
	for _, c := range h.subs[ev.UserID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if c.offer(ev) {
			continue
		}
		Dropped.Inc()
		h.log.Info("events.drop", "user_id", ev.UserID, "conn_id", c.ConnID, "type", string(ev.Type))
		if ev.Type.Terminal() {
			h.remove(c, string(ev.Type))
		}
	}
}
