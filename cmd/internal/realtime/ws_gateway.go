package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"authority/cmd/internal/apperr"
	"authority/cmd/internal/auth/session"
)

// Subprotocol is offered by the gateway; clients may omit it.
const Subprotocol = "authority.events.v1"

// AccessResolver authenticates the upgrade request. *bearer.Authenticator satisfies it.
type AccessResolver interface {
	ResolveAccess(r *http.Request) (session.Identity, error)
}

// Gateway serves GET /user/session/events.
//
// Each connection is authenticated with an access bearer token and receives the
// events published for that account. After a terminal event the socket is closed
// with a policy-violation status.
type Gateway struct {
	log  *slog.Logger
	hub  *Hub
	auth AccessResolver
	cfg  Config

	patterns []string
}

// NewGateway constructs a gateway. A nil hub gets a private one.
func NewGateway(log *slog.Logger, hub *Hub, auth AccessResolver, cfg Config) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	if hub == nil {
		hub = NewHub(log)
	}
	cfg = cfg.normalized()
	return &Gateway{
		log:      log,
		hub:      hub,
		auth:     auth,
		cfg:      cfg,
		patterns: originPatterns(cfg.AllowedOrigins),
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	who, err := g.auth.ResolveAccess(r)
	if err != nil {
		g.log.Info("events.reject.auth", "remote", r.RemoteAddr, "err", err)
		apperr.Write(w, err)
		return
	}

	// Subscribed before the handshake completes so nothing published after the
	// client sees 101 is missed.
	client := NewClient(who.UserID, g.cfg.SendQueueSize)
	g.hub.Subscribe(client)

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{Subprotocol},
		OriginPatterns: g.patterns,
	})
	if err != nil {
		// Accept has already written the response.
		g.hub.Unsubscribe(client)
		g.log.Info("events.accept.fail", "user_id", who.UserID, "origin", r.Header.Get("Origin"), "err", err)
		return
	}
	conn.SetReadLimit(maxFrameBytes)

	g.serve(r.Context(), conn, client)
}

func (g *Gateway) serve(parent context.Context, conn *websocket.Conn, client *Client) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var once sync.Once
	shutdown := func(code websocket.StatusCode, reason string) {
		once.Do(func() {
			g.hub.Unsubscribe(client)
			_ = conn.Close(code, reason)
			cancel()
		})
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				if reason := client.EvictReason(); reason != "" {
					shutdown(websocket.StatusPolicyViolation, reason)
				}
				return
			case ev := <-client.Send:
				if err := writeEvent(ctx, conn, ev, g.cfg.WriteTimeout); err != nil {
					g.log.Info("events.write.fail", "conn_id", client.ConnID, "close_status", websocket.CloseStatus(err), "err", err)
					shutdown(websocket.StatusAbnormalClosure, "write failed")
					return
				}
				if ev.Type.Terminal() {
					shutdown(websocket.StatusPolicyViolation, string(ev.Type))
					return
				}
			}
		}
	}()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)
		t := time.NewTicker(g.cfg.HeartbeatEvery)
		defer t.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case <-t.C:
				pingCtx, pingCancel := context.WithTimeout(ctx, g.cfg.HeartbeatTimeout)
				err := conn.Ping(pingCtx)
				pingCancel()
				if err == nil {
					failures = 0
					continue
				}
				failures++
				g.log.Info("events.ping.fail", "conn_id", client.ConnID, "failures", failures, "err", err)
				if failures >= maxPingFailures {
					shutdown(websocket.StatusGoingAway, "heartbeat failed")
					return
				}
			}
		}
	}()

	// The read loop only drains control frames and notices the peer going away.
	rl := NewRateLimiter(g.cfg.RateEvents, g.cfg.RateWindow)
	for {
		_, _, err := conn.Read(ctx)
		if err != nil {
			if !expectedReadErr(err) {
				g.log.Info("events.read.fail", "conn_id", client.ConnID, "err", err)
			}
			shutdown(websocket.StatusNormalClosure, "bye")
			break
		}
		if !rl.Allow(time.Now()) {
			shutdown(websocket.StatusPolicyViolation, "too many frames")
			break
		}
	}

	<-writerDone
	select {
	case <-heartbeatDone:
	case <-time.After(closeGrace):
	}
}

func writeEvent(parent context.Context, conn *websocket.Conn, ev session.Event, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}

func expectedReadErr(err error) bool {
	return websocket.CloseStatus(err) != -1 ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.EOF)
}
