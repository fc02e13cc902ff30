// Package main runs the account and session lifecycle against a live authority server.
//
// It checks:
//   - create, login, refresh and refresh replay rejection
//   - whoami
//   - the events feed (session.rotated, session.revoked, policy close)
//   - logout and account deletion
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
)

type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type event struct {
	Type   string    `json:"type"`
	UserID string    `json:"user_id"`
	At     time.Time `json:"at"`
}

type smoke struct {
	base    string
	http    *http.Client
	timeout time.Duration
	verbose bool
}

func main() {
	var (
		baseURL  = flag.String("url", "http://127.0.0.1:9099", "authority base URL")
		origin   = flag.String("origin", "", "Origin header for the events feed (empty sends none)")
		name     = flag.String("name", "", "account name (default: generated)")
		password = flag.String("password", "Smoke#Test1", "account password")
		timeout  = flag.Duration("timeout", 7*time.Second, "per-step timeout")
		verbose  = flag.Bool("v", false, "verbose output")
	)
	flag.Parse()

	if err := validateBaseURL(*baseURL); err != nil {
		fatalf("invalid -url: %v", err)
	}
	if *name == "" {
		*name = fmt.Sprintf("smk%d", time.Now().UnixNano()%1_000_000_000)
	}

	s := &smoke{
		base:    strings.TrimRight(*baseURL, "/"),
		http:    &http.Client{Timeout: *timeout},
		timeout: *timeout,
		verbose: *verbose,
	}
	creds := map[string]string{"name": *name, "password": *password}

	created := s.mustPair(http.MethodPost, "/user", "", creds)
	s.logf("created %s", *name)

	feed := s.mustOpenFeed(created.AccessToken, *origin)
	defer feed.CloseNow()

	login := s.mustPair(http.MethodPost, "/user/session", "", creds)
	s.mustEvent(feed, "session.issued")

	rotated := s.mustPair(http.MethodPatch, "/user/session", login.RefreshToken, nil)
	s.mustEvent(feed, "session.rotated")

	if code := s.status(http.MethodPatch, "/user/session", login.RefreshToken, nil); code != http.StatusUnauthorized {
		fatalf("refresh replay: got %d, want 401", code)
	}

	var who struct {
		UserID string `json:"user_id"`
		Name   string `json:"name"`
	}
	s.mustJSON(http.MethodGet, "/user", rotated.AccessToken, nil, &who)
	if who.Name != *name || who.UserID == "" {
		fatalf("whoami: unexpected %+v", who)
	}

	if code := s.status(http.MethodDelete, "/user/session", rotated.AccessToken, nil); code != http.StatusOK {
		fatalf("logout: got %d", code)
	}
	s.mustEvent(feed, "session.revoked")
	s.mustPolicyClose(feed)

	final := s.mustPair(http.MethodPost, "/user/session", "", creds)
	if code := s.status(http.MethodDelete, "/user", final.AccessToken, nil); code != http.StatusOK {
		fatalf("delete account: got %d", code)
	}
	if code := s.status(http.MethodPost, "/user/session", "", creds); code != http.StatusUnauthorized {
		fatalf("login after delete: got %d, want 401", code)
	}

	fmt.Printf("OK: name=%s user_id=%s\n", *name, who.UserID)
}

func (s *smoke) do(method, path, bearer string, body any) (int, []byte, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.base+path, rdr)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	s.logf("%s %s -> %d", method, path, resp.StatusCode)
	return resp.StatusCode, out, err
}

func (s *smoke) status(method, path, bearer string, body any) int {
	code, _, err := s.do(method, path, bearer, body)
	if err != nil {
		fatalf("%s %s: %v", method, path, err)
	}
	return code
}

func (s *smoke) mustJSON(method, path, bearer string, body, out any) {
	code, raw, err := s.do(method, path, bearer, body)
	if err != nil {
		fatalf("%s %s: %v", method, path, err)
	}
	if code != http.StatusOK {
		fatalf("%s %s: status %d body=%s", method, path, code, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		fatalf("%s %s: decode: %v", method, path, err)
	}
}

func (s *smoke) mustPair(method, path, bearer string, body any) tokenPair {
	var p tokenPair
	s.mustJSON(method, path, bearer, body, &p)
	if p.AccessToken == "" || p.RefreshToken == "" {
		fatalf("%s %s: incomplete token pair", method, path)
	}
	return p
}

func (s *smoke) mustOpenFeed(access, origin string) *websocket.Conn {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	h := http.Header{"Authorization": []string{"Bearer " + access}}
	if origin != "" {
		h.Set("Origin", origin)
	}
	wsURL := "ws" + strings.TrimPrefix(s.base, "http") + "/user/session/events"
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: h})
	if err != nil {
		fatalf("events dial: %v", err)
	}
	return conn
}

func (s *smoke) mustEvent(conn *websocket.Conn, want string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	_, raw, err := conn.Read(ctx)
	if err != nil {
		fatalf("events read (want %s): %v", want, err)
	}
	var ev event
	if err := json.Unmarshal(raw, &ev); err != nil {
		fatalf("events decode: %v", err)
	}
	if ev.Type != want {
		fatalf("events: got %s, want %s", ev.Type, want)
	}
	s.logf("event %s at %s", ev.Type, ev.At.Format(time.RFC3339))
}

func (s *smoke) mustPolicyClose(conn *websocket.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	_, _, err := conn.Read(ctx)
	if websocket.CloseStatus(err) != websocket.StatusPolicyViolation {
		fatalf("events: expected policy close, got %v", err)
	}
}

func (s *smoke) logf(format string, args ...any) {
	if s.verbose {
		fmt.Printf(format+"\n", args...)
	}
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	return nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
