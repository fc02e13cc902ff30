package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authority/cmd/identity"
	"authority/cmd/internal/auth/session"
	"authority/cmd/security/password"
	"authority/cmd/security/token"
)

func testSessionConfig() session.Config {
	return session.Config{
		Token: token.Config{
			Issuer:        "authority-test",
			AccessSecret:  []byte("access-secret-access-secret-0001"),
			RefreshSecret: []byte("refresh-secret-refresh-secret-01"),
			AccessTTL:     30 * time.Minute,
			RefreshTTL:    14 * 24 * time.Hour,
		},
		Password: password.Config{Params: password.Argon2idParams{
			MemoryKiB: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
		}},
		Policies: identity.DefaultPolicies(),
	}
}

func newTestServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()
	a, err := assemble(cfg, discardLog(), testSessionConfig(), identity.NewMemoryStore(), nil)
	require.NoError(t, err)
	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, bearer string, body any) (*http.Response, []byte) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, rdr)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

type pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func TestApp_IndexHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, Config{})

	resp, body := do(t, http.MethodGet, srv.URL+"/", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, indexBody, string(body))
	assert.NotEmpty(t, resp.Header.Get(headerRequestID))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	resp, _ = do(t, http.MethodGet, srv.URL+"/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, srv.URL+"/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, srv.URL+"/readyz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Generate one lifecycle sample so the vec is exported.
	do(t, http.MethodPost, srv.URL+"/user/session", "", map[string]string{"name": "ghost", "password": "Abcdef12"})

	resp, body = do(t, http.MethodGet, srv.URL+"/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "authority_session_operations_total")
	assert.Contains(t, string(body), "authority_events_subscribers")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestApp_ReadyzRequiresDB(t *testing.T) {
	srv := newTestServer(t, Config{ReadinessRequireDB: true})
	resp, _ := do(t, http.MethodGet, srv.URL+"/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestApp_LifecycleWithEventsFeed(t *testing.T) {
	srv := newTestServer(t, Config{})

	resp, body := do(t, http.MethodPost, srv.URL+"/user", "", map[string]string{"name": "alice", "password": "Abcdef12"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var created pair
	require.NoError(t, json.Unmarshal(body, &created))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/user/session/events", &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + created.AccessToken}},
	})
	require.NoError(t, err)
	defer conn.CloseNow()

	resp, body = do(t, http.MethodPatch, srv.URL+"/user/session", created.RefreshToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var current pair
	require.NoError(t, json.Unmarshal(body, &current))

	var ev session.Event
	_, msg, err := conn.Read(ctx)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(msg, &ev))
	assert.Equal(t, session.EventRotated, ev.Type)

	resp, body = do(t, http.MethodGet, srv.URL+"/user", current.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var who map[string]any
	require.NoError(t, json.Unmarshal(body, &who))
	assert.Equal(t, "alice", who["name"])

	resp, body = do(t, http.MethodDelete, srv.URL+"/user/session", current.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "null", strings.TrimSpace(string(body)))

	_, msg, err = conn.Read(ctx)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(msg, &ev))
	assert.Equal(t, session.EventRevoked, ev.Type)

	_, _, err = conn.Read(ctx)
	assert.Equal(t, websocket.StatusPolicyViolation, websocket.CloseStatus(err))

	resp, _ = do(t, http.MethodPatch, srv.URL+"/user/session", current.RefreshToken, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestApp_CORSPreflight(t *testing.T) {
	srv := newTestServer(t, Config{AllowedOrigin: "https://app.example.com"})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/user/session", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
}
