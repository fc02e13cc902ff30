package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authority/cmd/identity"
	"authority/cmd/internal/auth/session"
	"authority/cmd/security/password"
	"authority/cmd/security/token"
)

type memoryAudit struct {
	mu      sync.Mutex
	actions []string
}

func (m *memoryAudit) Record(_ context.Context, e AuditEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, e.Action)
}

func (m *memoryAudit) list() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.actions...)
}

func newTestServer(t *testing.T) (*httptest.Server, *memoryAudit) {
	t.Helper()

	svc, err := session.NewService(session.Config{
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
	}, identity.NewMemoryStore())
	require.NoError(t, err)

	audit := &memoryAudit{}
	h, err := NewHandler(nil, Config{MaxBodyBytes: 4096}, svc, WithAuditSink(audit))
	require.NoError(t, err)

	mux := http.NewServeMux()
	h.Register(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, audit
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (r response) json(t *testing.T) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(r.body, &out), "body: %s", r.body)
	return out
}

func do(t *testing.T, ts *httptest.Server, method, path, bearer string, body any) response {
	t.Helper()

	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		buf, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, ts.URL+path, rd)
	require.NoError(t, err)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	res, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return response{status: res.StatusCode, header: res.Header, body: raw}
}

func pairFrom(t *testing.T, r response) tokenPairResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, r.status, "body: %s", r.body)
	var p tokenPairResponse
	require.NoError(t, json.Unmarshal(r.body, &p))
	require.NotEmpty(t, p.AccessToken)
	require.NotEmpty(t, p.RefreshToken)
	return p
}

func TestAPI_FullLifecycle(t *testing.T) {
	ts, audit := newTestServer(t)
	creds := map[string]string{"name": "alice", "password": "Abcdef12"}

	created := pairFrom(t, do(t, ts, http.MethodPost, "/user", "", creds))

	me := do(t, ts, http.MethodGet, "/user", created.AccessToken, nil)
	require.Equal(t, http.StatusOK, me.status)
	assert.Equal(t, "alice", me.json(t)["name"])
	assert.NotEmpty(t, me.json(t)["user_id"])

	logged := pairFrom(t, do(t, ts, http.MethodPost, "/user/session", "", creds))

	rotated := pairFrom(t, do(t, ts, http.MethodPatch, "/user/session", logged.RefreshToken, nil))

	replay := do(t, ts, http.MethodPatch, "/user/session", logged.RefreshToken, nil)
	assert.Equal(t, http.StatusUnauthorized, replay.status)

	out := do(t, ts, http.MethodDelete, "/user/session", rotated.AccessToken, nil)
	assert.Equal(t, http.StatusOK, out.status)
	assert.Equal(t, "null", strings.TrimSpace(string(out.body)))

	afterLogout := do(t, ts, http.MethodPatch, "/user/session", rotated.RefreshToken, nil)
	assert.Equal(t, http.StatusUnauthorized, afterLogout.status)

	del := do(t, ts, http.MethodDelete, "/user", rotated.AccessToken, nil)
	assert.Equal(t, http.StatusOK, del.status)

	gone := do(t, ts, http.MethodGet, "/user", rotated.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, gone.status)
	assert.Equal(t, map[string]any{"error": "Entity not found"}, gone.json(t))

	again := do(t, ts, http.MethodDelete, "/user", rotated.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, again.status)

	assert.Equal(t, []string{
		AuditCreate,
		AuditLoginSuccess,
		AuditRefreshSuccess,
		AuditRefreshFailed,
		AuditLogout,
		AuditRefreshFailed,
		AuditDelete,
	}, audit.list())
}

func TestAPI_CreateValidation(t *testing.T) {
	ts, _ := newTestServer(t)

	res := do(t, ts, http.MethodPost, "/user", "", map[string]string{"name": "al", "password": "short"})
	require.Equal(t, http.StatusUnprocessableEntity, res.status)
	errs, ok := res.json(t)["error"].(map[string]any)
	require.True(t, ok, "body: %s", res.body)
	assert.Equal(t, []any{"must be 3-15 characters in alphabet, numbers or symbols"}, errs["name"])
	assert.Equal(t, []any{"must be 8-30 characters in alphabet, numbers or symbols"}, errs["password"])

	pairFrom(t, do(t, ts, http.MethodPost, "/user", "", map[string]string{"name": "alice", "password": "Abcdef12"}))
	dup := do(t, ts, http.MethodPost, "/user", "", map[string]string{"name": "alice", "password": "Abcdef12"})
	require.Equal(t, http.StatusUnprocessableEntity, dup.status)
	assert.Equal(t, map[string]any{"error": map[string]any{"name": []any{"has already been taken"}}}, dup.json(t))
}

func TestAPI_MalformedBodies(t *testing.T) {
	ts, _ := newTestServer(t)

	for name, body := range map[string]string{
		"not json":      "{",
		"unknown field": `{"name":"alice","password":"Abcdef12","admin":true}`,
		"trailing":      `{"name":"alice","password":"Abcdef12"} {}`,
		"empty":         "",
		"too large":     `{"name":"` + strings.Repeat("a", 5000) + `"}`,
	} {
		res := do(t, ts, http.MethodPost, "/user", "", body)
		assert.Equal(t, http.StatusUnprocessableEntity, res.status, name)
		errs, ok := res.json(t)["error"].(map[string]any)
		require.True(t, ok, name)
		assert.Contains(t, errs, "body", name)
	}
}

func TestAPI_LoginFailure_NoEnumeration(t *testing.T) {
	ts, audit := newTestServer(t)
	pairFrom(t, do(t, ts, http.MethodPost, "/user", "", map[string]string{"name": "alice", "password": "Abcdef12"}))

	a := do(t, ts, http.MethodPost, "/user/session", "", map[string]string{"name": "alice", "password": "Wrong123"})
	b := do(t, ts, http.MethodPost, "/user/session", "", map[string]string{"name": "bob", "password": "Abcdef12"})

	assert.Equal(t, http.StatusUnauthorized, a.status)
	assert.Equal(t, a.status, b.status)
	assert.Equal(t, string(a.body), string(b.body))
	assert.Equal(t, map[string]any{"error": "Name and password do not match"}, a.json(t))
	assert.Contains(t, audit.list(), AuditLoginFailed)
}

func TestAPI_RefreshFromBody(t *testing.T) {
	ts, _ := newTestServer(t)
	alice := pairFrom(t, do(t, ts, http.MethodPost, "/user", "", map[string]string{"name": "alice", "password": "Abcdef12"}))
	bob := pairFrom(t, do(t, ts, http.MethodPost, "/user", "", map[string]string{"name": "bobby", "password": "Abcdef12"}))

	// body token with a mismatched access bearer
	res := do(t, ts, http.MethodPatch, "/user/session", bob.AccessToken, map[string]string{"refreshToken": alice.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, res.status)

	// body token with a refresh token in the header is not an access credential
	res = do(t, ts, http.MethodPatch, "/user/session", alice.RefreshToken, map[string]string{"refreshToken": alice.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, res.status)

	// body token with the matching access bearer
	next := pairFrom(t, do(t, ts, http.MethodPatch, "/user/session", alice.AccessToken, map[string]string{"refreshToken": alice.RefreshToken}))

	// body token alone
	pairFrom(t, do(t, ts, http.MethodPatch, "/user/session", "", map[string]string{"refreshToken": next.RefreshToken}))
}

func TestAPI_RefreshEmptyChunkedBodyUsesBearer(t *testing.T) {
	ts, _ := newTestServer(t)
	p := pairFrom(t, do(t, ts, http.MethodPost, "/user", "", map[string]string{"name": "alice", "password": "Abcdef12"}))

	for name, body := range map[string]string{"empty": "", "whitespace": "  \n"} {
		req := httptest.NewRequest(http.MethodPatch, "/user/session", io.NopCloser(strings.NewReader(body)))
		req.ContentLength = -1
		req.TransferEncoding = []string{"chunked"}
		req.Header.Set("Authorization", "Bearer "+p.RefreshToken)

		rec := httptest.NewRecorder()
		ts.Config.Handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, "%s: %s", name, rec.Body.String())

		var next tokenPairResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &next))
		require.NotEmpty(t, next.RefreshToken)
		p = next
	}
}

func TestAPI_BearerFailures(t *testing.T) {
	ts, _ := newTestServer(t)
	p := pairFrom(t, do(t, ts, http.MethodPost, "/user", "", map[string]string{"name": "alice", "password": "Abcdef12"}))

	cases := []struct {
		name   string
		method string
		path   string
		header string
	}{
		{"missing header", http.MethodGet, "/user", ""},
		{"garbage", http.MethodGet, "/user", "Bearer garbage"},
		{"lowercase scheme", http.MethodGet, "/user", "bearer " + p.AccessToken},
		{"refresh as access", http.MethodDelete, "/user/session", "Bearer " + p.RefreshToken},
		{"access as refresh", http.MethodPatch, "/user/session", "Bearer " + p.AccessToken},
		{"no refresh at all", http.MethodPatch, "/user/session", ""},
	}
	for _, tc := range cases {
		req, err := http.NewRequest(tc.method, ts.URL+tc.path, nil)
		require.NoError(t, err)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		res, err := ts.Client().Do(req)
		require.NoError(t, err)
		var body map[string]any
		require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
		_ = res.Body.Close()

		assert.Equal(t, http.StatusUnauthorized, res.StatusCode, tc.name)
		assert.Equal(t, "An issue was found with the token provided", body["error"], tc.name)
	}
}

func TestAPI_MethodNotAllowed(t *testing.T) {
	ts, _ := newTestServer(t)

	res := do(t, ts, http.MethodPut, "/user/session", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, res.status)
	assert.Contains(t, res.header.Get("Allow"), http.MethodPatch)
}
