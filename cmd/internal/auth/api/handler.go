package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"authority/cmd/internal/apperr"
	"authority/cmd/internal/auth/bearer"
	"authority/cmd/internal/auth/session"
)

// Sessions is the lifecycle surface the handlers drive. *session.Service satisfies it.
type Sessions interface {
	bearer.Verifier
	Create(ctx context.Context, name, password string) (session.Pair, error)
	Login(ctx context.Context, name, password string) (session.Pair, error)
	Refresh(ctx context.Context, rc session.RefreshCredential) (session.Pair, error)
	Logout(ctx context.Context, who session.Identity) error
	DeleteAccount(ctx context.Context, who session.Identity) error
	WhoAmI(ctx context.Context, who session.Identity) (session.Account, error)
}

// Handler wires the /user routes to the session lifecycle.
type Handler struct {
	log      *slog.Logger
	cfg      Config
	sessions Sessions
	auth     *bearer.Authenticator
	audit    AuditSink
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handler)

// WithAuditSink overrides the default slog audit sink.
func WithAuditSink(sink AuditSink) HandlerOption {
	return func(h *Handler) {
		if h == nil || sink == nil {
			return
		}
		h.audit = sink
	}
}

// NewHandler constructs a Handler.
func NewHandler(log *slog.Logger, cfg Config, sessions Sessions, opts ...HandlerOption) (*Handler, error) {
	if sessions == nil {
		return nil, errors.New("auth: nil session service")
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 10
	}

	h := &Handler{
		log:      log,
		cfg:      cfg,
		sessions: sessions,
		auth:     bearer.New(sessions),
		audit:    SlogAudit{Log: log},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h, nil
}

// Authenticator exposes the request authenticator used by the handlers.
func (h *Handler) Authenticator() *bearer.Authenticator { return h.auth }

// Register wires auth routes onto the provided mux. Other methods on these paths get 405.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.Handle("GET /user", h.auth.RequireAccess(http.HandlerFunc(h.handleWhoAmI)))
	mux.HandleFunc("POST /user", h.handleCreate)
	mux.Handle("DELETE /user", h.auth.RequireAccess(http.HandlerFunc(h.handleDelete)))
	mux.HandleFunc("POST /user/session", h.handleLogin)
	mux.HandleFunc("PATCH /user/session", h.handleRefresh)
	mux.Handle("DELETE /user/session", h.auth.RequireAccess(http.HandlerFunc(h.handleLogout)))
}

// ---- handlers ----

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		h.fail(w, r, "create", err)
		return
	}

	pair, err := h.sessions.Create(r.Context(), req.Name, req.Password)
	if err != nil {
		h.fail(w, r, "create", err)
		return
	}

	h.record(r, AuditCreate, pair.Access.Claims.Subject, nil)
	writeJSON(w, http.StatusOK, toPairResponse(pair))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		h.fail(w, r, "login", err)
		return
	}

	pair, err := h.sessions.Login(r.Context(), req.Name, req.Password)
	if err != nil {
		if apperr.Is(err, apperr.KindUnauthorized) {
			h.record(r, AuditLoginFailed, "", map[string]any{"name": req.Name})
		}
		h.fail(w, r, "login", err)
		return
	}

	h.record(r, AuditLoginSuccess, pair.Access.Claims.Subject, nil)
	writeJSON(w, http.StatusOK, toPairResponse(pair))
}

// handleRefresh accepts the refresh token either as the bearer credential or in the
// body. A body token may be paired with an access bearer for the same account.
func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeOptionalJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		h.fail(w, r, "refresh", err)
		return
	}

	rc, err := h.refreshCredential(r, strings.TrimSpace(req.RefreshToken))
	if err != nil {
		h.record(r, AuditRefreshFailed, "", map[string]any{"reason": "credential"})
		h.fail(w, r, "refresh", err)
		return
	}

	pair, err := h.sessions.Refresh(r.Context(), rc)
	if err != nil {
		if apperr.Is(err, apperr.KindUnauthorized) {
			h.record(r, AuditRefreshFailed, rc.Claims.Subject, map[string]any{"reason": "session"})
		}
		h.fail(w, r, "refresh", err)
		return
	}

	h.record(r, AuditRefreshSuccess, rc.Claims.Subject, nil)
	writeJSON(w, http.StatusOK, toPairResponse(pair))
}

func (h *Handler) refreshCredential(r *http.Request, fromBody string) (session.RefreshCredential, error) {
	if fromBody == "" {
		return h.auth.ResolveRefresh(r)
	}

	rc, err := h.auth.RefreshFromRaw(fromBody)
	if err != nil {
		return session.RefreshCredential{}, err
	}
	if r.Header.Get("Authorization") == "" {
		return rc, nil
	}
	who, err := h.auth.ResolveAccess(r)
	if err != nil {
		return session.RefreshCredential{}, err
	}
	if who.UserID != rc.Claims.Subject {
		return session.RefreshCredential{}, apperr.InvalidToken(errors.New("access and refresh subjects differ"))
	}
	return rc, nil
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	who, _ := bearer.IdentityFrom(r.Context())
	if err := h.sessions.Logout(r.Context(), who); err != nil {
		h.fail(w, r, "logout", err)
		return
	}

	h.record(r, AuditLogout, who.UserID, nil)
	writeJSON(w, http.StatusOK, nil)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	who, _ := bearer.IdentityFrom(r.Context())
	if err := h.sessions.DeleteAccount(r.Context(), who); err != nil {
		h.fail(w, r, "delete", err)
		return
	}

	h.record(r, AuditDelete, who.UserID, nil)
	writeJSON(w, http.StatusOK, nil)
}

func (h *Handler) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	who, _ := bearer.IdentityFrom(r.Context())
	acct, err := h.sessions.WhoAmI(r.Context(), who)
	if err != nil {
		h.fail(w, r, "whoami", err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

// ---- helpers ----

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	e := apperr.From(err)
	if e.Kind == apperr.KindInternal {
		h.log.ErrorContext(r.Context(), "auth."+op+".fail", "err", e.Err)
	}
	apperr.Write(w, e)
}

func (h *Handler) record(r *http.Request, action, userID string, meta map[string]any) {
	h.audit.Record(r.Context(), AuditEntry{
		Action:    action,
		UserID:    userID,
		IP:        clientIP(r, h.cfg.TrustProxy),
		UserAgent: r.UserAgent(),
		Meta:      meta,
	})
}
