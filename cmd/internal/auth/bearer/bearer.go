// Package bearer authenticates inbound requests from the Authorization header.
package bearer

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"unicode"

	"authority/cmd/internal/apperr"
	"authority/cmd/internal/auth/session"
)

const scheme = "Bearer "

var (
	errMissingHeader = errors.New("missing authorization header")
	errMalformed     = errors.New("malformed bearer credentials")
)

// Verifier checks raw tokens. *session.Service satisfies it.
type Verifier interface {
	VerifyAccess(raw string) (session.Identity, error)
	VerifyRefresh(raw string) (session.RefreshCredential, error)
}

// Authenticator resolves request credentials.
type Authenticator struct {
	v Verifier
}

func New(v Verifier) *Authenticator { return &Authenticator{v: v} }

// ExtractBearer returns the token of an exact "Bearer <token>" header value.
// The scheme is case-sensitive, separated by one space, and the token has no whitespace.
func ExtractBearer(header string) (string, error) {
	if header == "" {
		return "", apperr.InvalidToken(errMissingHeader)
	}
	raw, ok := strings.CutPrefix(header, scheme)
	if !ok || raw == "" || strings.IndexFunc(raw, unicode.IsSpace) >= 0 {
		return "", apperr.InvalidToken(errMalformed)
	}
	return raw, nil
}

// ResolveAccess authenticates r with an access token.
func (a *Authenticator) ResolveAccess(r *http.Request) (session.Identity, error) {
	raw, err := ExtractBearer(r.Header.Get("Authorization"))
	if err != nil {
		return session.Identity{}, err
	}
	return a.v.VerifyAccess(raw)
}

// ResolveRefresh authenticates r with a refresh token.
func (a *Authenticator) ResolveRefresh(r *http.Request) (session.RefreshCredential, error) {
	raw, err := ExtractBearer(r.Header.Get("Authorization"))
	if err != nil {
		return session.RefreshCredential{}, err
	}
	return a.v.VerifyRefresh(raw)
}

// RefreshFromRaw verifies a refresh token supplied outside the header (request body).
func (a *Authenticator) RefreshFromRaw(raw string) (session.RefreshCredential, error) {
	if raw == "" || strings.IndexFunc(raw, unicode.IsSpace) >= 0 {
		return session.RefreshCredential{}, apperr.InvalidToken(errMalformed)
	}
	return a.v.VerifyRefresh(raw)
}

type ctxKey struct{}

// RequireAccess rejects requests without a valid access token and stores the caller's
// Identity in the request context.
func (a *Authenticator) RequireAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		who, err := a.ResolveAccess(r)
		if err != nil {
			apperr.Write(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), who)))
	})
}

// WithIdentity returns a copy of ctx carrying who.
func WithIdentity(ctx context.Context, who session.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, who)
}

// IdentityFrom returns the Identity stored by RequireAccess.
func IdentityFrom(ctx context.Context) (session.Identity, bool) {
	who, ok := ctx.Value(ctxKey{}).(session.Identity)
	return who, ok
}
