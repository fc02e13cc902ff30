package session

import "authority/cmd/security/token"

// Identity is the authenticated caller behind a verified access token.
type Identity struct {
	UserID string
	Name   string
}

// RefreshCredential is a verified refresh token together with its raw form,
// which is needed to check it against the stored fingerprint.
type RefreshCredential struct {
	Claims token.Claims
	Raw    string
}

// Pair is the token pair returned by Create, Login and Refresh.
type Pair struct {
	Access  token.Signed
	Refresh token.Signed
}
