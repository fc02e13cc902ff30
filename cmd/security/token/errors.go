package token

import "errors"

// Public, stable errors for callers.
var (
	// ErrInvalidToken collapses every verification failure: bad signature, wrong class,
	// expired, malformed, wrong issuer or audience.
	ErrInvalidToken = errors.New("invalid token")

	ErrSecretMissing  = errors.New("token secret missing")
	ErrSecretTooShort = errors.New("token secret too short")
	ErrUnknownClass   = errors.New("unknown token class")
)
