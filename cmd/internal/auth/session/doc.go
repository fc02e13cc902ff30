// Package session implements the account session lifecycle.
//
// An account is either in NoSession (no refresh fingerprint stored) or ActiveSession
// (exactly one refresh fingerprint stored). Create and Login move it to ActiveSession,
// Refresh rotates the fingerprint, Logout returns it to NoSession and DeleteAccount
// removes it.
//
// Access tokens are stateless and stay valid until they expire, even after Logout.
// Refresh tokens are only valid while their Argon2id fingerprint is the stored one;
// rotation is a compare-and-swap on that fingerprint so concurrent refreshes with the
// same token have exactly one winner.
//
// Every failure returned by Service is an *apperr.Error.
package session
