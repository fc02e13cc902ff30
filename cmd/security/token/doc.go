// Package token issues and verifies the signed session tokens.
//
// Two classes exist: Access (short lived, authenticates calls) and Refresh (long lived,
// only exchangeable for a new pair). Each class has its own HMAC secret, lifetime,
// audience and JOSE "typ" header. Both the header and the audience are checked during
// verification, so a token never verifies as the other class even when the secrets match.
//
// Tokens are compact HS256 JWS strings. Every verification failure is ErrInvalidToken;
// callers must not distinguish causes.
//
// Environment (see ConfigFromEnv):
//   - AUTHORITY_ACCESS_TOKEN_SECRET, AUTHORITY_REFRESH_TOKEN_SECRET (required)
//   - AUTHORITY_TOKEN_ISSUER
//   - AUTHORITY_ACCESS_TTL, AUTHORITY_REFRESH_TTL, AUTHORITY_TOKEN_LEEWAY
package token
