package identity

import "time"

// Credential is the persisted account identity and its secret material.
//
// RefreshTokenHash is nil while the account has no session. When set it holds the
// hash of the most recently issued refresh token only; any earlier token is invalid.
type Credential struct {
	ID               string
	Name             string
	PasswordHash     string
	RefreshTokenHash *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasActiveSession reports whether a refresh token hash is currently stored.
func (c Credential) HasActiveSession() bool {
	return c.RefreshTokenHash != nil && *c.RefreshTokenHash != ""
}

// WithSession returns a copy of c holding refreshHash as its only valid refresh fingerprint.
func (c Credential) WithSession(refreshHash string, now time.Time) Credential {
	h := refreshHash
	c.RefreshTokenHash = &h
	c.UpdatedAt = advance(c.UpdatedAt, now)
	return c
}

// WithoutSession returns a copy of c with the refresh fingerprint cleared.
func (c Credential) WithoutSession(now time.Time) Credential {
	c.RefreshTokenHash = nil
	c.UpdatedAt = advance(c.UpdatedAt, now)
	return c
}

// advance keeps updated_at monotonic even if the wall clock steps backwards.
func advance(prev, now time.Time) time.Time {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	if !now.After(prev) {
		return prev.Add(time.Microsecond)
	}
	return now
}
