package password

import "errors"

// Public, stable errors for callers.
var (
	// ErrMismatch is returned by Verify for every non-match, including malformed hashes.
	ErrMismatch = errors.New("password does not match")
	// ErrInvalidHash additionally marks a stored hash that could not be decoded or is out of bounds.
	ErrInvalidHash = errors.New("invalid password hash")
	// ErrEmptySecret is returned by Hash for an empty input.
	ErrEmptySecret = errors.New("empty secret")
)

func invalidHash() error {
	return errors.Join(ErrMismatch, ErrInvalidHash)
}
