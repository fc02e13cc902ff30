package app

import (
	"bytes"
	"errors"

	"authority/cmd/security/token"
)

// MinStrongSecretBytes is the HS256 key size enforced under RequireStrongSecrets.
const MinStrongSecretBytes = 32

var (
	ErrWeakSecret   = errors.New("security policy: signing secret shorter than 32 bytes")
	ErrSharedSecret = errors.New("security policy: access and refresh secrets must differ")
)

// ValidateSecurityConfig fails startup when strong secrets are required and the token
// config does not meet the bar.
func ValidateSecurityConfig(cfg Config, tc token.Config) error {
	if !cfg.RequireStrongSecrets {
		return nil
	}
	if len(tc.AccessSecret) < MinStrongSecretBytes {
		return errors.Join(ErrWeakSecret, errors.New(token.AccessSecretEnvKey))
	}
	if len(tc.RefreshSecret) < MinStrongSecretBytes {
		return errors.Join(ErrWeakSecret, errors.New(token.RefreshSecretEnvKey))
	}
	if bytes.Equal(tc.AccessSecret, tc.RefreshSecret) {
		return ErrSharedSecret
	}
	return nil
}
