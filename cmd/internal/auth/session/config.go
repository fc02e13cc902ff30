package session

import (
	"fmt"

	"authority/cmd/identity"
	"authority/cmd/security/password"
	"authority/cmd/security/token"
)

// Config bundles everything the lifecycle needs. It is built once at startup.
type Config struct {
	Token    token.Config
	Password password.Config
	Policies identity.Policies
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Required:
//   - AUTHORITY_ACCESS_TOKEN_SECRET
//   - AUTHORITY_REFRESH_TOKEN_SECRET
//
// Optional: see token.ConfigFromEnv, password.FromEnv and identity.PoliciesFromEnv.
//
// minSecretBytes > 0 enforces a minimum signing secret length.
func LoadConfigFromEnv(minSecretBytes int) (Config, error) {
	tc, err := token.ConfigFromEnv(minSecretBytes)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	pc, err := password.FromEnv()
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	pol, err := identity.PoliciesFromEnv()
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return Config{Token: tc, Password: pc, Policies: pol}, nil
}
