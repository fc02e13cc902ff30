package token

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Env var names. #nosec G101 -- names, not credentials.
const (
	AccessSecretEnvKey  = "AUTHORITY_ACCESS_TOKEN_SECRET"
	RefreshSecretEnvKey = "AUTHORITY_REFRESH_TOKEN_SECRET"
)

const (
	DefaultIssuer     = "authority"
	DefaultAccessTTL  = 30 * time.Minute
	DefaultRefreshTTL = 14 * 24 * time.Hour
	DefaultLeeway     = 5 * time.Second
)

// Config holds per-class signing material and lifetimes.
type Config struct {
	Issuer string

	AccessSecret  []byte
	RefreshSecret []byte

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Leeway tolerates small clock skew on exp/iat checks.
	Leeway time.Duration
}

func (c Config) secret(class Class) []byte {
	if class == Access {
		return c.AccessSecret
	}
	return c.RefreshSecret
}

func (c Config) ttl(class Class) time.Duration {
	if class == Access {
		return c.AccessTTL
	}
	return c.RefreshTTL
}

func (c Config) audience(class Class) string {
	return c.Issuer + ":" + class.String()
}

// Validate checks the config is usable. It does not enforce secret strength; see SecretFromEnv.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Issuer) == "" {
		return fmt.Errorf("token: issuer is required")
	}
	if len(c.AccessSecret) == 0 || len(c.RefreshSecret) == 0 {
		return ErrSecretMissing
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return fmt.Errorf("token: ttl must be > 0")
	}
	if c.Leeway < 0 {
		return fmt.Errorf("token: leeway must be >= 0")
	}
	return nil
}

// SecretFromEnv returns the trimmed secret bytes stored in key, enforcing a minimum byte length.
// Missing/blank -> ErrSecretMissing. Too short -> ErrSecretTooShort.
func SecretFromEnv(key string, minBytes int) ([]byte, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil, fmt.Errorf("%s: %w", key, ErrSecretMissing)
	}
	b := []byte(raw)
	if minBytes > 0 && len(b) < minBytes {
		return nil, fmt.Errorf("%s: %w", key, ErrSecretTooShort)
	}
	return b, nil
}

// ConfigFromEnv loads the codec config. Both secrets are required; minSecretBytes of 0
// disables the length check.
func ConfigFromEnv(minSecretBytes int) (Config, error) {
	cfg := Config{
		Issuer:     DefaultIssuer,
		AccessTTL:  DefaultAccessTTL,
		RefreshTTL: DefaultRefreshTTL,
		Leeway:     DefaultLeeway,
	}

	var err error
	if cfg.AccessSecret, err = SecretFromEnv(AccessSecretEnvKey, minSecretBytes); err != nil {
		return Config{}, err
	}
	if cfg.RefreshSecret, err = SecretFromEnv(RefreshSecretEnvKey, minSecretBytes); err != nil {
		return Config{}, err
	}

	if v := strings.TrimSpace(os.Getenv("AUTHORITY_TOKEN_ISSUER")); v != "" {
		cfg.Issuer = v
	}
	if cfg.AccessTTL, err = envDuration("AUTHORITY_ACCESS_TTL", cfg.AccessTTL); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTTL, err = envDuration("AUTHORITY_REFRESH_TTL", cfg.RefreshTTL); err != nil {
		return Config{}, err
	}
	if cfg.Leeway, err = envDuration("AUTHORITY_TOKEN_LEEWAY", cfg.Leeway); err != nil {
		return Config{}, err
	}

	return cfg, cfg.Validate()
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration", key)
	}
	return d, nil
}
