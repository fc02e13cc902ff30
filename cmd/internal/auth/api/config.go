package authapi

import (
	"os"
	"strconv"
	"strings"
)

// Config controls auth API behavior.
type Config struct {
	// TrustProxy makes clientIP honor X-Forwarded-For / X-Real-IP.
	TrustProxy   bool
	MaxBodyBytes int64
}

// LoadConfigFromEnv loads auth config from environment variables with safe defaults.
//
//   - AUTHORITY_AUTH_TRUST_PROXY (default false)
//   - AUTHORITY_AUTH_MAX_BODY_BYTES (default 64 KiB)
func LoadConfigFromEnv() Config {
	return Config{
		TrustProxy:   envBool("AUTHORITY_AUTH_TRUST_PROXY", false),
		MaxBodyBytes: envInt64("AUTHORITY_AUTH_MAX_BODY_BYTES", 64<<10),
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
