package app

import (
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config is the process runtime configuration.
// Session settings (secrets, TTLs, argon2 cost, policies) live in session.Config.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// ReadinessRequireDB makes /readyz fail unless a database is configured and reachable.
	ReadinessRequireDB bool

	// RequireStrongSecrets enforces ValidateSecurityConfig at startup.
	RequireStrongSecrets bool

	AutoMigrate bool

	// AllowedOrigin is the single browser origin allowed by CORS. Empty disables CORS.
	AllowedOrigin string
}

// Keys shared by the YAML file and the CLI flags.
const (
	keyHTTPAddr        = "http-addr"
	keyLogLevel        = "log-level"
	keyLogFormat       = "log-format"
	keyDatabaseURL     = "database-url"
	keyDBMaxConns      = "db-max-conns"
	keyDBMinConns      = "db-min-conns"
	keyReadTimeout     = "read-timeout"
	keyWriteTimeout    = "write-timeout"
	keyIdleTimeout     = "idle-timeout"
	keyRequireDB       = "readiness-require-db"
	keyStrongSecrets   = "require-strong-secrets"
	keyAutoMigrate     = "auto-migrate"
	keyAllowedOrigin   = "allowed-origin"
	keyShutdownTimeout = "shutdown-timeout"
)

// LoadConfig reads AUTHORITY_* environment variables over the defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("HTTP_ADDR", "127.0.0.1:9099"),
		LogLevel:  EnvString("LOG_LEVEL", "info"),
		LogFormat: EnvString("LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   EnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		DatabaseURL: EnvString("DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("DB_MIN_CONNS", 0),

		ReadinessRequireDB:   EnvBool("READINESS_REQUIRE_DB", false),
		RequireStrongSecrets: EnvBool("REQUIRE_STRONG_SECRETS", false),
		AutoMigrate:          EnvBool("AUTO_MIGRATE", false),

		AllowedOrigin: EnvString("ALLOWED_ORIGIN", ""),
	}
}

// BindFlags declares the overlay flags on fs. Defaults are zero values: only flags the
// user sets take effect.
func BindFlags(fs *pflag.FlagSet) {
	fs.String(keyHTTPAddr, "", "listen address (host:port)")
	fs.String(keyLogLevel, "", "log level: debug, info, warn, error")
	fs.String(keyLogFormat, "", "log format: json or text")
	fs.String(keyDatabaseURL, "", "Postgres URL; empty runs the in-memory store")
	fs.Int32(keyDBMaxConns, 0, "maximum pool connections")
	fs.Int32(keyDBMinConns, 0, "minimum pool connections")
	fs.Duration(keyReadTimeout, 0, "HTTP read timeout")
	fs.Duration(keyWriteTimeout, 0, "HTTP write timeout")
	fs.Duration(keyIdleTimeout, 0, "HTTP idle timeout")
	fs.Duration(keyShutdownTimeout, 0, "graceful shutdown timeout")
	fs.Bool(keyRequireDB, false, "fail readiness without a reachable database")
	fs.Bool(keyStrongSecrets, false, "require signing secrets of at least 32 distinct bytes")
	fs.Bool(keyAutoMigrate, false, "apply migrations before serving")
	fs.String(keyAllowedOrigin, "", "CORS origin allowed to call the API")
}

// Overlay layers an optional YAML file and then explicitly set flags over cfg.
func Overlay(cfg Config, path string, fs *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return cfg, oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
		}
	}
	if fs != nil {
		changed := posflag.ProviderWithFlag(fs, ".", nil, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return f.Name, posflag.FlagVal(fs, f)
		})
		if err := k.Load(changed, nil); err != nil {
			return cfg, oops.Code("CONFIG_INVALID").Wrap(err)
		}
	}

	setString(k, keyHTTPAddr, &cfg.HTTPAddr)
	setString(k, keyLogLevel, &cfg.LogLevel)
	setString(k, keyLogFormat, &cfg.LogFormat)
	setString(k, keyDatabaseURL, &cfg.DatabaseURL)
	setString(k, keyAllowedOrigin, &cfg.AllowedOrigin)

	if k.Exists(keyDBMaxConns) {
		cfg.DBMaxConns = int32(k.Int64(keyDBMaxConns))
	}
	if k.Exists(keyDBMinConns) {
		cfg.DBMinConns = int32(k.Int64(keyDBMinConns))
	}

	setDuration(k, keyReadTimeout, &cfg.ReadTimeout)
	setDuration(k, keyWriteTimeout, &cfg.WriteTimeout)
	setDuration(k, keyIdleTimeout, &cfg.IdleTimeout)
	setDuration(k, keyShutdownTimeout, &cfg.ShutdownTimeout)

	setBool(k, keyRequireDB, &cfg.ReadinessRequireDB)
	setBool(k, keyStrongSecrets, &cfg.RequireStrongSecrets)
	setBool(k, keyAutoMigrate, &cfg.AutoMigrate)

	return cfg, nil
}

func setString(k *koanf.Koanf, key string, dst *string) {
	if k.Exists(key) {
		*dst = k.String(key)
	}
}

func setDuration(k *koanf.Koanf, key string, dst *time.Duration) {
	if k.Exists(key) {
		if d := k.Duration(key); d > 0 {
			*dst = d
		}
	}
}

func setBool(k *koanf.Koanf, key string, dst *bool) {
	if k.Exists(key) {
		*dst = k.Bool(key)
	}
}
