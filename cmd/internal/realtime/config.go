package realtime

import (
	"net"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Config tunes the events gateway.
type Config struct {
	// AllowedOrigins lists browser origins permitted to open the feed cross-origin.
	// Same-host and origin-less (non-browser) clients are always accepted.
	AllowedOrigins []string

	SendQueueSize    int
	WriteTimeout     time.Duration
	HeartbeatEvery   time.Duration
	HeartbeatTimeout time.Duration
	RateEvents       int
	RateWindow       time.Duration
}

// DefaultConfig returns the gateway defaults.
func DefaultConfig() Config {
	return Config{
		SendQueueSize:    defaultSendQueueSize,
		WriteTimeout:     defaultWriteTimeout,
		HeartbeatEvery:   heartbeatInterval,
		HeartbeatTimeout: heartbeatTimeout,
		RateEvents:       rateLimitEvents,
		RateWindow:       rateLimitWindow,
	}
}

// LoadConfigFromEnv reads AUTHORITY_EVENTS_* overrides on top of DefaultConfig.
func LoadConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.AllowedOrigins = envCSV("AUTHORITY_EVENTS_ALLOWED_ORIGINS")
	cfg.SendQueueSize = envInt("AUTHORITY_EVENTS_SEND_QUEUE", cfg.SendQueueSize)
	cfg.WriteTimeout = envDuration("AUTHORITY_EVENTS_WRITE_TIMEOUT", cfg.WriteTimeout)
	cfg.HeartbeatEvery = envDuration("AUTHORITY_EVENTS_HEARTBEAT_INTERVAL", cfg.HeartbeatEvery)
	cfg.HeartbeatTimeout = envDuration("AUTHORITY_EVENTS_HEARTBEAT_TIMEOUT", cfg.HeartbeatTimeout)
	cfg.RateEvents = envInt("AUTHORITY_EVENTS_RATE_EVENTS", cfg.RateEvents)
	cfg.RateWindow = envDuration("AUTHORITY_EVENTS_RATE_WINDOW", cfg.RateWindow)
	return cfg
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.SendQueueSize < minSendQueueSize {
		c.SendQueueSize = max(d.SendQueueSize, minSendQueueSize)
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.HeartbeatEvery <= 0 {
		c.HeartbeatEvery = d.HeartbeatEvery
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = d.HeartbeatTimeout
	}
	return c
}

// originPatterns turns allowed origins into the host patterns websocket.Accept matches.
func originPatterns(allowed []string) []string {
	out := make([]string, 0, len(allowed))
	for _, a := range allowed {
		h := originHost(a)
		if h == "" || slices.Contains(out, h) {
			continue
		}
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}

// originHost accepts "scheme://host[:port]" or "host[:port]" and returns the lowercased host.
// "*" passes through unchanged.
func originHost(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return s
	}
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		s = u.Host
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	return strings.ToLower(s)
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func envCSV(key string) []string {
	var out []string
	for p := range strings.SplitSeq(os.Getenv(key), ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
