package authapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Audit actions.
const (
	AuditCreate         = "auth.create"
	AuditLoginSuccess   = "auth.login.success"
	AuditLoginFailed    = "auth.login.failed"
	AuditRefreshSuccess = "auth.refresh.success"
	AuditRefreshFailed  = "auth.refresh.failed"
	AuditLogout         = "auth.logout"
	AuditDelete         = "auth.delete"
)

// AuditEntry is one security-relevant event. It never carries secrets or tokens.
type AuditEntry struct {
	Action    string
	UserID    string
	IP        net.IP
	UserAgent string
	Meta      map[string]any
	At        time.Time
}

// AuditSink records audit entries. Record is best-effort and must not fail the request.
type AuditSink interface {
	Record(ctx context.Context, e AuditEntry)
}

// SlogAudit writes entries to a logger.
type SlogAudit struct {
	Log *slog.Logger
}

func (a SlogAudit) Record(ctx context.Context, e AuditEntry) {
	log := a.Log
	if log == nil {
		log = slog.Default()
	}
	attrs := []any{"action", e.Action}
	if e.UserID != "" {
		attrs = append(attrs, "user_id", e.UserID)
	}
	if e.IP != nil {
		attrs = append(attrs, "ip", e.IP.String())
	}
	if len(e.Meta) > 0 {
		attrs = append(attrs, "meta", e.Meta)
	}
	log.InfoContext(ctx, "audit", attrs...)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresAudit inserts entries into <schema>.audit_log.
type PostgresAudit struct {
	db    execer
	table string
	log   *slog.Logger
}

// NewPostgresAudit constructs a PostgresAudit. schema is quoted; it is not validated here.
func NewPostgresAudit(db execer, schema string, log *slog.Logger) *PostgresAudit {
	if log == nil {
		log = slog.Default()
	}
	return &PostgresAudit{db: db, table: pgx.Identifier{schema, "audit_log"}.Sanitize(), log: log}
}

func (a *PostgresAudit) Record(ctx context.Context, e AuditEntry) {
	if a == nil || a.db == nil {
		return
	}
	action := strings.TrimSpace(e.Action)
	if action == "" {
		return
	}
	at := e.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	var ipVal any
	if e.IP != nil {
		ipVal = e.IP.String()
	}

	var metaVal *string
	if len(e.Meta) > 0 {
		if b, err := json.Marshal(e.Meta); err == nil {
			s := string(b)
			metaVal = &s
		}
	}

	_, err := a.db.Exec(ctx, `
		INSERT INTO `+a.table+` (
			user_id, action, created_at, ip, user_agent, meta
		) VALUES ($1, $2, $3, $4, $5, $6::jsonb)
	`, trimOrNil(e.UserID), action, at, ipVal, trimOrNil(e.UserAgent), metaVal)
	if err != nil {
		a.log.Error("auth.audit.insert.fail", "err", err, "action", action)
	}
}

func trimOrNil(s string) any {
	v := strings.TrimSpace(s)
	if v == "" {
		return nil
	}
	return v
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
