package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

const (
	dbPingTimeout  = 3 * time.Second
	dbPingAttempts = 5
	dbPingBackoff  = 200 * time.Millisecond
)

// Pinger is the part of a pool readiness needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewDBPool builds a pgxpool and waits for the database with exponential backoff.
// It does not run migrations; see the migrate command and --auto-migrate.
func NewDBPool(ctx context.Context, cfg Config, log *slog.Logger) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}
	if cfg.DBMaxConns > 0 {
		pcfg.MaxConns = cfg.DBMaxConns
	}
	if cfg.DBMinConns >= 0 && cfg.DBMinConns <= pcfg.MaxConns {
		pcfg.MinConns = cfg.DBMinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").Wrap(err)
	}

	backoff := retry.WithMaxRetries(dbPingAttempts-1, retry.NewExponential(dbPingBackoff))
	if err := waitForDB(ctx, pool, backoff, log); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func waitForDB(ctx context.Context, db Pinger, backoff retry.Backoff, log *slog.Logger) error {
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := PingDB(ctx, db, dbPingTimeout); err != nil {
			log.Info("db.ping.retry", "attempt", attempt, "err", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("attempts", attempt).Wrap(err)
	}
	return nil
}

// PingDB pings within timeout.
func PingDB(parent context.Context, db Pinger, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	return db.Ping(ctx)
}
