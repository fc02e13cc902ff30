// Package app wires the authority runtime: configuration, logging, persistence,
// the HTTP surface and the session events feed.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"authority/cmd/identity"
	authapi "authority/cmd/internal/auth/api"
	"authority/cmd/internal/auth/session"
	"authority/cmd/internal/realtime"
)

// App owns the HTTP handler tree and the resources behind it.
type App struct {
	cfg Config
	log *slog.Logger

	pool     *pgxpool.Pool
	handler  http.Handler
	registry *prometheus.Registry
	hub      *realtime.Hub
}

// New loads session configuration from the environment, opens the database when
// configured, and wires every component.
func New(ctx context.Context, cfg Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	minSecret := 0
	if cfg.RequireStrongSecrets {
		minSecret = MinStrongSecretBytes
	}
	sessCfg, err := session.LoadConfigFromEnv(minSecret)
	if err != nil {
		return nil, err
	}
	if err := ValidateSecurityConfig(cfg, sessCfg.Token); err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.memory_store")
		return assemble(cfg, log, sessCfg, identity.NewMemoryStore(), nil)
	}

	pool, err := NewDBPool(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	store, err := identity.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	log.Info("db.enabled.postgres_store", "max_conns", pool.Config().MaxConns)

	a, err := assemble(cfg, log, sessCfg, store, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return a, nil
}

// assemble builds the handler tree. pool may be nil (memory mode).
func assemble(cfg Config, log *slog.Logger, sessCfg session.Config, store identity.Store, pool *pgxpool.Pool) (*App, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	session.RegisterMetrics(reg)
	realtime.RegisterMetrics(reg)

	hub := realtime.NewHub(log)

	svc, err := session.NewService(sessCfg, store,
		session.WithPublisher(hub),
		session.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}

	var opts []authapi.HandlerOption
	if pool != nil {
		opts = append(opts, authapi.WithAuditSink(authapi.NewPostgresAudit(pool, identity.DefaultSchema, log)))
	}
	auth, err := authapi.NewHandler(log, authapi.LoadConfigFromEnv(), svc, opts...)
	if err != nil {
		return nil, err
	}

	evCfg := realtime.LoadConfigFromEnv()
	if len(evCfg.AllowedOrigins) == 0 && cfg.AllowedOrigin != "" {
		evCfg.AllowedOrigins = []string{cfg.AllowedOrigin}
	}
	events := realtime.NewGateway(log, hub, auth.Authenticator(), evCfg)

	rt := routes{log: log, cfg: cfg, registry: reg, auth: auth, events: events}
	if pool != nil {
		rt.db = pool
	}
	mux := http.NewServeMux()
	rt.register(mux)

	var h http.Handler = mux
	h = WithCORS(h, cfg.AllowedOrigin, log)
	h = WithSecurityHeaders(h)
	h = WithRequestLogging(h, log)
	h = WithRequestID(h)

	return &App{cfg: cfg, log: log, pool: pool, handler: h, registry: reg, hub: hub}, nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Run serves until ctx is done, then shuts down gracefully and releases the pool.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: nonZero(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZero(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZero(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZero(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    1 << 20,
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.pool != nil)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZero(a.cfg.ShutdownTimeout, 10*time.Second))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	a.log.Info("server.stopped")
	return nil
}

// Close releases the database pool. Safe on a memory-mode App.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

func nonZero(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
